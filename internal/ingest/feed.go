// Package ingest fetches raw trades from the Polymarket Data API.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/polyinsider/whalewatch/internal/store"
)

const (
	// DataAPIBaseURL is the Polymarket Data API endpoint
	DataAPIBaseURL = "https://data-api.polymarket.com"
	// GammaAPIBaseURL is the Polymarket market catalogue endpoint
	GammaAPIBaseURL = "https://gamma-api.polymarket.com"
	// DefaultPageSize is the number of trades requested per fetch
	DefaultPageSize = 500
	// DefaultTimeout bounds a single fetch
	DefaultTimeout = 10 * time.Second
	// UserAgent is sent with every request
	UserAgent = "whalewatch/1.0"

	maxBodyBytes = 16 << 20
)

// ErrUpstreamUnavailable is returned when the trade feed cannot be fetched or
// its response is unusable.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// FeedClient fetches recent trades and trader data from the Data API.
type FeedClient struct {
	api apiClient
}

// NewFeedClient creates a new FeedClient. An empty baseURL selects the public
// Data API and a zero timeout selects DefaultTimeout.
func NewFeedClient(baseURL string, timeout time.Duration) *FeedClient {
	if baseURL == "" {
		baseURL = DataAPIBaseURL
	}
	return &FeedClient{api: newAPIClient(baseURL, timeout)}
}

// FetchTrades fetches up to limit of the most recent trades. Any failure,
// including a non-2xx status or a malformed body, wraps
// ErrUpstreamUnavailable.
func (c *FeedClient) FetchTrades(ctx context.Context, limit int) ([]store.Trade, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	body, err := c.api.get(ctx, "/trades", q)
	if err != nil {
		return nil, err
	}

	trades, err := DecodeTrades(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	slog.Debug("trades_fetched", "count", len(trades), "limit", limit)
	return trades, nil
}

// apiClient issues GET requests against one JSON API.
type apiClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func newAPIClient(baseURL string, timeout time.Duration) apiClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return apiClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// get returns the body of a 2xx response to path?q. Failures wrap
// ErrUpstreamUnavailable.
func (c apiClient) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request failed: %w", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s: unexpected status: %d", ErrUpstreamUnavailable, path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body failed: %w", ErrUpstreamUnavailable, err)
	}
	return body, nil
}
