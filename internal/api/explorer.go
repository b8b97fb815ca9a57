package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/polyinsider/whalewatch/internal/explorer"
	"github.com/polyinsider/whalewatch/internal/store"
)

// Explorer answers on-demand trader and market lookups.
type Explorer interface {
	WhaleProfile(ctx context.Context, address string) (store.WhaleProfile, error)
	Holders(ctx context.Context, market string) ([]store.Holder, error)
	Markets(ctx context.Context, q explorer.MarketQuery) ([]store.Market, error)
	Market(ctx context.Context, slug string) (store.MarketDetail, error)
}

// ExplorerHandler holds the trader and market endpoints.
type ExplorerHandler struct {
	explorer Explorer
}

// NewExplorerHandler creates an ExplorerHandler.
func NewExplorerHandler(e Explorer) *ExplorerHandler {
	return &ExplorerHandler{explorer: e}
}

// GetWhale returns the profile of the trader in the path.
func (h *ExplorerHandler) GetWhale(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	profile, err := h.explorer.WhaleProfile(r.Context(), address)
	if err != nil {
		if errors.Is(err, explorer.ErrInvalidAddress) {
			writeError(w, http.StatusBadRequest, "Invalid wallet address")
			return
		}
		slog.Error("whale_profile_failed", "address", address, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch whale profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// GetHolders returns the top holders of the market in the path.
func (h *ExplorerHandler) GetHolders(w http.ResponseWriter, r *http.Request) {
	market := r.PathValue("marketId")

	holders, err := h.explorer.Holders(r.Context(), market)
	if err != nil {
		if errors.Is(err, explorer.ErrInvalidMarket) {
			writeError(w, http.StatusBadRequest, "Invalid market id")
			return
		}
		slog.Error("holders_failed", "market", market, "error", err)
		writeError(w, http.StatusServiceUnavailable, "Failed to fetch holders")
		return
	}
	writeJSON(w, http.StatusOK, holders)
}

// GetMarkets lists open markets, honouring ?limit=, ?sortBy= and ?category=.
func (h *ExplorerHandler) GetMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := explorer.MarketQuery{
		SortBy:   q.Get("sortBy"),
		Category: q.Get("category"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		query.Limit = n
	}

	markets, err := h.explorer.Markets(r.Context(), query)
	if err != nil {
		if errors.Is(err, explorer.ErrInvalidSort) {
			writeError(w, http.StatusBadRequest, "sortBy must be volume24hr, volume or liquidity")
			return
		}
		slog.Error("markets_failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Failed to fetch markets")
		return
	}
	writeJSON(w, http.StatusOK, markets)
}

// GetMarket returns the market with the slug in the path.
func (h *ExplorerHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	market, err := h.explorer.Market(r.Context(), slug)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, market)
	case errors.Is(err, explorer.ErrInvalidMarket):
		writeError(w, http.StatusBadRequest, "Invalid market slug")
	case errors.Is(err, explorer.ErrMarketNotFound):
		writeError(w, http.StatusNotFound, "Market not found")
	default:
		slog.Error("market_failed", "slug", slug, "error", err)
		writeError(w, http.StatusServiceUnavailable, "Failed to fetch market")
	}
}
