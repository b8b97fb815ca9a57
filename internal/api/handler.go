// Package api serves the whale feed, sync trigger, shared trades and
// leaderboard over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/polyinsider/whalewatch/internal/accumulator"
	"github.com/polyinsider/whalewatch/internal/detector"
	"github.com/polyinsider/whalewatch/internal/engine"
	"github.com/polyinsider/whalewatch/internal/leaderboard"
	"github.com/polyinsider/whalewatch/internal/shares"
	"github.com/polyinsider/whalewatch/internal/store"
)

// FeedCacheControl lets the CDN serve a feed for 30s and revalidate for 60s.
const FeedCacheControl = "public, s-maxage=30, stale-while-revalidate=60"

// DefaultFeedLimit is the number of cards returned by the feed.
const DefaultFeedLimit = 20

const maxBodyBytes = 64 << 10

// Refresher runs one refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context, p engine.Params) (engine.Result, error)
}

// CollectionLoader reads the accumulated collection.
type CollectionLoader interface {
	Load(ctx context.Context) (accumulator.Collection, error)
}

// ShareStore saves and fetches shared cards.
type ShareStore interface {
	Save(ctx context.Context, id string, card store.Card) error
	Get(ctx context.Context, id string) (store.Card, error)
}

// Handler holds the trade API endpoints.
type Handler struct {
	refresher  Refresher
	collection CollectionLoader
	shares     ShareStore
	params     engine.Params
	feedLimit  int

	mu   sync.RWMutex
	last *accumulator.Collection
}

// NewHandler creates a Handler. params are the configured refresh bounds,
// used as-is by sync and as defaults by the feed.
func NewHandler(r Refresher, coll CollectionLoader, sh ShareStore, params engine.Params, feedLimit int) *Handler {
	if feedLimit <= 0 {
		feedLimit = DefaultFeedLimit
	}
	params.Previous = nil
	return &Handler{
		refresher:  r,
		collection: coll,
		shares:     sh,
		params:     params,
		feedLimit:  feedLimit,
	}
}

// Observe remembers the collection of every successful cycle so requests can
// fall back to it when the store is unreadable. It has the engine.Observer
// signature.
func (h *Handler) Observe(res engine.Result) {
	if !res.OK {
		return
	}
	coll := res.Collection
	h.mu.Lock()
	h.last = &coll
	h.mu.Unlock()
}

func (h *Handler) previous() *accumulator.Collection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}

// GetTrades runs a refresh and returns the largest whale trades as cards.
//
// The refresh always uses the configured bounds so a caller cannot change
// what is persisted. ?minAmount= only filters the returned cards, which means
// a value below the configured threshold returns the same set as none.
func (h *Handler) GetTrades(w http.ResponseWriter, r *http.Request) {
	params := h.params
	params.Previous = h.previous()

	var minAmount float64
	if raw := r.URL.Query().Get("minAmount"); raw != "" {
		var err error
		minAmount, err = strconv.ParseFloat(raw, 64)
		if err != nil || !detector.ValidMinAmount(minAmount) {
			writeError(w, http.StatusBadRequest, "minAmount must be a positive number")
			return
		}
	}

	limit := parseLimit(r, h.feedLimit, params.MaxCount)

	res, err := h.refresher.Refresh(r.Context(), params)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidParams) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("fetch_trades_failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Failed to fetch trades")
		return
	}

	trades := res.Trades
	if minAmount > 0 {
		trades = filterWhales(trades, minAmount)
	}
	if len(trades) > limit {
		trades = trades[:limit]
	}
	cards := make([]store.Card, 0, len(trades))
	for _, t := range trades {
		cards = append(cards, detector.Card(t))
	}

	w.Header().Set("Cache-Control", FeedCacheControl)
	writeJSON(w, http.StatusOK, cards)
}

type syncResponse struct {
	OK    bool  `json:"ok"`
	New   int   `json:"new"`
	Total int   `json:"total"`
	Ms    int64 `json:"ms"`
}

// Sync runs a refresh with the configured bounds and reports its stats.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	params := h.params
	params.Previous = h.previous()

	res, err := h.refresher.Refresh(r.Context(), params)
	if err != nil {
		slog.Error("sync_failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]bool{"ok": false})
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		OK:    true,
		New:   res.Stats.NewCount,
		Total: res.Stats.TotalCount,
		Ms:    res.Stats.DurationMs(),
	})
}

// GetShare returns a shared trade card.
func (h *Handler) GetShare(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	card, err := h.shares.Get(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, card)
	case errors.Is(err, shares.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "Invalid trade id")
	case errors.Is(err, shares.ErrNotFound):
		writeError(w, http.StatusNotFound, "Trade not found")
	default:
		slog.Error("get_share_failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch trade")
	}
}

// SaveShare stores a trade card under the id in the path.
func (h *Handler) SaveShare(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	card, ok := decodeCard(w, r)
	if !ok {
		return
	}
	if !h.saveShare(w, r, id, card) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// CreateShare stores a trade card under a new id and returns it.
func (h *Handler) CreateShare(w http.ResponseWriter, r *http.Request) {
	card, ok := decodeCard(w, r)
	if !ok {
		return
	}

	id := shares.NewID()
	// The card id is the trade key; the share id is separate.
	if !h.saveShare(w, r, id, card) {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) saveShare(w http.ResponseWriter, r *http.Request, id string, card store.Card) bool {
	err := h.shares.Save(r.Context(), id, card)
	switch {
	case err == nil:
		return true
	case errors.Is(err, shares.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "Invalid trade id")
	default:
		slog.Error("save_share_failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save trade")
	}
	return false
}

// GetLeaderboard ranks traders in the stored collection by volume.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	coll, err := h.collection.Load(r.Context())
	if err != nil {
		prev := h.previous()
		if prev == nil {
			slog.Error("leaderboard_failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to fetch leaderboard")
			return
		}
		slog.Warn("leaderboard_store_read_failed", "error", err, "fallback", "previous")
		coll = *prev
	}

	writeJSON(w, http.StatusOK, leaderboard.Build(coll, leaderboard.DefaultLimit))
}

// filterWhales returns the trades that qualify at minAmount, keeping order.
func filterWhales(trades []store.Trade, minAmount float64) []store.Trade {
	out := make([]store.Trade, 0, len(trades))
	for _, t := range trades {
		if detector.IsWhale(t, minAmount) {
			out = append(out, t)
		}
	}
	return out
}

func decodeCard(w http.ResponseWriter, r *http.Request) (store.Card, bool) {
	var card store.Card
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&card); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid trade body")
		return store.Card{}, false
	}
	return card, true
}

// parseLimit reads ?limit=, falling back to def and capping at ceiling.
func parseLimit(r *http.Request, def, ceiling int) int {
	limit := def
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if ceiling > 0 && limit > ceiling {
		limit = ceiling
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response_encode_failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
