// Package shares stores trade cards under short opaque ids so a trade can be
// linked to and looked up later.
package shares

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/polyinsider/whalewatch/internal/kv"
	"github.com/polyinsider/whalewatch/internal/store"
)

const (
	// KeyPrefix namespaces share records in the store.
	KeyPrefix = "trade:"
	// DefaultTTL is how long a shared card stays retrievable.
	DefaultTTL = 30 * 24 * time.Hour

	idLength    = 10
	maxIDLength = 128
)

var (
	// ErrNotFound is returned when no card is stored under an id.
	ErrNotFound = errors.New("trade not found")
	// ErrInvalidID is returned for empty or oversized ids.
	ErrInvalidID = errors.New("invalid trade id")
)

// Service saves and fetches shared cards.
type Service struct {
	kv      kv.Store
	ttl     time.Duration
	timeout time.Duration
}

// NewService creates a Service over s. A zero ttl selects DefaultTTL.
func NewService(s kv.Store, ttl, timeout time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{kv: s, ttl: ttl, timeout: timeout}
}

// NewID returns a short random id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
}

// Save stores card under id, expiring after the service ttl.
func (s *Service) Save(ctx context.Context, id string, card store.Card) error {
	if err := validateID(id); err != nil {
		return err
	}

	if card.ID == "" {
		card.ID = id
	}
	data, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("encode trade %s: %w", id, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.kv.Set(ctx, KeyPrefix+id, data, s.ttl); err != nil {
		return fmt.Errorf("save trade %s: %w", id, err)
	}
	return nil
}

// Get returns the card stored under id.
func (s *Service) Get(ctx context.Context, id string) (store.Card, error) {
	if err := validateID(id); err != nil {
		return store.Card{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.kv.Get(ctx, KeyPrefix+id)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return store.Card{}, ErrNotFound
		}
		return store.Card{}, fmt.Errorf("get trade %s: %w", id, err)
	}

	var card store.Card
	if err := json.Unmarshal(data, &card); err != nil {
		return store.Card{}, fmt.Errorf("decode trade %s: %w", id, err)
	}
	return card, nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" || len(id) > maxIDLength {
		return ErrInvalidID
	}
	return nil
}
