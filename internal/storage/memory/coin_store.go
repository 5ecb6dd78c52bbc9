package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// CoinStore implements storage.CoinStore in memory.
type CoinStore struct {
	mu    sync.RWMutex
	coins map[string]*domain.Coin
}

// NewCoinStore creates a new in-memory CoinStore.
func NewCoinStore() *CoinStore {
	return &CoinStore{coins: make(map[string]*domain.Coin)}
}

// Compile-time interface check.
var _ storage.CoinStore = (*CoinStore)(nil)

func (s *CoinStore) Upsert(_ context.Context, c *domain.Coin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.coins[c.CoinType]
	if !ok {
		s.coins[c.CoinType] = copyCoin(c)
		return nil
	}

	existing.Decimals = c.Decimals
	mergeStrPtr(&existing.Name, c.Name)
	mergeStrPtr(&existing.Symbol, c.Symbol)
	mergeStrPtr(&existing.PricePyth, c.PricePyth)
	mergeStrPtr(&existing.PriceSupra, c.PriceSupra)
	mergeStrPtr(&existing.PriceSwitchboard, c.PriceSwitchboard)
	mergeStrPtr(&existing.PythFeedID, c.PythFeedID)
	mergeStrPtr(&existing.PythEmaPrice, c.PythEmaPrice)
	if c.PythDecimals != nil {
		existing.PythDecimals = copyInt32Ptr(c.PythDecimals)
	}
	if c.PythUpdatedAt != nil {
		at := *c.PythUpdatedAt
		existing.PythUpdatedAt = &at
	}
	return nil
}

func (s *CoinStore) UpdatePrice(_ context.Context, coinType string, e *domain.PriceUpdated) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coins[coinType]
	if !ok {
		c = &domain.Coin{CoinType: coinType}
		s.coins[coinType] = c
	}

	switch e.Source {
	case domain.OraclePyth:
		c.PricePyth = strPtr(e.Price)
		c.PythFeedID = strPtr(e.FeedID)
		c.PythEmaPrice = strPtr(e.EmaPrice)
		decimals := e.Decimals
		c.PythDecimals = &decimals
		at := e.ObservedAt
		c.PythUpdatedAt = &at
	case domain.OracleSupra:
		c.PriceSupra = strPtr(e.Price)
	case domain.OracleSwitchboard:
		c.PriceSwitchboard = strPtr(e.Price)
	default:
		return fmt.Errorf("%w: unknown oracle source %q", storage.ErrInvalidInput, e.Source)
	}
	return nil
}

func (s *CoinStore) GetByType(_ context.Context, coinType string) (*domain.Coin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.coins[coinType]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyCoin(c), nil
}

func (s *CoinStore) GetByFeedID(_ context.Context, feedID string) (*domain.Coin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.coins {
		if c.PythFeedID != nil && *c.PythFeedID == feedID {
			return copyCoin(c), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *CoinStore) GetAll(_ context.Context) ([]*domain.Coin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coins := make([]*domain.Coin, 0, len(s.coins))
	for _, c := range s.coins {
		coins = append(coins, copyCoin(c))
	}
	sort.Slice(coins, func(i, j int) bool { return coins[i].CoinType < coins[j].CoinType })
	return coins, nil
}

func copyCoin(c *domain.Coin) *domain.Coin {
	cp := *c
	cp.Name = copyStrPtr(c.Name)
	cp.Symbol = copyStrPtr(c.Symbol)
	cp.PricePyth = copyStrPtr(c.PricePyth)
	cp.PriceSupra = copyStrPtr(c.PriceSupra)
	cp.PriceSwitchboard = copyStrPtr(c.PriceSwitchboard)
	cp.PythFeedID = copyStrPtr(c.PythFeedID)
	cp.PythEmaPrice = copyStrPtr(c.PythEmaPrice)
	cp.PythDecimals = copyInt32Ptr(c.PythDecimals)
	if c.PythUpdatedAt != nil {
		at := *c.PythUpdatedAt
		cp.PythUpdatedAt = &at
	}
	return &cp
}

func mergeStrPtr(dst **string, src *string) {
	if src != nil {
		*dst = copyStrPtr(src)
	}
}
