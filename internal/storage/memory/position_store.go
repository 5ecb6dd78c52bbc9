package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

type positionKey struct {
	platform string
	borrower string
	coinType string
}

// PositionStore implements storage.PositionStore in memory. Separate
// instances back the deposit and borrow sides.
type PositionStore struct {
	mu        sync.RWMutex
	positions map[positionKey]decimal.Decimal
}

// NewPositionStore creates a new in-memory PositionStore.
func NewPositionStore() *PositionStore {
	return &PositionStore{positions: make(map[positionKey]decimal.Decimal)}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

func (s *PositionStore) ApplyDelta(_ context.Context, platform, borrower, coinType string, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := positionKey{platform, borrower, coinType}
	next := s.positions[k].Add(delta)
	if next.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s/%s/%s balance %s + delta %s < 0",
			storage.ErrInvariant, platform, borrower, coinType, s.positions[k], delta)
	}
	s.positions[k] = next
	return next, nil
}

func (s *PositionStore) GetByBorrower(_ context.Context, platform, borrower string) ([]*domain.UserPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var positions []*domain.UserPosition
	for k, amount := range s.positions {
		if k.platform == platform && k.borrower == borrower {
			positions = append(positions, &domain.UserPosition{
				Platform: k.platform,
				Borrower: k.borrower,
				CoinType: k.coinType,
				Amount:   amount.String(),
			})
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].CoinType < positions[j].CoinType })
	return positions, nil
}

func (s *PositionStore) Get(_ context.Context, platform, borrower, coinType string) (*domain.UserPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	amount, ok := s.positions[positionKey{platform, borrower, coinType}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &domain.UserPosition{
		Platform: platform,
		Borrower: borrower,
		CoinType: coinType,
		Amount:   amount.String(),
	}, nil
}
