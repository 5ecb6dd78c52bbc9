package memory

import (
	"context"
	"sort"
	"sync"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

type marketKey struct {
	platform string
	coinType string
}

// LendingMarketStore implements storage.LendingMarketStore in memory.
type LendingMarketStore struct {
	mu      sync.RWMutex
	markets map[marketKey]*domain.LendingMarket
}

// NewLendingMarketStore creates a new in-memory LendingMarketStore.
func NewLendingMarketStore() *LendingMarketStore {
	return &LendingMarketStore{markets: make(map[marketKey]*domain.LendingMarket)}
}

// Compile-time interface check.
var _ storage.LendingMarketStore = (*LendingMarketStore)(nil)

func (s *LendingMarketStore) Upsert(_ context.Context, m *domain.LendingMarket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := marketKey{m.Platform, m.CoinType}
	existing, ok := s.markets[k]
	if !ok {
		s.markets[k] = copyMarket(m)
		return nil
	}

	mergeStrPtr(&existing.LTV, m.LTV)
	mergeStrPtr(&existing.LiquidationThreshold, m.LiquidationThreshold)
	mergeStrPtr(&existing.BorrowWeight, m.BorrowWeight)
	mergeStrPtr(&existing.LiquidationRatio, m.LiquidationRatio)
	mergeStrPtr(&existing.LiquidationPenalty, m.LiquidationPenalty)
	mergeStrPtr(&existing.LiquidationFee, m.LiquidationFee)
	mergeStrPtr(&existing.SupplyAmount, m.SupplyAmount)
	mergeStrPtr(&existing.BorrowedAmount, m.BorrowedAmount)
	mergeStrPtr(&existing.BorrowIndex, m.BorrowIndex)
	mergeStrPtr(&existing.SupplyIndex, m.SupplyIndex)
	mergeStrPtr(&existing.PythFeedID, m.PythFeedID)
	return nil
}

func (s *LendingMarketStore) Get(_ context.Context, platform, coinType string) (*domain.LendingMarket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[marketKey{platform, coinType}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyMarket(m), nil
}

func (s *LendingMarketStore) GetByPlatform(_ context.Context, platform string) ([]*domain.LendingMarket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var markets []*domain.LendingMarket
	for k, m := range s.markets {
		if k.platform == platform {
			markets = append(markets, copyMarket(m))
		}
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].CoinType < markets[j].CoinType })
	return markets, nil
}

func copyMarket(m *domain.LendingMarket) *domain.LendingMarket {
	cp := *m
	cp.LTV = copyStrPtr(m.LTV)
	cp.LiquidationThreshold = copyStrPtr(m.LiquidationThreshold)
	cp.BorrowWeight = copyStrPtr(m.BorrowWeight)
	cp.LiquidationRatio = copyStrPtr(m.LiquidationRatio)
	cp.LiquidationPenalty = copyStrPtr(m.LiquidationPenalty)
	cp.LiquidationFee = copyStrPtr(m.LiquidationFee)
	cp.SupplyAmount = copyStrPtr(m.SupplyAmount)
	cp.BorrowedAmount = copyStrPtr(m.BorrowedAmount)
	cp.BorrowIndex = copyStrPtr(m.BorrowIndex)
	cp.SupplyIndex = copyStrPtr(m.SupplyIndex)
	cp.PythFeedID = copyStrPtr(m.PythFeedID)
	return &cp
}

type borrowerKey struct {
	platform string
	borrower string
}

// BorrowerStore implements storage.BorrowerStore in memory.
type BorrowerStore struct {
	mu        sync.RWMutex
	borrowers map[borrowerKey]*domain.Borrower
}

// NewBorrowerStore creates a new in-memory BorrowerStore.
func NewBorrowerStore() *BorrowerStore {
	return &BorrowerStore{borrowers: make(map[borrowerKey]*domain.Borrower)}
}

// Compile-time interface check.
var _ storage.BorrowerStore = (*BorrowerStore)(nil)

func (s *BorrowerStore) Upsert(_ context.Context, b *domain.Borrower) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := borrowerKey{b.Platform, b.Borrower}
	existing, ok := s.borrowers[k]
	if !ok {
		cp := *b
		cp.ObligationID = copyStrPtr(b.ObligationID)
		s.borrowers[k] = &cp
		return nil
	}

	mergeStrPtr(&existing.ObligationID, b.ObligationID)
	existing.Status = b.Status
	return nil
}

func (s *BorrowerStore) Get(_ context.Context, platform, borrower string) (*domain.Borrower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.borrowers[borrowerKey{platform, borrower}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *b
	cp.ObligationID = copyStrPtr(b.ObligationID)
	return &cp, nil
}

func (s *BorrowerStore) GetByObligation(_ context.Context, platform, obligationID string) (*domain.Borrower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for k, b := range s.borrowers {
		if k.platform == platform && b.ObligationID != nil && *b.ObligationID == obligationID {
			cp := *b
			cp.ObligationID = copyStrPtr(b.ObligationID)
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *BorrowerStore) SetStatus(_ context.Context, platform, borrower string, status domain.BorrowerStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.borrowers[borrowerKey{platform, borrower}]
	if !ok {
		return storage.ErrNotFound
	}
	b.Status = status
	return nil
}

func (s *BorrowerStore) GetByStatus(_ context.Context, platform string, status domain.BorrowerStatus) ([]*domain.Borrower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var borrowers []*domain.Borrower
	for k, b := range s.borrowers {
		if k.platform == platform && b.Status == status {
			cp := *b
			cp.ObligationID = copyStrPtr(b.ObligationID)
			borrowers = append(borrowers, &cp)
		}
	}
	sort.Slice(borrowers, func(i, j int) bool { return borrowers[i].Borrower < borrowers[j].Borrower })
	return borrowers, nil
}
