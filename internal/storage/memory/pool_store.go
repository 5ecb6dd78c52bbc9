// Package memory provides in-memory store implementations for tests and
// for running the pipeline without a database. All stores are safe for
// concurrent use and return deep copies.
package memory

import (
	"context"
	"sort"
	"sync"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// PoolStore implements storage.PoolStore in memory.
type PoolStore struct {
	mu    sync.RWMutex
	pools map[string]*domain.Pool
}

// NewPoolStore creates a new in-memory PoolStore.
func NewPoolStore() *PoolStore {
	return &PoolStore{pools: make(map[string]*domain.Pool)}
}

// Compile-time interface check.
var _ storage.PoolStore = (*PoolStore)(nil)

func (s *PoolStore) Upsert(_ context.Context, p *domain.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := copyPool(p)
	s.pools[p.Address] = cp
	return nil
}

func (s *PoolStore) ApplyState(_ context.Context, e *domain.PoolStateChanged) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[e.Address]
	if !ok {
		return storage.ErrNotFound
	}

	if e.AmountA != "" {
		p.AmountA = strPtr(e.AmountA)
	}
	if e.AmountB != "" {
		p.AmountB = strPtr(e.AmountB)
	}
	if e.Liquidity != "" {
		p.Liquidity = strPtr(e.Liquidity)
	}
	if e.SqrtPrice != "" {
		p.SqrtPrice = strPtr(e.SqrtPrice)
	}
	if e.TickIndex != nil {
		tick := *e.TickIndex
		p.TickIndex = &tick
	}
	return nil
}

func (s *PoolStore) GetByAddress(_ context.Context, address string) (*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pools[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyPool(p), nil
}

func (s *PoolStore) GetByExchange(_ context.Context, exchange string) ([]*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pools []*domain.Pool
	for _, p := range s.pools {
		if p.Exchange == exchange {
			pools = append(pools, copyPool(p))
		}
	}
	sortPools(pools)
	return pools, nil
}

func (s *PoolStore) GetAll(_ context.Context) ([]*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pools := make([]*domain.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		pools = append(pools, copyPool(p))
	}
	sortPools(pools)
	return pools, nil
}

func sortPools(pools []*domain.Pool) {
	sort.Slice(pools, func(i, j int) bool { return pools[i].Address < pools[j].Address })
}

func copyPool(p *domain.Pool) *domain.Pool {
	cp := *p
	cp.AmountA = copyStrPtr(p.AmountA)
	cp.AmountB = copyStrPtr(p.AmountB)
	cp.Liquidity = copyStrPtr(p.Liquidity)
	cp.SqrtPrice = copyStrPtr(p.SqrtPrice)
	cp.TickIndex = copyInt32Ptr(p.TickIndex)
	cp.TickSpacing = copyInt32Ptr(p.TickSpacing)
	if p.FeeRate != nil {
		fee := *p.FeeRate
		cp.FeeRate = &fee
	}
	return &cp
}

func strPtr(v string) *string { return &v }

func copyStrPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyInt32Ptr(p *int32) *int32 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
