package memory

import (
	"context"
	"sort"
	"sync"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

type tickKey struct {
	address string
	tick    int32
}

// PoolTickStore implements storage.PoolTickStore in memory.
type PoolTickStore struct {
	mu    sync.RWMutex
	ticks map[tickKey]*domain.PoolTick
}

// NewPoolTickStore creates a new in-memory PoolTickStore.
func NewPoolTickStore() *PoolTickStore {
	return &PoolTickStore{ticks: make(map[tickKey]*domain.PoolTick)}
}

// Compile-time interface check.
var _ storage.PoolTickStore = (*PoolTickStore)(nil)

func (s *PoolTickStore) Upsert(_ context.Context, t *domain.PoolTick) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	cp.LiquidityNet = copyStrPtr(t.LiquidityNet)
	cp.LiquidityGross = copyStrPtr(t.LiquidityGross)
	s.ticks[tickKey{t.Address, t.TickIndex}] = &cp
	return nil
}

func (s *PoolTickStore) GetByPool(_ context.Context, address string) ([]*domain.PoolTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ticks []*domain.PoolTick
	for k, t := range s.ticks {
		if k.address == address {
			cp := *t
			cp.LiquidityNet = copyStrPtr(t.LiquidityNet)
			cp.LiquidityGross = copyStrPtr(t.LiquidityGross)
			ticks = append(ticks, &cp)
		}
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].TickIndex < ticks[j].TickIndex })
	return ticks, nil
}
