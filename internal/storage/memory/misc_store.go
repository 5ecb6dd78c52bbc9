package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// SharedObjectStore implements storage.SharedObjectStore in memory.
type SharedObjectStore struct {
	mu      sync.RWMutex
	objects map[string]int64
}

// NewSharedObjectStore creates a new in-memory SharedObjectStore.
func NewSharedObjectStore() *SharedObjectStore {
	return &SharedObjectStore{objects: make(map[string]int64)}
}

// Compile-time interface check.
var _ storage.SharedObjectStore = (*SharedObjectStore)(nil)

func (s *SharedObjectStore) Upsert(_ context.Context, o *domain.SharedObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[o.ObjectID] = o.InitialSharedVersion
	return nil
}

func (s *SharedObjectStore) Get(_ context.Context, objectID string) (*domain.SharedObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, ok := s.objects[objectID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &domain.SharedObject{ObjectID: objectID, InitialSharedVersion: version}, nil
}

// MetricStore implements storage.MetricStore in memory.
type MetricStore struct {
	mu        sync.RWMutex
	snapshots map[int64]domain.MetricSnapshot
}

// NewMetricStore creates a new in-memory MetricStore.
func NewMetricStore() *MetricStore {
	return &MetricStore{snapshots: make(map[int64]domain.MetricSnapshot)}
}

// Compile-time interface check.
var _ storage.MetricStore = (*MetricStore)(nil)

func (s *MetricStore) Upsert(_ context.Context, m *domain.MetricSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[m.LatestSeqNumber] = *m
	return nil
}

func (s *MetricStore) Latest(_ context.Context) (*domain.MetricSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.MetricSnapshot
	for seq, snap := range s.snapshots {
		if latest == nil || seq > latest.LatestSeqNumber {
			cp := snap
			latest = &cp
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return latest, nil
}

// WatermarkStore implements storage.WatermarkStore in memory.
type WatermarkStore struct {
	mu  sync.RWMutex
	seq uint64
	set bool
}

// NewWatermarkStore creates a new in-memory WatermarkStore.
func NewWatermarkStore() *WatermarkStore {
	return &WatermarkStore{}
}

// Compile-time interface check.
var _ storage.WatermarkStore = (*WatermarkStore)(nil)

func (s *WatermarkStore) Set(_ context.Context, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set || seq > s.seq {
		s.seq = seq
		s.set = true
	}
	return nil
}

func (s *WatermarkStore) Get(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return 0, storage.ErrNotFound
	}
	return s.seq, nil
}

// PriceTickStore implements storage.PriceTickStore in memory.
type PriceTickStore struct {
	mu    sync.RWMutex
	ticks []*domain.PriceTick
}

// NewPriceTickStore creates a new in-memory PriceTickStore.
func NewPriceTickStore() *PriceTickStore {
	return &PriceTickStore{}
}

// Compile-time interface check.
var _ storage.PriceTickStore = (*PriceTickStore)(nil)

func (s *PriceTickStore) InsertBulk(_ context.Context, ticks []*domain.PriceTick) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range ticks {
		cp := *t
		s.ticks = append(s.ticks, &cp)
	}
	return nil
}

func (s *PriceTickStore) GetByFeed(_ context.Context, feedID string, start, end time.Time) ([]*domain.PriceTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.PriceTick
	for _, t := range s.ticks {
		if t.FeedID == feedID && !t.ObservedAt.Before(start) && !t.ObservedAt.After(end) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	return out, nil
}
