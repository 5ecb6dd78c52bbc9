package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// LiquidationEventStore implements storage.LiquidationEventStore in memory.
type LiquidationEventStore struct {
	mu     sync.RWMutex
	events map[string]*domain.LiquidationEvent // by tx_digest
	order  []string
}

// NewLiquidationEventStore creates a new in-memory LiquidationEventStore.
func NewLiquidationEventStore() *LiquidationEventStore {
	return &LiquidationEventStore{events: make(map[string]*domain.LiquidationEvent)}
}

// Compile-time interface check.
var _ storage.LiquidationEventStore = (*LiquidationEventStore)(nil)

func (s *LiquidationEventStore) Insert(_ context.Context, e *domain.LiquidationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[e.TxDigest]; ok {
		return nil // replay of the same digest
	}
	cp := *e
	s.events[e.TxDigest] = &cp
	s.order = append(s.order, e.TxDigest)
	return nil
}

func (s *LiquidationEventStore) GetByBorrower(_ context.Context, platform, borrower string) ([]*domain.LiquidationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*domain.LiquidationEvent
	for _, digest := range s.order {
		e := s.events[digest]
		if e.Platform == platform && e.Borrower == borrower {
			cp := *e
			events = append(events, &cp)
		}
	}
	return events, nil
}

// LiquidationOrderStore implements storage.LiquidationOrderStore in memory.
type LiquidationOrderStore struct {
	mu     sync.RWMutex
	orders []*domain.LiquidationOrder
	nextID int64
}

// NewLiquidationOrderStore creates a new in-memory LiquidationOrderStore.
func NewLiquidationOrderStore() *LiquidationOrderStore {
	return &LiquidationOrderStore{nextID: 1}
}

// Compile-time interface check.
var _ storage.LiquidationOrderStore = (*LiquidationOrderStore)(nil)

func (s *LiquidationOrderStore) Insert(_ context.Context, o *domain.LiquidationOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.orders {
		if existing.Platform == o.Platform && existing.Borrower == o.Borrower && existing.Status == domain.OrderOpen {
			return storage.ErrDuplicateKey
		}
	}

	o.ID = s.nextID
	s.nextID++
	cp := copyOrder(o)
	s.orders = append(s.orders, cp)
	return nil
}

func (s *LiquidationOrderStore) GetOpen(_ context.Context, platform, borrower string) (*domain.LiquidationOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.Platform == platform && o.Borrower == borrower && o.Status == domain.OrderOpen {
			return copyOrder(o), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *LiquidationOrderStore) GetByStatus(_ context.Context, status domain.OrderStatus) ([]*domain.LiquidationOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []*domain.LiquidationOrder
	for _, o := range s.orders {
		if o.Status == status {
			orders = append(orders, copyOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders, nil
}

func (s *LiquidationOrderStore) RecordExecution(_ context.Context, r *domain.ExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.ID != r.OrderID {
			continue
		}
		if o.Status != domain.OrderOpen {
			return fmt.Errorf("%w: order %d is not open", storage.ErrInvalidInput, r.OrderID)
		}
		o.Status = r.Status
		if r.TxDigest != "" {
			o.TxDigest = strPtr(r.TxDigest)
		}
		checkpoint := r.Checkpoint
		o.Checkpoint = &checkpoint
		if r.BotAddress != "" {
			o.BotAddress = strPtr(r.BotAddress)
		}
		if r.Error != "" {
			o.Error = strPtr(r.Error)
		}
		at := r.FinalizedAt
		o.FinalizedAt = &at
		return nil
	}
	return storage.ErrNotFound
}

func (s *LiquidationOrderStore) Cancel(_ context.Context, platform, borrower string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.Platform == platform && o.Borrower == borrower && o.Status == domain.OrderOpen {
			o.Status = domain.OrderCancelled
			now := time.Now().UTC()
			o.FinalizedAt = &now
			return nil
		}
	}
	return storage.ErrNotFound
}

func copyOrder(o *domain.LiquidationOrder) *domain.LiquidationOrder {
	cp := *o
	cp.TxDigest = copyStrPtr(o.TxDigest)
	cp.BotAddress = copyStrPtr(o.BotAddress)
	cp.Error = copyStrPtr(o.Error)
	if o.Checkpoint != nil {
		v := *o.Checkpoint
		cp.Checkpoint = &v
	}
	if o.FinalizedAt != nil {
		at := *o.FinalizedAt
		cp.FinalizedAt = &at
	}
	return &cp
}
