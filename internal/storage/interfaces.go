package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"sui-mev-indexer/internal/domain"
)

// Every mutating method is an idempotent upsert on the entity's natural
// key unless its comment says otherwise, so replaying a checkpoint
// interval converges on the same state.

// PoolStore provides access to pools storage.
type PoolStore interface {
	// Upsert inserts or fully replaces a pool row keyed by address.
	Upsert(ctx context.Context, p *domain.Pool) error

	// ApplyState merges a state change into an existing pool: only the
	// non-empty fields of the event overwrite columns. Returns ErrNotFound
	// when the pool has never been created.
	ApplyState(ctx context.Context, e *domain.PoolStateChanged) error

	// GetByAddress retrieves a pool. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.Pool, error)

	// GetByExchange retrieves all pools of one exchange.
	GetByExchange(ctx context.Context, exchange string) ([]*domain.Pool, error)

	// GetAll retrieves every pool.
	GetAll(ctx context.Context) ([]*domain.Pool, error)
}

// PoolTickStore provides access to pool_ticks storage.
type PoolTickStore interface {
	// Upsert inserts or replaces a tick row keyed by (address, tick_index).
	Upsert(ctx context.Context, t *domain.PoolTick) error

	// GetByPool retrieves all ticks of one pool, ordered by tick_index ASC.
	GetByPool(ctx context.Context, address string) ([]*domain.PoolTick, error)
}

// CoinStore provides access to coins storage.
type CoinStore interface {
	// Upsert inserts or replaces coin metadata keyed by coin_type. Price
	// columns are preserved when the incoming row leaves them nil.
	Upsert(ctx context.Context, c *domain.Coin) error

	// UpdatePrice overwrites the price column of one oracle source only.
	// Unknown coin types are created with just the price set.
	UpdatePrice(ctx context.Context, coinType string, e *domain.PriceUpdated) error

	// GetByType retrieves a coin. Returns ErrNotFound if not exists.
	GetByType(ctx context.Context, coinType string) (*domain.Coin, error)

	// GetByFeedID resolves a Pyth feed identifier to its coin. Returns
	// ErrNotFound when no coin is mapped to the feed.
	GetByFeedID(ctx context.Context, feedID string) (*domain.Coin, error)

	// GetAll retrieves every coin.
	GetAll(ctx context.Context) ([]*domain.Coin, error)
}

// LendingMarketStore provides access to lending_markets storage.
type LendingMarketStore interface {
	// Upsert inserts or merges a market row keyed by (platform, coin_type).
	// Nil fields of the incoming row keep their stored values.
	Upsert(ctx context.Context, m *domain.LendingMarket) error

	// Get retrieves one market. Returns ErrNotFound if not exists.
	Get(ctx context.Context, platform, coinType string) (*domain.LendingMarket, error)

	// GetByPlatform retrieves all markets of one platform.
	GetByPlatform(ctx context.Context, platform string) ([]*domain.LendingMarket, error)
}

// BorrowerStore provides access to borrowers storage.
type BorrowerStore interface {
	// Upsert inserts or replaces a borrower keyed by (platform, borrower).
	Upsert(ctx context.Context, b *domain.Borrower) error

	// Get retrieves one borrower. Returns ErrNotFound if not exists.
	Get(ctx context.Context, platform, borrower string) (*domain.Borrower, error)

	// GetByObligation resolves an obligation ID to its borrower. Returns
	// ErrNotFound when no borrower carries the obligation.
	GetByObligation(ctx context.Context, platform, obligationID string) (*domain.Borrower, error)

	// SetStatus updates the lifecycle status of one borrower.
	SetStatus(ctx context.Context, platform, borrower string, status domain.BorrowerStatus) error

	// GetByStatus retrieves all borrowers of one platform in one status.
	GetByStatus(ctx context.Context, platform string, status domain.BorrowerStatus) ([]*domain.Borrower, error)
}

// PositionStore provides access to one side of borrower balances. Two
// instances exist per backend, one over the deposits table and one over
// the borrows table.
type PositionStore interface {
	// ApplyDelta adds delta (negative to reduce) to the position keyed by
	// (platform, borrower, coin_type), creating the row at zero first.
	// Returns ErrInvariant without writing when the result would be
	// negative, and the resulting amount otherwise.
	ApplyDelta(ctx context.Context, platform, borrower, coinType string, delta decimal.Decimal) (decimal.Decimal, error)

	// GetByBorrower retrieves all positions of one borrower.
	GetByBorrower(ctx context.Context, platform, borrower string) ([]*domain.UserPosition, error)

	// Get retrieves one position. Returns ErrNotFound if not exists.
	Get(ctx context.Context, platform, borrower, coinType string) (*domain.UserPosition, error)
}

// LiquidationEventStore provides access to the append-only liquidation
// audit log.
type LiquidationEventStore interface {
	// Insert adds an observed liquidation keyed by tx_digest. Replaying
	// the same digest is a no-op, never an error.
	Insert(ctx context.Context, e *domain.LiquidationEvent) error

	// GetByBorrower retrieves all observed liquidations of one borrower.
	GetByBorrower(ctx context.Context, platform, borrower string) ([]*domain.LiquidationEvent, error)
}

// LiquidationOrderStore provides access to liquidation_orders storage.
type LiquidationOrderStore interface {
	// Insert creates a new order and assigns its ID. Returns
	// ErrDuplicateKey when the borrower already has an open order on the
	// platform; at most one open order per (platform, borrower) exists.
	Insert(ctx context.Context, o *domain.LiquidationOrder) error

	// GetOpen retrieves the open order of one borrower. Returns
	// ErrNotFound if none is open.
	GetOpen(ctx context.Context, platform, borrower string) (*domain.LiquidationOrder, error)

	// GetByStatus retrieves all orders in one status, newest first.
	GetByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.LiquidationOrder, error)

	// RecordExecution writes back the executor's result onto an open
	// order. Returns ErrNotFound when the order does not exist and
	// ErrInvalidInput when it is no longer open.
	RecordExecution(ctx context.Context, r *domain.ExecutionResult) error

	// Cancel marks an open order cancelled. Returns ErrNotFound when the
	// borrower has no open order.
	Cancel(ctx context.Context, platform, borrower string) error
}

// SharedObjectStore provides access to shared_objects storage.
type SharedObjectStore interface {
	// Upsert inserts or replaces a shared object keyed by object_id.
	Upsert(ctx context.Context, o *domain.SharedObject) error

	// Get retrieves one shared object. Returns ErrNotFound if not exists.
	Get(ctx context.Context, objectID string) (*domain.SharedObject, error)
}

// MetricStore provides access to pipeline metric snapshots.
type MetricStore interface {
	// Upsert inserts or replaces a snapshot keyed by latest_seq_number.
	Upsert(ctx context.Context, m *domain.MetricSnapshot) error

	// Latest retrieves the snapshot with the highest latest_seq_number.
	// Returns ErrNotFound when no snapshot has ever been written.
	Latest(ctx context.Context) (*domain.MetricSnapshot, error)
}

// WatermarkStore records the highest checkpoint sequence whose effects are
// fully persisted. The pipeline advances it after every commit and skips
// checkpoints at or below it on restart, so additive position deltas are
// never applied twice.
type WatermarkStore interface {
	// Set records seq as committed. Watermarks only move forward.
	Set(ctx context.Context, seq uint64) error

	// Get retrieves the committed watermark. Returns ErrNotFound when no
	// checkpoint has ever been committed.
	Get(ctx context.Context) (uint64, error)
}

// PriceTickStore provides access to the append-only oracle price history.
type PriceTickStore interface {
	// InsertBulk appends a batch of observations.
	InsertBulk(ctx context.Context, ticks []*domain.PriceTick) error

	// GetByFeed retrieves observations of one feed within [start, end],
	// ordered by observation time ASC.
	GetByFeed(ctx context.Context, feedID string, start, end time.Time) ([]*domain.PriceTick, error)
}
