package postgres

import (
	"context"
	"fmt"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// PoolTickStore implements storage.PoolTickStore using PostgreSQL.
type PoolTickStore struct {
	pool *Pool
}

// NewPoolTickStore creates a new PoolTickStore.
func NewPoolTickStore(pool *Pool) *PoolTickStore {
	return &PoolTickStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolTickStore = (*PoolTickStore)(nil)

// Upsert inserts or replaces a tick row keyed by (address, tick_index).
func (s *PoolTickStore) Upsert(ctx context.Context, t *domain.PoolTick) error {
	query := `
		INSERT INTO pool_ticks (address, tick_index, liquidity_net, liquidity_gross, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (address, tick_index) DO UPDATE SET
			liquidity_net = EXCLUDED.liquidity_net,
			liquidity_gross = EXCLUDED.liquidity_gross,
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query, t.Address, t.TickIndex, t.LiquidityNet, t.LiquidityGross)
	if err != nil {
		return fmt.Errorf("upsert pool tick: %w", err)
	}
	return nil
}

// GetByPool retrieves all ticks of one pool, ordered by tick_index ASC.
func (s *PoolTickStore) GetByPool(ctx context.Context, address string) ([]*domain.PoolTick, error) {
	query := `
		SELECT address, tick_index, liquidity_net::TEXT, liquidity_gross::TEXT
		FROM pool_ticks
		WHERE address = $1
		ORDER BY tick_index ASC
	`

	rows, err := s.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("get ticks by pool: %w", err)
	}
	defer rows.Close()

	var ticks []*domain.PoolTick
	for rows.Next() {
		var t domain.PoolTick
		if err := rows.Scan(&t.Address, &t.TickIndex, &t.LiquidityNet, &t.LiquidityGross); err != nil {
			return nil, fmt.Errorf("scan pool tick row: %w", err)
		}
		ticks = append(ticks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool tick rows: %w", err)
	}

	return ticks, nil
}
