package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// PoolStore implements storage.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *Pool
}

// NewPoolStore creates a new PoolStore.
func NewPoolStore(pool *Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolStore = (*PoolStore)(nil)

// Upsert inserts or fully replaces a pool row keyed by address.
func (s *PoolStore) Upsert(ctx context.Context, p *domain.Pool) error {
	query := `
		INSERT INTO pools (
			address, exchange, coin_a, coin_b, amount_a, amount_b,
			liquidity, sqrt_price, tick_index, tick_spacing, fee_rate, is_paused, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		ON CONFLICT (address) DO UPDATE SET
			exchange = EXCLUDED.exchange,
			coin_a = EXCLUDED.coin_a,
			coin_b = EXCLUDED.coin_b,
			amount_a = EXCLUDED.amount_a,
			amount_b = EXCLUDED.amount_b,
			liquidity = EXCLUDED.liquidity,
			sqrt_price = EXCLUDED.sqrt_price,
			tick_index = EXCLUDED.tick_index,
			tick_spacing = EXCLUDED.tick_spacing,
			fee_rate = EXCLUDED.fee_rate,
			is_paused = EXCLUDED.is_paused,
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query,
		p.Address,
		p.Exchange,
		p.CoinA,
		p.CoinB,
		p.AmountA,
		p.AmountB,
		p.Liquidity,
		p.SqrtPrice,
		p.TickIndex,
		p.TickSpacing,
		p.FeeRate,
		p.IsPaused,
	)
	if err != nil {
		return fmt.Errorf("upsert pool: %w", err)
	}
	return nil
}

// ApplyState merges a state change into an existing pool. Empty string
// fields of the event leave their columns untouched.
func (s *PoolStore) ApplyState(ctx context.Context, e *domain.PoolStateChanged) error {
	query := `
		UPDATE pools SET
			amount_a = COALESCE(NULLIF($2, '')::NUMERIC, amount_a),
			amount_b = COALESCE(NULLIF($3, '')::NUMERIC, amount_b),
			liquidity = COALESCE(NULLIF($4, '')::NUMERIC, liquidity),
			sqrt_price = COALESCE(NULLIF($5, '')::NUMERIC, sqrt_price),
			tick_index = COALESCE($6, tick_index),
			updated_at = now()
		WHERE address = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		e.Address,
		e.AmountA,
		e.AmountB,
		e.Liquidity,
		e.SqrtPrice,
		e.TickIndex,
	)
	if err != nil {
		return fmt.Errorf("apply pool state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByAddress retrieves a pool. Returns ErrNotFound if not exists.
func (s *PoolStore) GetByAddress(ctx context.Context, address string) (*domain.Pool, error) {
	query := poolSelect + ` WHERE address = $1`

	row := s.pool.QueryRow(ctx, query, address)
	p, err := scanPool(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool by address: %w", err)
	}
	return p, nil
}

// GetByExchange retrieves all pools of one exchange.
func (s *PoolStore) GetByExchange(ctx context.Context, exchange string) ([]*domain.Pool, error) {
	query := poolSelect + ` WHERE exchange = $1 ORDER BY address ASC`

	rows, err := s.pool.Query(ctx, query, exchange)
	if err != nil {
		return nil, fmt.Errorf("get pools by exchange: %w", err)
	}
	defer rows.Close()

	return scanPools(rows)
}

// GetAll retrieves every pool.
func (s *PoolStore) GetAll(ctx context.Context) ([]*domain.Pool, error) {
	query := poolSelect + ` ORDER BY address ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all pools: %w", err)
	}
	defer rows.Close()

	return scanPools(rows)
}

const poolSelect = `
	SELECT address, exchange, coin_a, coin_b,
		amount_a::TEXT, amount_b::TEXT, liquidity::TEXT, sqrt_price::TEXT,
		tick_index, tick_spacing, fee_rate, is_paused
	FROM pools`

func scanPool(row pgx.Row) (*domain.Pool, error) {
	var p domain.Pool
	err := row.Scan(
		&p.Address,
		&p.Exchange,
		&p.CoinA,
		&p.CoinB,
		&p.AmountA,
		&p.AmountB,
		&p.Liquidity,
		&p.SqrtPrice,
		&p.TickIndex,
		&p.TickSpacing,
		&p.FeeRate,
		&p.IsPaused,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPools(rows pgx.Rows) ([]*domain.Pool, error) {
	var pools []*domain.Pool

	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool row: %w", err)
		}
		pools = append(pools, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool rows: %w", err)
	}

	return pools, nil
}
