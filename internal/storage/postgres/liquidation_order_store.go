package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// LiquidationOrderStore implements storage.LiquidationOrderStore using
// PostgreSQL. A partial unique index on (platform, borrower) WHERE
// status = 0 enforces the single-open-order invariant in the database,
// so racing writers cannot create duplicates.
type LiquidationOrderStore struct {
	pool *Pool
}

// NewLiquidationOrderStore creates a new LiquidationOrderStore.
func NewLiquidationOrderStore(pool *Pool) *LiquidationOrderStore {
	return &LiquidationOrderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LiquidationOrderStore = (*LiquidationOrderStore)(nil)

// Insert creates a new order and assigns its ID. Returns ErrDuplicateKey
// when the borrower already has an open order on the platform.
func (s *LiquidationOrderStore) Insert(ctx context.Context, o *domain.LiquidationOrder) error {
	query := `
		INSERT INTO liquidation_orders (
			platform, borrower, health_factor, debt_coin, collateral_coin,
			amount_repay, amount_usd, source, status
		) VALUES ($1, $2, $3::NUMERIC, $4, $5, $6::NUMERIC, $7::NUMERIC, $8, $9)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		o.Platform,
		o.Borrower,
		o.HealthFactor,
		o.DebtCoin,
		o.CollateralCoin,
		o.AmountRepay,
		o.AmountUSD,
		o.Source,
		o.Status,
	).Scan(&o.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert liquidation order: %w", err)
	}
	return nil
}

// GetOpen retrieves the open order of one borrower.
func (s *LiquidationOrderStore) GetOpen(ctx context.Context, platform, borrower string) (*domain.LiquidationOrder, error) {
	query := orderSelect + ` WHERE platform = $1 AND borrower = $2 AND status = 0`

	o, err := scanOrder(s.pool.QueryRow(ctx, query, platform, borrower))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get open order: %w", err)
	}
	return o, nil
}

// GetByStatus retrieves all orders in one status, newest first.
func (s *LiquidationOrderStore) GetByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.LiquidationOrder, error) {
	rows, err := s.pool.Query(ctx, orderSelect+` WHERE status = $1 ORDER BY id DESC`, status)
	if err != nil {
		return nil, fmt.Errorf("get orders by status: %w", err)
	}
	defer rows.Close()

	var orders []*domain.LiquidationOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

// RecordExecution writes back the executor's result onto an open order.
func (s *LiquidationOrderStore) RecordExecution(ctx context.Context, r *domain.ExecutionResult) error {
	query := `
		UPDATE liquidation_orders SET
			status = $2,
			tx_digest = NULLIF($3, ''),
			checkpoint = $4,
			bot_address = NULLIF($5, ''),
			error = NULLIF($6, ''),
			finalized_at = $7
		WHERE id = $1 AND status = 0
	`

	tag, err := s.pool.Exec(ctx, query,
		r.OrderID,
		r.Status,
		r.TxDigest,
		r.Checkpoint,
		r.BotAddress,
		r.Error,
		r.FinalizedAt,
	)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM liquidation_orders WHERE id = $1)`, r.OrderID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check order existence: %w", err)
		}
		if !exists {
			return storage.ErrNotFound
		}
		return fmt.Errorf("%w: order %d is not open", storage.ErrInvalidInput, r.OrderID)
	}
	return nil
}

// Cancel marks an open order cancelled.
func (s *LiquidationOrderStore) Cancel(ctx context.Context, platform, borrower string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE liquidation_orders SET status = $3, finalized_at = now()
		 WHERE platform = $1 AND borrower = $2 AND status = 0`,
		platform, borrower, domain.OrderCancelled,
	)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const orderSelect = `
	SELECT id, platform, borrower, health_factor::TEXT, debt_coin, collateral_coin,
		amount_repay::TEXT, amount_usd::TEXT, source, status,
		tx_digest, checkpoint, bot_address, error, finalized_at
	FROM liquidation_orders`

func scanOrder(row pgx.Row) (*domain.LiquidationOrder, error) {
	var o domain.LiquidationOrder
	err := row.Scan(
		&o.ID,
		&o.Platform,
		&o.Borrower,
		&o.HealthFactor,
		&o.DebtCoin,
		&o.CollateralCoin,
		&o.AmountRepay,
		&o.AmountUSD,
		&o.Source,
		&o.Status,
		&o.TxDigest,
		&o.Checkpoint,
		&o.BotAddress,
		&o.Error,
		&o.FinalizedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
