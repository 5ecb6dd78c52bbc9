package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// Position table names. The deposits and borrows tables share one layout
// and one store implementation.
const (
	DepositsTable = "user_deposits"
	BorrowsTable  = "user_borrows"
)

// PositionStore implements storage.PositionStore over one position table.
type PositionStore struct {
	pool  *Pool
	table string
}

// NewDepositStore creates a PositionStore over the collateral table.
func NewDepositStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool, table: DepositsTable}
}

// NewBorrowStore creates a PositionStore over the debt table.
func NewBorrowStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool, table: BorrowsTable}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// ApplyDelta adds delta to the position inside one transaction, locking
// the row so concurrent deltas serialize. A result below zero rolls back
// with ErrInvariant.
func (s *PositionStore) ApplyDelta(ctx context.Context, platform, borrower, coinType string, delta decimal.Decimal) (decimal.Decimal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := fmt.Sprintf(`
		INSERT INTO %s (platform, borrower, coin_type, amount, updated_at)
		VALUES ($1, $2, $3, 0, now())
		ON CONFLICT (platform, borrower, coin_type) DO NOTHING
	`, s.table)
	if _, err := tx.Exec(ctx, insert, platform, borrower, coinType); err != nil {
		return decimal.Zero, fmt.Errorf("ensure position row: %w", err)
	}

	var current string
	lock := fmt.Sprintf(`
		SELECT amount::TEXT FROM %s
		WHERE platform = $1 AND borrower = $2 AND coin_type = $3
		FOR UPDATE
	`, s.table)
	if err := tx.QueryRow(ctx, lock, platform, borrower, coinType).Scan(&current); err != nil {
		return decimal.Zero, fmt.Errorf("lock position row: %w", err)
	}

	amount, err := decimal.NewFromString(current)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse stored amount %q: %w", current, err)
	}

	next := amount.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s/%s/%s balance %s + delta %s < 0",
			storage.ErrInvariant, platform, borrower, coinType, amount, delta)
	}

	update := fmt.Sprintf(`
		UPDATE %s SET amount = $4::NUMERIC, updated_at = now()
		WHERE platform = $1 AND borrower = $2 AND coin_type = $3
	`, s.table)
	if _, err := tx.Exec(ctx, update, platform, borrower, coinType, next.String()); err != nil {
		return decimal.Zero, fmt.Errorf("update position: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("commit tx: %w", err)
	}

	return next, nil
}

// GetByBorrower retrieves all positions of one borrower.
func (s *PositionStore) GetByBorrower(ctx context.Context, platform, borrower string) ([]*domain.UserPosition, error) {
	query := fmt.Sprintf(`
		SELECT platform, borrower, obligation_id, coin_type, amount::TEXT
		FROM %s
		WHERE platform = $1 AND borrower = $2
		ORDER BY coin_type ASC
	`, s.table)

	rows, err := s.pool.Query(ctx, query, platform, borrower)
	if err != nil {
		return nil, fmt.Errorf("get positions by borrower: %w", err)
	}
	defer rows.Close()

	var positions []*domain.UserPosition
	for rows.Next() {
		var p domain.UserPosition
		if err := rows.Scan(&p.Platform, &p.Borrower, &p.ObligationID, &p.CoinType, &p.Amount); err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions = append(positions, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}

	return positions, nil
}

// Get retrieves one position. Returns ErrNotFound if not exists.
func (s *PositionStore) Get(ctx context.Context, platform, borrower, coinType string) (*domain.UserPosition, error) {
	query := fmt.Sprintf(`
		SELECT platform, borrower, obligation_id, coin_type, amount::TEXT
		FROM %s
		WHERE platform = $1 AND borrower = $2 AND coin_type = $3
	`, s.table)

	var p domain.UserPosition
	err := s.pool.QueryRow(ctx, query, platform, borrower, coinType).
		Scan(&p.Platform, &p.Borrower, &p.ObligationID, &p.CoinType, &p.Amount)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return &p, nil
}
