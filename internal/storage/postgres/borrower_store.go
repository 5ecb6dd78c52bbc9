package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// BorrowerStore implements storage.BorrowerStore using PostgreSQL.
type BorrowerStore struct {
	pool *Pool
}

// NewBorrowerStore creates a new BorrowerStore.
func NewBorrowerStore(pool *Pool) *BorrowerStore {
	return &BorrowerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BorrowerStore = (*BorrowerStore)(nil)

// Upsert inserts or replaces a borrower keyed by (platform, borrower).
func (s *BorrowerStore) Upsert(ctx context.Context, b *domain.Borrower) error {
	query := `
		INSERT INTO borrowers (platform, borrower, obligation_id, status, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (platform, borrower) DO UPDATE SET
			obligation_id = COALESCE(EXCLUDED.obligation_id, borrowers.obligation_id),
			status = EXCLUDED.status,
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query, b.Platform, b.Borrower, b.ObligationID, b.Status)
	if err != nil {
		return fmt.Errorf("upsert borrower: %w", err)
	}
	return nil
}

// Get retrieves one borrower. Returns ErrNotFound if not exists.
func (s *BorrowerStore) Get(ctx context.Context, platform, borrower string) (*domain.Borrower, error) {
	row := s.pool.QueryRow(ctx, borrowerSelect+` WHERE platform = $1 AND borrower = $2`, platform, borrower)
	b, err := scanBorrower(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get borrower: %w", err)
	}
	return b, nil
}

// GetByObligation resolves an obligation ID to its borrower.
func (s *BorrowerStore) GetByObligation(ctx context.Context, platform, obligationID string) (*domain.Borrower, error) {
	row := s.pool.QueryRow(ctx, borrowerSelect+` WHERE platform = $1 AND obligation_id = $2`, platform, obligationID)
	b, err := scanBorrower(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get borrower by obligation: %w", err)
	}
	return b, nil
}

// SetStatus updates the lifecycle status of one borrower.
func (s *BorrowerStore) SetStatus(ctx context.Context, platform, borrower string, status domain.BorrowerStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE borrowers SET status = $3, updated_at = now() WHERE platform = $1 AND borrower = $2`,
		platform, borrower, status,
	)
	if err != nil {
		return fmt.Errorf("set borrower status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByStatus retrieves all borrowers of one platform in one status.
func (s *BorrowerStore) GetByStatus(ctx context.Context, platform string, status domain.BorrowerStatus) ([]*domain.Borrower, error) {
	rows, err := s.pool.Query(ctx,
		borrowerSelect+` WHERE platform = $1 AND status = $2 ORDER BY borrower ASC`,
		platform, status,
	)
	if err != nil {
		return nil, fmt.Errorf("get borrowers by status: %w", err)
	}
	defer rows.Close()

	var borrowers []*domain.Borrower
	for rows.Next() {
		b, err := scanBorrower(rows)
		if err != nil {
			return nil, fmt.Errorf("scan borrower row: %w", err)
		}
		borrowers = append(borrowers, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate borrower rows: %w", err)
	}

	return borrowers, nil
}

const borrowerSelect = `SELECT platform, borrower, obligation_id, status FROM borrowers`

func scanBorrower(row pgx.Row) (*domain.Borrower, error) {
	var b domain.Borrower
	if err := row.Scan(&b.Platform, &b.Borrower, &b.ObligationID, &b.Status); err != nil {
		return nil, err
	}
	return &b, nil
}
