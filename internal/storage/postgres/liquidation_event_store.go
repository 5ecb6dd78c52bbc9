package postgres

import (
	"context"
	"fmt"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// LiquidationEventStore implements storage.LiquidationEventStore using
// PostgreSQL.
type LiquidationEventStore struct {
	pool *Pool
}

// NewLiquidationEventStore creates a new LiquidationEventStore.
func NewLiquidationEventStore(pool *Pool) *LiquidationEventStore {
	return &LiquidationEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LiquidationEventStore = (*LiquidationEventStore)(nil)

// Insert adds an observed liquidation keyed by tx_digest. Replays of the
// same digest are absorbed by ON CONFLICT DO NOTHING.
func (s *LiquidationEventStore) Insert(ctx context.Context, e *domain.LiquidationEvent) error {
	query := `
		INSERT INTO liquidation_events (
			tx_digest, platform, borrower, liquidator,
			debt_coin, debt_amount, collateral_coin, collateral_amount
		) VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8::NUMERIC)
		ON CONFLICT (tx_digest) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		e.TxDigest,
		e.Platform,
		e.Borrower,
		e.Liquidator,
		e.DebtCoin,
		e.DebtAmount,
		e.CollateralCoin,
		e.CollateralAmount,
	)
	if err != nil {
		return fmt.Errorf("insert liquidation event: %w", err)
	}
	return nil
}

// GetByBorrower retrieves all observed liquidations of one borrower.
func (s *LiquidationEventStore) GetByBorrower(ctx context.Context, platform, borrower string) ([]*domain.LiquidationEvent, error) {
	query := `
		SELECT tx_digest, platform, borrower, liquidator,
			debt_coin, debt_amount::TEXT, collateral_coin, collateral_amount::TEXT
		FROM liquidation_events
		WHERE platform = $1 AND borrower = $2
		ORDER BY observed_at ASC
	`

	rows, err := s.pool.Query(ctx, query, platform, borrower)
	if err != nil {
		return nil, fmt.Errorf("get liquidation events by borrower: %w", err)
	}
	defer rows.Close()

	var events []*domain.LiquidationEvent
	for rows.Next() {
		var e domain.LiquidationEvent
		err := rows.Scan(
			&e.TxDigest,
			&e.Platform,
			&e.Borrower,
			&e.Liquidator,
			&e.DebtCoin,
			&e.DebtAmount,
			&e.CollateralCoin,
			&e.CollateralAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan liquidation event row: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate liquidation event rows: %w", err)
	}

	return events, nil
}
