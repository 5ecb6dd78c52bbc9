package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// LendingMarketStore implements storage.LendingMarketStore using PostgreSQL.
type LendingMarketStore struct {
	pool *Pool
}

// NewLendingMarketStore creates a new LendingMarketStore.
func NewLendingMarketStore(pool *Pool) *LendingMarketStore {
	return &LendingMarketStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LendingMarketStore = (*LendingMarketStore)(nil)

// Upsert inserts or merges a market row keyed by (platform, coin_type).
// Nil fields of the incoming row keep their stored values, so a params
// event and a totals event never erase each other's columns.
func (s *LendingMarketStore) Upsert(ctx context.Context, m *domain.LendingMarket) error {
	query := `
		INSERT INTO lending_markets (
			platform, coin_type, ltv, liquidation_threshold, borrow_weight,
			liquidation_ratio, liquidation_penalty, liquidation_fee,
			supply_amount, borrowed_amount, borrow_index, supply_index,
			pyth_feed_id, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		ON CONFLICT (platform, coin_type) DO UPDATE SET
			ltv = COALESCE(EXCLUDED.ltv, lending_markets.ltv),
			liquidation_threshold = COALESCE(EXCLUDED.liquidation_threshold, lending_markets.liquidation_threshold),
			borrow_weight = COALESCE(EXCLUDED.borrow_weight, lending_markets.borrow_weight),
			liquidation_ratio = COALESCE(EXCLUDED.liquidation_ratio, lending_markets.liquidation_ratio),
			liquidation_penalty = COALESCE(EXCLUDED.liquidation_penalty, lending_markets.liquidation_penalty),
			liquidation_fee = COALESCE(EXCLUDED.liquidation_fee, lending_markets.liquidation_fee),
			supply_amount = COALESCE(EXCLUDED.supply_amount, lending_markets.supply_amount),
			borrowed_amount = COALESCE(EXCLUDED.borrowed_amount, lending_markets.borrowed_amount),
			borrow_index = COALESCE(EXCLUDED.borrow_index, lending_markets.borrow_index),
			supply_index = COALESCE(EXCLUDED.supply_index, lending_markets.supply_index),
			pyth_feed_id = COALESCE(EXCLUDED.pyth_feed_id, lending_markets.pyth_feed_id),
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query,
		m.Platform,
		m.CoinType,
		m.LTV,
		m.LiquidationThreshold,
		m.BorrowWeight,
		m.LiquidationRatio,
		m.LiquidationPenalty,
		m.LiquidationFee,
		m.SupplyAmount,
		m.BorrowedAmount,
		m.BorrowIndex,
		m.SupplyIndex,
		m.PythFeedID,
	)
	if err != nil {
		return fmt.Errorf("upsert lending market: %w", err)
	}
	return nil
}

// Get retrieves one market. Returns ErrNotFound if not exists.
func (s *LendingMarketStore) Get(ctx context.Context, platform, coinType string) (*domain.LendingMarket, error) {
	row := s.pool.QueryRow(ctx, marketSelect+` WHERE platform = $1 AND coin_type = $2`, platform, coinType)
	m, err := scanMarket(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get lending market: %w", err)
	}
	return m, nil
}

// GetByPlatform retrieves all markets of one platform.
func (s *LendingMarketStore) GetByPlatform(ctx context.Context, platform string) ([]*domain.LendingMarket, error) {
	rows, err := s.pool.Query(ctx, marketSelect+` WHERE platform = $1 ORDER BY coin_type ASC`, platform)
	if err != nil {
		return nil, fmt.Errorf("get lending markets by platform: %w", err)
	}
	defer rows.Close()

	var markets []*domain.LendingMarket
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lending market row: %w", err)
		}
		markets = append(markets, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lending market rows: %w", err)
	}

	return markets, nil
}

const marketSelect = `
	SELECT platform, coin_type, ltv::TEXT, liquidation_threshold::TEXT,
		borrow_weight::TEXT, liquidation_ratio::TEXT, liquidation_penalty::TEXT,
		liquidation_fee::TEXT, supply_amount::TEXT, borrowed_amount::TEXT,
		borrow_index::TEXT, supply_index::TEXT, pyth_feed_id
	FROM lending_markets`

func scanMarket(row pgx.Row) (*domain.LendingMarket, error) {
	var m domain.LendingMarket
	err := row.Scan(
		&m.Platform,
		&m.CoinType,
		&m.LTV,
		&m.LiquidationThreshold,
		&m.BorrowWeight,
		&m.LiquidationRatio,
		&m.LiquidationPenalty,
		&m.LiquidationFee,
		&m.SupplyAmount,
		&m.BorrowedAmount,
		&m.BorrowIndex,
		&m.SupplyIndex,
		&m.PythFeedID,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
