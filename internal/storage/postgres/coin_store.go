package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// CoinStore implements storage.CoinStore using PostgreSQL.
type CoinStore struct {
	pool *Pool
}

// NewCoinStore creates a new CoinStore.
func NewCoinStore(pool *Pool) *CoinStore {
	return &CoinStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CoinStore = (*CoinStore)(nil)

// Upsert inserts or replaces coin metadata keyed by coin_type. Nil price
// fields keep the stored values so one oracle never clobbers another.
func (s *CoinStore) Upsert(ctx context.Context, c *domain.Coin) error {
	query := `
		INSERT INTO coins (
			coin_type, decimals, name, symbol,
			price_pyth, price_supra, price_switchboard,
			pyth_feed_id, pyth_ema_price, pyth_decimals, pyth_updated_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (coin_type) DO UPDATE SET
			decimals = EXCLUDED.decimals,
			name = COALESCE(EXCLUDED.name, coins.name),
			symbol = COALESCE(EXCLUDED.symbol, coins.symbol),
			price_pyth = COALESCE(EXCLUDED.price_pyth, coins.price_pyth),
			price_supra = COALESCE(EXCLUDED.price_supra, coins.price_supra),
			price_switchboard = COALESCE(EXCLUDED.price_switchboard, coins.price_switchboard),
			pyth_feed_id = COALESCE(EXCLUDED.pyth_feed_id, coins.pyth_feed_id),
			pyth_ema_price = COALESCE(EXCLUDED.pyth_ema_price, coins.pyth_ema_price),
			pyth_decimals = COALESCE(EXCLUDED.pyth_decimals, coins.pyth_decimals),
			pyth_updated_at = COALESCE(EXCLUDED.pyth_updated_at, coins.pyth_updated_at),
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query,
		c.CoinType,
		c.Decimals,
		c.Name,
		c.Symbol,
		c.PricePyth,
		c.PriceSupra,
		c.PriceSwitchboard,
		c.PythFeedID,
		c.PythEmaPrice,
		c.PythDecimals,
		c.PythUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert coin: %w", err)
	}
	return nil
}

// UpdatePrice overwrites the price column of one oracle source only.
func (s *CoinStore) UpdatePrice(ctx context.Context, coinType string, e *domain.PriceUpdated) error {
	var query string
	switch e.Source {
	case domain.OraclePyth:
		query = `
			INSERT INTO coins (coin_type, price_pyth, pyth_feed_id, pyth_ema_price, pyth_decimals, pyth_updated_at, updated_at)
			VALUES ($1, $2::NUMERIC, $3, $4::NUMERIC, $5, $6, now())
			ON CONFLICT (coin_type) DO UPDATE SET
				price_pyth = EXCLUDED.price_pyth,
				pyth_feed_id = EXCLUDED.pyth_feed_id,
				pyth_ema_price = EXCLUDED.pyth_ema_price,
				pyth_decimals = EXCLUDED.pyth_decimals,
				pyth_updated_at = EXCLUDED.pyth_updated_at,
				updated_at = now()
		`
		_, err := s.pool.Exec(ctx, query, coinType, e.Price, e.FeedID, e.EmaPrice, e.Decimals, e.ObservedAt)
		if err != nil {
			return fmt.Errorf("update pyth price: %w", err)
		}
		return nil
	case domain.OracleSupra:
		query = `
			INSERT INTO coins (coin_type, price_supra, updated_at) VALUES ($1, $2::NUMERIC, now())
			ON CONFLICT (coin_type) DO UPDATE SET price_supra = EXCLUDED.price_supra, updated_at = now()
		`
	case domain.OracleSwitchboard:
		query = `
			INSERT INTO coins (coin_type, price_switchboard, updated_at) VALUES ($1, $2::NUMERIC, now())
			ON CONFLICT (coin_type) DO UPDATE SET price_switchboard = EXCLUDED.price_switchboard, updated_at = now()
		`
	default:
		return fmt.Errorf("%w: unknown oracle source %q", storage.ErrInvalidInput, e.Source)
	}

	if _, err := s.pool.Exec(ctx, query, coinType, e.Price); err != nil {
		return fmt.Errorf("update %s price: %w", e.Source, err)
	}
	return nil
}

// GetByType retrieves a coin. Returns ErrNotFound if not exists.
func (s *CoinStore) GetByType(ctx context.Context, coinType string) (*domain.Coin, error) {
	row := s.pool.QueryRow(ctx, coinSelect+` WHERE coin_type = $1`, coinType)
	c, err := scanCoin(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get coin by type: %w", err)
	}
	return c, nil
}

// GetByFeedID resolves a Pyth feed identifier to its coin.
func (s *CoinStore) GetByFeedID(ctx context.Context, feedID string) (*domain.Coin, error) {
	row := s.pool.QueryRow(ctx, coinSelect+` WHERE pyth_feed_id = $1`, feedID)
	c, err := scanCoin(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get coin by feed id: %w", err)
	}
	return c, nil
}

// GetAll retrieves every coin.
func (s *CoinStore) GetAll(ctx context.Context) ([]*domain.Coin, error) {
	rows, err := s.pool.Query(ctx, coinSelect+` ORDER BY coin_type ASC`)
	if err != nil {
		return nil, fmt.Errorf("get all coins: %w", err)
	}
	defer rows.Close()

	var coins []*domain.Coin
	for rows.Next() {
		c, err := scanCoin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coin row: %w", err)
		}
		coins = append(coins, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coin rows: %w", err)
	}

	return coins, nil
}

const coinSelect = `
	SELECT coin_type, decimals, name, symbol,
		price_pyth::TEXT, price_supra::TEXT, price_switchboard::TEXT,
		pyth_feed_id, pyth_ema_price::TEXT, pyth_decimals, pyth_updated_at
	FROM coins`

func scanCoin(row pgx.Row) (*domain.Coin, error) {
	var c domain.Coin
	err := row.Scan(
		&c.CoinType,
		&c.Decimals,
		&c.Name,
		&c.Symbol,
		&c.PricePyth,
		&c.PriceSupra,
		&c.PriceSwitchboard,
		&c.PythFeedID,
		&c.PythEmaPrice,
		&c.PythDecimals,
		&c.PythUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
