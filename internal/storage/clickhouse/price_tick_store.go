package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// PriceTickStore implements storage.PriceTickStore using ClickHouse. The
// table is append-only MergeTree; history is never updated in place.
type PriceTickStore struct {
	conn *Conn
}

// NewPriceTickStore creates a new PriceTickStore.
func NewPriceTickStore(conn *Conn) *PriceTickStore {
	return &PriceTickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceTickStore = (*PriceTickStore)(nil)

// InsertBulk appends a batch of observations.
func (s *PriceTickStore) InsertBulk(ctx context.Context, ticks []*domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_ticks (coin_type, feed_id, source, price, ema_price, observed_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare price tick batch: %w", err)
	}

	for _, t := range ticks {
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			return fmt.Errorf("parse price %q: %w", t.Price, err)
		}
		ema := decimal.Zero
		if t.EmaPrice != "" {
			if ema, err = decimal.NewFromString(t.EmaPrice); err != nil {
				return fmt.Errorf("parse ema price %q: %w", t.EmaPrice, err)
			}
		}

		if err := batch.Append(t.CoinType, t.FeedID, t.Source, price, ema, t.ObservedAt); err != nil {
			return fmt.Errorf("append price tick: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send price tick batch: %w", err)
	}
	return nil
}

// GetByFeed retrieves observations of one feed within [start, end].
func (s *PriceTickStore) GetByFeed(ctx context.Context, feedID string, start, end time.Time) ([]*domain.PriceTick, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT coin_type, feed_id, source, toString(price), toString(ema_price), observed_at
		FROM price_ticks
		WHERE feed_id = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`, feedID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query price ticks: %w", err)
	}
	defer rows.Close()

	var ticks []*domain.PriceTick
	for rows.Next() {
		var t domain.PriceTick
		if err := rows.Scan(&t.CoinType, &t.FeedID, &t.Source, &t.Price, &t.EmaPrice, &t.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan price tick row: %w", err)
		}
		ticks = append(ticks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price tick rows: %w", err)
	}

	return ticks, nil
}
