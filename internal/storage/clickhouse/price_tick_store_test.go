package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sui-mev-indexer/internal/domain"
)

func TestPriceTickStore_InsertAndRangeQuery(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceTickStore(conn)

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	feed := "23d7315113f5b1d3ba7a83604c44b94d79f4fd69af77f804fc7f920a6dc65744"

	var ticks []*domain.PriceTick
	for i := 0; i < 5; i++ {
		ticks = append(ticks, &domain.PriceTick{
			CoinType:   "0x2::sui::SUI",
			FeedID:     feed,
			Source:     domain.OraclePyth,
			Price:      "3.12",
			EmaPrice:   "3.11",
			ObservedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	require.NoError(t, store.InsertBulk(ctx, ticks))

	// Inner range excludes the first and last observation.
	got, err := store.GetByFeed(ctx, feed, base.Add(time.Minute), base.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.True(t, got[0].ObservedAt.Before(got[2].ObservedAt))
	require.Equal(t, domain.OraclePyth, got[0].Source)

	// Unknown feed yields nothing.
	got, err = store.GetByFeed(ctx, "ffff", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestPriceTickStore_EmptyBatchIsNoop(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, NewPriceTickStore(conn).InsertBulk(context.Background(), nil))
}
