package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

func TestCoinStore_PriceColumnsAreIndependent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCoinStore(pool)

	require.NoError(t, store.Upsert(ctx, &domain.Coin{
		CoinType:   "0x2::sui::SUI",
		Decimals:   9,
		Symbol:     ptr("SUI"),
		PythFeedID: ptr("23d7315113f5b1d3ba7a83604c44b94d79f4fd69af77f804fc7f920a6dc65744"),
	}))

	require.NoError(t, store.UpdatePrice(ctx, "0x2::sui::SUI", &domain.PriceUpdated{
		FeedID:     "23d7315113f5b1d3ba7a83604c44b94d79f4fd69af77f804fc7f920a6dc65744",
		Source:     domain.OraclePyth,
		Price:      "312450000",
		EmaPrice:   "311900000",
		Decimals:   8,
		ObservedAt: time.Now().UTC(),
	}))
	require.NoError(t, store.UpdatePrice(ctx, "0x2::sui::SUI", &domain.PriceUpdated{
		Source: domain.OracleSupra,
		Price:  "3.13",
	}))

	got, err := store.GetByType(ctx, "0x2::sui::SUI")
	require.NoError(t, err)
	require.NotNil(t, got.PricePyth)
	require.Equal(t, "312450000", *got.PricePyth)
	require.NotNil(t, got.PriceSupra)
	require.Equal(t, "3.13", *got.PriceSupra)
	require.Nil(t, got.PriceSwitchboard)
	require.Equal(t, ptr("SUI"), got.Symbol)

	// Metadata upsert with nil prices keeps the stored prices.
	require.NoError(t, store.Upsert(ctx, &domain.Coin{
		CoinType: "0x2::sui::SUI",
		Decimals: 9,
		Name:     ptr("Sui"),
	}))

	got, err = store.GetByType(ctx, "0x2::sui::SUI")
	require.NoError(t, err)
	require.NotNil(t, got.PricePyth)
	require.Equal(t, ptr("Sui"), got.Name)
}

func TestCoinStore_GetByFeedID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCoinStore(pool)

	feed := "23d7315113f5b1d3ba7a83604c44b94d79f4fd69af77f804fc7f920a6dc65744"
	require.NoError(t, store.Upsert(ctx, &domain.Coin{
		CoinType:   "0x2::sui::SUI",
		Decimals:   9,
		PythFeedID: ptr(feed),
	}))

	got, err := store.GetByFeedID(ctx, feed)
	require.NoError(t, err)
	require.Equal(t, "0x2::sui::SUI", got.CoinType)

	_, err = store.GetByFeedID(ctx, "ffff")
	require.True(t, errors.Is(err, storage.ErrNotFound))
}
