package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

func TestPoolStore_UpsertIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPoolStore(pool)

	p := &domain.Pool{
		Exchange:    "cetus",
		Address:     "0xpool1",
		CoinA:       "0x2::sui::SUI",
		CoinB:       "0xdba::usdc::USDC",
		AmountA:     ptr("1000000"),
		AmountB:     ptr("500000"),
		SqrtPrice:   ptr("79228162514264337593543950336"),
		TickSpacing: ptr(int32(60)),
	}

	require.NoError(t, store.Upsert(ctx, p))
	require.NoError(t, store.Upsert(ctx, p))

	got, err := store.GetByAddress(ctx, "0xpool1")
	require.NoError(t, err)
	require.Equal(t, "cetus", got.Exchange)
	require.NotNil(t, got.AmountA)
	require.Equal(t, "1000000", *got.AmountA)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestPoolStore_ApplyStateMergesNonEmptyFields(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPoolStore(pool)

	require.NoError(t, store.Upsert(ctx, &domain.Pool{
		Exchange:  "cetus",
		Address:   "0xpool1",
		CoinA:     "0x2::sui::SUI",
		CoinB:     "0xdba::usdc::USDC",
		AmountA:   ptr("100"),
		AmountB:   ptr("200"),
		Liquidity: ptr("5000"),
	}))

	// Reserve update only; liquidity stays.
	require.NoError(t, store.ApplyState(ctx, &domain.PoolStateChanged{
		Address: "0xpool1",
		AmountA: "150",
		AmountB: "180",
	}))

	got, err := store.GetByAddress(ctx, "0xpool1")
	require.NoError(t, err)
	require.Equal(t, "150", *got.AmountA)
	require.Equal(t, "180", *got.AmountB)
	require.Equal(t, "5000", *got.Liquidity)

	// Liquidity update only; reserves stay.
	require.NoError(t, store.ApplyState(ctx, &domain.PoolStateChanged{
		Address:   "0xpool1",
		Liquidity: "7500",
	}))

	got, err = store.GetByAddress(ctx, "0xpool1")
	require.NoError(t, err)
	require.Equal(t, "150", *got.AmountA)
	require.Equal(t, "7500", *got.Liquidity)
}

func TestPoolStore_ApplyStateUnknownPool(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	err := NewPoolStore(pool).ApplyState(context.Background(), &domain.PoolStateChanged{
		Address: "0xmissing",
		AmountA: "1",
	})
	require.True(t, errors.Is(err, storage.ErrNotFound))
}
