package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"sui-mev-indexer/internal/storage"
)

func TestPositionStore_ApplyDelta(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	deposits := NewDepositStore(pool)

	amount, err := deposits.ApplyDelta(ctx, "navi", "0xalice", "0x2::sui::SUI", decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.True(t, amount.Equal(decimal.NewFromInt(1000)))

	amount, err = deposits.ApplyDelta(ctx, "navi", "0xalice", "0x2::sui::SUI", decimal.NewFromInt(-400))
	require.NoError(t, err)
	require.True(t, amount.Equal(decimal.NewFromInt(600)))

	got, err := deposits.Get(ctx, "navi", "0xalice", "0x2::sui::SUI")
	require.NoError(t, err)
	require.Equal(t, "600", got.Amount)
}

func TestPositionStore_ApplyDeltaRejectsNegativeBalance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	borrows := NewBorrowStore(pool)

	_, err := borrows.ApplyDelta(ctx, "navi", "0xbob", "0x2::sui::SUI", decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = borrows.ApplyDelta(ctx, "navi", "0xbob", "0x2::sui::SUI", decimal.NewFromInt(-101))
	require.True(t, errors.Is(err, storage.ErrInvariant))

	// Rejected delta left the stored amount untouched.
	got, err := borrows.Get(ctx, "navi", "0xbob", "0x2::sui::SUI")
	require.NoError(t, err)
	require.Equal(t, "100", got.Amount)
}

func TestPositionStore_TablesAreIndependent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	deposits := NewDepositStore(pool)
	borrows := NewBorrowStore(pool)

	_, err := deposits.ApplyDelta(ctx, "suilend", "0xcarol", "0x2::sui::SUI", decimal.NewFromInt(500))
	require.NoError(t, err)

	_, err = borrows.Get(ctx, "suilend", "0xcarol", "0x2::sui::SUI")
	require.True(t, errors.Is(err, storage.ErrNotFound))

	ds, err := deposits.GetByBorrower(ctx, "suilend", "0xcarol")
	require.NoError(t, err)
	require.Len(t, ds, 1)
}
