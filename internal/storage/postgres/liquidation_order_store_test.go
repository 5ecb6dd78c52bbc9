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

func newTestOrder(borrower string) *domain.LiquidationOrder {
	return &domain.LiquidationOrder{
		Platform:       "navi",
		Borrower:       borrower,
		HealthFactor:   "0.92",
		DebtCoin:       "0xdba::usdc::USDC",
		CollateralCoin: "0x2::sui::SUI",
		AmountRepay:    "65",
		AmountUSD:      "65",
		Source:         domain.OrderSourceRiskEngine,
		Status:         domain.OrderOpen,
	}
}

func TestLiquidationOrderStore_SingleOpenOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLiquidationOrderStore(pool)

	first := newTestOrder("0xalice")
	require.NoError(t, store.Insert(ctx, first))
	require.NotZero(t, first.ID)

	// Second open order for the same borrower is rejected.
	err := store.Insert(ctx, newTestOrder("0xalice"))
	require.True(t, errors.Is(err, storage.ErrDuplicateKey))

	// A different borrower is unaffected.
	require.NoError(t, store.Insert(ctx, newTestOrder("0xbob")))

	open, err := store.GetOpen(ctx, "navi", "0xalice")
	require.NoError(t, err)
	require.Equal(t, first.ID, open.ID)
}

func TestLiquidationOrderStore_RecordExecution(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLiquidationOrderStore(pool)

	o := newTestOrder("0xalice")
	require.NoError(t, store.Insert(ctx, o))

	require.NoError(t, store.RecordExecution(ctx, &domain.ExecutionResult{
		OrderID:     o.ID,
		Status:      domain.OrderExecuted,
		TxDigest:    "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
		Checkpoint:  1042,
		BotAddress:  "0xbot",
		FinalizedAt: time.Now().UTC(),
	}))

	// The order is no longer open.
	_, err := store.GetOpen(ctx, "navi", "0xalice")
	require.True(t, errors.Is(err, storage.ErrNotFound))

	executed, err := store.GetByStatus(ctx, domain.OrderExecuted)
	require.NoError(t, err)
	require.Len(t, executed, 1)
	require.NotNil(t, executed[0].TxDigest)
	require.Equal(t, int64(1042), *executed[0].Checkpoint)

	// A second write-back on the same order is rejected.
	err = store.RecordExecution(ctx, &domain.ExecutionResult{
		OrderID: o.ID,
		Status:  domain.OrderFailed,
	})
	require.Error(t, err)
	require.False(t, errors.Is(err, storage.ErrNotFound))

	// After execution the borrower may be flagged again.
	require.NoError(t, store.Insert(ctx, newTestOrder("0xalice")))
}

func TestLiquidationOrderStore_Cancel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLiquidationOrderStore(pool)

	require.NoError(t, store.Insert(ctx, newTestOrder("0xalice")))
	require.NoError(t, store.Cancel(ctx, "navi", "0xalice"))

	_, err := store.GetOpen(ctx, "navi", "0xalice")
	require.True(t, errors.Is(err, storage.ErrNotFound))

	require.True(t, errors.Is(store.Cancel(ctx, "navi", "0xalice"), storage.ErrNotFound))
}
