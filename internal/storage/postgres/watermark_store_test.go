package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"sui-mev-indexer/internal/storage"
)

func TestWatermarkStore_AdvancesMonotonically(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWatermarkStore(pool)

	_, err := store.Get(ctx)
	require.True(t, errors.Is(err, storage.ErrNotFound), "expected ErrNotFound before first commit, got %v", err)

	require.NoError(t, store.Set(ctx, 1000))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), got)

	// A stale writer cannot move the watermark backwards.
	require.NoError(t, store.Set(ctx, 999))
	got, err = store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), got)

	require.NoError(t, store.Set(ctx, 1001))
	got, err = store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1001), got)
}
