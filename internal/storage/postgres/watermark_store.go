package postgres

import (
	"context"
	"fmt"

	"sui-mev-indexer/internal/storage"
)

// WatermarkStore implements storage.WatermarkStore using PostgreSQL. The
// watermark is a single row updated once per committed checkpoint.
type WatermarkStore struct {
	pool *Pool
}

// NewWatermarkStore creates a new WatermarkStore.
func NewWatermarkStore(pool *Pool) *WatermarkStore {
	return &WatermarkStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WatermarkStore = (*WatermarkStore)(nil)

// Set records seq as committed. GREATEST keeps the watermark monotonic even
// if a stale writer races a newer one.
func (s *WatermarkStore) Set(ctx context.Context, seq uint64) error {
	query := `
		INSERT INTO commit_watermark (id, seq, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET
			seq = GREATEST(commit_watermark.seq, EXCLUDED.seq),
			updated_at = now()
	`

	if _, err := s.pool.Exec(ctx, query, int64(seq)); err != nil {
		return fmt.Errorf("set commit watermark: %w", err)
	}
	return nil
}

// Get retrieves the committed watermark.
func (s *WatermarkStore) Get(ctx context.Context) (uint64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx, `SELECT seq FROM commit_watermark WHERE id = 1`).Scan(&seq)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("get commit watermark: %w", err)
	}
	return uint64(seq), nil
}
