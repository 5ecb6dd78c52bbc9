package postgres

import (
	"context"
	"fmt"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// MetricStore implements storage.MetricStore using PostgreSQL.
type MetricStore struct {
	pool *Pool
}

// NewMetricStore creates a new MetricStore.
func NewMetricStore(pool *Pool) *MetricStore {
	return &MetricStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MetricStore = (*MetricStore)(nil)

// Upsert inserts or replaces a snapshot keyed by latest_seq_number.
func (s *MetricStore) Upsert(ctx context.Context, m *domain.MetricSnapshot) error {
	query := `
		INSERT INTO indexer_metrics (
			latest_seq_number, total_checkpoints, processed_checkpoints,
			max_processing_time, min_processing_time, avg_processing_time,
			max_lagging, min_lagging, avg_lagging, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (latest_seq_number) DO UPDATE SET
			total_checkpoints = EXCLUDED.total_checkpoints,
			processed_checkpoints = EXCLUDED.processed_checkpoints,
			max_processing_time = EXCLUDED.max_processing_time,
			min_processing_time = EXCLUDED.min_processing_time,
			avg_processing_time = EXCLUDED.avg_processing_time,
			max_lagging = EXCLUDED.max_lagging,
			min_lagging = EXCLUDED.min_lagging,
			avg_lagging = EXCLUDED.avg_lagging,
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query,
		m.LatestSeqNumber,
		m.TotalCheckpoints,
		m.ProcessedCheckpoints,
		m.MaxProcessingTime,
		m.MinProcessingTime,
		m.AvgProcessingTime,
		m.MaxLagging,
		m.MinLagging,
		m.AvgLagging,
	)
	if err != nil {
		return fmt.Errorf("upsert metric snapshot: %w", err)
	}
	return nil
}

// Latest retrieves the snapshot with the highest latest_seq_number.
func (s *MetricStore) Latest(ctx context.Context) (*domain.MetricSnapshot, error) {
	query := `
		SELECT latest_seq_number, total_checkpoints, processed_checkpoints,
			max_processing_time, min_processing_time, avg_processing_time,
			max_lagging, min_lagging, avg_lagging
		FROM indexer_metrics
		ORDER BY latest_seq_number DESC
		LIMIT 1
	`

	var m domain.MetricSnapshot
	err := s.pool.QueryRow(ctx, query).Scan(
		&m.LatestSeqNumber,
		&m.TotalCheckpoints,
		&m.ProcessedCheckpoints,
		&m.MaxProcessingTime,
		&m.MinProcessingTime,
		&m.AvgProcessingTime,
		&m.MaxLagging,
		&m.MinLagging,
		&m.AvgLagging,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest metric snapshot: %w", err)
	}
	return &m, nil
}
