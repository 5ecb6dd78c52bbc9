package postgres

import (
	"context"
	"fmt"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// SharedObjectStore implements storage.SharedObjectStore using PostgreSQL.
type SharedObjectStore struct {
	pool *Pool
}

// NewSharedObjectStore creates a new SharedObjectStore.
func NewSharedObjectStore(pool *Pool) *SharedObjectStore {
	return &SharedObjectStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SharedObjectStore = (*SharedObjectStore)(nil)

// Upsert inserts or replaces a shared object keyed by object_id. The
// initial shared version of an object never changes on chain, so replays
// write the same value.
func (s *SharedObjectStore) Upsert(ctx context.Context, o *domain.SharedObject) error {
	query := `
		INSERT INTO shared_objects (object_id, initial_shared_version)
		VALUES ($1, $2)
		ON CONFLICT (object_id) DO UPDATE SET
			initial_shared_version = EXCLUDED.initial_shared_version
	`

	if _, err := s.pool.Exec(ctx, query, o.ObjectID, o.InitialSharedVersion); err != nil {
		return fmt.Errorf("upsert shared object: %w", err)
	}
	return nil
}

// Get retrieves one shared object. Returns ErrNotFound if not exists.
func (s *SharedObjectStore) Get(ctx context.Context, objectID string) (*domain.SharedObject, error) {
	var o domain.SharedObject
	err := s.pool.QueryRow(ctx,
		`SELECT object_id, initial_shared_version FROM shared_objects WHERE object_id = $1`,
		objectID,
	).Scan(&o.ObjectID, &o.InitialSharedVersion)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get shared object: %w", err)
	}
	return &o, nil
}
