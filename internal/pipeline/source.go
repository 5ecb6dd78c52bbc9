// Package pipeline drives checkpoints from a source through decoding and
// into storage, committing strictly in sequence order.
package pipeline

import (
	"context"
	"errors"

	"sui-mev-indexer/internal/domain"
)

// ErrNotYetAvailable is returned by a source when the requested sequence
// has not been produced yet. The pipeline polls until it appears.
var ErrNotYetAvailable = errors.New("checkpoint not yet available")

// ErrSequenceGap is returned when a source hands back a checkpoint whose
// sequence differs from the one requested. Continuing would corrupt state
// derived from ordered deltas, so the pipeline halts.
var ErrSequenceGap = errors.New("checkpoint sequence gap")

// ErrRetriesExhausted is returned when a checkpoint fetch keeps failing
// past the attempt bound. The run stalls and surfaces the error; a restart
// resumes at the same sequence.
var ErrRetriesExhausted = errors.New("fetch retries exhausted")

// CheckpointSource fetches checkpoints by sequence number. Fetch errors
// other than ErrNotYetAvailable are treated as transient and retried with
// backoff.
type CheckpointSource interface {
	// Fetch retrieves one checkpoint. Returns ErrNotYetAvailable when the
	// chain has not reached the sequence yet.
	Fetch(ctx context.Context, sequence uint64) (*domain.Checkpoint, error)

	// LatestSequence reports the highest sequence the source knows of.
	LatestSequence(ctx context.Context) (uint64, error)
}
