package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// Recorder accumulates per-checkpoint processing statistics and persists
// a snapshot every SnapshotEvery committed checkpoints, so a restarted
// run resumes its counters instead of starting over.
type Recorder struct {
	store         storage.MetricStore
	snapshotEvery int64
	logger        *log.Logger

	mu            sync.Mutex
	latestSeq     int64
	total         int64
	processed     int64
	sinceSnapshot int64
	minProcessing float64
	maxProcessing float64
	sumProcessing float64
	minLag        float64
	maxLag        float64
	sumLag        float64
}

// RecorderOptions contains configuration for creating a Recorder.
type RecorderOptions struct {
	Store         storage.MetricStore
	SnapshotEvery int64 // Default: 1000 checkpoints per persisted snapshot
	Logger        *log.Logger
}

// NewRecorder creates a new Recorder.
func NewRecorder(opts RecorderOptions) *Recorder {
	snapshotEvery := opts.SnapshotEvery
	if snapshotEvery == 0 {
		snapshotEvery = 1000
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Recorder{
		store:         opts.Store,
		snapshotEvery: snapshotEvery,
		logger:        logger,
	}
}

// Restore loads the latest persisted snapshot and resumes its counters.
// A store with no snapshots leaves the recorder at zero.
func (r *Recorder) Restore(ctx context.Context) error {
	snap, err := r.store.Latest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("restore metrics: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.latestSeq = snap.LatestSeqNumber
	r.total = snap.TotalCheckpoints
	r.processed = snap.ProcessedCheckpoints
	r.minProcessing = snap.MinProcessingTime
	r.maxProcessing = snap.MaxProcessingTime
	r.sumProcessing = snap.AvgProcessingTime * float64(snap.TotalCheckpoints)
	r.minLag = snap.MinLagging
	r.maxLag = snap.MaxLagging
	r.sumLag = snap.AvgLagging * float64(snap.TotalCheckpoints)

	r.logger.Printf("Restored metrics at sequence %d (%d checkpoints)", snap.LatestSeqNumber, snap.TotalCheckpoints)
	return nil
}

// Observe records one committed checkpoint and persists a snapshot when
// the cadence is reached. hadEvents marks checkpoints that carried at
// least one decoded event.
func (r *Recorder) Observe(ctx context.Context, cp *domain.Checkpoint, hadEvents bool, processing, lag time.Duration) error {
	r.mu.Lock()

	r.latestSeq = int64(cp.Sequence)
	r.total++
	if hadEvents {
		r.processed++
	}
	r.sinceSnapshot++

	pms := float64(processing.Microseconds()) / 1000.0
	lms := float64(lag.Microseconds()) / 1000.0

	if r.total == 1 || pms < r.minProcessing {
		r.minProcessing = pms
	}
	if pms > r.maxProcessing {
		r.maxProcessing = pms
	}
	r.sumProcessing += pms

	if r.total == 1 || lms < r.minLag {
		r.minLag = lms
	}
	if lms > r.maxLag {
		r.maxLag = lms
	}
	r.sumLag += lms

	flush := r.sinceSnapshot >= r.snapshotEvery
	if flush {
		r.sinceSnapshot = 0
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()

	if !flush {
		return nil
	}
	if err := r.store.Upsert(ctx, snap); err != nil {
		return fmt.Errorf("persist metric snapshot: %w", err)
	}
	return nil
}

// Flush persists the current counters regardless of cadence, for
// shutdown paths.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	if r.total == 0 {
		r.mu.Unlock()
		return nil
	}
	snap := r.snapshotLocked()
	r.sinceSnapshot = 0
	r.mu.Unlock()

	if err := r.store.Upsert(ctx, snap); err != nil {
		return fmt.Errorf("persist metric snapshot: %w", err)
	}
	return nil
}

// Snapshot returns the current counters.
func (r *Recorder) Snapshot() *domain.MetricSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Recorder) snapshotLocked() *domain.MetricSnapshot {
	snap := &domain.MetricSnapshot{
		LatestSeqNumber:      r.latestSeq,
		TotalCheckpoints:     r.total,
		ProcessedCheckpoints: r.processed,
		MaxProcessingTime:    r.maxProcessing,
		MinProcessingTime:    r.minProcessing,
		MaxLagging:           r.maxLag,
		MinLagging:           r.minLag,
	}
	if r.total > 0 {
		snap.AvgProcessingTime = r.sumProcessing / float64(r.total)
		snap.AvgLagging = r.sumLag / float64(r.total)
	}
	return snap
}
