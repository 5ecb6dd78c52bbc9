package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"sui-mev-indexer/internal/decode"
	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/observability"
)

// Runner pulls checkpoints in parallel, decodes their events and commits
// them strictly in sequence order. Workers may fetch and decode out of
// order; a reorder buffer holds finished checkpoints until their turn.
type Runner struct {
	source       CheckpointSource
	registry     *decode.Registry
	committer    Committer
	recorder     *Recorder
	metrics      *observability.Metrics
	startSeq     uint64
	workers      int
	bufferSize   int
	pollInterval time.Duration
	retryBase    time.Duration
	retryMax     time.Duration
	maxRetries   int
	logger       *log.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source       CheckpointSource
	Registry     *decode.Registry
	Committer    Committer
	Recorder     *Recorder              // optional persisted run metrics
	Metrics      *observability.Metrics // optional Prometheus metrics
	StartSeq     uint64
	Workers      int           // Default: 4 parallel fetch/decode workers
	BufferSize   int           // Default: 64 - max checkpoints in flight ahead of the commit watermark
	PollInterval time.Duration // Default: 200ms - wait when the chain has not produced the sequence yet
	RetryBase    time.Duration // Default: 100ms - initial transient-error backoff
	RetryMax     time.Duration // Default: 10s - transient-error backoff cap

	// MaxFetchRetries bounds transient-error attempts per checkpoint before
	// the run stalls with ErrRetriesExhausted. Polling a sequence the chain
	// has not produced yet is not counted. Default: 10.
	MaxFetchRetries int

	Logger *log.Logger
}

// NewRunner creates a new pipeline runner.
func NewRunner(opts RunnerOptions) *Runner {
	workers := opts.Workers
	if workers == 0 {
		workers = 4
	}
	bufferSize := opts.BufferSize
	if bufferSize == 0 {
		bufferSize = 64
	}
	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = 200 * time.Millisecond
	}
	retryBase := opts.RetryBase
	if retryBase == 0 {
		retryBase = 100 * time.Millisecond
	}
	retryMax := opts.RetryMax
	if retryMax == 0 {
		retryMax = 10 * time.Second
	}
	maxRetries := opts.MaxFetchRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		source:       opts.Source,
		registry:     opts.Registry,
		committer:    opts.Committer,
		recorder:     opts.Recorder,
		metrics:      opts.Metrics,
		startSeq:     opts.StartSeq,
		workers:      workers,
		bufferSize:   bufferSize,
		pollInterval: pollInterval,
		retryBase:    retryBase,
		retryMax:     retryMax,
		maxRetries:   maxRetries,
		logger:       logger,
	}
}

// fetched is one checkpoint after fetch and decode, waiting for its slot
// in the commit order. A non-nil err means the fetch gave up; it is
// surfaced when the sequence reaches the front of the commit order so the
// run halts at a known position.
type fetched struct {
	seq        uint64
	checkpoint *domain.Checkpoint
	items      []DecodedItem
	elapsed    time.Duration
	err        error
}

// Run processes checkpoints from StartSeq until the context is cancelled
// or a fatal error occurs. A sequence gap, any commit failure and fetch
// retry exhaustion are fatal; the run is resumable at the sequence it
// stopped on.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.logger.Printf("Starting pipeline at sequence %d with %d workers", r.startSeq, r.workers)

	seqCh := make(chan uint64)
	resCh := make(chan *fetched, r.workers)
	// tokens bounds how far fetching runs ahead of committing.
	tokens := make(chan struct{}, r.bufferSize)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.worker(ctx, seqCh, resCh)
		}()
	}

	go func() {
		defer close(seqCh)
		for seq := r.startSeq; ; seq++ {
			select {
			case <-ctx.Done():
				return
			case tokens <- struct{}{}:
			}
			select {
			case <-ctx.Done():
				return
			case seqCh <- seq:
			}
		}
	}()

	defer wg.Wait()
	defer cancel()

	pending := make(map[uint64]*fetched, r.bufferSize)
	next := r.startSeq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-resCh:
			pending[f.seq] = f
			for {
				ready, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)

				if ready.err != nil {
					return fmt.Errorf("checkpoint %d: %w", next, ready.err)
				}

				if ready.checkpoint.Sequence != next {
					return fmt.Errorf("%w: requested %d, source returned %d",
						ErrSequenceGap, next, ready.checkpoint.Sequence)
				}

				if err := r.commit(ctx, ready); err != nil {
					return err
				}

				<-tokens
				next++
			}
		}
	}
}

func (r *Runner) commit(ctx context.Context, f *fetched) error {
	start := time.Now()
	if err := r.committer.CommitCheckpoint(ctx, f.checkpoint, f.items); err != nil {
		return fmt.Errorf("commit checkpoint %d: %w", f.seq, err)
	}

	processing := f.elapsed + time.Since(start)
	lag := time.Since(time.UnixMilli(f.checkpoint.TimestampMS))

	if r.metrics != nil {
		r.metrics.CheckpointCommitted(f.seq, processing, lag)
	}
	if r.recorder != nil {
		if err := r.recorder.Observe(ctx, f.checkpoint, len(f.items) > 0, processing, lag); err != nil {
			r.logger.Printf("Error recording metrics for checkpoint %d: %v", f.seq, err)
		}
	}
	return nil
}

// worker fetches and decodes checkpoints. Transient fetch errors are
// retried with exponential backoff up to the attempt bound; a sequence the
// chain has not reached yet is polled at a steady interval.
func (r *Runner) worker(ctx context.Context, seqCh <-chan uint64, resCh chan<- *fetched) {
	retry := newBackoff(r.retryBase, r.retryMax)

	for seq := range seqCh {
		start := time.Now()

		cp, err := r.fetch(ctx, seq, retry)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Hand the failure to the commit loop so it halts in order.
			select {
			case <-ctx.Done():
			case resCh <- &fetched{seq: seq, err: err}:
			}
			return
		}

		items := r.decodeCheckpoint(cp)

		select {
		case <-ctx.Done():
			return
		case resCh <- &fetched{seq: seq, checkpoint: cp, items: items, elapsed: time.Since(start)}:
		}
	}
}

func (r *Runner) fetch(ctx context.Context, seq uint64, retry *backoff) (*domain.Checkpoint, error) {
	attempts := 0
	for {
		cp, err := r.source.Fetch(ctx, seq)
		if err == nil {
			retry.reset()
			return cp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var wait time.Duration
		if errors.Is(err, ErrNotYetAvailable) {
			wait = r.pollInterval
		} else {
			attempts++
			if attempts > r.maxRetries {
				return nil, fmt.Errorf("%w: sequence %d after %d attempts: %v",
					ErrRetriesExhausted, seq, attempts, err)
			}
			wait = retry.next()
			r.logger.Printf("Fetch checkpoint %d failed, retrying in %v: %v", seq, wait, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (r *Runner) decodeCheckpoint(cp *domain.Checkpoint) []DecodedItem {
	var items []DecodedItem
	for _, tx := range cp.Transactions {
		for _, raw := range tx.Events {
			event := r.registry.Decode(raw)
			if u, ok := event.(*domain.Unrecognized); ok {
				if r.metrics != nil {
					r.metrics.UnrecognizedEvent()
				}
				if u.Reason != "no decoder registered" {
					r.logger.Printf("Undecodable event %s::%s::%s: %s", u.Package, u.Module, u.EventType, u.Reason)
				}
				continue
			}
			if r.metrics != nil {
				r.metrics.EventDecoded(string(event.Kind()))
			}
			items = append(items, DecodedItem{Event: event, TxDigest: tx.Digest})
		}
	}
	return items
}
