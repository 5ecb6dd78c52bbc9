package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sui-mev-indexer/internal/decode"
	"sui-mev-indexer/internal/domain"
)

// stubSource serves checkpoints from a fixed map. Sequences above limit
// report ErrNotYetAvailable; flaky sequences fail transiently once, broken
// sequences fail on every fetch.
type stubSource struct {
	mu          sync.Mutex
	checkpoints map[uint64]*domain.Checkpoint
	limit       uint64
	failOnce    map[uint64]bool
	failAlways  map[uint64]bool
	fetches     int
	// wrongSeqAt makes the source return a checkpoint with a mismatched
	// sequence number, simulating a gap.
	wrongSeqAt uint64
}

func (s *stubSource) Fetch(_ context.Context, seq uint64) (*domain.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches++
	if s.failAlways[seq] {
		return nil, errors.New("rpc: connection reset")
	}
	if s.failOnce[seq] {
		s.failOnce[seq] = false
		return nil, errors.New("rpc: connection reset")
	}
	if seq > s.limit {
		return nil, ErrNotYetAvailable
	}
	if s.wrongSeqAt != 0 && seq == s.wrongSeqAt {
		return &domain.Checkpoint{Sequence: seq + 7, TimestampMS: time.Now().UnixMilli()}, nil
	}
	if cp, ok := s.checkpoints[seq]; ok {
		return cp, nil
	}
	return &domain.Checkpoint{Sequence: seq, TimestampMS: time.Now().UnixMilli()}, nil
}

func (s *stubSource) LatestSequence(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit, nil
}

// recordingCommitter records the order in which checkpoints commit and
// cancels the run after enough of them.
type recordingCommitter struct {
	mu        sync.Mutex
	sequences []uint64
	stopAfter int
	cancel    context.CancelFunc
}

func (c *recordingCommitter) CommitCheckpoint(_ context.Context, cp *domain.Checkpoint, _ []DecodedItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequences = append(c.sequences, cp.Sequence)
	if len(c.sequences) >= c.stopAfter {
		c.cancel()
	}
	return nil
}

func (c *recordingCommitter) committed() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint64, len(c.sequences))
	copy(out, c.sequences)
	return out
}

func TestRunnerCommitsInSequenceOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	source := &stubSource{limit: 200, failOnce: map[uint64]bool{}}
	committer := &recordingCommitter{stopAfter: 50, cancel: cancel}

	runner := NewRunner(RunnerOptions{
		Source:    source,
		Registry:  decode.NewEmptyRegistry(),
		Committer: committer,
		StartSeq:  100,
		Workers:   8,
	})

	err := runner.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("run ended with %v, want context.Canceled", err)
	}

	got := committer.committed()
	if len(got) < 50 {
		t.Fatalf("committed %d checkpoints, want at least 50", len(got))
	}
	for i, seq := range got[:50] {
		if want := uint64(100 + i); seq != want {
			t.Fatalf("commit %d = sequence %d, want %d (order violated)", i, seq, want)
		}
	}
}

func TestRunnerRetriesTransientFetchErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	source := &stubSource{
		limit:    20,
		failOnce: map[uint64]bool{3: true, 5: true},
	}
	committer := &recordingCommitter{stopAfter: 10, cancel: cancel}

	runner := NewRunner(RunnerOptions{
		Source:    source,
		Registry:  decode.NewEmptyRegistry(),
		Committer: committer,
		StartSeq:  0,
		Workers:   2,
		RetryBase: time.Millisecond,
		RetryMax:  5 * time.Millisecond,
	})

	if err := runner.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("run ended with %v, want context.Canceled", err)
	}

	got := committer.committed()
	for i, seq := range got[:10] {
		if seq != uint64(i) {
			t.Fatalf("commit %d = sequence %d, want %d", i, seq, i)
		}
	}
}

func TestRunnerStallsWhenFetchRetriesExhausted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	source := &stubSource{
		limit:      20,
		failOnce:   map[uint64]bool{},
		failAlways: map[uint64]bool{4: true},
	}
	committer := &recordingCommitter{stopAfter: 1 << 30, cancel: cancel}

	runner := NewRunner(RunnerOptions{
		Source:          source,
		Registry:        decode.NewEmptyRegistry(),
		Committer:       committer,
		StartSeq:        0,
		Workers:         2,
		RetryBase:       time.Millisecond,
		RetryMax:        5 * time.Millisecond,
		MaxFetchRetries: 3,
	})

	err := runner.Run(ctx)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("run ended with %v, want ErrRetriesExhausted", err)
	}

	// Everything before the broken sequence committed in order, nothing
	// at or past it did, so a restart resumes exactly there.
	got := committer.committed()
	if len(got) != 4 {
		t.Fatalf("committed %d checkpoints, want 4 (sequences 0-3)", len(got))
	}
	for i, seq := range got {
		if seq != uint64(i) {
			t.Fatalf("commit %d = sequence %d, want %d", i, seq, i)
		}
	}
}

func TestRunnerHaltsOnSequenceGap(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	source := &stubSource{limit: 100, failOnce: map[uint64]bool{}, wrongSeqAt: 5}
	committer := &recordingCommitter{stopAfter: 1 << 30, cancel: cancel}

	runner := NewRunner(RunnerOptions{
		Source:    source,
		Registry:  decode.NewEmptyRegistry(),
		Committer: committer,
		StartSeq:  0,
		Workers:   4,
	})

	err := runner.Run(ctx)
	if !errors.Is(err, ErrSequenceGap) {
		t.Fatalf("run ended with %v, want ErrSequenceGap", err)
	}

	// Nothing at or past the gap committed.
	for _, seq := range committer.committed() {
		if seq >= 5 {
			t.Errorf("sequence %d committed past the gap", seq)
		}
	}
}

func TestRunnerWaitsForUnavailableCheckpoints(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	source := &stubSource{limit: 2, failOnce: map[uint64]bool{}}
	committer := &recordingCommitter{stopAfter: 6, cancel: cancel}

	runner := NewRunner(RunnerOptions{
		Source:       source,
		Registry:     decode.NewEmptyRegistry(),
		Committer:    committer,
		StartSeq:     0,
		Workers:      4,
		PollInterval: time.Millisecond,
	})

	// Raise the limit while the runner is polling.
	go func() {
		time.Sleep(50 * time.Millisecond)
		source.mu.Lock()
		source.limit = 10
		source.mu.Unlock()
	}()

	if err := runner.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("run ended with %v, want context.Canceled", err)
	}

	got := committer.committed()
	if len(got) < 6 {
		t.Fatalf("committed %d checkpoints, want at least 6", len(got))
	}
	for i, seq := range got[:6] {
		if seq != uint64(i) {
			t.Fatalf("commit %d = sequence %d, want %d", i, seq, i)
		}
	}
}

func TestBackoffGrowsAndResets(t *testing.T) {
	b := newBackoff(100*time.Millisecond, time.Second)

	first := b.next()
	if first < 100*time.Millisecond || first > 125*time.Millisecond {
		t.Errorf("first delay = %v, want 100ms plus jitter", first)
	}

	second := b.next()
	if second < 200*time.Millisecond {
		t.Errorf("second delay = %v, want at least 200ms", second)
	}

	for i := 0; i < 10; i++ {
		if d := b.next(); d > time.Second+time.Second/4 {
			t.Fatalf("delay %v exceeds cap plus jitter", d)
		}
	}

	b.reset()
	if d := b.next(); d > 125*time.Millisecond {
		t.Errorf("delay after reset = %v, want base again", d)
	}
}
