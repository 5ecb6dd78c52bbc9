package pipeline

import (
	"math/rand"
	"time"
)

// backoff produces exponentially growing delays with jitter, capped at
// max. Not safe for concurrent use; each worker owns one.
type backoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(base, max time.Duration) *backoff {
	return &backoff{base: base, max: max}
}

// next returns the delay to sleep before the following attempt, doubling
// up to max with up to 25% random jitter on top.
func (b *backoff) next() time.Duration {
	if b.current == 0 {
		b.current = b.base
	} else {
		b.current *= 2
		if b.current > b.max {
			b.current = b.max
		}
	}
	jitter := time.Duration(rand.Int63n(int64(b.current)/4 + 1))
	return b.current + jitter
}

// reset returns the backoff to its initial state after a success.
func (b *backoff) reset() {
	b.current = 0
}
