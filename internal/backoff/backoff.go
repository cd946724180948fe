package backoff

import (
	"time"
)

// Backoff is the interface that contains logic of delaying operation retry.
type Backoff interface {
	// Delay returns mapping of i to Delay.
	Delay(i int) time.Duration
}

var _ Backoff = Fixed(0)

// Fixed is a constant-delay Backoff policy: every attempt waits the same
// duration regardless of the attempt index.
type Fixed time.Duration

func (f Fixed) Delay(int) time.Duration {
	return time.Duration(f)
}
