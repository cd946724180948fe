package wait

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/sonic-data/sonic-go/internal/backoff"
	"github.com/sonic-data/sonic-go/internal/xerrors"
)

// Wait waits for the i-th delay of b or ctx expiration.
// It returns non-nil error if and only if the ctx expiration branch wins.
func Wait(ctx context.Context, clock clockwork.Clock, b backoff.Backoff, i int) error {
	d := b.Delay(i)
	if d <= 0 {
		return ctx.Err()
	}
	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		if err := ctx.Err(); err != nil {
			return xerrors.WithStackTrace(err)
		}

		return nil
	}
}
