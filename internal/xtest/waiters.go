package xtest

import (
	"testing"
	"time"
)

const commonWaitTimeout = 10 * time.Second

func WaitChannelClosed(t testing.TB, ch <-chan struct{}) {
	t.Helper()

	select {
	case <-time.After(commonWaitTimeout):
		t.Fatal("timeout waiting for channel close")
	case <-ch:
		// pass
	}
}
