package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sonic-data/sonic-go/internal/xtest"
	"github.com/sonic-data/sonic-go/message"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedPage struct {
	batch []message.Message
	last  bool
	err   error
}

type scriptedDriver struct {
	mu        sync.Mutex
	script    []scriptedPage
	calls     int
	cancelled bool

	// when set, Next blocks until the fetch context is cancelled
	blockNext bool
}

func (d *scriptedDriver) Next(ctx context.Context) ([]message.Message, bool, error) {
	d.mu.Lock()
	if d.blockNext {
		d.mu.Unlock()
		<-ctx.Done()

		return nil, false, ctx.Err()
	}
	defer d.mu.Unlock()
	if d.calls >= len(d.script) {
		return nil, true, nil
	}
	page := d.script[d.calls]
	d.calls++

	return page.batch, page.last, page.err
}

func (d *scriptedDriver) Cancel(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelled = true

	return nil
}

func (d *scriptedDriver) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.calls
}

func rows(n int) (batch []message.Message) {
	for i := 0; i < n; i++ {
		batch = append(batch, &message.DataRow{Values: []interface{}{i}})
	}

	return batch
}

func collect(t *testing.T, p *Publisher, n int) (got []message.Message) {
	t.Helper()

	p.OnDemand(n)
	for m := range p.Messages() {
		got = append(got, m)
	}

	return got
}

func TestSessionStartsWithProgressStarted(t *testing.T) {
	driver := &scriptedDriver{script: []scriptedPage{
		{batch: rows(2), last: true},
	}}
	p := New(driver)
	p.Start(xtest.Context(t))

	got := collect(t, p, 10)
	require.Len(t, got, 4)
	require.Equal(t, &message.Progress{Kind: message.ProgressStarted}, got[0])
	require.IsType(t, &message.DataRow{}, got[1])
	require.IsType(t, &message.DataRow{}, got[2])
	require.Equal(t, message.DoneOK(), got[3])
}

func TestDemandSynchronousWithoutWatermark(t *testing.T) {
	driver := &scriptedDriver{script: []scriptedPage{
		{batch: rows(1), last: true},
	}}
	p := New(driver)
	p.Start(xtest.Context(t))

	// no demand outstanding: no backend request may be issued
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, driver.callCount())

	// the first unit of demand is satisfied by Progress(Started) alone
	p.OnDemand(1)
	require.Equal(t, &message.Progress{Kind: message.ProgressStarted}, <-p.Messages())
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, driver.callCount())

	p.OnDemand(2)
	require.IsType(t, &message.DataRow{}, <-p.Messages())
	require.Equal(t, message.DoneOK(), <-p.Messages())
	_, ok := <-p.Messages()
	require.False(t, ok, "channel must close after Done")
}

func TestWatermarkBoundsQueryAhead(t *testing.T) {
	driver := &scriptedDriver{script: []scriptedPage{
		{batch: rows(1)},
		{batch: rows(1)},
		{batch: rows(1)},
		{batch: rows(1)},
		{batch: rows(1), last: true},
	}}
	p := New(driver, WithWatermark(2))
	p.Start(xtest.Context(t))

	// with zero demand the driver prefetches up to the watermark and
	// stalls there
	require.Eventually(t, func() bool {
		return driver.callCount() == 2
	}, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 2, driver.callCount())

	// draining the buffer resumes prefetching
	p.OnDemand(3) // Started + both buffered rows
	for i := 0; i < 3; i++ {
		<-p.Messages()
	}
	require.Eventually(t, func() bool {
		return driver.callCount() == 4
	}, time.Second, time.Millisecond)

	// drain the rest of the session
	got := collect(t, p, 100)
	require.Equal(t, message.DoneOK(), got[len(got)-1])
}

func TestDriverFailureEndsWithDone(t *testing.T) {
	cause := errors.New("split processing failed")
	driver := &scriptedDriver{script: []scriptedPage{
		{batch: rows(1)},
		{batch: rows(1), err: cause},
	}}
	p := New(driver)
	p.Start(xtest.Context(t))

	got := collect(t, p, 100)
	require.Len(t, got, 4)
	// the failing page's messages are still delivered before Done
	require.IsType(t, &message.DataRow{}, got[2])
	done, ok := got[3].(*message.Done)
	require.True(t, ok)
	require.False(t, done.Success)
	require.Equal(t, []string{cause.Error()}, done.Errors)
}

func TestCancelStopsDelivery(t *testing.T) {
	driver := &scriptedDriver{blockNext: true}
	p := New(driver)
	p.Start(xtest.Context(t))

	p.OnDemand(2)
	require.Equal(t, &message.Progress{Kind: message.ProgressStarted}, <-p.Messages())

	// a backend request is now in flight and will never return
	p.OnCancel()

	_, ok := <-p.Messages()
	require.False(t, ok, "no message may follow cancellation")
	require.Eventually(t, func() bool {
		driver.mu.Lock()
		defer driver.mu.Unlock()

		return driver.cancelled
	}, time.Second, time.Millisecond)
}

func TestCancelBeforeDemand(t *testing.T) {
	driver := &scriptedDriver{script: []scriptedPage{
		{batch: rows(1), last: true},
	}}
	p := New(driver)
	p.Start(xtest.Context(t))
	p.OnCancel()

	_, ok := <-p.Messages()
	require.False(t, ok)
	require.Zero(t, driver.callCount())
}
