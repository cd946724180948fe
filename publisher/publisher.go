// Package publisher implements the demand-driven source publisher
// machinery shared by backend drivers: demand accounting, watermark
// bounded query-ahead buffering and cooperative cancellation.
package publisher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sonic-data/sonic-go/internal/empty"
	"github.com/sonic-data/sonic-go/internal/xcontext"
	"github.com/sonic-data/sonic-go/internal/xerrors"
	"github.com/sonic-data/sonic-go/log"
	"github.com/sonic-data/sonic-go/message"
)

var (
	errSessionCancelled = xerrors.Wrap(errors.New("publisher: session cancelled"))
	errSessionClosed    = xerrors.Wrap(errors.New("publisher: session closed"))
)

// Source is the capability the protocol layer relies on. Messages are
// delivered in production order and never ahead of cumulative demand.
type Source interface {
	// OnDemand signals willingness to receive up to n more messages.
	OnDemand(n int)
	// OnCancel requests early termination. No message is delivered after
	// cancellation is processed.
	OnCancel()
	// Messages returns the delivery channel. It is closed when the
	// session ends, after the terminal Done or on cancellation.
	Messages() <-chan message.Message
}

// Driver runs backend work for one query. Next is never called
// concurrently with itself; Cancel may overlap an in-flight Next whose
// context has already been cancelled.
type Driver interface {
	// Next performs the next backend round-trip and returns the messages
	// produced by the resulting page. last reports that backend
	// processing is complete. Messages returned alongside a non-nil err
	// are delivered before the failure surfaces as Done.
	Next(ctx context.Context) (batch []message.Message, last bool, err error)

	// Cancel makes a best-effort attempt to stop backend-side work.
	Cancel(ctx context.Context) error
}

var _ Source = (*Publisher)(nil)

// Publisher owns one query session. All session state lives in the run
// goroutine; OnDemand and OnCancel never block.
type Publisher struct {
	driver    Driver
	watermark int
	logger    log.Logger

	out       chan message.Message
	wake      empty.Chan
	pending   atomic.Int64
	cancelled empty.Chan

	startOnce  sync.Once
	cancelOnce sync.Once
}

type Option func(p *Publisher)

// WithWatermark sets the maximum number of fetched-ahead undelivered
// data messages before prefetching stalls. Zero keeps the publisher
// strictly demand-synchronous.
func WithWatermark(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.watermark = n
		}
	}
}

func WithLogger(l log.Logger) Option {
	return func(p *Publisher) {
		p.logger = l
	}
}

func New(driver Driver, opts ...Option) *Publisher {
	p := &Publisher{
		driver:    driver,
		logger:    log.Nop(),
		out:       make(chan message.Message),
		wake:      make(empty.Chan, 1),
		cancelled: make(empty.Chan),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// Start launches the session goroutine. Subsequent calls are no-ops.
func (p *Publisher) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		go p.run(log.WithNames(ctx, "publisher"))
	})
}

func (p *Publisher) Messages() <-chan message.Message {
	return p.out
}

func (p *Publisher) OnDemand(n int) {
	if n <= 0 {
		return
	}
	p.pending.Add(int64(n))
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Publisher) OnCancel() {
	p.cancelOnce.Do(func() {
		close(p.cancelled)
	})
}

type pageResult struct {
	batch []message.Message
	last  bool
	err   error
}

func (p *Publisher) run(ctx context.Context) {
	defer close(p.out)

	var (
		demand    int64
		queue     []message.Message
		buffered  int // data messages fetched ahead of delivery
		exhausted bool

		inflight    chan pageResult
		fetchCancel xcontext.CancelErrFunc = func(error) {}
	)
	defer func() {
		fetchCancel(errSessionClosed)
	}()

	// the session always opens with Progress(Started)
	queue = append(queue, &message.Progress{Kind: message.ProgressStarted})

	for {
		demand += p.pending.Swap(0)

		for demand > 0 && len(queue) > 0 {
			m := queue[0]
			select {
			case p.out <- m:
				queue = queue[1:]
				demand--
				if _, ok := m.(*message.DataRow); ok {
					buffered--
				}
				if _, ok := m.(*message.Done); ok {
					return
				}
			case <-p.cancelled:
				p.abort(ctx, fetchCancel)
				return
			case <-ctx.Done():
				return
			}
		}

		// query-ahead: keep the backend busy while undelivered demand
		// remains or the buffer is under the watermark
		if !exhausted && inflight == nil && (demand > 0 || buffered < p.watermark) {
			var fetchCtx context.Context
			fetchCtx, fetchCancel = xcontext.WithErrCancel(ctx)
			inflight = make(chan pageResult, 1)
			go func(ctx context.Context, res chan<- pageResult) {
				batch, last, err := p.driver.Next(ctx)
				res <- pageResult{batch: batch, last: last, err: err}
			}(fetchCtx, inflight)
		}

		select {
		case <-p.wake:
		case <-p.cancelled:
			p.abort(ctx, fetchCancel)
			return
		case r := <-inflight:
			inflight = nil
			queue = append(queue, r.batch...)
			buffered += countData(r.batch)
			switch {
			case r.err != nil:
				p.logger.Log(log.WithLevel(ctx, log.WARN), "backend work failed",
					log.Error(r.err),
				)
				queue = append(queue, message.DoneWithError(r.err))
				exhausted = true
			case r.last:
				queue = append(queue, message.DoneOK())
				exhausted = true
			}
		case <-ctx.Done():
			return
		}
	}
}

// abort discards any in-flight backend response and attempts backend-side
// cancellation before the session state is released.
func (p *Publisher) abort(ctx context.Context, fetchCancel xcontext.CancelErrFunc) {
	fetchCancel(errSessionCancelled)
	if err := p.driver.Cancel(ctx); err != nil {
		p.logger.Log(log.WithLevel(ctx, log.DEBUG), "backend cancellation failed",
			log.Error(err),
		)
	}
}

func countData(batch []message.Message) (n int) {
	for _, m := range batch {
		if _, ok := m.(*message.DataRow); ok {
			n++
		}
	}

	return n
}
