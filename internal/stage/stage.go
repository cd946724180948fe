// Package stage implements the session protocol stage: a bidirectional
// translator between a framed byte connection and typed protocol
// messages, enforcing the Done/Acknowledge completion handshake.
package stage

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/sonic-data/sonic-go/internal/empty"
	"github.com/sonic-data/sonic-go/internal/wire"
	"github.com/sonic-data/sonic-go/internal/xerrors"
	"github.com/sonic-data/sonic-go/log"
	"github.com/sonic-data/sonic-go/message"
)

var (
	// ErrIncompleteStream is returned when the byte connection closes
	// before any Done was observed. A closed connection is never treated
	// as successful completion.
	ErrIncompleteStream = xerrors.Wrap(errors.New("stage: connection closed before session completed"))

	// ErrProtocolViolation is returned when the handshake invariant is
	// broken by the peer, e.g. a failed Done with no error attached.
	ErrProtocolViolation = xerrors.Wrap(errors.New("stage: peer violated session protocol"))
)

// SessionError is a session failure the peer reported in Done.
type SessionError struct {
	Errors []string
}

func (e *SessionError) Error() string {
	return "stage: session failed: " + strings.Join(e.Errors, "; ")
}

// State is the per-session handshake state.
type State int32

const (
	Open = State(iota)
	AwaitingDone
	Acknowledging
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case AwaitingDone:
		return "awaiting-done"
	case Acknowledging:
		return "acknowledging"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type Stage struct {
	conn   io.ReadWriteCloser
	logger log.Logger

	state atomic.Int32

	// ackSent guards the exactly-once Acknowledge invariant; it is only
	// touched by the write loop.
	ackSent bool
}

type Option func(s *Stage)

func WithLogger(l log.Logger) Option {
	return func(s *Stage) {
		s.logger = l
	}
}

func New(conn io.ReadWriteCloser, opts ...Option) *Stage {
	s := &Stage{
		conn:   conn,
		logger: log.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

func (s *Stage) State() State {
	return State(s.state.Load())
}

// Run pumps both directions until the completion handshake resolves the
// session. Every inbound message, the terminal Done included, is
// delivered to recv; recv is closed when the inbound direction ends.
// Closing send half-closes the outbound direction without ending the
// session: the session lifetime is governed solely by Done/Acknowledge.
func (s *Stage) Run(ctx context.Context, recv chan<- message.Message, send <-chan message.Message) error {
	ctx = log.WithNames(ctx, "stage")
	s.state.Store(int32(AwaitingDone))

	var (
		// reader closes ackRequest after observing Done; writer answers
		// on ackDone once the Acknowledge frame is out
		ackRequest = make(empty.Chan)
		ackDone    = make(empty.Chan)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.writeLoop(gctx, send, ackRequest, ackDone)
	})
	g.Go(func() error {
		defer close(recv)

		return s.readLoop(gctx, recv, ackRequest, ackDone)
	})
	go func() {
		// unblock both loops from conn reads/writes on completion
		<-gctx.Done()
		_ = s.conn.Close()
	}()

	if err := g.Wait(); err != nil {
		s.state.Store(int32(Failed))

		return err
	}
	s.state.Store(int32(Closed))

	return nil
}

func (s *Stage) writeLoop(ctx context.Context, send <-chan message.Message, ackRequest, ackDone empty.Chan) error {
	w := wire.NewWriter(s.conn)
	for {
		select {
		case m, ok := <-send:
			if !ok {
				// peer finished sending; keep the opposite direction open
				send = nil

				continue
			}
			if err := w.WriteMessage(m); err != nil {
				return err
			}
		case <-ackRequest:
			if s.ackSent {
				panic("stage: duplicate acknowledge")
			}
			s.ackSent = true
			if err := w.WriteMessage(&message.Acknowledge{}); err != nil {
				return err
			}
			close(ackDone)

			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Stage) readLoop(ctx context.Context, recv chan<- message.Message, ackRequest, ackDone empty.Chan) error {
	r := wire.NewReader(s.conn)
	for {
		m, err := r.ReadMessage()
		if err != nil {
			if xerrors.Is(err, io.EOF) {
				return xerrors.WithStackTrace(ErrIncompleteStream)
			}

			// framing errors are connection-fatal
			return err
		}

		select {
		case recv <- m:
		case <-ctx.Done():
			return ctx.Err()
		}

		done, ok := m.(*message.Done)
		if !ok {
			continue
		}

		s.state.Store(int32(Acknowledging))
		s.logger.Log(log.WithLevel(ctx, log.DEBUG), "session done, acknowledging",
			log.Bool("success", done.Success),
		)
		close(ackRequest)
		select {
		case <-ackDone:
		case <-ctx.Done():
			return ctx.Err()
		}

		switch {
		case done.Success:
			return nil
		case len(done.Errors) > 0:
			return xerrors.WithStackTrace(&SessionError{Errors: done.Errors})
		default:
			return xerrors.WithStackTrace(ErrProtocolViolation)
		}
	}
}
