// Package server glues the protocol pieces together on the serving side:
// it reads the query frame, resolves a publisher session for it, pumps
// publisher output onto the wire with demand granted frame by frame, and
// completes the Done/Acknowledge handshake.
package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/sonic-data/sonic-go/auth"
	"github.com/sonic-data/sonic-go/internal/empty"
	"github.com/sonic-data/sonic-go/internal/stage"
	"github.com/sonic-data/sonic-go/internal/wire"
	"github.com/sonic-data/sonic-go/internal/xerrors"
	"github.com/sonic-data/sonic-go/log"
	"github.com/sonic-data/sonic-go/message"
	"github.com/sonic-data/sonic-go/publisher"
)

// SourceResolver creates and starts one publisher session per query.
// Connection-pool provisioning behind it is the caller's concern.
type SourceResolver interface {
	Resolve(ctx context.Context, q *message.Query) (publisher.Source, error)
}

// SourceResolverFunc adapts a function to the SourceResolver interface.
type SourceResolverFunc func(ctx context.Context, q *message.Query) (publisher.Source, error)

func (f SourceResolverFunc) Resolve(ctx context.Context, q *message.Query) (publisher.Source, error) {
	return f(ctx, q)
}

type Server struct {
	resolver SourceResolver
	verifier *auth.Verifier
	logger   log.Logger

	queries atomic.Int64
}

type Option func(s *Server)

func WithLogger(l log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithVerifier makes the server reject queries whose token does not
// verify. Without it tokens pass through unchecked.
func WithVerifier(v *auth.Verifier) Option {
	return func(s *Server) {
		s.verifier = v
	}
}

func New(resolver SourceResolver, opts ...Option) *Server {
	s := &Server{
		resolver: resolver,
		logger:   log.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Serve accepts connections until ctx is cancelled or lis fails. Every
// connection runs its sessions independently: a failed session never
// affects the others.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	ctx = log.WithNames(ctx, "server")
	go func() {
		<-ctx.Done()
		_ = lis.Close()
	}()
	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return xerrors.WithStackTrace(err)
		}
		go func() {
			if err := s.ServeConn(ctx, conn); err != nil {
				s.logger.Log(log.WithLevel(ctx, log.WARN), "session finished with failure",
					log.Error(err),
				)
			}
		}()
	}
}

// ServeConn runs a single query session over conn.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) (finalErr error) {
	defer conn.Close()

	r := wire.NewReader(conn)
	w := wire.NewWriter(conn)

	m, err := r.ReadMessage()
	if err != nil {
		return err
	}
	q, ok := m.(*message.Query)
	if !ok {
		return xerrors.WithStackTrace(fmt.Errorf("%w: expected query, got %q",
			stage.ErrProtocolViolation, m.Event(),
		))
	}
	q.ID = s.queries.Add(1)
	if q.TraceID == "" {
		q.TraceID = uuid.NewString()
	}
	ctx = log.WithNames(ctx, "session")
	s.logger.Log(log.WithLevel(ctx, log.INFO), "query accepted",
		log.Int64("id", q.ID),
		log.String("trace_id", q.TraceID),
	)

	// watch the inbound direction for the final Acknowledge and for the
	// client going away mid-stream
	ackReceived := make(empty.Chan)
	readFailed := make(chan error, 1)
	go watchInbound(r, ackReceived, readFailed)

	src, err := s.resolveSource(ctx, q)
	if err != nil {
		s.logger.Log(log.WithLevel(ctx, log.WARN), "query rejected",
			log.Int64("id", q.ID),
			log.Error(err),
		)

		return s.failSession(ctx, w, err, ackReceived, readFailed)
	}

	for {
		// demand granted frame by frame keeps the outbound side at one
		// in-flight frame
		src.OnDemand(1)
		select {
		case m, ok := <-src.Messages():
			if !ok {
				return nil
			}
			if err = w.WriteMessage(m); err != nil {
				src.OnCancel()

				return err
			}
			if _, done := m.(*message.Done); done {
				return s.awaitAck(ctx, ackReceived, readFailed)
			}
		case err = <-readFailed:
			src.OnCancel()

			return err
		case <-ctx.Done():
			src.OnCancel()

			return ctx.Err()
		}
	}
}

func (s *Server) resolveSource(ctx context.Context, q *message.Query) (publisher.Source, error) {
	if s.verifier != nil {
		principal, err := s.verifier.Verify(q.Auth)
		if err != nil {
			return nil, err
		}
		s.logger.Log(log.WithLevel(ctx, log.DEBUG), "principal verified",
			log.Int64("id", q.ID),
			log.String("subject", principal.Subject),
		)
	}

	return s.resolver.Resolve(ctx, q)
}

// failSession keeps the handshake invariant for sessions that never got
// a publisher: Progress(Started) first, one terminal Done, one Ack.
func (s *Server) failSession(
	ctx context.Context,
	w *wire.Writer,
	cause error,
	ackReceived empty.Chan,
	readFailed chan error,
) error {
	if err := w.WriteMessage(&message.Progress{Kind: message.ProgressStarted}); err != nil {
		return err
	}
	if err := w.WriteMessage(message.DoneWithError(cause)); err != nil {
		return err
	}

	return s.awaitAck(ctx, ackReceived, readFailed)
}

func (s *Server) awaitAck(ctx context.Context, ackReceived empty.Chan, readFailed chan error) error {
	select {
	case <-ackReceived:
		return nil
	case err := <-readFailed:
		return xerrors.WithStackTrace(fmt.Errorf("%w: %w", stage.ErrIncompleteStream, err))
	case <-ctx.Done():
		return ctx.Err()
	}
}

func watchInbound(r *wire.Reader, ackReceived empty.Chan, readFailed chan error) {
	for {
		m, err := r.ReadMessage()
		if err != nil {
			if xerrors.Is(err, io.EOF) {
				err = io.EOF
			}
			readFailed <- err

			return
		}
		if _, ok := m.(*message.Acknowledge); ok {
			close(ackReceived)

			return
		}
		// unknown inbound messages are tolerated for forward compatibility
	}
}
