package client

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sonic-data/sonic-go/internal/stage"
	"github.com/sonic-data/sonic-go/internal/xtest"
	"github.com/sonic-data/sonic-go/message"
	"github.com/sonic-data/sonic-go/publisher"
	"github.com/sonic-data/sonic-go/server"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticDriver struct {
	batch []message.Message
}

func (d *staticDriver) Next(context.Context) ([]message.Message, bool, error) {
	return d.batch, true, nil
}

func (d *staticDriver) Cancel(context.Context) error {
	return nil
}

// startServer serves resolver on a loopback listener for the duration of
// the test.
func startServer(t *testing.T, resolver server.SourceResolver) (addr string) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(xtest.Context(t))
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = server.New(resolver).Serve(ctx, lis)
	}()
	t.Cleanup(func() {
		cancel()
		xtest.WaitChannelClosed(t, served)
	})

	return lis.Addr().String()
}

func publishing(driver publisher.Driver) server.SourceResolver {
	return server.SourceResolverFunc(func(ctx context.Context, q *message.Query) (publisher.Source, error) {
		p := publisher.New(driver)
		p.Start(ctx)

		return p, nil
	})
}

func TestExecute(t *testing.T) {
	addr := startServer(t, publishing(&staticDriver{batch: []message.Message{
		&message.DataRow{Values: []interface{}{"a"}},
		&message.DataRow{Values: []interface{}{"b"}},
	}}))

	var got []message.Message
	err := New(addr).Execute(xtest.Context(t),
		&message.Query{Text: "select 1", Config: []byte(`{"url":"http://x"}`)},
		func(m message.Message) error {
			got = append(got, m)

			return nil
		},
	)
	require.NoError(t, err)

	require.Len(t, got, 4)
	require.Equal(t, &message.Progress{Kind: message.ProgressStarted}, got[0])
	require.Equal(t, &message.DataRow{Values: []interface{}{"a"}}, got[1])
	require.Equal(t, &message.DataRow{Values: []interface{}{"b"}}, got[2])
	require.Equal(t, message.DoneOK(), got[3])
}

func TestExecuteSessionFailure(t *testing.T) {
	cause := errors.New("no such source")
	addr := startServer(t, server.SourceResolverFunc(
		func(context.Context, *message.Query) (publisher.Source, error) {
			return nil, cause
		},
	))

	var last message.Message
	err := New(addr).Execute(xtest.Context(t),
		&message.Query{Text: "select 1"},
		func(m message.Message) error {
			last = m

			return nil
		},
	)

	var sessionErr *stage.SessionError
	require.ErrorAs(t, err, &sessionErr)
	require.Equal(t, []string{cause.Error()}, sessionErr.Errors)
	// the terminal Done still reached the callback
	require.IsType(t, &message.Done{}, last)
}

func TestExecuteCallbackError(t *testing.T) {
	addr := startServer(t, publishing(&staticDriver{}))

	cause := errors.New("sink full")
	err := New(addr).Execute(xtest.Context(t),
		&message.Query{Text: "select 1"},
		func(message.Message) error {
			return cause
		},
	)
	require.ErrorIs(t, err, cause)
}

func TestExecuteDialFailure(t *testing.T) {
	err := New("127.0.0.1:1").Execute(xtest.Context(t),
		&message.Query{Text: "select 1"},
		func(message.Message) error { return nil },
	)
	require.Error(t, err)
}
