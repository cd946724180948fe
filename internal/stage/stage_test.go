package stage

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sonic-data/sonic-go/internal/wire"
	"github.com/sonic-data/sonic-go/internal/xtest"
	"github.com/sonic-data/sonic-go/message"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type sessionEnd struct {
	err      error
	received []message.Message
}

// runSession drives the stage on one end of a pipe and gives the raw
// peer side to fn.
func runSession(t *testing.T, outbound []message.Message, fn func(r *wire.Reader, w *wire.Writer)) (*Stage, sessionEnd) {
	t.Helper()

	ctx := xtest.Context(t)
	conn, peer := net.Pipe()
	st := New(conn)

	send := make(chan message.Message, len(outbound))
	for _, m := range outbound {
		send <- m
	}
	close(send)

	recv := make(chan message.Message)
	collected := make(chan []message.Message, 1)
	go func() {
		var got []message.Message
		for m := range recv {
			got = append(got, m)
		}
		collected <- got
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- st.Run(ctx, recv, send)
	}()

	fn(wire.NewReader(peer), wire.NewWriter(peer))

	end := sessionEnd{err: <-runErr, received: <-collected}
	_ = peer.Close()

	return st, end
}

func TestHandshakeSuccess(t *testing.T) {
	total := int64(10)
	st, end := runSession(t, nil, func(r *wire.Reader, w *wire.Writer) {
		require.NoError(t, w.WriteMessage(&message.Progress{Kind: message.ProgressStarted}))
		require.NoError(t, w.WriteMessage(&message.Progress{
			Kind: message.ProgressRunning, Value: 10, Total: &total, Unit: "splits",
		}))
		require.NoError(t, w.WriteMessage(&message.DataRow{Values: []interface{}{"a"}}))
		require.NoError(t, w.WriteMessage(message.DoneOK()))

		// exactly one Acknowledge after Done
		m, err := r.ReadMessage()
		require.NoError(t, err)
		require.IsType(t, &message.Acknowledge{}, m)

		_, err = r.ReadMessage()
		require.Error(t, err, "no frame may follow the acknowledge")
	})

	require.NoError(t, end.err)
	require.Equal(t, Closed, st.State())
	require.Len(t, end.received, 4)
	require.IsType(t, &message.Done{}, end.received[3])
}

func TestHandshakeOutboundQuery(t *testing.T) {
	q := &message.Query{Text: "select 1", Config: []byte(`{"url":"http://x"}`)}
	_, end := runSession(t, []message.Message{q}, func(r *wire.Reader, w *wire.Writer) {
		m, err := r.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, q, m)

		// the outbound direction is already half-closed here; the
		// session must stay open until Done
		require.NoError(t, w.WriteMessage(message.DoneOK()))

		m, err = r.ReadMessage()
		require.NoError(t, err)
		require.IsType(t, &message.Acknowledge{}, m)
	})

	require.NoError(t, end.err)
}

func TestHandshakeSessionFailure(t *testing.T) {
	st, end := runSession(t, nil, func(r *wire.Reader, w *wire.Writer) {
		require.NoError(t, w.WriteMessage(&message.Progress{Kind: message.ProgressStarted}))
		require.NoError(t, w.WriteMessage(&message.Done{Success: false, Errors: []string{"boom"}}))

		m, err := r.ReadMessage()
		require.NoError(t, err)
		require.IsType(t, &message.Acknowledge{}, m)
	})

	var sessionErr *SessionError
	require.ErrorAs(t, end.err, &sessionErr)
	require.Equal(t, []string{"boom"}, sessionErr.Errors)
	require.Equal(t, Failed, st.State())
}

func TestHandshakeProtocolViolation(t *testing.T) {
	_, end := runSession(t, nil, func(r *wire.Reader, w *wire.Writer) {
		// failed Done with no error attached
		require.NoError(t, w.WriteMessage(&message.Done{Success: false}))

		m, err := r.ReadMessage()
		require.NoError(t, err)
		require.IsType(t, &message.Acknowledge{}, m)
	})

	require.ErrorIs(t, end.err, ErrProtocolViolation)
}

func TestIncompleteStream(t *testing.T) {
	ctx := xtest.Context(t)
	conn, peer := net.Pipe()
	st := New(conn)

	send := make(chan message.Message)
	close(send)
	recv := make(chan message.Message)
	go func() {
		for range recv {
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- st.Run(ctx, recv, send)
	}()

	w := wire.NewWriter(peer)
	require.NoError(t, w.WriteMessage(&message.Progress{Kind: message.ProgressStarted}))
	// connection closes with no Done observed
	require.NoError(t, peer.Close())

	require.ErrorIs(t, <-runErr, ErrIncompleteStream)
	require.Equal(t, Failed, st.State())
}
