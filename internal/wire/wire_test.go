package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"

	"github.com/sonic-data/sonic-go/message"
)

func TestFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte{},
		[]byte("x"),
		[]byte(`{"e":"A"}`),
		bytes.Repeat([]byte("abc"), 1000),
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, p := range payloads {
		require.NoError(t, w.WriteFrame(p))
	}

	r := NewReader(&buf)
	for _, want := range payloads {
		got, err := r.ReadFrame()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := r.ReadFrame()
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrameAcrossChunkBoundaries(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteFrame([]byte("first frame")))
	require.NoError(t, w.WriteFrame([]byte("second frame")))

	// one byte per transport read
	r := NewReader(iotest.OneByteReader(&buf))

	got, err := r.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, []byte("first frame"), got)

	got, err = r.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, []byte("second frame"), got)

	_, err = r.ReadFrame()
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], MaxFrameLength+1)
	buf.Write(lenPrefix[:])

	_, err := NewReader(&buf).ReadFrame()
	require.ErrorIs(t, err, ErrFrameTooLarge)
	require.True(t, IsFramingError(err))
}

func TestReadFrameAbsurdLength(t *testing.T) {
	// a negative int32 on the writing side arrives as an absurd uint32
	var buf bytes.Buffer
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], 0xFFFFFFFF)
	buf.Write(lenPrefix[:])

	_, err := NewReader(&buf).ReadFrame()
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameTruncated(t *testing.T) {
	t.Run("TruncatedPayload", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriter(&buf).WriteFrame([]byte("full payload")))
		truncated := buf.Bytes()[:buf.Len()-3]

		_, err := NewReader(bytes.NewReader(truncated)).ReadFrame()
		require.True(t, IsFramingError(err), "truncated trailing bytes must fail, not be dropped: %v", err)
	})

	t.Run("TruncatedLengthPrefix", func(t *testing.T) {
		_, err := NewReader(bytes.NewReader([]byte{0x00, 0x01})).ReadFrame()
		require.True(t, IsFramingError(err))
	})
}

func TestWriteFrameTooLarge(t *testing.T) {
	err := NewWriter(&bytes.Buffer{}).WriteFrame(make([]byte, MaxFrameLength+1))
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	total := int64(100)
	sent := []message.Message{
		&message.Progress{Kind: message.ProgressStarted},
		&message.Progress{Kind: message.ProgressRunning, Value: 42, Total: &total, Unit: "splits"},
		&message.DataRow{Values: []interface{}{"a", float64(1)}},
		&message.Done{Success: true},
	}
	for _, m := range sent {
		require.NoError(t, w.WriteMessage(m))
	}

	r := NewReader(&buf)
	for _, want := range sent {
		got, err := r.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestReadMessageMalformedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteFrame([]byte("not json")))

	_, err := NewReader(&buf).ReadMessage()
	require.True(t, IsFramingError(err))
}
