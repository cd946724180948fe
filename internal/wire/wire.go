// Package wire implements the length-prefixed framing of the protocol:
// a 4-byte big-endian unsigned length followed by exactly that many
// payload bytes.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sonic-data/sonic-go/internal/xerrors"
	"github.com/sonic-data/sonic-go/message"
)

// MaxFrameLength is the largest payload accepted on the wire.
const MaxFrameLength = 1_000_000

const lengthSize = 4

var ErrFrameTooLarge = xerrors.Wrap(errors.New("wire: frame exceeds maximum length"))

// FramingError reports a malformed frame. It is connection-fatal.
type FramingError struct {
	err error
}

func (e *FramingError) Error() string {
	return "wire: framing error: " + e.err.Error()
}

func (e *FramingError) Unwrap() error {
	return e.err
}

func framingErrorf(format string, args ...interface{}) error {
	return &FramingError{err: fmt.Errorf(format, args...)}
}

// IsFramingError reports whether err is connection-fatal framing failure.
func IsFramingError(err error) bool {
	var fe *FramingError

	return errors.As(err, &fe)
}

// Reader reassembles frames from an unbounded byte stream. Frames split
// across transport reads are buffered until complete; truncated trailing
// bytes at stream end fail with a framing error.
type Reader struct {
	r   io.Reader
	len [lengthSize]byte
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadFrame returns the next payload. It returns io.EOF if and only if
// the stream ends exactly on a frame boundary.
func (r *Reader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(r.r, r.len[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}

		return nil, xerrors.WithStackTrace(framingErrorf("truncated length prefix: %w", err))
	}
	n := binary.BigEndian.Uint32(r.len[:])
	if n > MaxFrameLength {
		return nil, xerrors.WithStackTrace(&FramingError{
			err: fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n),
		})
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return nil, xerrors.WithStackTrace(framingErrorf("truncated frame of %d bytes: %w", n, err))
	}

	return payload, nil
}

// ReadMessage reads and decodes the next protocol message.
func (r *Reader) ReadMessage() (message.Message, error) {
	payload, err := r.ReadFrame()
	if err != nil {
		return nil, err
	}
	m, err := message.Unmarshal(payload)
	if err != nil {
		return nil, xerrors.WithStackTrace(&FramingError{err: err})
	}

	return m, nil
}

// Writer frames payloads onto w. It is not safe for concurrent use.
type Writer struct {
	w   io.Writer
	len [lengthSize]byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) WriteFrame(payload []byte) error {
	if len(payload) > MaxFrameLength {
		return xerrors.WithStackTrace(&FramingError{
			err: fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload)),
		})
	}
	binary.BigEndian.PutUint32(w.len[:], uint32(len(payload)))
	if _, err := w.w.Write(w.len[:]); err != nil {
		return xerrors.WithStackTrace(err)
	}
	if _, err := w.w.Write(payload); err != nil {
		return xerrors.WithStackTrace(err)
	}

	return nil
}

// WriteMessage serializes and frames one protocol message.
func (w *Writer) WriteMessage(m message.Message) error {
	payload, err := message.Marshal(m)
	if err != nil {
		return err
	}

	return w.WriteFrame(payload)
}
