package xerrors

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sonic-data/sonic-go/internal/xstring"
)

type retryableError struct {
	name string
	err  error
}

func (re *retryableError) Name() string {
	return "retryable/" + re.name
}

func (re *retryableError) Error() string {
	b := xstring.Buffer()
	defer b.Free()
	b.WriteString(re.Name())
	fmt.Fprintf(b, " (source error = %q)", re.err.Error())

	return b.String()
}

func (re *retryableError) Unwrap() error {
	return re.err
}

type RetryableErrorOption func(re *retryableError)

func WithName(name string) RetryableErrorOption {
	return func(re *retryableError) {
		re.name = name
	}
}

// Retryable marks err as recoverable through retrying the same request.
func Retryable(err error, opts ...RetryableErrorOption) error {
	re := &retryableError{
		name: "CUSTOM",
		err:  err,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(re)
		}
	}

	return re
}

// IsRetryable reports whether err belongs to the transient error class:
// either marked with Retryable or a transport timeout.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *retryableError
	if errors.As(err, &re) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
