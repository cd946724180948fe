package xerrors

import (
	"errors"
)

// As is a proxy to errors.As
// This need to single import errors
func As(err error, targets ...interface{}) (ok bool) {
	if err == nil {
		return false
	}
	for _, t := range targets {
		if errors.As(err, t) {
			ok = true
		}
	}

	return ok
}

// Is is a improved proxy to errors.Is
// This need to single import errors
func Is(err error, targets ...error) bool {
	if len(targets) == 0 {
		panic("empty targets")
	}
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

type isSonicError interface {
	isSonicError()
}

// IsSonic reports whether err was produced by this module.
func IsSonic(err error) bool {
	var e isSonicError

	return errors.As(err, &e)
}

type sonicError struct {
	err error
}

func (e *sonicError) isSonicError() {}

func (e *sonicError) Error() string {
	return e.err.Error()
}

func (e *sonicError) Unwrap() error {
	return e.err
}

// Wrap marks err as internal module error
func Wrap(err error) error {
	return &sonicError{err: err}
}
