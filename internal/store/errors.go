package store

import (
	"errors"

	"github.com/rotisserie/eris"
)

var (
	// ErrUnavailable matches every storage I/O failure, timeout included.
	ErrUnavailable = eris.New("repository unavailable")
	// ErrCorruptRecord means a stored record exists but cannot be decoded.
	ErrCorruptRecord = eris.New("corrupt property record")
	// ErrInvalidRecord rejects a write of a property without identity.
	ErrInvalidRecord = eris.New("invalid property record")
)

// UnavailableError wraps a driver error. It matches ErrUnavailable and
// unwraps to the driver error so callers can classify it further.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return "store: " + e.Op + ": " + ErrUnavailable.Error() + ": " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is reports whether target is ErrUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable //nolint:errorlint
}

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Op: op, Err: err}
}
