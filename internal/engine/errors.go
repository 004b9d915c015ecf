package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by engine operations. Callers test with errors.Is;
// returned errors wrap one of these with operation context.
var (
	// ErrInvalidArgument reports a nil, malformed or out-of-range input, or a
	// destination buffer that is too small.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrBadState reports an operation attempted outside the lifecycle state
	// it requires.
	ErrBadState = errors.New("bad state")

	// ErrNotSupported reports a recognized but unimplemented parameter,
	// property or format.
	ErrNotSupported = errors.New("not supported")

	// ErrTimeout reports that a wait budget was exhausted.
	ErrTimeout = errors.New("timeout")

	// ErrFatal reports that the device is unusable. Wait returns it when
	// executor initialization failed; Code also maps errors outside this
	// taxonomy to it.
	ErrFatal = errors.New("fatal")
)

// Status is the definite result code of an engine operation, for protocol
// layers that cannot carry Go errors.
type Status int

// Status codes.
const (
	StatusSuccess Status = iota
	StatusInvalidArgument
	StatusBadState
	StatusNotSupported
	StatusTimeout
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInvalidArgument:
		return "invalid_argument"
	case StatusBadState:
		return "bad_state"
	case StatusNotSupported:
		return "not_supported"
	case StatusTimeout:
		return "timeout"
	case StatusFatal:
		return "fatal"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Code maps err to its status code. Errors outside the taxonomy map to
// StatusFatal.
func Code(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrInvalidArgument):
		return StatusInvalidArgument
	case errors.Is(err, ErrBadState):
		return StatusBadState
	case errors.Is(err, ErrNotSupported):
		return StatusNotSupported
	case errors.Is(err, ErrTimeout):
		return StatusTimeout
	default:
		return StatusFatal
	}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func badStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadState, fmt.Sprintf(format, args...))
}

func notSupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotSupported, fmt.Sprintf(format, args...))
}
