package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure modes
var (
	ErrUnknownEffectKind    = errors.New("unknown effect kind")
	ErrNotImplementedEffect = errors.New("effect not implemented")
	ErrNoAudioLoaded        = errors.New("no audio loaded")
	ErrEmptyMixdownSet      = errors.New("no eligible tracks to mix")
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrInvalidRequest       = errors.New("invalid request")
)

// OpError is an operation-scoped failure. Subject names the effect kind,
// track or clip the operation was working on.
type OpError struct {
	Op      string // "process_region", "mixdown", "load"
	Subject string
	Err     error
}

func (e *OpError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Subject, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError creates an OpError
func NewOpError(op, subject string, err error) *OpError {
	return &OpError{Op: op, Subject: subject, Err: err}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
