package domain

import (
	"errors"
	"fmt"
)

// Result domain errors.
//
// ErrInternal marks a caller contract breach (calling a build-phase
// mutator after finalization, removeDistinct on a non-distinct result, and
// the like). It is not meant to be caught and retried. Failures coming out
// of an external store are wrapped with %w and surfaced unmodified.

// ErrInternal internal contract violation error
type ErrInternal struct {
	Message string
}

func (e *ErrInternal) Error() string {
	return fmt.Sprintf("internal error: %s", e.Message)
}

// NewErrInternal creates an internal contract violation error
func NewErrInternal(format string, args ...any) *ErrInternal {
	return &ErrInternal{Message: fmt.Sprintf(format, args...)}
}

// IsInternal reports whether err is (or wraps) an internal error
func IsInternal(err error) bool {
	var target *ErrInternal
	return errors.As(err, &target)
}

// ErrResultClosed result already closed error
type ErrResultClosed struct{}

func (e *ErrResultClosed) Error() string {
	return "result set is closed"
}

// NewErrResultClosed creates a result closed error
func NewErrResultClosed() *ErrResultClosed {
	return &ErrResultClosed{}
}

// IsClosed reports whether err is (or wraps) a result closed error
func IsClosed(err error) bool {
	var target *ErrResultClosed
	return errors.As(err, &target)
}

// ErrUnsupportedValue unsupported value type error
type ErrUnsupportedValue struct {
	Value any
}

func (e *ErrUnsupportedValue) Error() string {
	return fmt.Sprintf("unsupported value type %T", e.Value)
}

// NewErrUnsupportedValue creates an unsupported value type error
func NewErrUnsupportedValue(v any) *ErrUnsupportedValue {
	return &ErrUnsupportedValue{Value: v}
}

// IsUnsupportedValue reports whether err is (or wraps) an unsupported
// value type error
func IsUnsupportedValue(err error) bool {
	var target *ErrUnsupportedValue
	return errors.As(err, &target)
}
