package outcome

import (
	"reflect"

	appErrors "github.com/unilab/slotbook-api/pkg/errors"
)

// Outcome is a two-state container: either a success carrying a value or a
// failure carrying a typed error. Expected business failures (not found,
// conflicts, validation) travel through failures; extracting the wrong side
// is a programming error and panics.
type Outcome[T any] struct {
	value T
	err   *appErrors.Error
	ok    bool
}

// Success wraps a payload. Panics on a nil pointer, map, slice, interface,
// func or channel payload, a success without a usable value is a programming
// error at the call site.
func Success[T any](value T) Outcome[T] {
	if isNil(value) {
		panic("outcome: Success requires a non-nil payload")
	}
	return Outcome[T]{value: value, ok: true}
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

// Failure wraps a typed error. Panics on nil, a failure without an error is
// a programming error.
func Failure[T any](err *appErrors.Error) Outcome[T] {
	if err == nil {
		panic("outcome: Failure requires a non-nil error")
	}
	return Outcome[T]{err: err}
}

// IsSuccess reports whether the outcome holds a value.
func (o Outcome[T]) IsSuccess() bool { return o.ok }

// IsFailure reports whether the outcome holds an error.
func (o Outcome[T]) IsFailure() bool { return !o.ok }

// Value returns the payload. Panics when called on a failure.
func (o Outcome[T]) Value() T {
	if !o.ok {
		panic("outcome: Value called on a failure")
	}
	return o.value
}

// Err returns the typed error. Panics when called on a success.
func (o Outcome[T]) Err() *appErrors.Error {
	if o.ok {
		panic("outcome: Err called on a success")
	}
	return o.err
}

// Unit is the payload type for operations that succeed without data.
type Unit struct{}

// Ok is shorthand for a successful Unit outcome.
func Ok() Outcome[Unit] {
	return Success(Unit{})
}
