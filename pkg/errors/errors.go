package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/lib/pq"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrInactiveAccount    = New("INACTIVE_ACCOUNT", http.StatusForbidden, "account is inactive")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Booking domain errors.
var (
	ErrInvalidLocalTime        = New("INVALID_LOCAL_TIME", http.StatusUnprocessableEntity, "local time does not exist in the configured zone")
	ErrOverlappingAvailability = New("OVERLAPPING_AVAILABILITY", http.StatusConflict, "availability overlaps an existing window for this teacher and room")
	ErrAlreadyClaimed          = New("ALREADY_CLAIMED", http.StatusConflict, "this slot is already taken")
	ErrWindowBlocked           = New("WINDOW_BLOCKED", http.StatusConflict, "this availability is blocked")
	ErrSlotInPast              = New("SLOT_IN_PAST", http.StatusUnprocessableEntity, "cannot sign up for past slots")
	ErrOverlappingClaim        = New("OVERLAPPING_CLAIM", http.StatusConflict, "student already holds an overlapping reservation")
)

// Storage fault subkinds derived from PostgreSQL error codes.
var (
	ErrUniqueViolation     = New("DB_UNIQUE_VIOLATION", http.StatusConflict, "unique constraint violated")
	ErrForeignKeyViolation = New("DB_FOREIGN_KEY_VIOLATION", http.StatusConflict, "foreign key constraint violated")
	ErrTimeout             = New("DB_TIMEOUT", http.StatusGatewayTimeout, "database operation timed out")
	ErrStorageUnknown      = New("DB_UNKNOWN", http.StatusInternalServerError, "an unknown database error occurred")
)

// PostgreSQL SQLSTATE codes the mapper recognises.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgExclusionViolation  = "23P01"
	pgQueryCanceled       = "57014"
)

// IsExclusionViolation reports whether err is a PostgreSQL exclusion
// constraint rejection. The caller interprets it in context: on a slot
// insert it means an overlapping window for the teacher and room, on a
// claim it means an overlapping reservation for the same student.
func IsExclusionViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgExclusionViolation
}

// FromPostgres normalises a driver error into the storage fault taxonomy.
// Exclusion violations map to onExclusion so call sites can attach the
// business meaning of the violated constraint.
func FromPostgres(err error, onExclusion *Error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(err, ErrTimeout.Code, ErrTimeout.Status, ErrTimeout.Message)
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return Wrap(err, ErrStorageUnknown.Code, ErrStorageUnknown.Status, ErrStorageUnknown.Message)
	}

	switch string(pqErr.Code) {
	case pgExclusionViolation:
		if onExclusion != nil {
			return Wrap(err, onExclusion.Code, onExclusion.Status, onExclusion.Message)
		}
		return Wrap(err, ErrConflict.Code, ErrConflict.Status, ErrConflict.Message)
	case pgUniqueViolation:
		return Wrap(err, ErrUniqueViolation.Code, ErrUniqueViolation.Status, ErrUniqueViolation.Message)
	case pgForeignKeyViolation:
		return Wrap(err, ErrForeignKeyViolation.Code, ErrForeignKeyViolation.Status, ErrForeignKeyViolation.Message)
	case pgQueryCanceled:
		return Wrap(err, ErrTimeout.Code, ErrTimeout.Status, ErrTimeout.Message)
	default:
		return Wrap(err, ErrStorageUnknown.Code, ErrStorageUnknown.Status, ErrStorageUnknown.Message)
	}
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Is reports whether err carries the given code.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
