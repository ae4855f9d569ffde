package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPostgresMapsExclusionToCallerError(t *testing.T) {
	violation := &pq.Error{Code: "23P01", Constraint: "reservations_no_overlap_per_teacher_room"}

	mapped := FromPostgres(violation, ErrOverlappingAvailability)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrOverlappingAvailability.Code, mapped.Code)
	assert.Equal(t, ErrOverlappingAvailability.Status, mapped.Status)
}

func TestFromPostgresMapsExclusionWithoutCallerError(t *testing.T) {
	violation := &pq.Error{Code: "23P01"}

	mapped := FromPostgres(violation, nil)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrConflict.Code, mapped.Code)
}

func TestFromPostgresMapsKnownSQLStates(t *testing.T) {
	tests := []struct {
		code string
		want *Error
	}{
		{"23505", ErrUniqueViolation},
		{"23503", ErrForeignKeyViolation},
		{"57014", ErrTimeout},
		{"99999", ErrStorageUnknown},
	}
	for _, tc := range tests {
		mapped := FromPostgres(&pq.Error{Code: pq.ErrorCode(tc.code)}, nil)
		require.NotNil(t, mapped)
		assert.Equal(t, tc.want.Code, mapped.Code, "sqlstate %s", tc.code)
	}
}

func TestFromPostgresMapsContextCancellation(t *testing.T) {
	mapped := FromPostgres(fmt.Errorf("query: %w", context.DeadlineExceeded), nil)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrTimeout.Code, mapped.Code)
}

func TestFromPostgresWrapsUnknownErrors(t *testing.T) {
	mapped := FromPostgres(fmt.Errorf("socket closed"), nil)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrStorageUnknown.Code, mapped.Code)
}

func TestIsExclusionViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pq.Error{Code: "23P01"})

	assert.True(t, IsExclusionViolation(wrapped))
	assert.False(t, IsExclusionViolation(fmt.Errorf("other")))
	assert.False(t, IsExclusionViolation(nil))
}

func TestIsComparesCodes(t *testing.T) {
	err := Clone(ErrAlreadyClaimed, "custom message")

	assert.True(t, Is(err, ErrAlreadyClaimed))
	assert.False(t, Is(err, ErrWindowBlocked))
	assert.False(t, Is(nil, ErrAlreadyClaimed))
}

func TestCloneOverridesMessageOnly(t *testing.T) {
	clone := Clone(ErrNotFound, "availability not found")

	assert.Equal(t, ErrNotFound.Code, clone.Code)
	assert.Equal(t, ErrNotFound.Status, clone.Status)
	assert.Equal(t, "availability not found", clone.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}
