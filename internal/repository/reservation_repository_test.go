package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unilab/slotbook-api/pkg/errors"
)

func TestClaimWinsWhenUnclaimed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	claimedAt := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE reservations SET student_id = \$2, claimed_at = \$3`).
		WithArgs("slot-1", "student-1", claimedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.Claim(context.Background(), "slot-1", "student-1", claimedAt)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimLosesWhenAlreadyAssigned(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	claimedAt := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE reservations SET student_id = \$2, claimed_at = \$3`).
		WithArgs("slot-1", "student-2", claimedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.Claim(context.Background(), "slot-1", "student-2", claimedAt)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimSurfacesExclusionViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	claimedAt := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	violation := &pq.Error{Code: "23P01", Constraint: "reservations_student_no_overlap"}
	mock.ExpectExec(`UPDATE reservations SET student_id = \$2, claimed_at = \$3`).
		WithArgs("slot-1", "student-1", claimedAt).
		WillReturnError(violation)

	_, err := repo.Claim(context.Background(), "slot-1", "student-1", claimedAt)
	require.Error(t, err)
	assert.True(t, appErrors.IsExclusionViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationDeleteReportsMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectExec("DELETE FROM reservations").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.Delete(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
