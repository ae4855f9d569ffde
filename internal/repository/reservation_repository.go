package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/unilab/slotbook-api/internal/models"
)

// ReservationRepository manages slot reservation rows.
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository builds repository.
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

const reservationDetailColumns = `
res.id, res.availability_id, res.period, res.student_id, res.claimed_at, res.created_at,
a.blocked AS window_blocked, a.teacher_id AS window_teacher_id,
u.full_name AS student_name`

// FindDetailByID loads a reservation joined with its window state and
// claimant name in a single query.
func (r *ReservationRepository) FindDetailByID(ctx context.Context, id string) (*models.ReservationDetail, error) {
	query := `SELECT ` + reservationDetailColumns + `
FROM reservations res
JOIN availabilities a ON a.id = res.availability_id
LEFT JOIN users u ON u.id = res.student_id
WHERE res.id = $1`
	var detail models.ReservationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Claim atomically assigns the claimant if, and only if, the slot is still
// unclaimed. The conditional update is the authority for concurrent
// claims: losers see zero rows affected. The student-overlap exclusion
// constraint rejects the write when the claimant already holds an
// overlapping reservation, which surfaces as the driver error.
func (r *ReservationRepository) Claim(ctx context.Context, id, studentID string, claimedAt time.Time) (bool, error) {
	const query = `UPDATE reservations SET student_id = $2, claimed_at = $3
WHERE id = $1 AND student_id IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, studentID, claimedAt)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim reservation: %w", err)
	}
	return affected > 0, nil
}

// ListByAvailability returns a window's slots ordered by start time.
func (r *ReservationRepository) ListByAvailability(ctx context.Context, availabilityID string) ([]models.ReservationDetail, error) {
	query := `SELECT ` + reservationDetailColumns + `
FROM reservations res
JOIN availabilities a ON a.id = res.availability_id
LEFT JOIN users u ON u.id = res.student_id
WHERE res.availability_id = $1
ORDER BY lower(res.period) ASC`
	var slots []models.ReservationDetail
	if err := r.db.SelectContext(ctx, &slots, query, availabilityID); err != nil {
		return nil, fmt.Errorf("list reservations by availability: %w", err)
	}
	return slots, nil
}

// ListByStudent returns every reservation held by one student.
func (r *ReservationRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ReservationDetail, error) {
	query := `SELECT ` + reservationDetailColumns + `
FROM reservations res
JOIN availabilities a ON a.id = res.availability_id
LEFT JOIN users u ON u.id = res.student_id
WHERE res.student_id = $1
ORDER BY lower(res.period) ASC`
	var slots []models.ReservationDetail
	if err := r.db.SelectContext(ctx, &slots, query, studentID); err != nil {
		return nil, fmt.Errorf("list reservations by student: %w", err)
	}
	return slots, nil
}

// ListByTeacher returns every slot across all of one teacher's windows,
// with room names for export rendering.
func (r *ReservationRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.ReservationExportRow, error) {
	const query = `SELECT res.id, res.period, res.student_id, res.claimed_at,
rm.name AS room_name, u.full_name AS student_name, a.blocked AS window_blocked
FROM reservations res
JOIN availabilities a ON a.id = res.availability_id
JOIN rooms rm ON rm.id = a.room_id
LEFT JOIN users u ON u.id = res.student_id
WHERE a.teacher_id = $1
ORDER BY lower(res.period) ASC`
	var rows []models.ReservationExportRow
	if err := r.db.SelectContext(ctx, &rows, query, teacherID); err != nil {
		return nil, fmt.Errorf("list reservations by teacher: %w", err)
	}
	return rows, nil
}

// Delete removes a single reservation row.
func (r *ReservationRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete reservation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete reservation: %w", err)
	}
	return affected > 0, nil
}
