package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unilab/slotbook-api/internal/models"
)

// AvailabilityRepository manages availability windows and their slot rows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository builds repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

const availabilityDetailColumns = `
a.id, a.teacher_id, a.room_id, a.span, a.slot_duration_minutes, a.blocked, a.created_at, a.updated_at,
u.full_name AS teacher_name, r.name AS room_name`

// CreateWithSlots persists a window and its unclaimed reservation rows in
// one transaction. Either every row lands or none do; constraint
// violations surface as the driver error for the caller to interpret.
func (r *AvailabilityRepository) CreateWithSlots(ctx context.Context, window *models.Availability, slots []models.Reservation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin availability transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	window.CreatedAt = now
	window.UpdatedAt = now

	const insertWindow = `
INSERT INTO availabilities (id, teacher_id, room_id, span, slot_duration_minutes, blocked, created_at, updated_at)
VALUES (:id, :teacher_id, :room_id, :span, :slot_duration_minutes, :blocked, :created_at, :updated_at)`

	if _, err := tx.NamedExecContext(ctx, insertWindow, window); err != nil {
		return err
	}

	const insertSlot = `
INSERT INTO reservations (id, availability_id, teacher_id, room_id, period, student_id, claimed_at, created_at)
VALUES (:id, :availability_id, :teacher_id, :room_id, :period, :student_id, :claimed_at, :created_at)`

	for i := range slots {
		slot := &slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if slot.CreatedAt.IsZero() {
			slot.CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, insertSlot, slot); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit availability transaction: %w", err)
	}
	return nil
}

// FindByID loads a bare window row.
func (r *AvailabilityRepository) FindByID(ctx context.Context, id string) (*models.Availability, error) {
	const query = `SELECT id, teacher_id, room_id, span, slot_duration_minutes, blocked, created_at, updated_at
FROM availabilities WHERE id = $1`
	var window models.Availability
	if err := r.db.GetContext(ctx, &window, query, id); err != nil {
		return nil, err
	}
	return &window, nil
}

// FindDetailByID loads a window joined with teacher and room names.
func (r *AvailabilityRepository) FindDetailByID(ctx context.Context, id string) (*models.AvailabilityDetail, error) {
	query := `SELECT ` + availabilityDetailColumns + `
FROM availabilities a
JOIN users u ON u.id = a.teacher_id
JOIN rooms r ON r.id = a.room_id
WHERE a.id = $1`
	var detail models.AvailabilityDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByTeacher returns all windows declared by one teacher, newest first.
func (r *AvailabilityRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.AvailabilityDetail, error) {
	query := `SELECT ` + availabilityDetailColumns + `
FROM availabilities a
JOIN users u ON u.id = a.teacher_id
JOIN rooms r ON r.id = a.room_id
WHERE a.teacher_id = $1
ORDER BY lower(a.span) ASC`
	var windows []models.AvailabilityDetail
	if err := r.db.SelectContext(ctx, &windows, query, teacherID); err != nil {
		return nil, fmt.Errorf("list availabilities by teacher: %w", err)
	}
	return windows, nil
}

// ListUnblocked returns every unblocked window system-wide.
func (r *AvailabilityRepository) ListUnblocked(ctx context.Context) ([]models.AvailabilityDetail, error) {
	query := `SELECT ` + availabilityDetailColumns + `
FROM availabilities a
JOIN users u ON u.id = a.teacher_id
JOIN rooms r ON r.id = a.room_id
WHERE a.blocked = FALSE
ORDER BY lower(a.span) ASC`
	var windows []models.AvailabilityDetail
	if err := r.db.SelectContext(ctx, &windows, query); err != nil {
		return nil, fmt.Errorf("list unblocked availabilities: %w", err)
	}
	return windows, nil
}

// SetBlocked flips the blocked flag. Returns false when no row matched.
func (r *AvailabilityRepository) SetBlocked(ctx context.Context, id string, blocked bool) (bool, error) {
	const query = `UPDATE availabilities SET blocked = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, blocked, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set availability blocked: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set availability blocked: %w", err)
	}
	return affected > 0, nil
}

// Delete removes a window; its reservations cascade at the database level.
func (r *AvailabilityRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM availabilities WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete availability: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete availability: %w", err)
	}
	return affected > 0, nil
}
