package models

import "time"

// Reservation is the atomic bookable unit: one slot of its owning
// availability window. StudentID is nil while the slot is unclaimed and is
// written exactly once by a successful claim. TeacherID and RoomID are
// denormalized from the window so the per-slot exclusion constraint can
// reject same-room double bookings across windows.
type Reservation struct {
	ID             string     `db:"id" json:"id"`
	AvailabilityID string     `db:"availability_id" json:"availability_id"`
	TeacherID      string     `db:"teacher_id" json:"-"`
	RoomID         string     `db:"room_id" json:"-"`
	Period         Period     `db:"period" json:"-"`
	StudentID      *string    `db:"student_id" json:"student_id,omitempty"`
	ClaimedAt      *time.Time `db:"claimed_at" json:"claimed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// ReservationDetail joins a reservation with its window state and the
// claimant's name, loaded in one query instead of object-graph traversal.
type ReservationDetail struct {
	Reservation
	WindowBlocked   bool    `db:"window_blocked" json:"-"`
	WindowTeacherID string  `db:"window_teacher_id" json:"-"`
	StudentName     *string `db:"student_name" json:"-"`
}

// ReservationExportRow is the flattened projection used when rendering a
// teacher's reservation export.
type ReservationExportRow struct {
	ID            string     `db:"id"`
	Period        Period     `db:"period"`
	StudentID     *string    `db:"student_id"`
	ClaimedAt     *time.Time `db:"claimed_at"`
	RoomName      string     `db:"room_name"`
	StudentName   *string    `db:"student_name"`
	WindowBlocked bool       `db:"window_blocked"`
}

// ReservationReadModel is the API projection of a slot with local times.
type ReservationReadModel struct {
	ID          string  `json:"id"`
	StartLocal  string  `json:"start_local"`
	EndLocal    string  `json:"end_local"`
	Claimed     bool    `json:"claimed"`
	StudentName *string `json:"student_name,omitempty"`
}
