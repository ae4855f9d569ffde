package models

import "time"

// Availability is a teacher's declared bookable window in one room,
// expanded into discrete slots. The persisted row stores the overall span
// as display metadata; the individual periods live 1:1 on the reservation
// rows, where overlap is enforced. Periods is populated by the generator
// (before persistence) or by joining the window's reservations (after).
type Availability struct {
	ID                  string    `db:"id" json:"id"`
	TeacherID           string    `db:"teacher_id" json:"teacher_id"`
	RoomID              string    `db:"room_id" json:"room_id"`
	Span                Period    `db:"span" json:"-"`
	SlotDurationMinutes int       `db:"slot_duration_minutes" json:"slot_duration_minutes"`
	Blocked             bool      `db:"blocked" json:"blocked"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`

	Periods []Period `db:"-" json:"-"`
}

// AvailabilityDetail is an availability row joined with teacher and room
// names for read-model construction.
type AvailabilityDetail struct {
	Availability
	TeacherName string `db:"teacher_name" json:"-"`
	RoomName    string `db:"room_name" json:"-"`
}

// AvailabilityReadModel is the API projection of a window. Start/end dates
// and times are derived from the min/max period bounds converted to the
// configured zone; they are never stored.
type AvailabilityReadModel struct {
	ID                  string                 `json:"id"`
	TeacherName         string                 `json:"teacher_name"`
	RoomName            string                 `json:"room_name"`
	StartDate           string                 `json:"start_date"`
	EndDate             string                 `json:"end_date"`
	StartTime           string                 `json:"start_time"`
	EndTime             string                 `json:"end_time"`
	SlotDurationMinutes int                    `json:"slot_duration_minutes"`
	SlotCount           int                    `json:"slot_count"`
	ReservedCount       int                    `json:"reserved_count"`
	Blocked             bool                   `json:"blocked"`
	Reservations        []ReservationReadModel `json:"reservations,omitempty"`
}
