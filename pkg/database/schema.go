package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements are applied in order at startup. The GiST exclusion
// constraints are the single source of truth for overlap-freedom: writers
// insert optimistically and treat SQLSTATE 23P01 as the authoritative
// conflict signal.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,

	`CREATE TABLE IF NOT EXISTS users (
		id            uuid PRIMARY KEY,
		email         text NOT NULL,
		password_hash text NOT NULL,
		full_name     text NOT NULL,
		role          text NOT NULL,
		active        boolean NOT NULL DEFAULT TRUE,
		created_at    timestamptz NOT NULL DEFAULT now(),
		updated_at    timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_unique ON users (LOWER(email))`,

	`CREATE TABLE IF NOT EXISTS rooms (
		id         uuid PRIMARY KEY,
		name       varchar(100) NOT NULL,
		number     integer NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS rooms_name_unique ON rooms (name)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS rooms_number_unique ON rooms (number)`,

	// span is display metadata (first slot start through last slot end);
	// overlap-freedom is enforced per slot on reservations.
	`CREATE TABLE IF NOT EXISTS availabilities (
		id                    uuid PRIMARY KEY,
		teacher_id            uuid NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		room_id               uuid NOT NULL REFERENCES rooms (id) ON DELETE CASCADE,
		span                  tstzrange NOT NULL,
		slot_duration_minutes integer NOT NULL CHECK (slot_duration_minutes > 0),
		blocked               boolean NOT NULL DEFAULT FALSE,
		created_at            timestamptz NOT NULL DEFAULT now(),
		updated_at            timestamptz NOT NULL DEFAULT now()
	)`,

	// teacher_id and room_id are denormalized from the window: the
	// per-slot exclusion below needs them on the row, and it keeps
	// disjoint daily hours inside one calendar span bookable.
	`CREATE TABLE IF NOT EXISTS reservations (
		id              uuid PRIMARY KEY,
		availability_id uuid NOT NULL REFERENCES availabilities (id) ON DELETE CASCADE,
		teacher_id      uuid NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		room_id         uuid NOT NULL REFERENCES rooms (id) ON DELETE CASCADE,
		period          tstzrange NOT NULL,
		student_id      uuid REFERENCES users (id) ON DELETE SET NULL,
		claimed_at      timestamptz,
		created_at      timestamptz NOT NULL DEFAULT now()
	)`,

	// A teacher never offers the same room twice at the same time, across
	// all of their windows. Enforced per slot, not per window span, so two
	// windows with interleaved daily hours coexist.
	`DO $$
	BEGIN
	  IF NOT EXISTS (
	    SELECT 1 FROM pg_constraint WHERE conname = 'reservations_no_overlap_per_teacher_room'
	  ) THEN
	    ALTER TABLE reservations
	      ADD CONSTRAINT reservations_no_overlap_per_teacher_room
	      EXCLUDE USING gist (
	        teacher_id WITH =,
	        room_id    WITH =,
	        period     WITH &&
	      );
	  END IF;
	END$$`,

	// A student never holds two reservations for overlapping periods.
	`DO $$
	BEGIN
	  IF NOT EXISTS (
	    SELECT 1 FROM pg_constraint WHERE conname = 'reservations_student_no_overlap'
	  ) THEN
	    ALTER TABLE reservations
	      ADD CONSTRAINT reservations_student_no_overlap
	      EXCLUDE USING gist (
	        student_id WITH =,
	        period     WITH &&
	      )
	      WHERE (student_id IS NOT NULL);
	  END IF;
	END$$`,

	`DO $$
	BEGIN
	  IF NOT EXISTS (
	    SELECT 1 FROM pg_constraint WHERE conname = 'reservations_period_not_empty'
	  ) THEN
	    ALTER TABLE reservations
	      ADD CONSTRAINT reservations_period_not_empty
	      CHECK (NOT isempty(period));
	  END IF;
	END$$`,
}

// EnsureSchema creates tables and constraints if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
