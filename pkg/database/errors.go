package database

import (
	"strings"

	"github.com/lib/pq"

	"github.com/attendtrack/attendance-backend/pkg/errors"
)

// Constraint names referenced by the schema in migrations.go.
const (
	ConstraintUserEmail       = "users_email_key"
	ConstraintRecordPerDay    = "attendance_records_user_day_key"
	ConstraintNotesLength     = "attendance_records_notes_length"
	ConstraintRecordUserFKey  = "attendance_records_user_id_fkey"
	ConstraintCheckoutOrdered = "attendance_records_checkout_after_checkin"
)

// MapPQError converts a PostgreSQL error to an AppError.
// Returns nil if the error is not a pq.Error or has no specific mapping.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case "23514":
		return mapCheckConstraint(pqErr)

	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	case "23503":
		return errors.BadRequest("referenced record does not exist")

	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{col: "must not be empty"})

	default:
		return nil
	}
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	switch {
	case strings.Contains(pqErr.Constraint, "notes_length"):
		return errors.Validation(map[string]string{"notes": "combined notes are too long"})
	case strings.Contains(pqErr.Constraint, "checkout_after_checkin"):
		return errors.BadRequest("check-out cannot precede check-in")
	default:
		return errors.BadRequest("data validation failed: " + pqErr.Constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	switch {
	case strings.Contains(pqErr.Constraint, "user_day"):
		return "already checked in today"
	case strings.Contains(pqErr.Constraint, "email"):
		return "a user with this email already exists"
	default:
		return "a record with these values already exists"
	}
}
