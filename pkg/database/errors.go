package database

import (
	"strings"

	"github.com/dealerflow/dealerflow-backend/pkg/errors"
	"github.com/lib/pq"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "assignment_status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: active, inactive, suspended",
		})

	case strings.Contains(constraint, "entry_status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: active, complete, disputed",
		})

	case strings.Contains(constraint, "reminder_type_valid"):
		return errors.Validation(map[string]string{
			"reminder_type": "must be one of: first_reminder, second_reminder, auto_close",
		})

	case strings.Contains(constraint, "clock_out_after_clock_in"):
		return errors.Validation(map[string]string{
			"clock_out": "must be after clock in",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "one_open_entry_per_employee"):
		return "employee already has an open time entry"
	case strings.Contains(constraint, "assignment_employee_dealership"):
		return "an assignment for this employee and dealership already exists"
	default:
		return "a record with these values already exists"
	}
}
