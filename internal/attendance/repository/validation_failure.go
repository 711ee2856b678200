package repository

import (
	"context"
	"time"

	"github.com/dealerflow/dealerflow-backend/pkg/database"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// Validation failure taxonomy. All of these are expected, non-exceptional
// outcomes of a punch attempt; none of them is a fault.
const (
	FailureNoAssignment         = "no_assignment"
	FailureAssignmentInactive   = "assignment_inactive"
	FailureAssignmentSuspended  = "assignment_suspended"
	FailureOpenPunchElsewhere   = "multi_dealership_open_punch"
	FailureWindowTooEarly       = "schedule_window_too_early"
	FailureWindowTooLate        = "schedule_window_too_late"
	FailureFaceRecognition      = "face_recognition_failed"
	FailureNoFaceEnrolled       = "no_face_enrolled"
	FailurePinIncorrect         = "pin_incorrect"
	FailureCameraError          = "camera_error"
)

// ValidationFailure is one denied punch attempt, recorded for audit and
// analytics. Append-only, never mutated.
type ValidationFailure struct {
	ID           string         `db:"id" json:"id"`
	EmployeeID   *string        `db:"employee_id" json:"employee_id,omitempty"`
	DealershipID string         `db:"dealership_id" json:"dealership_id"`
	FailureType  string         `db:"failure_type" json:"failure_type"`
	Reason       string         `db:"reason" json:"reason"`
	KioskID      *string        `db:"kiosk_id" json:"kiosk_id,omitempty"`
	Metadata     types.JSONText `db:"metadata" json:"metadata,omitempty"`
	OccurredAt   time.Time      `db:"occurred_at" json:"occurred_at"`
}

// ValidFailureType reports whether the type is part of the taxonomy
func ValidFailureType(failureType string) bool {
	switch failureType {
	case FailureNoAssignment, FailureAssignmentInactive, FailureAssignmentSuspended,
		FailureOpenPunchElsewhere, FailureWindowTooEarly, FailureWindowTooLate,
		FailureFaceRecognition, FailureNoFaceEnrolled, FailurePinIncorrect,
		FailureCameraError:
		return true
	}
	return false
}

// ValidationFailureRepository handles validation failure persistence
type ValidationFailureRepository struct {
	db *database.DB
}

// NewValidationFailureRepository creates a new validation failure repository
func NewValidationFailureRepository(db *database.DB) *ValidationFailureRepository {
	return &ValidationFailureRepository{db: db}
}

// Create appends a validation failure record
func (r *ValidationFailureRepository) Create(ctx context.Context, f *ValidationFailure) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.OccurredAt.IsZero() {
		f.OccurredAt = time.Now().UTC()
	}
	if len(f.Metadata) == 0 {
		f.Metadata = types.JSONText("{}")
	}

	query := `
		INSERT INTO validation_failures (
			id, employee_id, dealership_id, failure_type, reason, kiosk_id, metadata, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.EmployeeID, f.DealershipID, f.FailureType,
		f.Reason, f.KioskID, f.Metadata, f.OccurredAt,
	)
	return err
}

// ListByDealership lists recent failures for a dealership, newest first
func (r *ValidationFailureRepository) ListByDealership(ctx context.Context, dealershipID string, since time.Time, limit int) ([]*ValidationFailure, error) {
	var failures []*ValidationFailure

	query := `
		SELECT id, employee_id, dealership_id, failure_type, reason, kiosk_id, metadata, occurred_at
		FROM validation_failures
		WHERE dealership_id = $1 AND occurred_at >= $2
		ORDER BY occurred_at DESC
		LIMIT $3
	`
	if err := r.db.SelectContext(ctx, &failures, query, dealershipID, since, limit); err != nil {
		return nil, err
	}

	return failures, nil
}

// ListByEmployee lists recent failures for an employee, newest first
func (r *ValidationFailureRepository) ListByEmployee(ctx context.Context, employeeID string, since time.Time, limit int) ([]*ValidationFailure, error) {
	var failures []*ValidationFailure

	query := `
		SELECT id, employee_id, dealership_id, failure_type, reason, kiosk_id, metadata, occurred_at
		FROM validation_failures
		WHERE employee_id = $1 AND occurred_at >= $2
		ORDER BY occurred_at DESC
		LIMIT $3
	`
	if err := r.db.SelectContext(ctx, &failures, query, employeeID, since, limit); err != nil {
		return nil, err
	}

	return failures, nil
}
