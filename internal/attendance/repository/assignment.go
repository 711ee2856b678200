package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/dealerflow/dealerflow-backend/pkg/database"
	"github.com/google/uuid"
)

// Assignment status values
const (
	AssignmentStatusActive    = "active"
	AssignmentStatusInactive  = "inactive"
	AssignmentStatusSuspended = "suspended"
)

// Assignment binds an employee to one dealership with its shift schedule.
// Nil shift times model flexible-schedule assignments. The reminder and
// auto-close thresholds are per-assignment overrides; nil falls back to the
// dealership settings and then to the service defaults.
type Assignment struct {
	ID                       string     `db:"id" json:"id"`
	EmployeeID               string     `db:"employee_id" json:"employee_id"`
	DealershipID             string     `db:"dealership_id" json:"dealership_id"`
	Status                   string     `db:"status" json:"status"`
	ShiftStart               *string    `db:"shift_start" json:"shift_start,omitempty"`
	ShiftEnd                 *string    `db:"shift_end" json:"shift_end,omitempty"`
	EarlyPunchAllowedMinutes *int       `db:"early_punch_allowed_minutes" json:"early_punch_allowed_minutes,omitempty"`
	LatePunchGraceMinutes    *int       `db:"late_punch_grace_minutes" json:"late_punch_grace_minutes,omitempty"`
	RequiredBreakMinutes     int        `db:"required_break_minutes" json:"required_break_minutes"`
	RequireFaceValidation    bool       `db:"require_face_validation" json:"require_face_validation"`
	AutoCloseEnabled         bool       `db:"auto_close_enabled" json:"auto_close_enabled"`
	FirstReminderMinutes     *int       `db:"first_reminder_minutes" json:"first_reminder_minutes,omitempty"`
	SecondReminderMinutes    *int       `db:"second_reminder_minutes" json:"second_reminder_minutes,omitempty"`
	AutoCloseMinutes         *int       `db:"auto_close_minutes" json:"auto_close_minutes,omitempty"`
	CreatedAt                time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at" json:"updated_at"`
}

// AssignmentRepository handles assignment persistence
type AssignmentRepository struct {
	db *database.DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *database.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create creates a new assignment
func (r *AssignmentRepository) Create(ctx context.Context, a *Assignment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = AssignmentStatusActive
	}

	query := `
		INSERT INTO assignments (
			id, employee_id, dealership_id, status, shift_start, shift_end,
			early_punch_allowed_minutes, late_punch_grace_minutes,
			required_break_minutes, require_face_validation, auto_close_enabled,
			first_reminder_minutes, second_reminder_minutes, auto_close_minutes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query,
		a.ID, a.EmployeeID, a.DealershipID, a.Status, a.ShiftStart, a.ShiftEnd,
		a.EarlyPunchAllowedMinutes, a.LatePunchGraceMinutes,
		a.RequiredBreakMinutes, a.RequireFaceValidation, a.AutoCloseEnabled,
		a.FirstReminderMinutes, a.SecondReminderMinutes, a.AutoCloseMinutes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

// GetByID gets an assignment by ID
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*Assignment, error) {
	var a Assignment

	query := `
		SELECT id, employee_id, dealership_id, status, shift_start, shift_end,
		       early_punch_allowed_minutes, late_punch_grace_minutes,
		       required_break_minutes, require_face_validation, auto_close_enabled,
		       first_reminder_minutes, second_reminder_minutes, auto_close_minutes,
		       created_at, updated_at
		FROM assignments
		WHERE id = $1
	`
	err := r.db.GetContext(ctx, &a, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// GetByEmployeeAndDealership gets the assignment binding an employee to a
// dealership, regardless of status. The validator needs the status itself to
// distinguish "not assigned" from "assigned but inactive".
func (r *AssignmentRepository) GetByEmployeeAndDealership(ctx context.Context, employeeID, dealershipID string) (*Assignment, error) {
	var a Assignment

	query := `
		SELECT id, employee_id, dealership_id, status, shift_start, shift_end,
		       early_punch_allowed_minutes, late_punch_grace_minutes,
		       required_break_minutes, require_face_validation, auto_close_enabled,
		       first_reminder_minutes, second_reminder_minutes, auto_close_minutes,
		       created_at, updated_at
		FROM assignments
		WHERE employee_id = $1 AND dealership_id = $2
	`
	err := r.db.GetContext(ctx, &a, query, employeeID, dealershipID)
	if err == sql.ErrNoRows {
		return nil, nil // No assignment is not an error
	}
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// ListByEmployee lists all assignments held by an employee
func (r *AssignmentRepository) ListByEmployee(ctx context.Context, employeeID string) ([]*Assignment, error) {
	var assignments []*Assignment

	query := `
		SELECT id, employee_id, dealership_id, status, shift_start, shift_end,
		       early_punch_allowed_minutes, late_punch_grace_minutes,
		       required_break_minutes, require_face_validation, auto_close_enabled,
		       first_reminder_minutes, second_reminder_minutes, auto_close_minutes,
		       created_at, updated_at
		FROM assignments
		WHERE employee_id = $1
		ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &assignments, query, employeeID); err != nil {
		return nil, err
	}

	return assignments, nil
}

// UpdateStatus changes the assignment status. Assignments are never
// physically deleted; deactivation is a status change.
func (r *AssignmentRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE assignments
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}
