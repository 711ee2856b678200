package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/dealerflow/dealerflow-backend/pkg/database"
	"github.com/google/uuid"
)

// TimeEntry status values
const (
	EntryStatusActive   = "active"
	EntryStatusComplete = "complete"
	EntryStatusDisputed = "disputed"
)

// TimeEntry represents one punch-in/punch-out pair. ClockOut is nil exactly
// while the entry is open (status active). The regular/overtime split is
// owned by the weekly overtime recompute, never written directly by punches.
type TimeEntry struct {
	ID                       string     `db:"id" json:"id"`
	EmployeeID               string     `db:"employee_id" json:"employee_id"`
	DealershipID             string     `db:"dealership_id" json:"dealership_id"`
	AssignmentID             string     `db:"assignment_id" json:"assignment_id"`
	ClockIn                  time.Time  `db:"clock_in" json:"clock_in"`
	ClockOut                 *time.Time `db:"clock_out" json:"clock_out,omitempty"`
	Status                   string     `db:"status" json:"status"`
	BreakMinutes             int        `db:"break_minutes" json:"break_minutes"`
	TotalHours               float64    `db:"total_hours" json:"total_hours"`
	RegularHours             float64    `db:"regular_hours" json:"regular_hours"`
	OvertimeHours            float64    `db:"overtime_hours" json:"overtime_hours"`
	AutoCloseReason          *string    `db:"auto_close_reason" json:"auto_close_reason,omitempty"`
	RequiresSupervisorReview bool       `db:"requires_supervisor_review" json:"requires_supervisor_review"`
	DisputeReason            *string    `db:"dispute_reason" json:"dispute_reason,omitempty"`
	KioskID                  *string    `db:"kiosk_id" json:"kiosk_id,omitempty"`
	CreatedAt                time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at" json:"updated_at"`

	// Joined fields (populated by specific queries)
	EmployeeName *string `db:"employee_name" json:"employee_name,omitempty"`
}

// OpenEntryWithSchedule is an open time entry joined with the schedule
// fields the auto-close scanner needs to classify it.
type OpenEntryWithSchedule struct {
	ID                    string    `db:"id" json:"id"`
	EmployeeID            string    `db:"employee_id" json:"employee_id"`
	DealershipID          string    `db:"dealership_id" json:"dealership_id"`
	AssignmentID          string    `db:"assignment_id" json:"assignment_id"`
	ClockIn               time.Time `db:"clock_in" json:"clock_in"`
	ShiftEnd              *string   `db:"shift_end" json:"shift_end,omitempty"`
	AutoCloseEnabled      bool      `db:"auto_close_enabled" json:"auto_close_enabled"`
	FirstReminderMinutes  *int      `db:"first_reminder_minutes" json:"first_reminder_minutes,omitempty"`
	SecondReminderMinutes *int      `db:"second_reminder_minutes" json:"second_reminder_minutes,omitempty"`
	AutoCloseMinutes      *int      `db:"auto_close_minutes" json:"auto_close_minutes,omitempty"`
}

// TimeEntryRepository handles time entry persistence
type TimeEntryRepository struct {
	db *database.DB
}

// NewTimeEntryRepository creates a new time entry repository
func NewTimeEntryRepository(db *database.DB) *TimeEntryRepository {
	return &TimeEntryRepository{db: db}
}

// ============================================================================
// PUNCH PATH
// ============================================================================

// CreateEntry creates a new open time entry (punch-in). The partial unique
// index on open entries is the backstop for the one-open-punch invariant;
// a conflict here surfaces as a pq unique violation.
func (r *TimeEntryRepository) CreateEntry(ctx context.Context, entry *TimeEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Status == "" {
		entry.Status = EntryStatusActive
	}

	query := `
		INSERT INTO time_entries (
			id, employee_id, dealership_id, assignment_id,
			clock_in, status, break_minutes, kiosk_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.EmployeeID, entry.DealershipID, entry.AssignmentID,
		entry.ClockIn, entry.Status, entry.BreakMinutes, entry.KioskID,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)
}

// GetEntryByID gets a time entry by ID
func (r *TimeEntryRepository) GetEntryByID(ctx context.Context, id string) (*TimeEntry, error) {
	var entry TimeEntry

	query := `
		SELECT te.id, te.employee_id, te.dealership_id, te.assignment_id,
		       te.clock_in, te.clock_out, te.status, te.break_minutes,
		       te.total_hours, te.regular_hours, te.overtime_hours,
		       te.auto_close_reason, te.requires_supervisor_review,
		       te.dispute_reason, te.kiosk_id, te.created_at, te.updated_at,
		       ec.name AS employee_name
		FROM time_entries te
		LEFT JOIN employee_cache ec ON te.employee_id = ec.employee_id
		WHERE te.id = $1
	`
	err := r.db.GetContext(ctx, &entry, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// GetOpenEntry gets the employee's open entry at any dealership, if one
// exists. The one-open-punch invariant makes LIMIT 1 safe.
func (r *TimeEntryRepository) GetOpenEntry(ctx context.Context, employeeID string) (*TimeEntry, error) {
	var entry TimeEntry

	query := `
		SELECT id, employee_id, dealership_id, assignment_id,
		       clock_in, clock_out, status, break_minutes,
		       total_hours, regular_hours, overtime_hours,
		       auto_close_reason, requires_supervisor_review,
		       dispute_reason, kiosk_id, created_at, updated_at
		FROM time_entries
		WHERE employee_id = $1 AND clock_out IS NULL
		ORDER BY clock_in DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &entry, query, employeeID)
	if err == sql.ErrNoRows {
		return nil, nil // No open entry is not an error
	}
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// GetOpenEntryElsewhere gets an open entry for the employee at any
// dealership other than the given one. Enforces the global open-punch check
// across dealerships, not per-dealership.
func (r *TimeEntryRepository) GetOpenEntryElsewhere(ctx context.Context, employeeID, dealershipID string) (*TimeEntry, error) {
	var entry TimeEntry

	query := `
		SELECT id, employee_id, dealership_id, assignment_id,
		       clock_in, clock_out, status, break_minutes,
		       total_hours, regular_hours, overtime_hours,
		       auto_close_reason, requires_supervisor_review,
		       dispute_reason, kiosk_id, created_at, updated_at
		FROM time_entries
		WHERE employee_id = $1 AND dealership_id != $2 AND clock_out IS NULL
		ORDER BY clock_in DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &entry, query, employeeID, dealershipID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// CloseEntry records a clock-out on an open entry. Guarded on status so a
// concurrent auto-close and a late manual clock-out cannot both win.
func (r *TimeEntryRepository) CloseEntry(ctx context.Context, id string, clockOut time.Time, breakMinutes int, totalHours float64) error {
	query := `
		UPDATE time_entries
		SET clock_out = $2, break_minutes = $3, total_hours = $4,
		    status = $5, updated_at = NOW()
		WHERE id = $1 AND status = $6 AND clock_out IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, clockOut, breakMinutes, totalHours, EntryStatusComplete, EntryStatusActive)
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

// AutoCloseEntry force-closes an abandoned open entry. The status guard
// makes this idempotent: a second scanner pass (or a racing manual
// clock-out) finds no open row and affects nothing.
func (r *TimeEntryRepository) AutoCloseEntry(ctx context.Context, id string, clockOut time.Time, totalHours float64, reason string, requiresReview bool) (bool, error) {
	query := `
		UPDATE time_entries
		SET clock_out = $2, total_hours = $3, status = $4,
		    auto_close_reason = $5, requires_supervisor_review = $6,
		    updated_at = NOW()
		WHERE id = $1 AND status = $7 AND clock_out IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, clockOut, totalHours, EntryStatusComplete, reason, requiresReview, EntryStatusActive)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// ============================================================================
// EDITS & DISPUTES
// ============================================================================

// UpdateEntryTimes edits a completed entry's clock times and break duration.
// The caller recomputes the week afterwards.
func (r *TimeEntryRepository) UpdateEntryTimes(ctx context.Context, id string, clockIn time.Time, clockOut time.Time, breakMinutes int, totalHours float64) error {
	query := `
		UPDATE time_entries
		SET clock_in = $2, clock_out = $3, break_minutes = $4,
		    total_hours = $5, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, clockIn, clockOut, breakMinutes, totalHours)
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

// SetDisputed flags or clears the disputed status on a completed entry.
// Disputed entries drop out of overtime allocation until resolved.
func (r *TimeEntryRepository) SetDisputed(ctx context.Context, id string, disputed bool, reason *string) error {
	status := EntryStatusComplete
	if disputed {
		status = EntryStatusDisputed
	}

	query := `
		UPDATE time_entries
		SET status = $2, dispute_reason = $3, updated_at = NOW()
		WHERE id = $1 AND clock_out IS NOT NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, status, reason)
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

// ClearSupervisorReview marks an auto-closed entry as reviewed
func (r *TimeEntryRepository) ClearSupervisorReview(ctx context.Context, id string) error {
	query := `
		UPDATE time_entries
		SET requires_supervisor_review = false, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id)
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

// ============================================================================
// OVERTIME ALLOCATION
// ============================================================================

// ListWeekEntries fetches the completed, non-disputed entries for one
// employee/dealership week, ordered by clock-in. This is the allocation
// input set; disputed entries keep their last computed split untouched.
func (r *TimeEntryRepository) ListWeekEntries(ctx context.Context, employeeID, dealershipID string, weekStart, weekEnd time.Time) ([]*TimeEntry, error) {
	var entries []*TimeEntry

	query := `
		SELECT id, employee_id, dealership_id, assignment_id,
		       clock_in, clock_out, status, break_minutes,
		       total_hours, regular_hours, overtime_hours,
		       auto_close_reason, requires_supervisor_review,
		       dispute_reason, kiosk_id, created_at, updated_at
		FROM time_entries
		WHERE employee_id = $1 AND dealership_id = $2
		  AND clock_in >= $3 AND clock_in < $4
		  AND clock_out IS NOT NULL
		  AND status != $5
		ORDER BY clock_in ASC
	`
	if err := r.db.SelectContext(ctx, &entries, query, employeeID, dealershipID, weekStart, weekEnd, EntryStatusDisputed); err != nil {
		return nil, err
	}

	return entries, nil
}

// UpdateHoursSplit writes the recomputed regular/overtime split for one entry
func (r *TimeEntryRepository) UpdateHoursSplit(ctx context.Context, id string, regularHours, overtimeHours float64) error {
	query := `
		UPDATE time_entries
		SET regular_hours = $2, overtime_hours = $3, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, regularHours, overtimeHours)
	return err
}

// ============================================================================
// SCANNER & QUERIES
// ============================================================================

// ListOpenEntriesWithSchedule lists a dealership's open entries joined with
// the owning assignment's shift end and auto-close configuration. Entries
// whose assignment has auto-close disabled or no shift end are excluded at
// the query level.
func (r *TimeEntryRepository) ListOpenEntriesWithSchedule(ctx context.Context, dealershipID string) ([]*OpenEntryWithSchedule, error) {
	var entries []*OpenEntryWithSchedule

	query := `
		SELECT te.id, te.employee_id, te.dealership_id, te.assignment_id, te.clock_in,
		       a.shift_end, a.auto_close_enabled,
		       a.first_reminder_minutes, a.second_reminder_minutes, a.auto_close_minutes
		FROM time_entries te
		JOIN assignments a ON te.assignment_id = a.id
		WHERE te.dealership_id = $1
		  AND te.clock_out IS NULL
		  AND a.auto_close_enabled = true
		  AND a.shift_end IS NOT NULL
		ORDER BY te.clock_in
	`
	if err := r.db.SelectContext(ctx, &entries, query, dealershipID); err != nil {
		return nil, err
	}

	return entries, nil
}

// ListEntriesByDateRange lists an employee's entries at a dealership within
// [from, to), newest first. Used by the status and timesheet queries.
func (r *TimeEntryRepository) ListEntriesByDateRange(ctx context.Context, employeeID, dealershipID string, from, to time.Time) ([]*TimeEntry, error) {
	var entries []*TimeEntry

	query := `
		SELECT te.id, te.employee_id, te.dealership_id, te.assignment_id,
		       te.clock_in, te.clock_out, te.status, te.break_minutes,
		       te.total_hours, te.regular_hours, te.overtime_hours,
		       te.auto_close_reason, te.requires_supervisor_review,
		       te.dispute_reason, te.kiosk_id, te.created_at, te.updated_at,
		       ec.name AS employee_name
		FROM time_entries te
		LEFT JOIN employee_cache ec ON te.employee_id = ec.employee_id
		WHERE te.employee_id = $1 AND te.dealership_id = $2
		  AND te.clock_in >= $3 AND te.clock_in < $4
		ORDER BY te.clock_in DESC
	`
	if err := r.db.SelectContext(ctx, &entries, query, employeeID, dealershipID, from, to); err != nil {
		return nil, err
	}

	return entries, nil
}
