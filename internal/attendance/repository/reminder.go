package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/dealerflow/dealerflow-backend/pkg/database"
	"github.com/google/uuid"
)

// Reminder type values, in escalation order
const (
	ReminderTypeFirst     = "first_reminder"
	ReminderTypeSecond    = "second_reminder"
	ReminderTypeAutoClose = "auto_close"
)

// PunchOutReminder is one reminder sent for an open time entry. Append-only;
// the unique (entry, type) constraint prevents duplicate stages.
type PunchOutReminder struct {
	ID                string    `db:"id" json:"id"`
	TimeEntryID       string    `db:"time_entry_id" json:"time_entry_id"`
	ReminderType      string    `db:"reminder_type" json:"reminder_type"`
	MinutesOverdue    int       `db:"minutes_overdue" json:"minutes_overdue"`
	SentAt            time.Time `db:"sent_at" json:"sent_at"`
	EmployeeResponded bool      `db:"employee_responded" json:"employee_responded"`
}

// ReminderRepository handles punch-out reminder persistence
type ReminderRepository struct {
	db *database.DB
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(db *database.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Create records a reminder. A unique violation means another worker already
// recorded this stage; callers treat that as already-done, not a failure.
func (r *ReminderRepository) Create(ctx context.Context, reminder *PunchOutReminder) error {
	if reminder.ID == "" {
		reminder.ID = uuid.New().String()
	}
	if reminder.SentAt.IsZero() {
		reminder.SentAt = time.Now().UTC()
	}

	query := `
		INSERT INTO punch_out_reminders (
			id, time_entry_id, reminder_type, minutes_overdue, sent_at
		) VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		reminder.ID, reminder.TimeEntryID, reminder.ReminderType,
		reminder.MinutesOverdue, reminder.SentAt,
	)
	return err
}

// CountForEntry counts the escalation reminders already sent for an entry.
// Auto-close records are not reminders and are excluded from the count.
func (r *ReminderRepository) CountForEntry(ctx context.Context, timeEntryID string) (int, error) {
	var count int

	query := `
		SELECT COUNT(*)
		FROM punch_out_reminders
		WHERE time_entry_id = $1 AND reminder_type != $2
	`
	if err := r.db.GetContext(ctx, &count, query, timeEntryID, ReminderTypeAutoClose); err != nil {
		return 0, err
	}

	return count, nil
}

// ListForEntry lists all reminders sent for an entry, oldest first
func (r *ReminderRepository) ListForEntry(ctx context.Context, timeEntryID string) ([]*PunchOutReminder, error) {
	var reminders []*PunchOutReminder

	query := `
		SELECT id, time_entry_id, reminder_type, minutes_overdue, sent_at, employee_responded
		FROM punch_out_reminders
		WHERE time_entry_id = $1
		ORDER BY sent_at
	`
	if err := r.db.SelectContext(ctx, &reminders, query, timeEntryID); err != nil {
		return nil, err
	}

	return reminders, nil
}

// MarkResponded records that the employee acted on a reminder
func (r *ReminderRepository) MarkResponded(ctx context.Context, id string) error {
	query := `
		UPDATE punch_out_reminders
		SET employee_responded = true
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
