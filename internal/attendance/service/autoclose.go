package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dealerflow/dealerflow-backend/internal/attendance/events"
	"github.com/dealerflow/dealerflow-backend/internal/attendance/repository"
	"github.com/dealerflow/dealerflow-backend/internal/attendance/schedule"
	"github.com/dealerflow/dealerflow-backend/pkg/config"
	"github.com/dealerflow/dealerflow-backend/pkg/logger"
)

// Overdue actions, in escalation order
const (
	ActionFirstReminder  = "first_reminder"
	ActionSecondReminder = "second_reminder"
	ActionAutoClose      = "auto_close"
	ActionNone           = "none"
)

const autoCloseReason = "shift_end_exceeded"

// OverdueAction is one open entry the scanner classified as needing action
type OverdueAction struct {
	TimeEntryID    string    `json:"time_entry_id"`
	EmployeeID     string    `json:"employee_id"`
	DealershipID   string    `json:"dealership_id"`
	MinutesOverdue int       `json:"minutes_overdue"`
	Action         string    `json:"action"`
	ReminderCount  int       `json:"reminder_count"`
	ShiftEnd       time.Time `json:"shift_end"`
}

// thresholds are the resolved escalation minutes for one entry
type thresholds struct {
	first     int
	second    int
	autoClose int
}

// AutoCloseService finds forgotten punch-outs and escalates them through
// reminders to a forced close. The find step is read-only and advisory;
// only Execute mutates, and every mutation is guarded so re-running a scan
// is safe.
type AutoCloseService struct {
	entries     *repository.TimeEntryRepository
	reminders   *repository.ReminderRepository
	dealerships *repository.DealershipRepository
	overtime    *OvertimeService
	publisher   *events.AttendanceEventPublisher
	logger      *logger.Logger

	defaults  config.AttendanceConfig
	now       func() time.Time
}

// NewAutoCloseService creates a new auto-close service
func NewAutoCloseService(
	entries *repository.TimeEntryRepository,
	reminders *repository.ReminderRepository,
	dealerships *repository.DealershipRepository,
	overtime *OvertimeService,
	publisher *events.AttendanceEventPublisher,
	cfg *config.AttendanceConfig,
	log *logger.Logger,
) *AutoCloseService {
	return &AutoCloseService{
		entries:     entries,
		reminders:   reminders,
		dealerships: dealerships,
		overtime:    overtime,
		publisher:   publisher,
		logger:      log.WithComponent("autoclose"),
		defaults:    *cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// minutesPastShiftEnd reports how many whole minutes now is past shiftEnd.
// ended is false for any instant before shift end, including the final
// partial minute, which integer truncation would otherwise round to zero.
func minutesPastShiftEnd(now, shiftEnd time.Time) (minutes int, ended bool) {
	overdue := now.Sub(shiftEnd)
	if overdue < 0 {
		return 0, false
	}
	return int(overdue.Minutes()), true
}

// decideAction classifies one overdue entry. The auto-close threshold is
// checked first so a long-abandoned entry gets closed even when no
// reminders were ever sent, e.g. after the scanner was down.
func decideAction(minutesOverdue, reminderCount int, t thresholds) string {
	switch {
	case minutesOverdue >= t.autoClose:
		return ActionAutoClose
	case reminderCount == 0 && minutesOverdue >= t.first:
		return ActionFirstReminder
	case reminderCount == 1 && minutesOverdue >= t.second:
		return ActionSecondReminder
	default:
		return ActionNone
	}
}

// resolveThresholds picks each escalation threshold from the assignment
// override, then the dealership settings, then the service defaults.
func (s *AutoCloseService) resolveThresholds(entry *repository.OpenEntryWithSchedule, settings *repository.DealershipSettings) thresholds {
	t := thresholds{
		first:     s.defaults.DefaultFirstReminderMinutes,
		second:    s.defaults.DefaultSecondReminderMinutes,
		autoClose: s.defaults.DefaultAutoCloseMinutes,
	}

	if settings != nil {
		t.first = settings.FirstReminderMinutes
		t.second = settings.SecondReminderMinutes
		t.autoClose = settings.AutoCloseMinutes
	}

	if entry.FirstReminderMinutes != nil {
		t.first = *entry.FirstReminderMinutes
	}
	if entry.SecondReminderMinutes != nil {
		t.second = *entry.SecondReminderMinutes
	}
	if entry.AutoCloseMinutes != nil {
		t.autoClose = *entry.AutoCloseMinutes
	}

	return t
}

// FindActionable classifies a dealership's open entries. Read-only: running
// it never changes state, so it can be re-run on any cadence and from
// multiple workers.
func (s *AutoCloseService) FindActionable(ctx context.Context, dealershipID string) ([]*OverdueAction, error) {
	open, err := s.entries.ListOpenEntriesWithSchedule(ctx, dealershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open entries: %w", err)
	}
	if len(open) == 0 {
		return nil, nil
	}

	settings, err := s.dealerships.GetSettings(ctx, dealershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dealership settings: %w", err)
	}
	loc := resolveLocation(s.logger, settings, s.defaults.DefaultTimezone)

	now := s.now()
	var actions []*OverdueAction

	for _, entry := range open {
		if entry.ShiftEnd == nil {
			continue
		}

		shiftEnd, err := schedule.ShiftEndOn(entry.ClockIn, *entry.ShiftEnd, loc)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("time_entry_id", entry.ID).
				Str("assignment_id", entry.AssignmentID).
				Msg("skipping entry with invalid shift end")
			continue
		}

		minutesOverdue, ended := minutesPastShiftEnd(now, shiftEnd)
		if !ended {
			continue // shift not yet ended
		}

		reminderCount, err := s.reminders.CountForEntry(ctx, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count reminders for entry %s: %w", entry.ID, err)
		}

		action := decideAction(minutesOverdue, reminderCount, s.resolveThresholds(entry, settings))
		if action == ActionNone {
			continue
		}

		actions = append(actions, &OverdueAction{
			TimeEntryID:    entry.ID,
			EmployeeID:     entry.EmployeeID,
			DealershipID:   entry.DealershipID,
			MinutesOverdue: minutesOverdue,
			Action:         action,
			ReminderCount:  reminderCount,
			ShiftEnd:       shiftEnd,
		})
	}

	return actions, nil
}

// Execute carries out one action from FindActionable. Reminder stages are
// deduplicated by the unique (entry, type) constraint; the close is guarded
// on entry status. A transient failure just means the next scan retries.
func (s *AutoCloseService) Execute(ctx context.Context, action *OverdueAction) error {
	switch action.Action {
	case ActionFirstReminder:
		return s.sendReminder(ctx, action, repository.ReminderTypeFirst)
	case ActionSecondReminder:
		return s.sendReminder(ctx, action, repository.ReminderTypeSecond)
	case ActionAutoClose:
		return s.autoClose(ctx, action)
	default:
		return fmt.Errorf("unknown overdue action %q", action.Action)
	}
}

func (s *AutoCloseService) sendReminder(ctx context.Context, action *OverdueAction, reminderType string) error {
	reminder := &repository.PunchOutReminder{
		TimeEntryID:    action.TimeEntryID,
		ReminderType:   reminderType,
		MinutesOverdue: action.MinutesOverdue,
	}

	if err := s.reminders.Create(ctx, reminder); err != nil {
		if isUniqueViolation(err) {
			// Another worker already recorded this stage
			return nil
		}
		return fmt.Errorf("failed to record %s: %w", reminderType, err)
	}

	s.logger.Info().
		Str("time_entry_id", action.TimeEntryID).
		Str("employee_id", action.EmployeeID).
		Str("reminder_type", reminderType).
		Int("minutes_overdue", action.MinutesOverdue).
		Msg("punch-out reminder recorded")

	s.publisher.PublishReminderSent(ctx, reminder, action.EmployeeID, action.DealershipID)
	return nil
}

func (s *AutoCloseService) autoClose(ctx context.Context, action *OverdueAction) error {
	entry, err := s.entries.GetEntryByID(ctx, action.TimeEntryID)
	if err != nil {
		return fmt.Errorf("failed to look up entry: %w", err)
	}
	if entry == nil || entry.ClockOut != nil {
		return nil // already closed, nothing to do
	}

	settings, err := s.dealerships.GetSettings(ctx, action.DealershipID)
	if err != nil {
		return fmt.Errorf("failed to load dealership settings: %w", err)
	}

	// Review is required by default; a dealership can opt out
	needsReview := true
	if settings != nil {
		needsReview = settings.AutoCloseNeedsReview
	}

	// Close at the scheduled shift end, not at scan time, so the recorded
	// hours reflect the schedule rather than how late the scanner ran
	clockOut := action.ShiftEnd
	if !clockOut.After(entry.ClockIn) {
		clockOut = s.now()
	}
	totalHours := workedHours(entry.ClockIn, clockOut, entry.BreakMinutes)

	closed, err := s.entries.AutoCloseEntry(ctx, entry.ID, clockOut, totalHours, autoCloseReason, needsReview)
	if err != nil {
		return fmt.Errorf("failed to auto-close entry: %w", err)
	}
	if !closed {
		return nil // raced with a manual clock-out
	}

	// Record the terminal stage so the audit trail shows the close
	record := &repository.PunchOutReminder{
		TimeEntryID:    action.TimeEntryID,
		ReminderType:   repository.ReminderTypeAutoClose,
		MinutesOverdue: action.MinutesOverdue,
	}
	if err := s.reminders.Create(ctx, record); err != nil && !isUniqueViolation(err) {
		s.logger.Error().Err(err).Str("time_entry_id", entry.ID).Msg("failed to record auto-close stage")
	}

	entry.ClockOut = &clockOut
	entry.TotalHours = totalHours
	entry.Status = repository.EntryStatusComplete
	entry.RequiresSupervisorReview = needsReview

	s.logger.Info().
		Str("time_entry_id", entry.ID).
		Str("employee_id", entry.EmployeeID).
		Int("minutes_overdue", action.MinutesOverdue).
		Bool("needs_review", needsReview).
		Msg("entry auto-closed")

	if err := s.overtime.RecalculateForEntry(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("time_entry_id", entry.ID).Msg("failed to recalculate week after auto-close")
	}

	s.publisher.PublishEntryAutoClosed(ctx, entry, action.MinutesOverdue)
	return nil
}

// ProcessDealership runs one scan pass for a dealership: find, then execute
// each action, continuing past individual failures.
func (s *AutoCloseService) ProcessDealership(ctx context.Context, dealershipID string) error {
	actions, err := s.FindActionable(ctx, dealershipID)
	if err != nil {
		return err
	}

	for _, action := range actions {
		if err := s.Execute(ctx, action); err != nil {
			s.logger.Error().Err(err).
				Str("time_entry_id", action.TimeEntryID).
				Str("action", action.Action).
				Msg("failed to execute overdue action")
		}
	}

	return nil
}
