package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dealerflow/dealerflow-backend/internal/attendance/events"
	"github.com/dealerflow/dealerflow-backend/internal/attendance/repository"
	"github.com/dealerflow/dealerflow-backend/internal/attendance/schedule"
	"github.com/dealerflow/dealerflow-backend/pkg/config"
	"github.com/dealerflow/dealerflow-backend/pkg/errors"
	"github.com/dealerflow/dealerflow-backend/pkg/logger"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// PunchDecision is the structured outcome of a punch-in validation. A denial
// is an expected outcome, not an error: the validator always returns a
// decision, never raises for taxonomy reasons.
type PunchDecision struct {
	Allowed               bool    `json:"allowed"`
	ValidationType        string  `json:"validation_type,omitempty"`
	Reason                string  `json:"reason,omitempty"`
	AssignmentID          string  `json:"assignment_id,omitempty"`
	MinutesUntilAllowed   *int    `json:"minutes_until_allowed,omitempty"`
	RequireFaceValidation bool    `json:"require_face_validation"`
}

// PunchService validates and executes punches
type PunchService struct {
	assignments *repository.AssignmentRepository
	entries     *repository.TimeEntryRepository
	failures    *repository.ValidationFailureRepository
	dealerships *repository.DealershipRepository
	overtime    *OvertimeService
	publisher   *events.AttendanceEventPublisher
	logger      *logger.Logger

	defaultTZ  string
	punchLocks *keyedMutex
	now        func() time.Time
}

// NewPunchService creates a new punch service
func NewPunchService(
	assignments *repository.AssignmentRepository,
	entries *repository.TimeEntryRepository,
	failures *repository.ValidationFailureRepository,
	dealerships *repository.DealershipRepository,
	overtime *OvertimeService,
	publisher *events.AttendanceEventPublisher,
	cfg *config.AttendanceConfig,
	log *logger.Logger,
) *PunchService {
	return &PunchService{
		assignments: assignments,
		entries:     entries,
		failures:    failures,
		dealerships: dealerships,
		overtime:    overtime,
		publisher:   publisher,
		logger:      log.WithComponent("punch"),
		defaultTZ:   cfg.DefaultTimezone,
		punchLocks:  newKeyedMutex(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ValidatePunchIn decides whether a punch-in is allowed right now. Each step
// short-circuits on failure; every denial is recorded and published as a
// side effect that never blocks the decision itself.
func (s *PunchService) ValidatePunchIn(ctx context.Context, employeeID, dealershipID, kioskID string, now time.Time) (*PunchDecision, error) {
	assignment, err := s.assignments.GetByEmployeeAndDealership(ctx, employeeID, dealershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up assignment: %w", err)
	}
	if assignment == nil {
		return s.deny(ctx, employeeID, dealershipID, kioskID,
			repository.FailureNoAssignment, "not assigned to this dealership", nil), nil
	}

	switch assignment.Status {
	case repository.AssignmentStatusActive:
		// proceed
	case repository.AssignmentStatusInactive:
		return s.deny(ctx, employeeID, dealershipID, kioskID,
			repository.FailureAssignmentInactive, "assignment inactive, contact your manager", nil), nil
	case repository.AssignmentStatusSuspended:
		return s.deny(ctx, employeeID, dealershipID, kioskID,
			repository.FailureAssignmentSuspended, "assignment suspended", nil), nil
	default:
		return nil, errors.Configuration(fmt.Sprintf("assignment %s has unknown status %q", assignment.ID, assignment.Status))
	}

	open, err := s.entries.GetOpenEntryElsewhere(ctx, employeeID, dealershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to check open punches: %w", err)
	}
	if open != nil {
		return s.deny(ctx, employeeID, dealershipID, kioskID,
			repository.FailureOpenPunchElsewhere, "open punch at another dealership, clock out there first", nil), nil
	}

	if assignment.ShiftStart != nil {
		window, err := schedule.Compute(assignment.ShiftStart, assignment.EarlyPunchAllowedMinutes, assignment.LatePunchGraceMinutes)
		if err != nil {
			return nil, errors.Configuration(fmt.Sprintf("assignment %s has an invalid shift schedule: %v", assignment.ID, err))
		}

		settings, err := s.dealerships.GetSettings(ctx, dealershipID)
		if err != nil {
			return nil, fmt.Errorf("failed to load dealership settings: %w", err)
		}
		loc := resolveLocation(s.logger, settings, s.defaultTZ)
		timeOfDay := schedule.TimeOfDay(now, loc)

		if window.TooEarly(timeOfDay) {
			wait := window.MinutesUntilOpen(timeOfDay)
			return s.deny(ctx, employeeID, dealershipID, kioskID,
				repository.FailureWindowTooEarly,
				fmt.Sprintf("too early to clock in, window opens in %d minutes", wait), &wait), nil
		}
		if window.TooLate(timeOfDay) {
			return s.deny(ctx, employeeID, dealershipID, kioskID,
				repository.FailureWindowTooLate, "too late to clock in for this shift", nil), nil
		}
	}

	return &PunchDecision{
		Allowed:               true,
		AssignmentID:          assignment.ID,
		RequireFaceValidation: assignment.RequireFaceValidation,
	}, nil
}

// deny builds a denial decision and records it best-effort
func (s *PunchService) deny(ctx context.Context, employeeID, dealershipID, kioskID, validationType, reason string, minutesUntilAllowed *int) *PunchDecision {
	s.recordFailure(ctx, employeeID, dealershipID, kioskID, validationType, reason, nil)
	s.publisher.PublishPunchDenied(ctx, employeeID, dealershipID, kioskID, validationType, reason)

	return &PunchDecision{
		Allowed:             false,
		ValidationType:      validationType,
		Reason:              reason,
		MinutesUntilAllowed: minutesUntilAllowed,
	}
}

// recordFailure appends a validation failure. Recording is independent of
// the decision: a write failure here is logged and swallowed so the kiosk
// still gets its answer.
func (s *PunchService) recordFailure(ctx context.Context, employeeID, dealershipID, kioskID, validationType, reason string, metadata types.JSONText) {
	failure := &repository.ValidationFailure{
		DealershipID: dealershipID,
		FailureType:  validationType,
		Reason:       reason,
		Metadata:     metadata,
	}
	if employeeID != "" {
		failure.EmployeeID = &employeeID
	}
	if kioskID != "" {
		failure.KioskID = &kioskID
	}

	if err := s.failures.Create(ctx, failure); err != nil {
		s.logger.Error().Err(err).
			Str("employee_id", employeeID).
			Str("validation_type", validationType).
			Msg("failed to record validation failure")
	}
}

// LogValidationFailure records a kiosk-side failure (face, PIN, camera)
// that the engine itself cannot observe.
func (s *PunchService) LogValidationFailure(ctx context.Context, employeeID, dealershipID, kioskID, validationType, reason string, metadata types.JSONText) error {
	if !repository.ValidFailureType(validationType) {
		return errors.BadRequest(fmt.Sprintf("unknown validation type %q", validationType))
	}

	s.recordFailure(ctx, employeeID, dealershipID, kioskID, validationType, reason, metadata)
	s.publisher.PublishPunchDenied(ctx, employeeID, dealershipID, kioskID, validationType, reason)
	return nil
}

// ClockIn validates and opens a time entry. Punches for one employee are
// serialized in-process; the partial unique index catches the cross-process
// race.
func (s *PunchService) ClockIn(ctx context.Context, employeeID, dealershipID, kioskID string, faceValidated bool) (*repository.TimeEntry, *PunchDecision, error) {
	s.punchLocks.Lock(employeeID)
	defer s.punchLocks.Unlock(employeeID)

	now := s.now()

	decision, err := s.ValidatePunchIn(ctx, employeeID, dealershipID, kioskID, now)
	if err != nil {
		return nil, nil, err
	}
	if !decision.Allowed {
		return nil, decision, nil
	}

	entry := &repository.TimeEntry{
		EmployeeID:   employeeID,
		DealershipID: dealershipID,
		AssignmentID: decision.AssignmentID,
		ClockIn:      now,
	}
	if kioskID != "" {
		entry.KioskID = &kioskID
	}

	if err := s.entries.CreateEntry(ctx, entry); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			// Lost the race against a concurrent punch-in
			return nil, nil, errors.Conflict("an open punch already exists for this employee")
		}
		return nil, nil, fmt.Errorf("failed to create time entry: %w", err)
	}

	s.logger.Info().
		Str("time_entry_id", entry.ID).
		Str("employee_id", employeeID).
		Str("dealership_id", dealershipID).
		Msg("employee clocked in")

	s.publisher.PublishClockIn(ctx, entry, faceValidated)

	return entry, decision, nil
}

// ClockOut closes the employee's open entry at the given dealership,
// deducts the assignment's required break, and recomputes the week.
func (s *PunchService) ClockOut(ctx context.Context, employeeID, dealershipID string) (*repository.TimeEntry, error) {
	s.punchLocks.Lock(employeeID)
	defer s.punchLocks.Unlock(employeeID)

	entry, err := s.entries.GetOpenEntry(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up open entry: %w", err)
	}
	if entry == nil {
		return nil, errors.NotFound("open time entry")
	}
	if entry.DealershipID != dealershipID {
		return nil, errors.Conflict("open punch belongs to another dealership")
	}

	assignment, err := s.assignments.GetByID(ctx, entry.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up assignment: %w", err)
	}

	now := s.now()
	breakMinutes := entry.BreakMinutes
	if breakMinutes == 0 && assignment != nil && assignment.RequiredBreakMinutes > 0 {
		// Required break is deducted automatically unless breaks were
		// already recorded on the entry
		if now.Sub(entry.ClockIn) > time.Duration(assignment.RequiredBreakMinutes)*time.Minute {
			breakMinutes = assignment.RequiredBreakMinutes
		}
	}

	totalHours := workedHours(entry.ClockIn, now, breakMinutes)

	if err := s.entries.CloseEntry(ctx, entry.ID, now, breakMinutes, totalHours); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Conflict("entry was already closed")
		}
		return nil, fmt.Errorf("failed to close entry: %w", err)
	}

	entry.ClockOut = &now
	entry.BreakMinutes = breakMinutes
	entry.TotalHours = totalHours
	entry.Status = repository.EntryStatusComplete

	s.logger.Info().
		Str("time_entry_id", entry.ID).
		Str("employee_id", employeeID).
		Float64("total_hours", totalHours).
		Msg("employee clocked out")

	if err := s.overtime.RecalculateForEntry(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("time_entry_id", entry.ID).Msg("failed to recalculate week after clock-out")
	}

	s.publisher.PublishClockOut(ctx, entry)

	return entry, nil
}

// UpdateEntryRequest is an edit to a completed entry's times or break
type UpdateEntryRequest struct {
	ClockIn      *time.Time `json:"clock_in,omitempty"`
	ClockOut     *time.Time `json:"clock_out,omitempty"`
	BreakMinutes *int       `json:"break_minutes,omitempty" validate:"omitempty,min=0"`
}

// UpdateEntry edits a completed entry and recomputes its week. Editing one
// day can shift the overtime attribution of every other day in the week.
func (s *PunchService) UpdateEntry(ctx context.Context, entryID string, req *UpdateEntryRequest) (*repository.TimeEntry, error) {
	entry, err := s.entries.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up entry: %w", err)
	}
	if entry == nil {
		return nil, errors.NotFound("time entry")
	}
	if entry.ClockOut == nil {
		return nil, errors.Conflict("cannot edit an open entry, clock out first")
	}

	previousClockIn := entry.ClockIn

	clockIn := entry.ClockIn
	clockOut := *entry.ClockOut
	breakMinutes := entry.BreakMinutes
	fields := map[string]any{}

	if req.ClockIn != nil {
		clockIn = *req.ClockIn
		fields["clock_in"] = clockIn
	}
	if req.ClockOut != nil {
		clockOut = *req.ClockOut
		fields["clock_out"] = clockOut
	}
	if req.BreakMinutes != nil {
		breakMinutes = *req.BreakMinutes
		fields["break_minutes"] = breakMinutes
	}
	if len(fields) == 0 {
		return entry, nil
	}

	if !clockOut.After(clockIn) {
		return nil, errors.BadRequest("clock_out must be after clock_in")
	}

	totalHours := workedHours(clockIn, clockOut, breakMinutes)

	if err := s.entries.UpdateEntryTimes(ctx, entryID, clockIn, clockOut, breakMinutes, totalHours); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("time entry")
		}
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}

	entry.ClockIn = clockIn
	entry.ClockOut = &clockOut
	entry.BreakMinutes = breakMinutes
	entry.TotalHours = totalHours

	// An edit can move the entry into another week; both weeks reallocate
	if err := s.overtime.RecalculateForMove(ctx, entry, previousClockIn); err != nil {
		s.logger.Error().Err(err).Str("time_entry_id", entryID).Msg("failed to recalculate week after edit")
	}

	s.publisher.PublishEntryUpdated(ctx, entryID, entry.EmployeeID, fields)

	return entry, nil
}

// SetDisputed flags or clears a dispute on a completed entry. The week is
// recomputed either way since disputed entries leave the allocation set.
func (s *PunchService) SetDisputed(ctx context.Context, entryID string, disputed bool, reason string) (*repository.TimeEntry, error) {
	entry, err := s.entries.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up entry: %w", err)
	}
	if entry == nil {
		return nil, errors.NotFound("time entry")
	}
	if entry.ClockOut == nil {
		return nil, errors.Conflict("cannot dispute an open entry")
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	if err := s.entries.SetDisputed(ctx, entryID, disputed, reasonPtr); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("time entry")
		}
		return nil, fmt.Errorf("failed to update dispute status: %w", err)
	}

	if disputed {
		entry.Status = repository.EntryStatusDisputed
	} else {
		entry.Status = repository.EntryStatusComplete
	}
	entry.DisputeReason = reasonPtr

	if err := s.overtime.RecalculateForEntry(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("time_entry_id", entryID).Msg("failed to recalculate week after dispute change")
	}

	s.publisher.PublishEntryDisputed(ctx, entryID, entry.EmployeeID, disputed, reason)

	return entry, nil
}

// ClearSupervisorReview signs off an auto-closed entry, removing it from the
// supervisor's review queue. The recorded times stay as the auto-close wrote
// them; a supervisor who disagrees edits the entry instead.
func (s *PunchService) ClearSupervisorReview(ctx context.Context, entryID string) error {
	if err := s.entries.ClearSupervisorReview(ctx, entryID); err != nil {
		if err == sql.ErrNoRows {
			return errors.NotFound("time entry")
		}
		return fmt.Errorf("failed to clear supervisor review: %w", err)
	}

	s.logger.Info().Str("time_entry_id", entryID).Msg("supervisor review cleared")
	return nil
}

// EmployeeStatus is the current punch state of one employee at a dealership
type EmployeeStatus struct {
	EmployeeID string                  `json:"employee_id"`
	Status     string                  `json:"status"` // clocked_in or clocked_out
	OpenEntry  *repository.TimeEntry   `json:"open_entry,omitempty"`
	WeekHours  float64                 `json:"week_hours"`
	Entries    []*repository.TimeEntry `json:"entries,omitempty"`
}

// GetStatus returns the employee's current punch state plus this week's
// completed hours at the dealership.
func (s *PunchService) GetStatus(ctx context.Context, employeeID, dealershipID string) (*EmployeeStatus, error) {
	status := &EmployeeStatus{
		EmployeeID: employeeID,
		Status:     "clocked_out",
	}

	open, err := s.entries.GetOpenEntry(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up open entry: %w", err)
	}
	if open != nil {
		status.Status = "clocked_in"
		status.OpenEntry = open
	}

	settings, err := s.dealerships.GetSettings(ctx, dealershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dealership settings: %w", err)
	}
	loc := resolveLocation(s.logger, settings, s.defaultTZ)

	weekStart := NormalizeWeekStart(s.now(), loc)
	entries, err := s.entries.ListWeekEntries(ctx, employeeID, dealershipID, weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		return nil, fmt.Errorf("failed to list week entries: %w", err)
	}

	for _, e := range entries {
		status.WeekHours += e.TotalHours
	}
	status.WeekHours = roundHours(status.WeekHours)
	status.Entries = entries

	return status, nil
}

// ListEntries returns an employee's entries at a dealership within [from, to)
func (s *PunchService) ListEntries(ctx context.Context, employeeID, dealershipID string, from, to time.Time) ([]*repository.TimeEntry, error) {
	return s.entries.ListEntriesByDateRange(ctx, employeeID, dealershipID, from, to)
}
