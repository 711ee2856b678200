package events

import (
	"context"
	"time"

	"github.com/dealerflow/dealerflow-backend/internal/attendance/repository"
	"github.com/dealerflow/dealerflow-backend/pkg/logger"
	"github.com/dealerflow/dealerflow-backend/pkg/messaging"
)

// Broker is the minimal publishing contract, satisfied by
// messaging.Publisher and by the test mock.
type Broker interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// AttendanceEventPublisher publishes attendance events. Publishing is
// fire-and-forget relative to the write path: failures are logged, never
// propagated, so a broker outage cannot block punches.
type AttendanceEventPublisher struct {
	broker Broker
	logger *logger.Logger
}

// NewAttendanceEventPublisher creates a publisher bound to the attendance exchange
func NewAttendanceEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*AttendanceEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeAttendanceEvents, "attendance-service", log)
	if err != nil {
		return nil, err
	}

	return &AttendanceEventPublisher{
		broker: publisher,
		logger: log,
	}, nil
}

// NewAttendanceEventPublisherWithBroker creates a publisher over an existing broker
func NewAttendanceEventPublisherWithBroker(broker Broker, log *logger.Logger) *AttendanceEventPublisher {
	return &AttendanceEventPublisher{
		broker: broker,
		logger: log,
	}
}

// PublishClockIn publishes a clock-in event
func (p *AttendanceEventPublisher) PublishClockIn(ctx context.Context, entry *repository.TimeEntry, faceValidated bool) {
	data := messaging.PunchClockInEvent{
		TimeEntryID:   entry.ID,
		EmployeeID:    entry.EmployeeID,
		DealershipID:  entry.DealershipID,
		AssignmentID:  entry.AssignmentID,
		ClockIn:       entry.ClockIn,
		FaceValidated: faceValidated,
	}
	if entry.KioskID != nil {
		data.KioskID = *entry.KioskID
	}

	if err := p.broker.Publish(ctx, messaging.EventPunchClockIn, data); err != nil {
		p.logger.Error().Err(err).Str("time_entry_id", entry.ID).Msg("failed to publish clock-in event")
	}
}

// PublishClockOut publishes a clock-out event
func (p *AttendanceEventPublisher) PublishClockOut(ctx context.Context, entry *repository.TimeEntry) {
	if entry.ClockOut == nil {
		return
	}

	data := messaging.PunchClockOutEvent{
		TimeEntryID:       entry.ID,
		EmployeeID:        entry.EmployeeID,
		DealershipID:      entry.DealershipID,
		ClockIn:           entry.ClockIn,
		ClockOut:          *entry.ClockOut,
		TotalWorkMinutes:  int(entry.TotalHours * 60),
		TotalBreakMinutes: entry.BreakMinutes,
	}
	if entry.KioskID != nil {
		data.KioskID = *entry.KioskID
	}

	if err := p.broker.Publish(ctx, messaging.EventPunchClockOut, data); err != nil {
		p.logger.Error().Err(err).Str("time_entry_id", entry.ID).Msg("failed to publish clock-out event")
	}
}

// PublishPunchDenied publishes a denied punch attempt
func (p *AttendanceEventPublisher) PublishPunchDenied(ctx context.Context, employeeID, dealershipID, kioskID, validationType, reason string) {
	data := messaging.PunchDeniedEvent{
		EmployeeID:     employeeID,
		DealershipID:   dealershipID,
		ValidationType: validationType,
		Reason:         reason,
		KioskID:        kioskID,
	}

	if err := p.broker.Publish(ctx, messaging.EventPunchDenied, data); err != nil {
		p.logger.Error().Err(err).Str("employee_id", employeeID).Msg("failed to publish punch denied event")
	}
}

// PublishReminderSent publishes a reminder event for the notification transport
func (p *AttendanceEventPublisher) PublishReminderSent(ctx context.Context, reminder *repository.PunchOutReminder, employeeID, dealershipID string) {
	data := messaging.ReminderSentEvent{
		ReminderID:     reminder.ID,
		TimeEntryID:    reminder.TimeEntryID,
		EmployeeID:     employeeID,
		DealershipID:   dealershipID,
		ReminderType:   reminder.ReminderType,
		MinutesOverdue: reminder.MinutesOverdue,
		SentAt:         reminder.SentAt,
	}

	if err := p.broker.Publish(ctx, messaging.EventReminderSent, data); err != nil {
		p.logger.Error().Err(err).Str("time_entry_id", reminder.TimeEntryID).Msg("failed to publish reminder event")
	}
}

// PublishEntryAutoClosed publishes an auto-close event
func (p *AttendanceEventPublisher) PublishEntryAutoClosed(ctx context.Context, entry *repository.TimeEntry, minutesOverdue int) {
	if entry.ClockOut == nil {
		return
	}

	data := messaging.EntryAutoClosedEvent{
		TimeEntryID:    entry.ID,
		EmployeeID:     entry.EmployeeID,
		DealershipID:   entry.DealershipID,
		ClockOut:       *entry.ClockOut,
		MinutesOverdue: minutesOverdue,
		NeedsReview:    entry.RequiresSupervisorReview,
	}

	if err := p.broker.Publish(ctx, messaging.EventEntryAutoClosed, data); err != nil {
		p.logger.Error().Err(err).Str("time_entry_id", entry.ID).Msg("failed to publish auto-close event")
	}
}

// PublishOvertimeRecalculated publishes the result of a weekly recompute
func (p *AttendanceEventPublisher) PublishOvertimeRecalculated(ctx context.Context, employeeID, dealershipID string, weekStart time.Time, regularHours, overtimeHours float64, entriesInWeek int) {
	data := messaging.OvertimeRecalculatedEvent{
		EmployeeID:    employeeID,
		DealershipID:  dealershipID,
		WeekStart:     weekStart,
		RegularHours:  regularHours,
		OvertimeHours: overtimeHours,
		EntriesInWeek: entriesInWeek,
	}

	if err := p.broker.Publish(ctx, messaging.EventOvertimeRecalculated, data); err != nil {
		p.logger.Error().Err(err).Str("employee_id", employeeID).Msg("failed to publish overtime recalculated event")
	}
}

// PublishEntryUpdated publishes an entry edit event
func (p *AttendanceEventPublisher) PublishEntryUpdated(ctx context.Context, entryID, employeeID string, fields map[string]any) {
	data := messaging.EntryUpdatedEvent{
		TimeEntryID: entryID,
		EmployeeID:  employeeID,
		Fields:      fields,
	}

	if err := p.broker.Publish(ctx, messaging.EventEntryUpdated, data); err != nil {
		p.logger.Error().Err(err).Str("time_entry_id", entryID).Msg("failed to publish entry updated event")
	}
}

// PublishEntryDisputed publishes a dispute flag change
func (p *AttendanceEventPublisher) PublishEntryDisputed(ctx context.Context, entryID, employeeID string, disputed bool, reason string) {
	data := messaging.EntryDisputedEvent{
		TimeEntryID: entryID,
		EmployeeID:  employeeID,
		Disputed:    disputed,
		Reason:      reason,
	}

	if err := p.broker.Publish(ctx, messaging.EventEntryDisputed, data); err != nil {
		p.logger.Error().Err(err).Str("time_entry_id", entryID).Msg("failed to publish entry disputed event")
	}
}
