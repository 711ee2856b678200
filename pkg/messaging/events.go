package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// Punch events
	EventPunchClockIn  = "attendance.punch.clock_in"
	EventPunchClockOut = "attendance.punch.clock_out"
	EventPunchDenied   = "attendance.punch.denied"

	// Escalation events
	EventReminderSent    = "attendance.reminder.sent"
	EventEntryAutoClosed = "attendance.entry.auto_closed"

	// Overtime events
	EventOvertimeRecalculated = "attendance.overtime.recalculated"

	// Entry lifecycle events
	EventEntryUpdated  = "attendance.entry.updated"
	EventEntryDisputed = "attendance.entry.disputed"

	// Employee events consumed from the dealer directory service
	EventEmployeeCreated = "dealer.employee.created"
	EventEmployeeUpdated = "dealer.employee.updated"
	EventEmployeeDeleted = "dealer.employee.deleted"
)

// Exchange names
const (
	ExchangeAttendanceEvents = "attendance.events"
	ExchangeDealerEvents     = "dealer.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Punch Events

// PunchClockInEvent is published when an employee clocks in
type PunchClockInEvent struct {
	TimeEntryID   string    `json:"time_entry_id"`
	EmployeeID    string    `json:"employee_id"`
	DealershipID  string    `json:"dealership_id"`
	AssignmentID  string    `json:"assignment_id"`
	ClockIn       time.Time `json:"clock_in"`
	KioskID       string    `json:"kiosk_id,omitempty"`
	FaceValidated bool      `json:"face_validated"`
}

// PunchClockOutEvent is published when an employee clocks out
type PunchClockOutEvent struct {
	TimeEntryID       string    `json:"time_entry_id"`
	EmployeeID        string    `json:"employee_id"`
	DealershipID      string    `json:"dealership_id"`
	ClockIn           time.Time `json:"clock_in"`
	ClockOut          time.Time `json:"clock_out"`
	TotalWorkMinutes  int       `json:"total_work_minutes"`
	TotalBreakMinutes int       `json:"total_break_minutes"`
	KioskID           string    `json:"kiosk_id,omitempty"`
}

// PunchDeniedEvent is published when a punch attempt is rejected
type PunchDeniedEvent struct {
	EmployeeID     string `json:"employee_id"`
	DealershipID   string `json:"dealership_id"`
	ValidationType string `json:"validation_type"`
	Reason         string `json:"reason"`
	KioskID        string `json:"kiosk_id,omitempty"`
}

// Escalation Events

// ReminderSentEvent is published when a punch-out reminder is recorded
type ReminderSentEvent struct {
	ReminderID     string    `json:"reminder_id"`
	TimeEntryID    string    `json:"time_entry_id"`
	EmployeeID     string    `json:"employee_id"`
	DealershipID   string    `json:"dealership_id"`
	ReminderType   string    `json:"reminder_type"`
	MinutesOverdue int       `json:"minutes_overdue"`
	SentAt         time.Time `json:"sent_at"`
}

// EntryAutoClosedEvent is published when an abandoned entry is force-closed
type EntryAutoClosedEvent struct {
	TimeEntryID    string    `json:"time_entry_id"`
	EmployeeID     string    `json:"employee_id"`
	DealershipID   string    `json:"dealership_id"`
	ClockOut       time.Time `json:"clock_out"`
	MinutesOverdue int       `json:"minutes_overdue"`
	NeedsReview    bool      `json:"needs_review"`
}

// Overtime Events

// OvertimeRecalculatedEvent is published after a weekly overtime recompute
type OvertimeRecalculatedEvent struct {
	EmployeeID    string    `json:"employee_id"`
	DealershipID  string    `json:"dealership_id"`
	WeekStart     time.Time `json:"week_start"`
	RegularHours  float64   `json:"regular_hours"`
	OvertimeHours float64   `json:"overtime_hours"`
	EntriesInWeek int       `json:"entries_in_week"`
}

// Entry Events

// EntryUpdatedEvent is published when a completed entry is edited
type EntryUpdatedEvent struct {
	TimeEntryID string         `json:"time_entry_id"`
	EmployeeID  string         `json:"employee_id"`
	Fields      map[string]any `json:"fields"`
	UpdatedBy   string         `json:"updated_by,omitempty"`
}

// EntryDisputedEvent is published when an entry's dispute flag changes
type EntryDisputedEvent struct {
	TimeEntryID string `json:"time_entry_id"`
	EmployeeID  string `json:"employee_id"`
	Disputed    bool   `json:"disputed"`
	Reason      string `json:"reason,omitempty"`
}

// Consumed Employee Events

// EmployeeCreatedEvent is consumed when the directory service adds an employee
type EmployeeCreatedEvent struct {
	EmployeeID   string `json:"employee_id"`
	DealershipID string `json:"dealership_id"`
	Name         string `json:"name"`
}

// EmployeeUpdatedEvent is consumed when an employee record changes
type EmployeeUpdatedEvent struct {
	EmployeeID string         `json:"employee_id"`
	Fields     map[string]any `json:"fields"`
}

// EmployeeDeletedEvent is consumed when an employee is removed
type EmployeeDeletedEvent struct {
	EmployeeID string `json:"employee_id"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
