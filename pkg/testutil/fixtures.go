package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AssignmentFixture represents test assignment data
type AssignmentFixture struct {
	ID                    string
	EmployeeID            string
	DealershipID          string
	Status                string
	ShiftStart            *string
	ShiftEnd              *string
	EarlyPunchInMinutes   *int
	LatePunchInMinutes    *int
	RequiredBreakMinutes  int
	RequireFaceValidation bool
	CreatedAt             time.Time
}

// TimeEntryFixture represents test time entry data
type TimeEntryFixture struct {
	ID           string
	EmployeeID   string
	DealershipID string
	AssignmentID string
	ClockIn      time.Time
	ClockOut     *time.Time
	Status       string
	BreakMinutes int
	CreatedAt    time.Time
}

// DealershipFixture represents test dealership settings data
type DealershipFixture struct {
	DealershipID          string
	Timezone              string
	FirstReminderMinutes  int
	SecondReminderMinutes int
	AutoCloseMinutes      int
	AutoCloseNeedsReview  bool
	Active                bool
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Assignment creates an assignment fixture with defaults.
// The default schedule is a 9-to-5 shift with a 15 minute early window.
func (f *FixtureFactory) Assignment(opts ...func(*AssignmentFixture)) AssignmentFixture {
	f.nextSeq()
	start := "09:00:00"
	end := "17:00:00"
	early := 15

	a := AssignmentFixture{
		ID:                   uuid.New().String(),
		EmployeeID:           uuid.New().String(),
		DealershipID:         uuid.New().String(),
		Status:               "active",
		ShiftStart:           &start,
		ShiftEnd:             &end,
		EarlyPunchInMinutes:  &early,
		RequiredBreakMinutes: 30,
		CreatedAt:            time.Now(),
	}

	for _, opt := range opts {
		opt(&a)
	}

	return a
}

// WithAssignmentStatus sets the assignment status
func WithAssignmentStatus(status string) func(*AssignmentFixture) {
	return func(a *AssignmentFixture) {
		a.Status = status
	}
}

// WithSchedule sets the shift start and end times
func WithSchedule(start, end string) func(*AssignmentFixture) {
	return func(a *AssignmentFixture) {
		a.ShiftStart = &start
		a.ShiftEnd = &end
	}
}

// WithoutSchedule clears the shift times, making punch-in unconstrained
func WithoutSchedule() func(*AssignmentFixture) {
	return func(a *AssignmentFixture) {
		a.ShiftStart = nil
		a.ShiftEnd = nil
	}
}

// WithPunchWindow sets the early and late punch-in tolerances in minutes
func WithPunchWindow(early, late int) func(*AssignmentFixture) {
	return func(a *AssignmentFixture) {
		a.EarlyPunchInMinutes = &early
		a.LatePunchInMinutes = &late
	}
}

// WithFaceValidation requires face validation at the kiosk
func WithFaceValidation() func(*AssignmentFixture) {
	return func(a *AssignmentFixture) {
		a.RequireFaceValidation = true
	}
}

// WithEmployee sets the employee and dealership for the assignment
func WithEmployee(employeeID, dealershipID string) func(*AssignmentFixture) {
	return func(a *AssignmentFixture) {
		a.EmployeeID = employeeID
		a.DealershipID = dealershipID
	}
}

// TimeEntry creates a time entry fixture with defaults.
// The default entry is an open punch that started an hour ago.
func (f *FixtureFactory) TimeEntry(opts ...func(*TimeEntryFixture)) TimeEntryFixture {
	f.nextSeq()

	e := TimeEntryFixture{
		ID:           uuid.New().String(),
		EmployeeID:   uuid.New().String(),
		DealershipID: uuid.New().String(),
		AssignmentID: uuid.New().String(),
		ClockIn:      time.Now().Add(-time.Hour),
		Status:       "active",
		CreatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(&e)
	}

	return e
}

// WithClockTimes sets the clock in and out times and marks the entry complete
func WithClockTimes(in, out time.Time) func(*TimeEntryFixture) {
	return func(e *TimeEntryFixture) {
		e.ClockIn = in
		e.ClockOut = &out
		e.Status = "complete"
	}
}

// WithEntryEmployee sets the employee and dealership for the entry
func WithEntryEmployee(employeeID, dealershipID string) func(*TimeEntryFixture) {
	return func(e *TimeEntryFixture) {
		e.EmployeeID = employeeID
		e.DealershipID = dealershipID
	}
}

// WithBreakMinutes sets the break minutes on the entry
func WithBreakMinutes(minutes int) func(*TimeEntryFixture) {
	return func(e *TimeEntryFixture) {
		e.BreakMinutes = minutes
	}
}

// WithDisputed marks the entry as disputed
func WithDisputed() func(*TimeEntryFixture) {
	return func(e *TimeEntryFixture) {
		e.Status = "disputed"
	}
}

// Dealership creates a dealership settings fixture with defaults
func (f *FixtureFactory) Dealership(opts ...func(*DealershipFixture)) DealershipFixture {
	f.nextSeq()

	d := DealershipFixture{
		DealershipID:          uuid.New().String(),
		Timezone:              "America/Chicago",
		FirstReminderMinutes:  15,
		SecondReminderMinutes: 30,
		AutoCloseMinutes:      60,
		AutoCloseNeedsReview:  true,
		Active:                true,
	}

	for _, opt := range opts {
		opt(&d)
	}

	return d
}

// WithTimezone sets the dealership timezone
func WithTimezone(tz string) func(*DealershipFixture) {
	return func(d *DealershipFixture) {
		d.Timezone = tz
	}
}

// WithReminderCascade sets the three escalation thresholds in minutes
func WithReminderCascade(first, second, autoClose int) func(*DealershipFixture) {
	return func(d *DealershipFixture) {
		d.FirstReminderMinutes = first
		d.SecondReminderMinutes = second
		d.AutoCloseMinutes = autoClose
	}
}

// EmployeeName returns a unique display name for test employees
func (f *FixtureFactory) EmployeeName() string {
	return fmt.Sprintf("Test Employee %d", f.nextSeq())
}
