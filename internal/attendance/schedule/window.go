// Package schedule computes punch-in windows from shift schedules.
package schedule

import (
	"fmt"
	"time"
)

const (
	startOfDay = time.Duration(0)
	endOfDay   = 23*time.Hour + 59*time.Minute + 59*time.Second
)

// Window is the allowed punch-in interval for one shift instance, expressed
// as offsets from midnight in the dealership's local day. An unconstrained
// window models flexible-schedule assignments with no shift start.
type Window struct {
	Earliest      time.Duration
	Latest        time.Duration
	Unconstrained bool
}

// ParseShiftTime parses a TIME-of-day value like "09:00:00" into an offset
// from midnight. Postgres TIME columns may come back without seconds.
func ParseShiftTime(s string) (time.Duration, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
		if err != nil {
			return 0, fmt.Errorf("invalid shift time %q: %w", s, err)
		}
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

// Compute returns the allowed punch-in window for the given shift start and
// tolerances. A nil shift start yields an unconstrained window. A nil early
// tolerance opens the window at midnight; a nil late tolerance keeps it open
// until end of day.
func Compute(shiftStart *string, earlyMinutes, lateMinutes *int) (Window, error) {
	if shiftStart == nil {
		return Window{Unconstrained: true}, nil
	}

	start, err := ParseShiftTime(*shiftStart)
	if err != nil {
		return Window{}, err
	}

	w := Window{Earliest: startOfDay, Latest: endOfDay}

	if earlyMinutes != nil {
		w.Earliest = start - time.Duration(*earlyMinutes)*time.Minute
		if w.Earliest < startOfDay {
			w.Earliest = startOfDay
		}
	}
	if lateMinutes != nil {
		w.Latest = start + time.Duration(*lateMinutes)*time.Minute
		if w.Latest > endOfDay {
			w.Latest = endOfDay
		}
	}

	return w, nil
}

// TooEarly reports whether the given time of day is before the window opens.
func (w Window) TooEarly(timeOfDay time.Duration) bool {
	if w.Unconstrained {
		return false
	}
	return timeOfDay < w.Earliest
}

// TooLate reports whether the given time of day is past the window. Once a
// shift's window closes there is no recovery for that shift instance.
func (w Window) TooLate(timeOfDay time.Duration) bool {
	if w.Unconstrained {
		return false
	}
	return timeOfDay > w.Latest
}

// Allows reports whether a punch at the given time of day is inside the window.
func (w Window) Allows(timeOfDay time.Duration) bool {
	return !w.TooEarly(timeOfDay) && !w.TooLate(timeOfDay)
}

// MinutesUntilOpen returns the whole minutes remaining until the window
// opens, rounded up. Returns 0 if the window is already open.
func (w Window) MinutesUntilOpen(timeOfDay time.Duration) int {
	if w.Unconstrained {
		return 0
	}
	d := w.Earliest - timeOfDay
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}

// TimeOfDay returns now's offset from midnight in the given location.
// Shift windows are evaluated in the dealership's timezone, never in the
// server's or the database session's.
func TimeOfDay(now time.Time, loc *time.Location) time.Duration {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return local.Sub(midnight)
}

// ShiftEndOn returns the absolute shift end instant for the local day that
// contains the given clock-in. Used to measure how overdue an open punch is.
func ShiftEndOn(clockIn time.Time, shiftEnd string, loc *time.Location) (time.Time, error) {
	end, err := ParseShiftTime(shiftEnd)
	if err != nil {
		return time.Time{}, err
	}
	local := clockIn.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return midnight.Add(end), nil
}
