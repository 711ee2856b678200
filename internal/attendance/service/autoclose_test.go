package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dealerflow/dealerflow-backend/internal/attendance/repository"
	"github.com/dealerflow/dealerflow-backend/pkg/config"
	"github.com/dealerflow/dealerflow-backend/pkg/testutil"
)

func TestDecideAction(t *testing.T) {
	standard := thresholds{first: 30, second: 60, autoClose: 120}

	tests := []struct {
		name           string
		minutesOverdue int
		reminderCount  int
		thresholds     thresholds
		want           string
	}{
		{
			name:           "below first threshold does nothing",
			minutesOverdue: 20,
			reminderCount:  0,
			thresholds:     standard,
			want:           ActionNone,
		},
		{
			name:           "first reminder at 45 minutes overdue",
			minutesOverdue: 45,
			reminderCount:  0,
			thresholds:     standard,
			want:           ActionFirstReminder,
		},
		{
			name:           "past second threshold but first not sent yet",
			minutesOverdue: 65,
			reminderCount:  0,
			thresholds:     standard,
			want:           ActionFirstReminder,
		},
		{
			name:           "second reminder once the first was sent",
			minutesOverdue: 65,
			reminderCount:  1,
			thresholds:     standard,
			want:           ActionSecondReminder,
		},
		{
			name:           "both reminders sent, waiting for auto-close",
			minutesOverdue: 90,
			reminderCount:  2,
			thresholds:     standard,
			want:           ActionNone,
		},
		{
			name:           "auto-close after both reminders",
			minutesOverdue: 125,
			reminderCount:  2,
			thresholds:     standard,
			want:           ActionAutoClose,
		},
		{
			name:           "auto-close fires even with zero reminders sent",
			minutesOverdue: 125,
			reminderCount:  0,
			thresholds:     standard,
			want:           ActionAutoClose,
		},
		{
			name:           "exactly at the auto-close threshold",
			minutesOverdue: 120,
			reminderCount:  1,
			thresholds:     standard,
			want:           ActionAutoClose,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decideAction(tt.minutesOverdue, tt.reminderCount, tt.thresholds)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMinutesPastShiftEnd(t *testing.T) {
	shiftEnd := time.Date(2025, 6, 16, 17, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		now         time.Time
		wantMinutes int
		wantEnded   bool
	}{
		{
			name:      "well before shift end",
			now:       shiftEnd.Add(-30 * time.Minute),
			wantEnded: false,
		},
		{
			// Truncating the duration to whole minutes would call this
			// zero overdue instead of not-yet-ended
			name:      "inside the final minute before shift end",
			now:       shiftEnd.Add(-59 * time.Second),
			wantEnded: false,
		},
		{
			name:        "exactly at shift end",
			now:         shiftEnd,
			wantMinutes: 0,
			wantEnded:   true,
		},
		{
			name:        "seconds past shift end round down to zero",
			now:         shiftEnd.Add(59 * time.Second),
			wantMinutes: 0,
			wantEnded:   true,
		},
		{
			name:        "ninety seconds past is one whole minute",
			now:         shiftEnd.Add(90 * time.Second),
			wantMinutes: 1,
			wantEnded:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			minutes, ended := minutesPastShiftEnd(tt.now, shiftEnd)
			assert.Equal(t, tt.wantEnded, ended)
			assert.Equal(t, tt.wantMinutes, minutes)
		})
	}
}

func TestResolveThresholds(t *testing.T) {
	svc := &AutoCloseService{
		defaults: config.AttendanceConfig{
			DefaultFirstReminderMinutes:  15,
			DefaultSecondReminderMinutes: 30,
			DefaultAutoCloseMinutes:      60,
		},
	}

	t.Run("service defaults when nothing is configured", func(t *testing.T) {
		entry := &repository.OpenEntryWithSchedule{}
		got := svc.resolveThresholds(entry, nil)
		assert.Equal(t, thresholds{first: 15, second: 30, autoClose: 60}, got)
	})

	t.Run("dealership settings override the defaults", func(t *testing.T) {
		entry := &repository.OpenEntryWithSchedule{}
		settings := &repository.DealershipSettings{
			FirstReminderMinutes:  20,
			SecondReminderMinutes: 40,
			AutoCloseMinutes:      90,
		}
		got := svc.resolveThresholds(entry, settings)
		assert.Equal(t, thresholds{first: 20, second: 40, autoClose: 90}, got)
	})

	t.Run("assignment overrides win over dealership settings", func(t *testing.T) {
		entry := &repository.OpenEntryWithSchedule{
			FirstReminderMinutes: testutil.PtrInt(10),
			AutoCloseMinutes:     testutil.PtrInt(45),
		}
		settings := &repository.DealershipSettings{
			FirstReminderMinutes:  20,
			SecondReminderMinutes: 40,
			AutoCloseMinutes:      90,
		}
		got := svc.resolveThresholds(entry, settings)
		// second has no assignment override, so the dealership value holds
		assert.Equal(t, thresholds{first: 10, second: 40, autoClose: 45}, got)
	})
}
