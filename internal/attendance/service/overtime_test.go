package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealerflow/dealerflow-backend/internal/attendance/events"
	"github.com/dealerflow/dealerflow-backend/internal/attendance/repository"
	"github.com/dealerflow/dealerflow-backend/pkg/config"
	"github.com/dealerflow/dealerflow-backend/pkg/database"
	"github.com/dealerflow/dealerflow-backend/pkg/logger"
	"github.com/dealerflow/dealerflow-backend/pkg/testutil"
)

func sumSplits(splits []hoursSplit) (regular, overtime float64) {
	for _, s := range splits {
		regular += s.Regular
		overtime += s.Overtime
	}
	return
}

func TestAllocateHours(t *testing.T) {
	t.Run("under the budget everything is regular", func(t *testing.T) {
		totals := []float64{8, 8, 8, 8, 7.5} // 39.5h
		splits := allocateHours(totals, 40)

		for i, s := range splits {
			assert.Equal(t, totals[i], s.Regular, "entry %d", i)
			assert.Zero(t, s.Overtime, "entry %d", i)
		}
	})

	t.Run("exactly at the budget has no overtime", func(t *testing.T) {
		totals := []float64{8, 8, 8, 8, 8}
		splits := allocateHours(totals, 40)

		regular, overtime := sumSplits(splits)
		assert.Equal(t, 40.0, regular)
		assert.Zero(t, overtime)
	})

	t.Run("overtime accrues on the latest entries", func(t *testing.T) {
		// Mon-Fri 8h, Sat 6h: 46h total. Saturday carries all 6h overtime.
		totals := []float64{8, 8, 8, 8, 8, 6}
		splits := allocateHours(totals, 40)

		regular, overtime := sumSplits(splits)
		assert.Equal(t, 40.0, regular)
		assert.Equal(t, 6.0, overtime)
		assert.Equal(t, hoursSplit{Regular: 0, Overtime: 6}, splits[5])
	})

	t.Run("budget exhausted mid-entry splits that entry", func(t *testing.T) {
		// 10+10+10+10 = 40, fifth entry of 5h is all overtime after a
		// 38h budget splits the fourth entry.
		totals := []float64{10, 10, 10, 10, 5}
		splits := allocateHours(totals, 38)

		assert.Equal(t, hoursSplit{Regular: 10}, splits[0])
		assert.Equal(t, hoursSplit{Regular: 10}, splits[1])
		assert.Equal(t, hoursSplit{Regular: 10}, splits[2])
		assert.Equal(t, hoursSplit{Regular: 8, Overtime: 2}, splits[3])
		assert.Equal(t, hoursSplit{Regular: 0, Overtime: 5}, splits[4])
	})

	t.Run("editing one day reattributes overtime across the week", func(t *testing.T) {
		// Mon-Fri 8h each is a clean 40/0 week.
		before := allocateHours([]float64{8, 8, 8, 8, 8}, 40)
		regular, overtime := sumSplits(before)
		assert.Equal(t, 40.0, regular)
		assert.Zero(t, overtime)

		// Monday corrected to 10h: 42h total. Regular stays 40 but
		// Friday now carries the 2h overtime, not Monday.
		after := allocateHours([]float64{10, 8, 8, 8, 8}, 40)
		regular, overtime = sumSplits(after)
		assert.Equal(t, 40.0, regular)
		assert.Equal(t, 2.0, overtime)
		assert.Equal(t, hoursSplit{Regular: 10}, after[0])
		assert.Equal(t, hoursSplit{Regular: 6, Overtime: 2}, after[4])
	})

	t.Run("no earlier entry has overtime while a later one has regular", func(t *testing.T) {
		totals := []float64{12, 9, 11, 10, 7}
		splits := allocateHours(totals, 40)

		seenOvertime := false
		for i, s := range splits {
			if seenOvertime {
				assert.Zero(t, s.Regular, "entry %d has regular hours after overtime started", i)
			}
			if s.Overtime > 0 {
				seenOvertime = true
			}
		}
	})

	t.Run("idempotent on unchanged input", func(t *testing.T) {
		totals := []float64{9, 9, 9, 9, 9}
		first := allocateHours(totals, 40)
		second := allocateHours(totals, 40)
		assert.Equal(t, first, second)
	})

	t.Run("empty week", func(t *testing.T) {
		assert.Empty(t, allocateHours(nil, 40))
	})
}

func TestNormalizeWeekStart(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	monday := time.Date(2025, 6, 16, 0, 0, 0, 0, chicago)

	tests := []struct {
		name string
		in   time.Time
	}{
		{name: "monday itself", in: time.Date(2025, 6, 16, 0, 0, 0, 0, chicago)},
		{name: "midweek", in: time.Date(2025, 6, 18, 14, 30, 0, 0, chicago)},
		{name: "sunday belongs to the preceding monday", in: time.Date(2025, 6, 22, 23, 59, 0, 0, chicago)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeWeekStart(tt.in, chicago)
			assert.True(t, got.Equal(monday), "got %v want %v", got, monday)
			assert.Equal(t, time.Monday, got.Weekday())
		})
	}

	t.Run("utc instant normalizes in local time", func(t *testing.T) {
		// Monday 02:00 UTC is still Sunday evening in Chicago, so the
		// local week starts a week earlier.
		in := time.Date(2025, 6, 16, 2, 0, 0, 0, time.UTC)
		got := NormalizeWeekStart(in, chicago)
		want := time.Date(2025, 6, 9, 0, 0, 0, 0, chicago)
		assert.True(t, got.Equal(want), "got %v want %v", got, want)
	})
}

func newOvertimeFixture(t *testing.T) (*OvertimeService, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("test", "test")
	db := database.Wrap(mockDB.DB, log)
	publisher := events.NewAttendanceEventPublisherWithBroker(testutil.NewMockPublisher(), log)

	cfg := &config.AttendanceConfig{
		WeeklyOvertimeThresholdHours: 40,
		DefaultTimezone:              "UTC",
	}

	svc := NewOvertimeService(
		repository.NewTimeEntryRepository(db),
		repository.NewDealershipRepository(db),
		publisher,
		cfg,
		log,
	)
	return svc, mockDB
}

func TestRecalculateForMove(t *testing.T) {
	ctx := context.Background()

	expectNoSettings := func(mockDB *testutil.MockDB) {
		mockDB.ExpectQuery(`FROM dealership_settings`).
			WillReturnRows(testutil.MockRows("dealership_id"))
	}
	expectWeekListing := func(mockDB *testutil.MockDB, monday time.Time) {
		mockDB.ExpectQuery(`clock_in >= $3 AND clock_in < $4`).
			WithArgs("emp-1", "dlr-1", monday, monday.AddDate(0, 0, 7), repository.EntryStatusDisputed).
			WillReturnRows(testutil.MockRows("id"))
	}

	t.Run("same-week move recomputes a single week", func(t *testing.T) {
		svc, mockDB := newOvertimeFixture(t)

		expectNoSettings(mockDB)
		expectWeekListing(mockDB, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC))

		entry := &repository.TimeEntry{
			EmployeeID:   "emp-1",
			DealershipID: "dlr-1",
			ClockIn:      time.Date(2025, 6, 20, 9, 0, 0, 0, time.UTC),
		}
		previous := time.Date(2025, 6, 18, 9, 0, 0, 0, time.UTC)

		// Any stray second listing would fail the unexpected query
		require.NoError(t, svc.RecalculateForMove(ctx, entry, previous))
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("cross-week move recomputes destination then source", func(t *testing.T) {
		svc, mockDB := newOvertimeFixture(t)

		expectNoSettings(mockDB)
		expectWeekListing(mockDB, time.Date(2025, 6, 23, 0, 0, 0, 0, time.UTC))
		expectWeekListing(mockDB, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC))

		entry := &repository.TimeEntry{
			EmployeeID:   "emp-1",
			DealershipID: "dlr-1",
			ClockIn:      time.Date(2025, 6, 25, 9, 0, 0, 0, time.UTC),
		}
		previous := time.Date(2025, 6, 18, 9, 0, 0, 0, time.UTC)

		require.NoError(t, svc.RecalculateForMove(ctx, entry, previous))
		mockDB.ExpectationsWereMet(t)
	})
}
