package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealerflow/dealerflow-backend/internal/attendance/repository"
	"github.com/dealerflow/dealerflow-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

// Integration tests run against a real Postgres in Docker. Opt in with
// DEALERFLOW_INTEGRATION=1; without it the suite is skipped entirely.
func TestMain(m *testing.M) {
	if os.Getenv("DEALERFLOW_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		panic(err)
	}

	code := m.Run()
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

func requireSuite(t *testing.T) {
	t.Helper()
	if suite == nil {
		t.Skip("set DEALERFLOW_INTEGRATION=1 to run integration tests")
	}
}

func seedAssignment(t *testing.T, ctx context.Context) *repository.Assignment {
	t.Helper()

	fx := suite.Fixtures.Assignment()
	assignment := &repository.Assignment{
		ID:                       fx.ID,
		EmployeeID:               fx.EmployeeID,
		DealershipID:             fx.DealershipID,
		Status:                   fx.Status,
		ShiftStart:               fx.ShiftStart,
		ShiftEnd:                 fx.ShiftEnd,
		EarlyPunchAllowedMinutes: fx.EarlyPunchInMinutes,
		RequiredBreakMinutes:     fx.RequiredBreakMinutes,
		AutoCloseEnabled:         true,
	}
	require.NoError(t, repository.NewAssignmentRepository(suite.DB).Create(ctx, assignment))
	return assignment
}

func TestTimeEntryRoundTrip(t *testing.T) {
	requireSuite(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)

	entries := repository.NewTimeEntryRepository(suite.DB)
	assignment := seedAssignment(t, ctx)

	entry := &repository.TimeEntry{
		EmployeeID:   assignment.EmployeeID,
		DealershipID: assignment.DealershipID,
		AssignmentID: assignment.ID,
		ClockIn:      time.Now().UTC().Add(-8 * time.Hour).Truncate(time.Microsecond),
	}
	require.NoError(t, entries.CreateEntry(ctx, entry))

	open, err := entries.GetOpenEntry(ctx, assignment.EmployeeID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, entry.ID, open.ID)
	assert.Equal(t, repository.EntryStatusActive, open.Status)

	clockOut := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, entries.CloseEntry(ctx, entry.ID, clockOut, 30, 7.5))

	open, err = entries.GetOpenEntry(ctx, assignment.EmployeeID)
	require.NoError(t, err)
	assert.Nil(t, open)

	closed, err := entries.GetEntryByID(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, repository.EntryStatusComplete, closed.Status)
	assert.Equal(t, 7.5, closed.TotalHours)
	assert.Equal(t, 30, closed.BreakMinutes)
}

func TestOneOpenEntryPerEmployee(t *testing.T) {
	requireSuite(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)

	entries := repository.NewTimeEntryRepository(suite.DB)
	assignment := seedAssignment(t, ctx)

	first := &repository.TimeEntry{
		EmployeeID:   assignment.EmployeeID,
		DealershipID: assignment.DealershipID,
		AssignmentID: assignment.ID,
		ClockIn:      time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, entries.CreateEntry(ctx, first))

	// The partial unique index rejects a second open entry for the employee
	second := &repository.TimeEntry{
		EmployeeID:   assignment.EmployeeID,
		DealershipID: assignment.DealershipID,
		AssignmentID: assignment.ID,
		ClockIn:      time.Now().UTC(),
	}
	err := entries.CreateEntry(ctx, second)
	require.Error(t, err)

	// Once the first is closed, a new punch is allowed again
	require.NoError(t, entries.CloseEntry(ctx, first.ID, time.Now().UTC(), 0, 1.0))
	second.ID = ""
	require.NoError(t, entries.CreateEntry(ctx, second))
}

func TestReminderStageDeduplication(t *testing.T) {
	requireSuite(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)

	entries := repository.NewTimeEntryRepository(suite.DB)
	reminders := repository.NewReminderRepository(suite.DB)
	assignment := seedAssignment(t, ctx)

	entry := &repository.TimeEntry{
		EmployeeID:   assignment.EmployeeID,
		DealershipID: assignment.DealershipID,
		AssignmentID: assignment.ID,
		ClockIn:      time.Now().UTC().Add(-10 * time.Hour),
	}
	require.NoError(t, entries.CreateEntry(ctx, entry))

	require.NoError(t, reminders.Create(ctx, &repository.PunchOutReminder{
		TimeEntryID:    entry.ID,
		ReminderType:   repository.ReminderTypeFirst,
		MinutesOverdue: 45,
	}))

	// Same stage twice violates the (entry, type) constraint
	err := reminders.Create(ctx, &repository.PunchOutReminder{
		TimeEntryID:    entry.ID,
		ReminderType:   repository.ReminderTypeFirst,
		MinutesOverdue: 50,
	})
	require.Error(t, err)

	// A different stage is fine
	require.NoError(t, reminders.Create(ctx, &repository.PunchOutReminder{
		TimeEntryID:    entry.ID,
		ReminderType:   repository.ReminderTypeSecond,
		MinutesOverdue: 75,
	}))

	count, err := reminders.CountForEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	trail, err := reminders.ListForEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.False(t, trail[0].EmployeeResponded)

	require.NoError(t, reminders.MarkResponded(ctx, trail[0].ID))
	trail, err = reminders.ListForEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, trail[0].EmployeeResponded)
}

func TestDealershipSettingsUpsert(t *testing.T) {
	requireSuite(t)
	ctx := context.Background()
	suite.TruncateAll(t, ctx)

	repo := repository.NewDealershipRepository(suite.DB)
	fx := suite.Fixtures.Dealership(testutil.WithTimezone("America/Denver"), testutil.WithReminderCascade(10, 20, 40))

	settings := &repository.DealershipSettings{
		DealershipID:          fx.DealershipID,
		Timezone:              fx.Timezone,
		FirstReminderMinutes:  fx.FirstReminderMinutes,
		SecondReminderMinutes: fx.SecondReminderMinutes,
		AutoCloseMinutes:      fx.AutoCloseMinutes,
		AutoCloseNeedsReview:  fx.AutoCloseNeedsReview,
		Active:                fx.Active,
	}
	require.NoError(t, repo.Upsert(ctx, settings))

	got, err := repo.GetSettings(ctx, fx.DealershipID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "America/Denver", got.Timezone)
	assert.Equal(t, 10, got.FirstReminderMinutes)

	// Upsert replaces in place
	settings.AutoCloseMinutes = 90
	require.NoError(t, repo.Upsert(ctx, settings))

	got, err = repo.GetSettings(ctx, fx.DealershipID)
	require.NoError(t, err)
	assert.Equal(t, 90, got.AutoCloseMinutes)

	ids, err := repo.ListActiveDealershipIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, fx.DealershipID)
}
