package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dealerflow/dealerflow-backend/pkg/database"
	"github.com/dealerflow/dealerflow-backend/pkg/logger"
	"github.com/dealerflow/dealerflow-backend/pkg/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*TimeEntryRepository, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	db := database.Wrap(mockDB.DB, logger.New("test", "test"))
	return NewTimeEntryRepository(db), mockDB
}

var entryColumns = []string{
	"id", "employee_id", "dealership_id", "assignment_id",
	"clock_in", "clock_out", "status", "break_minutes",
	"total_hours", "regular_hours", "overtime_hours",
	"auto_close_reason", "requires_supervisor_review",
	"dispute_reason", "kiosk_id", "created_at", "updated_at",
}

func entryRow(id, employeeID, dealershipID string, clockIn time.Time, clockOut *time.Time, status string) []driver.Value {
	var out driver.Value
	if clockOut != nil {
		out = *clockOut
	}
	return []driver.Value{
		id, employeeID, dealershipID, uuid.New().String(),
		clockIn, out, status, 0,
		0.0, 0.0, 0.0,
		nil, false,
		nil, nil, time.Now(), time.Now(),
	}
}

func TestCreateEntry(t *testing.T) {
	repo, mockDB := newTestRepo(t)
	defer mockDB.Close()

	entry := &TimeEntry{
		EmployeeID:   uuid.New().String(),
		DealershipID: uuid.New().String(),
		AssignmentID: uuid.New().String(),
		ClockIn:      time.Now().UTC(),
	}

	mockDB.ExpectQuery("INSERT INTO time_entries").
		WithArgs(testutil.AnyUUID{}, entry.EmployeeID, entry.DealershipID, entry.AssignmentID,
			testutil.AnyTime{}, EntryStatusActive, 0, nil).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(time.Now(), time.Now()))

	err := repo.CreateEntry(context.Background(), entry)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, EntryStatusActive, entry.Status)

	mockDB.ExpectationsWereMet(t)
}

func TestGetOpenEntryElsewhere(t *testing.T) {
	employeeID := uuid.New().String()
	hereID := uuid.New().String()
	elsewhereID := uuid.New().String()

	t.Run("open punch at another dealership is found", func(t *testing.T) {
		repo, mockDB := newTestRepo(t)
		defer mockDB.Close()

		rows := testutil.MockRows(entryColumns...).
			AddRow(entryRow(uuid.New().String(), employeeID, elsewhereID, time.Now().Add(-2*time.Hour), nil, EntryStatusActive)...)

		mockDB.ExpectQuery("SELECT id, employee_id, dealership_id").
			WithArgs(employeeID, hereID).
			WillReturnRows(rows)

		entry, err := repo.GetOpenEntryElsewhere(context.Background(), employeeID, hereID)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, elsewhereID, entry.DealershipID)
		assert.Nil(t, entry.ClockOut)

		mockDB.ExpectationsWereMet(t)
	})

	t.Run("no open punch elsewhere returns nil without error", func(t *testing.T) {
		repo, mockDB := newTestRepo(t)
		defer mockDB.Close()

		mockDB.ExpectQuery("SELECT id, employee_id, dealership_id").
			WithArgs(employeeID, hereID).
			WillReturnError(sql.ErrNoRows)

		entry, err := repo.GetOpenEntryElsewhere(context.Background(), employeeID, hereID)
		require.NoError(t, err)
		assert.Nil(t, entry)

		mockDB.ExpectationsWereMet(t)
	})
}

func TestCloseEntry(t *testing.T) {
	t.Run("closes an open entry", func(t *testing.T) {
		repo, mockDB := newTestRepo(t)
		defer mockDB.Close()

		id := uuid.New().String()
		clockOut := time.Now().UTC()

		mockDB.ExpectExec("UPDATE time_entries").
			WithArgs(id, testutil.AnyTime{}, 30, 7.5, EntryStatusComplete, EntryStatusActive).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.CloseEntry(context.Background(), id, clockOut, 30, 7.5)
		require.NoError(t, err)

		mockDB.ExpectationsWereMet(t)
	})

	t.Run("already closed entry reports no rows", func(t *testing.T) {
		repo, mockDB := newTestRepo(t)
		defer mockDB.Close()

		id := uuid.New().String()

		mockDB.ExpectExec("UPDATE time_entries").
			WithArgs(id, testutil.AnyTime{}, 0, 8.0, EntryStatusComplete, EntryStatusActive).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.CloseEntry(context.Background(), id, time.Now(), 0, 8.0)
		assert.ErrorIs(t, err, sql.ErrNoRows)

		mockDB.ExpectationsWereMet(t)
	})
}

func TestAutoCloseEntry(t *testing.T) {
	t.Run("first close wins", func(t *testing.T) {
		repo, mockDB := newTestRepo(t)
		defer mockDB.Close()

		id := uuid.New().String()

		mockDB.ExpectExec("UPDATE time_entries").
			WithArgs(id, testutil.AnyTime{}, 8.0, EntryStatusComplete, "shift_end_exceeded", true, EntryStatusActive).
			WillReturnResult(sqlmock.NewResult(0, 1))

		closed, err := repo.AutoCloseEntry(context.Background(), id, time.Now(), 8.0, "shift_end_exceeded", true)
		require.NoError(t, err)
		assert.True(t, closed)

		mockDB.ExpectationsWereMet(t)
	})

	t.Run("second pass is a no-op", func(t *testing.T) {
		repo, mockDB := newTestRepo(t)
		defer mockDB.Close()

		id := uuid.New().String()

		mockDB.ExpectExec("UPDATE time_entries").
			WithArgs(id, testutil.AnyTime{}, 8.0, EntryStatusComplete, "shift_end_exceeded", true, EntryStatusActive).
			WillReturnResult(sqlmock.NewResult(0, 0))

		closed, err := repo.AutoCloseEntry(context.Background(), id, time.Now(), 8.0, "shift_end_exceeded", true)
		require.NoError(t, err)
		assert.False(t, closed)

		mockDB.ExpectationsWereMet(t)
	})
}

func TestListWeekEntries(t *testing.T) {
	repo, mockDB := newTestRepo(t)
	defer mockDB.Close()

	employeeID := uuid.New().String()
	dealershipID := uuid.New().String()
	weekStart := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC) // a Monday
	weekEnd := weekStart.AddDate(0, 0, 7)

	monday := weekStart.Add(9 * time.Hour)
	mondayOut := monday.Add(8 * time.Hour)
	tuesday := monday.AddDate(0, 0, 1)
	tuesdayOut := tuesday.Add(8 * time.Hour)

	rows := testutil.MockRows(entryColumns...).
		AddRow(entryRow(uuid.New().String(), employeeID, dealershipID, monday, &mondayOut, EntryStatusComplete)...).
		AddRow(entryRow(uuid.New().String(), employeeID, dealershipID, tuesday, &tuesdayOut, EntryStatusComplete)...)

	mockDB.ExpectQuery("SELECT id, employee_id, dealership_id").
		WithArgs(employeeID, dealershipID, weekStart, weekEnd, EntryStatusDisputed).
		WillReturnRows(rows)

	entries, err := repo.ListWeekEntries(context.Background(), employeeID, dealershipID, weekStart, weekEnd)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].ClockIn.Before(entries[1].ClockIn))

	mockDB.ExpectationsWereMet(t)
}

func TestUpdateHoursSplit(t *testing.T) {
	repo, mockDB := newTestRepo(t)
	defer mockDB.Close()

	id := uuid.New().String()

	mockDB.ExpectExec("UPDATE time_entries").
		WithArgs(id, 6.0, 2.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateHoursSplit(context.Background(), id, 6.0, 2.0)
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestListOpenEntriesWithSchedule(t *testing.T) {
	repo, mockDB := newTestRepo(t)
	defer mockDB.Close()

	dealershipID := uuid.New().String()
	shiftEnd := "17:00:00"

	rows := testutil.MockRows(
		"id", "employee_id", "dealership_id", "assignment_id", "clock_in",
		"shift_end", "auto_close_enabled",
		"first_reminder_minutes", "second_reminder_minutes", "auto_close_minutes",
	).AddRow(
		uuid.New().String(), uuid.New().String(), dealershipID, uuid.New().String(), time.Now().Add(-10*time.Hour),
		shiftEnd, true,
		nil, nil, nil,
	)

	mockDB.ExpectQuery("SELECT te.id, te.employee_id").
		WithArgs(dealershipID).
		WillReturnRows(rows)

	entries, err := repo.ListOpenEntriesWithSchedule(context.Background(), dealershipID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].AutoCloseEnabled)
	require.NotNil(t, entries[0].ShiftEnd)
	assert.Equal(t, shiftEnd, *entries[0].ShiftEnd)

	mockDB.ExpectationsWereMet(t)
}
