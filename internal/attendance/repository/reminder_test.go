package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dealerflow/dealerflow-backend/pkg/database"
	"github.com/dealerflow/dealerflow-backend/pkg/logger"
	"github.com/dealerflow/dealerflow-backend/pkg/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReminderRepo(t *testing.T) (*ReminderRepository, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	db := database.Wrap(mockDB.DB, logger.New("test", "test"))
	return NewReminderRepository(db), mockDB
}

func TestCreateReminder(t *testing.T) {
	repo, mockDB := newReminderRepo(t)
	defer mockDB.Close()

	reminder := &PunchOutReminder{
		TimeEntryID:    uuid.New().String(),
		ReminderType:   ReminderTypeFirst,
		MinutesOverdue: 45,
	}

	mockDB.ExpectExec("INSERT INTO punch_out_reminders").
		WithArgs(testutil.AnyUUID{}, reminder.TimeEntryID, ReminderTypeFirst, 45, testutil.AnyTime{}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), reminder)
	require.NoError(t, err)
	assert.NotEmpty(t, reminder.ID)
	assert.False(t, reminder.SentAt.IsZero())

	mockDB.ExpectationsWereMet(t)
}

func TestCountForEntry(t *testing.T) {
	repo, mockDB := newReminderRepo(t)
	defer mockDB.Close()

	entryID := uuid.New().String()

	// Auto-close records are excluded from the reminder count
	mockDB.ExpectQuery("SELECT COUNT(*)").
		WithArgs(entryID, ReminderTypeAutoClose).
		WillReturnRows(testutil.MockRows("count").AddRow(1))

	count, err := repo.CountForEntry(context.Background(), entryID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	mockDB.ExpectationsWereMet(t)
}
