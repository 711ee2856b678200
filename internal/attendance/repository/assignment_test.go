package repository

import (
	"context"
	"database/sql"
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

var assignmentColumns = []string{
	"id", "employee_id", "dealership_id", "status", "shift_start", "shift_end",
	"early_punch_allowed_minutes", "late_punch_grace_minutes",
	"required_break_minutes", "require_face_validation", "auto_close_enabled",
	"first_reminder_minutes", "second_reminder_minutes", "auto_close_minutes",
	"created_at", "updated_at",
}

func TestGetByEmployeeAndDealership(t *testing.T) {
	employeeID := uuid.New().String()
	dealershipID := uuid.New().String()

	t.Run("found regardless of status", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()
		repo := NewAssignmentRepository(database.Wrap(mockDB.DB, logger.New("test", "test")))

		rows := testutil.MockRows(assignmentColumns...).AddRow(
			uuid.New().String(), employeeID, dealershipID, AssignmentStatusSuspended, "09:00:00", "17:00:00",
			15, nil,
			30, true, true,
			nil, nil, nil,
			time.Now(), time.Now(),
		)

		mockDB.ExpectQuery("SELECT id, employee_id, dealership_id, status").
			WithArgs(employeeID, dealershipID).
			WillReturnRows(rows)

		a, err := repo.GetByEmployeeAndDealership(context.Background(), employeeID, dealershipID)
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, AssignmentStatusSuspended, a.Status)
		assert.True(t, a.RequireFaceValidation)
		require.NotNil(t, a.EarlyPunchAllowedMinutes)
		assert.Equal(t, 15, *a.EarlyPunchAllowedMinutes)
		assert.Nil(t, a.LatePunchGraceMinutes)

		mockDB.ExpectationsWereMet(t)
	})

	t.Run("absent returns nil without error", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()
		repo := NewAssignmentRepository(database.Wrap(mockDB.DB, logger.New("test", "test")))

		mockDB.ExpectQuery("SELECT id, employee_id, dealership_id, status").
			WithArgs(employeeID, dealershipID).
			WillReturnError(sql.ErrNoRows)

		a, err := repo.GetByEmployeeAndDealership(context.Background(), employeeID, dealershipID)
		require.NoError(t, err)
		assert.Nil(t, a)

		mockDB.ExpectationsWereMet(t)
	})
}

func TestUpdateAssignmentStatus(t *testing.T) {
	t.Run("updates status", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()
		repo := NewAssignmentRepository(database.Wrap(mockDB.DB, logger.New("test", "test")))

		id := uuid.New().String()

		mockDB.ExpectExec("UPDATE assignments").
			WithArgs(id, AssignmentStatusInactive).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateStatus(context.Background(), id, AssignmentStatusInactive)
		require.NoError(t, err)

		mockDB.ExpectationsWereMet(t)
	})

	t.Run("unknown assignment reports no rows", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()
		repo := NewAssignmentRepository(database.Wrap(mockDB.DB, logger.New("test", "test")))

		id := uuid.New().String()

		mockDB.ExpectExec("UPDATE assignments").
			WithArgs(id, AssignmentStatusActive).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateStatus(context.Background(), id, AssignmentStatusActive)
		assert.ErrorIs(t, err, sql.ErrNoRows)

		mockDB.ExpectationsWereMet(t)
	})
}
