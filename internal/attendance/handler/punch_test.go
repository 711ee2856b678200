package handler

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/dealerflow/dealerflow-backend/internal/attendance/events"
	"github.com/dealerflow/dealerflow-backend/internal/attendance/repository"
	"github.com/dealerflow/dealerflow-backend/internal/attendance/service"
	"github.com/dealerflow/dealerflow-backend/pkg/config"
	"github.com/dealerflow/dealerflow-backend/pkg/database"
	"github.com/dealerflow/dealerflow-backend/pkg/httputil"
	"github.com/dealerflow/dealerflow-backend/pkg/logger"
	"github.com/dealerflow/dealerflow-backend/pkg/testutil"
)

func newTestRouter(t *testing.T) (chi.Router, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("test", "test")
	db := database.Wrap(mockDB.DB, log)

	broker := testutil.NewMockPublisher()
	publisher := events.NewAttendanceEventPublisherWithBroker(broker, log)

	cfg := &config.AttendanceConfig{
		DefaultFirstReminderMinutes:  15,
		DefaultSecondReminderMinutes: 30,
		DefaultAutoCloseMinutes:      60,
		WeeklyOvertimeThresholdHours: 40,
		DefaultTimezone:              "UTC",
	}

	entries := repository.NewTimeEntryRepository(db)
	dealerships := repository.NewDealershipRepository(db)
	overtime := service.NewOvertimeService(entries, dealerships, publisher, cfg, log)
	punchService := service.NewPunchService(
		repository.NewAssignmentRepository(db),
		entries,
		repository.NewValidationFailureRepository(db),
		dealerships,
		overtime,
		publisher,
		cfg,
		log,
	)

	punchHandler := NewPunchHandler(punchService, log)
	entryHandler := NewEntryHandler(punchService, log)

	r := chi.NewRouter()
	r.Use(httputil.IdentityMiddleware)
	r.Post("/punches/validate", punchHandler.Validate)
	r.Post("/punches/clock-in", punchHandler.ClockIn)
	r.Post("/punches/clock-out", punchHandler.ClockOut)
	r.Get("/punches/status", punchHandler.Status)
	r.Post("/validation-failures", punchHandler.LogFailure)
	r.Patch("/entries/{id}", entryHandler.Update)
	r.Post("/entries/{id}/dispute", entryHandler.Dispute)
	r.Delete("/entries/{id}/review", entryHandler.ClearReview)

	return r, mockDB
}

func TestPunchEndpoints(t *testing.T) {
	t.Run("missing dealership header is rejected", func(t *testing.T) {
		router, _ := newTestRouter(t)

		req := testutil.NewHTTPRequest(http.MethodPost, "/punches/validate", nil)
		rr := testutil.ExecuteRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("missing employee header is rejected", func(t *testing.T) {
		router, _ := newTestRouter(t)

		req := testutil.NewHTTPRequest(http.MethodPost, "/punches/validate", nil)
		req = testutil.WithIdentityHeaders(req, "dlr-1", "", "kiosk-1")
		rr := testutil.ExecuteRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("denied validation returns the decision, not an error", func(t *testing.T) {
		router, mockDB := newTestRouter(t)

		// No assignment row, failure recorded as a side effect
		mockDB.ExpectQuery(`FROM assignments`).
			WillReturnRows(testutil.MockRows("id"))
		mockDB.ExpectExec(`INSERT INTO validation_failures`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		req := testutil.NewHTTPRequest(http.MethodPost, "/punches/validate", nil)
		req = testutil.WithIdentityHeaders(req, "dlr-1", "emp-1", "kiosk-1")
		rr := testutil.ExecuteRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		testutil.AssertBodyContains(t, rr, `"allowed":false`)
		testutil.AssertBodyContains(t, rr, "no_assignment")
	})

	t.Run("unknown validation type is a bad request", func(t *testing.T) {
		router, _ := newTestRouter(t)

		req := testutil.NewHTTPRequest(http.MethodPost, "/validation-failures", map[string]string{
			"validation_type": "solar_flare",
			"reason":          "cosmic rays",
		})
		req = testutil.WithIdentityHeaders(req, "dlr-1", "emp-1", "kiosk-1")
		rr := testutil.ExecuteRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("kiosk failure report is accepted", func(t *testing.T) {
		router, mockDB := newTestRouter(t)

		mockDB.ExpectExec(`INSERT INTO validation_failures`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		req := testutil.NewHTTPRequest(http.MethodPost, "/validation-failures", map[string]string{
			"validation_type": repository.FailureFaceRecognition,
			"reason":          "no match after 3 attempts",
		})
		req = testutil.WithIdentityHeaders(req, "dlr-1", "emp-1", "kiosk-1")
		rr := testutil.ExecuteRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusNoContent)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("clock out without an open entry is not found", func(t *testing.T) {
		router, mockDB := newTestRouter(t)

		mockDB.ExpectQuery(`clock_out IS NULL`).
			WillReturnRows(testutil.MockRows("id"))

		req := testutil.NewHTTPRequest(http.MethodPost, "/punches/clock-out", nil)
		req = testutil.WithIdentityHeaders(req, "dlr-1", "emp-1", "")
		rr := testutil.ExecuteRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestEntryEndpoints(t *testing.T) {
	t.Run("malformed clock_in is a bad request before any lookup", func(t *testing.T) {
		router, mockDB := newTestRouter(t)

		// Entry lookup happens in the service, so the handler parses first
		req := testutil.NewHTTPRequest(http.MethodPatch, "/entries/entry-1", map[string]any{
			"clock_in": "yesterday-ish",
		})
		req = testutil.WithIdentityHeaders(req, "dlr-1", "emp-1", "")
		rr := testutil.ExecuteRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("dispute requires a reason", func(t *testing.T) {
		router, _ := newTestRouter(t)

		req := testutil.NewHTTPRequest(http.MethodPost, "/entries/entry-1/dispute", map[string]string{})
		req = testutil.WithIdentityHeaders(req, "dlr-1", "emp-1", "")
		rr := testutil.ExecuteRequest(router, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("review sign-off clears the flag", func(t *testing.T) {
		router, mockDB := newTestRouter(t)

		mockDB.ExpectExec(`requires_supervisor_review = false`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		req := testutil.NewHTTPRequest(http.MethodDelete, "/entries/entry-1/review", nil)
		req = testutil.WithIdentityHeaders(req, "dlr-1", "emp-1", "")
		rr := testutil.ExecuteRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusNoContent)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("review sign-off on an unknown entry is not found", func(t *testing.T) {
		router, mockDB := newTestRouter(t)

		mockDB.ExpectExec(`requires_supervisor_review = false`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		req := testutil.NewHTTPRequest(http.MethodDelete, "/entries/entry-1/review", nil)
		req = testutil.WithIdentityHeaders(req, "dlr-1", "emp-1", "")
		rr := testutil.ExecuteRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}
