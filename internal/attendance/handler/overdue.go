package handler

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dealerflow/dealerflow-backend/internal/attendance/repository"
	"github.com/dealerflow/dealerflow-backend/internal/attendance/service"
	"github.com/dealerflow/dealerflow-backend/pkg/errors"
	"github.com/dealerflow/dealerflow-backend/pkg/httputil"
	"github.com/dealerflow/dealerflow-backend/pkg/logger"
)

// OverdueHandler exposes the auto-close scanner's view of a dealership
type OverdueHandler struct {
	service   *service.AutoCloseService
	reminders *repository.ReminderRepository
	logger    *logger.Logger
}

// NewOverdueHandler creates a new overdue handler
func NewOverdueHandler(svc *service.AutoCloseService, reminders *repository.ReminderRepository, log *logger.Logger) *OverdueHandler {
	return &OverdueHandler{
		service:   svc,
		reminders: reminders,
		logger:    log,
	}
}

// List returns the entries the scanner would act on right now. Read-only;
// nothing is sent or closed by calling this.
// GET /overdue
func (h *OverdueHandler) List(w http.ResponseWriter, r *http.Request) {
	dealershipID := httputil.GetDealershipID(r.Context())

	actions, err := h.service.FindActionable(r.Context(), dealershipID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if actions == nil {
		actions = []*service.OverdueAction{}
	}

	httputil.JSON(w, http.StatusOK, actions)
}

// Scan runs one scan pass for the dealership immediately, outside the
// scheduler's cadence. Useful for supervisors at end of day.
// POST /overdue/scan
func (h *OverdueHandler) Scan(w http.ResponseWriter, r *http.Request) {
	dealershipID := httputil.GetDealershipID(r.Context())

	if err := h.service.ProcessDealership(r.Context(), dealershipID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// ListReminders returns the reminder trail for one entry, oldest first
// GET /entries/{id}/reminders
func (h *OverdueHandler) ListReminders(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "id")

	reminders, err := h.reminders.ListForEntry(r.Context(), entryID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, reminders)
}

// AcknowledgeReminder records that the employee reacted to a reminder, so
// the notification transport can stop repeating it.
// POST /reminders/{id}/acknowledge
func (h *OverdueHandler) AcknowledgeReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.reminders.MarkResponded(r.Context(), id); err != nil {
		if err == sql.ErrNoRows {
			httputil.Error(w, errors.NotFound("reminder"))
			return
		}
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
