package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dealerflow/dealerflow-backend/internal/attendance/service"
	"github.com/dealerflow/dealerflow-backend/pkg/errors"
	"github.com/dealerflow/dealerflow-backend/pkg/httputil"
	"github.com/dealerflow/dealerflow-backend/pkg/logger"
)

// EntryHandler handles time entry queries and corrections
type EntryHandler struct {
	service *service.PunchService
	logger  *logger.Logger
}

// NewEntryHandler creates a new entry handler
func NewEntryHandler(svc *service.PunchService, log *logger.Logger) *EntryHandler {
	return &EntryHandler{
		service: svc,
		logger:  log,
	}
}

// List returns an employee's entries within a date range
// GET /entries?employee_id=...&from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	dealershipID := httputil.GetDealershipID(r.Context())

	employeeID := r.URL.Query().Get("employee_id")
	if employeeID == "" {
		employeeID = httputil.GetEmployeeID(r.Context())
	}
	if employeeID == "" {
		httputil.Error(w, errors.BadRequest("employee_id is required"))
		return
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	entries, err := h.service.ListEntries(r.Context(), employeeID, dealershipID, from, to)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entries)
}

// UpdateEntryRequest carries the editable fields as RFC3339 strings
type UpdateEntryRequest struct {
	ClockIn      *string `json:"clock_in,omitempty"`
	ClockOut     *string `json:"clock_out,omitempty"`
	BreakMinutes *int    `json:"break_minutes,omitempty"`
}

// Update corrects a completed entry's times or break. The containing week is
// recomputed as part of the edit.
// PATCH /entries/{id}
func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateEntryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	update := &service.UpdateEntryRequest{BreakMinutes: req.BreakMinutes}

	if req.ClockIn != nil {
		t, err := time.Parse(time.RFC3339, *req.ClockIn)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid clock_in, expected RFC3339"))
			return
		}
		update.ClockIn = &t
	}
	if req.ClockOut != nil {
		t, err := time.Parse(time.RFC3339, *req.ClockOut)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid clock_out, expected RFC3339"))
			return
		}
		update.ClockOut = &t
	}

	entry, err := h.service.UpdateEntry(r.Context(), id, update)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entry)
}

// DisputeRequest flags an entry as contested
type DisputeRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// Dispute marks a completed entry as disputed, pulling it out of the weekly
// overtime allocation until resolved.
// POST /entries/{id}/dispute
func (h *EntryHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req DisputeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	entry, err := h.service.SetDisputed(r.Context(), id, true, req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entry)
}

// ResolveDispute clears the dispute flag and returns the entry to the
// allocation
// DELETE /entries/{id}/dispute
func (h *EntryHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := h.service.SetDisputed(r.Context(), id, false, "")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entry)
}

// ClearReview signs off an auto-closed entry after a supervisor checked it
// DELETE /entries/{id}/review
func (h *EntryHandler) ClearReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.ClearSupervisorReview(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// parseDateRange reads from/to query params, defaulting to the last 14 days.
// The range is half-open: [from, to).
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -14)
	to := now.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, time.Time{}, errors.BadRequest("invalid from date, expected YYYY-MM-DD")
		}
		from = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, time.Time{}, errors.BadRequest("invalid to date, expected YYYY-MM-DD")
		}
		to = t.AddDate(0, 0, 1) // inclusive end date
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.BadRequest("to must be after from")
	}

	return from, to, nil
}
