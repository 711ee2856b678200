package handler

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dealerflow/dealerflow-backend/internal/attendance/repository"
	"github.com/dealerflow/dealerflow-backend/internal/attendance/service"
	"github.com/dealerflow/dealerflow-backend/pkg/database"
	"github.com/dealerflow/dealerflow-backend/pkg/errors"
	"github.com/dealerflow/dealerflow-backend/pkg/httputil"
	"github.com/dealerflow/dealerflow-backend/pkg/logger"
)

// AdminHandler handles the management surface: assignments, dealership
// settings, failure audit queries, and manual overtime recomputes.
type AdminHandler struct {
	assignments *repository.AssignmentRepository
	dealerships *repository.DealershipRepository
	failures    *repository.ValidationFailureRepository
	overtime    *service.OvertimeService
	logger      *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	assignments *repository.AssignmentRepository,
	dealerships *repository.DealershipRepository,
	failures *repository.ValidationFailureRepository,
	overtime *service.OvertimeService,
	log *logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		assignments: assignments,
		dealerships: dealerships,
		failures:    failures,
		overtime:    overtime,
		logger:      log,
	}
}

// CreateAssignmentRequest binds an employee to the caller's dealership
type CreateAssignmentRequest struct {
	EmployeeID               string  `json:"employee_id" validate:"required,uuid"`
	ShiftStart               *string `json:"shift_start,omitempty"`
	ShiftEnd                 *string `json:"shift_end,omitempty"`
	EarlyPunchAllowedMinutes *int    `json:"early_punch_allowed_minutes,omitempty" validate:"omitempty,min=0,max=720"`
	LatePunchGraceMinutes    *int    `json:"late_punch_grace_minutes,omitempty" validate:"omitempty,min=0,max=720"`
	RequiredBreakMinutes     int     `json:"required_break_minutes" validate:"min=0,max=240"`
	RequireFaceValidation    bool    `json:"require_face_validation"`
	AutoCloseEnabled         *bool   `json:"auto_close_enabled,omitempty"`
	FirstReminderMinutes     *int    `json:"first_reminder_minutes,omitempty" validate:"omitempty,min=1"`
	SecondReminderMinutes    *int    `json:"second_reminder_minutes,omitempty" validate:"omitempty,min=1"`
	AutoCloseMinutes         *int    `json:"auto_close_minutes,omitempty" validate:"omitempty,min=1"`
}

// CreateAssignment creates an assignment at the caller's dealership
// POST /assignments
func (h *AdminHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	dealershipID := httputil.GetDealershipID(r.Context())

	var req CreateAssignmentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	// Shift times must parse if present; a bad value here would later fail
	// every punch as a configuration error
	for _, s := range []*string{req.ShiftStart, req.ShiftEnd} {
		if s == nil {
			continue
		}
		if _, err := time.Parse("15:04:05", *s); err != nil {
			if _, err := time.Parse("15:04", *s); err != nil {
				httputil.Error(w, errors.BadRequest("shift times must be HH:MM or HH:MM:SS"))
				return
			}
		}
	}

	assignment := &repository.Assignment{
		EmployeeID:               req.EmployeeID,
		DealershipID:             dealershipID,
		ShiftStart:               req.ShiftStart,
		ShiftEnd:                 req.ShiftEnd,
		EarlyPunchAllowedMinutes: req.EarlyPunchAllowedMinutes,
		LatePunchGraceMinutes:    req.LatePunchGraceMinutes,
		RequiredBreakMinutes:     req.RequiredBreakMinutes,
		RequireFaceValidation:    req.RequireFaceValidation,
		AutoCloseEnabled:         true,
		FirstReminderMinutes:     req.FirstReminderMinutes,
		SecondReminderMinutes:    req.SecondReminderMinutes,
		AutoCloseMinutes:         req.AutoCloseMinutes,
	}
	if req.AutoCloseEnabled != nil {
		assignment.AutoCloseEnabled = *req.AutoCloseEnabled
	}

	if err := h.assignments.Create(r.Context(), assignment); err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			httputil.Error(w, appErr)
			return
		}
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, assignment)
}

// ListAssignments lists an employee's assignments across dealerships
// GET /assignments?employee_id=...
func (h *AdminHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	employeeID := r.URL.Query().Get("employee_id")
	if employeeID == "" {
		httputil.Error(w, errors.BadRequest("employee_id is required"))
		return
	}

	assignments, err := h.assignments.ListByEmployee(r.Context(), employeeID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, assignments)
}

// UpdateAssignmentStatusRequest changes an assignment's lifecycle state
type UpdateAssignmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive suspended"`
}

// UpdateAssignmentStatus activates, deactivates, or suspends an assignment.
// Assignments are never deleted; history stays referenceable.
// PUT /assignments/{id}/status
func (h *AdminHandler) UpdateAssignmentStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateAssignmentStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.assignments.UpdateStatus(r.Context(), id, req.Status); err != nil {
		if err == sql.ErrNoRows {
			httputil.Error(w, errors.NotFound("assignment"))
			return
		}
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// UpsertSettingsRequest replaces a dealership's attendance settings
type UpsertSettingsRequest struct {
	Timezone              string `json:"timezone" validate:"required"`
	FirstReminderMinutes  int    `json:"first_reminder_minutes" validate:"required,min=1"`
	SecondReminderMinutes int    `json:"second_reminder_minutes" validate:"required,min=1"`
	AutoCloseMinutes      int    `json:"auto_close_minutes" validate:"required,min=1"`
	AutoCloseNeedsReview  bool   `json:"auto_close_needs_review"`
	Active                bool   `json:"active"`
}

// GetSettings returns the caller's dealership settings
// GET /settings
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	dealershipID := httputil.GetDealershipID(r.Context())

	settings, err := h.dealerships.GetSettings(r.Context(), dealershipID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if settings == nil {
		httputil.Error(w, errors.NotFound("dealership settings"))
		return
	}

	httputil.JSON(w, http.StatusOK, settings)
}

// UpsertSettings creates or replaces the caller's dealership settings
// PUT /settings
func (h *AdminHandler) UpsertSettings(w http.ResponseWriter, r *http.Request) {
	dealershipID := httputil.GetDealershipID(r.Context())

	var req UpsertSettingsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	if _, err := time.LoadLocation(req.Timezone); err != nil {
		httputil.Error(w, errors.BadRequest("unknown timezone"))
		return
	}

	settings := &repository.DealershipSettings{
		DealershipID:          dealershipID,
		Timezone:              req.Timezone,
		FirstReminderMinutes:  req.FirstReminderMinutes,
		SecondReminderMinutes: req.SecondReminderMinutes,
		AutoCloseMinutes:      req.AutoCloseMinutes,
		AutoCloseNeedsReview:  req.AutoCloseNeedsReview,
		Active:                req.Active,
	}

	if err := h.dealerships.Upsert(r.Context(), settings); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, settings)
}

// ListFailures returns recent validation failures for audit
// GET /validation-failures?employee_id=...&since=YYYY-MM-DD&limit=100
func (h *AdminHandler) ListFailures(w http.ResponseWriter, r *http.Request) {
	dealershipID := httputil.GetDealershipID(r.Context())

	since := time.Now().UTC().AddDate(0, 0, -7)
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid since date, expected YYYY-MM-DD"))
			return
		}
		since = t
	}

	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 1000 {
			httputil.Error(w, errors.BadRequest("limit must be between 1 and 1000"))
			return
		}
		limit = n
	}

	var (
		failures []*repository.ValidationFailure
		err      error
	)
	if employeeID := r.URL.Query().Get("employee_id"); employeeID != "" {
		failures, err = h.failures.ListByEmployee(r.Context(), employeeID, since, limit)
	} else {
		failures, err = h.failures.ListByDealership(r.Context(), dealershipID, since, limit)
	}
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, failures)
}

// RecalculateRequest names the week to recompute
type RecalculateRequest struct {
	EmployeeID string `json:"employee_id" validate:"required,uuid"`
	WeekOf     string `json:"week_of" validate:"required"` // any date inside the week, YYYY-MM-DD
}

// Recalculate forces a weekly overtime recompute. Normally the write paths
// trigger this themselves; the endpoint exists for backfills after data
// repairs.
// POST /overtime/recalculate
func (h *AdminHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	dealershipID := httputil.GetDealershipID(r.Context())

	var req RecalculateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	weekOf, err := time.Parse("2006-01-02", req.WeekOf)
	if err != nil {
		httputil.Error(w, errors.BadRequest("invalid week_of date, expected YYYY-MM-DD"))
		return
	}

	if err := h.overtime.RecalculateWeek(r.Context(), req.EmployeeID, dealershipID, weekOf); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
