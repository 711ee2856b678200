package handler

import (
	"net/http"
	"time"

	"github.com/dealerflow/dealerflow-backend/internal/attendance/repository"
	"github.com/dealerflow/dealerflow-backend/internal/attendance/service"
	"github.com/dealerflow/dealerflow-backend/pkg/errors"
	"github.com/dealerflow/dealerflow-backend/pkg/httputil"
	"github.com/dealerflow/dealerflow-backend/pkg/logger"
	"github.com/jmoiron/sqlx/types"
)

// PunchHandler handles the kiosk punch endpoints
type PunchHandler struct {
	service *service.PunchService
	logger  *logger.Logger
}

// NewPunchHandler creates a new punch handler
func NewPunchHandler(svc *service.PunchService, log *logger.Logger) *PunchHandler {
	return &PunchHandler{
		service: svc,
		logger:  log,
	}
}

// identity pulls the gateway-verified caller out of the request context.
// Punch endpoints need an employee; the dealership is guaranteed by the
// identity middleware.
func identity(r *http.Request) (employeeID, dealershipID, kioskID string, err error) {
	employeeID = httputil.GetEmployeeID(r.Context())
	dealershipID = httputil.GetDealershipID(r.Context())
	kioskID = httputil.GetKioskID(r.Context())

	if employeeID == "" {
		err = errors.Unauthorized("employee not identified")
	}
	return
}

// Validate checks whether a punch-in would be allowed right now, without
// opening an entry. Kiosks call this before starting face capture.
// POST /punches/validate
func (h *PunchHandler) Validate(w http.ResponseWriter, r *http.Request) {
	employeeID, dealershipID, kioskID, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	decision, err := h.service.ValidatePunchIn(r.Context(), employeeID, dealershipID, kioskID, time.Now().UTC())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, decision)
}

// ClockInRequest is the clock-in payload from a kiosk
type ClockInRequest struct {
	FaceValidated bool `json:"face_validated"`
}

// ClockInResponse pairs the decision with the entry it opened, if any
type ClockInResponse struct {
	Decision *service.PunchDecision `json:"decision"`
	Entry    *repository.TimeEntry  `json:"entry,omitempty"`
}

// ClockIn validates and opens a time entry
// POST /punches/clock-in
func (h *PunchHandler) ClockIn(w http.ResponseWriter, r *http.Request) {
	employeeID, dealershipID, kioskID, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req ClockInRequest
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	entry, decision, err := h.service.ClockIn(r.Context(), employeeID, dealershipID, kioskID, req.FaceValidated)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if !decision.Allowed {
		// A denial is a normal outcome, not an HTTP error
		httputil.JSON(w, http.StatusOK, ClockInResponse{Decision: decision})
		return
	}

	httputil.Created(w, ClockInResponse{Decision: decision, Entry: entry})
}

// ClockOut closes the caller's open entry
// POST /punches/clock-out
func (h *PunchHandler) ClockOut(w http.ResponseWriter, r *http.Request) {
	employeeID, dealershipID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	entry, err := h.service.ClockOut(r.Context(), employeeID, dealershipID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entry)
}

// Status returns the caller's punch state and week hours
// GET /punches/status
func (h *PunchHandler) Status(w http.ResponseWriter, r *http.Request) {
	employeeID, dealershipID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	status, err := h.service.GetStatus(r.Context(), employeeID, dealershipID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, status)
}

// LogFailureRequest is a kiosk-side validation failure report
type LogFailureRequest struct {
	ValidationType string         `json:"validation_type" validate:"required"`
	Reason         string         `json:"reason" validate:"required"`
	Metadata       types.JSONText `json:"metadata,omitempty"`
}

// LogFailure records a failure the kiosk observed itself, such as a face
// mismatch or a camera fault. The engine only sees these through this
// endpoint.
// POST /validation-failures
func (h *PunchHandler) LogFailure(w http.ResponseWriter, r *http.Request) {
	employeeID := httputil.GetEmployeeID(r.Context())
	dealershipID := httputil.GetDealershipID(r.Context())
	kioskID := httputil.GetKioskID(r.Context())

	var req LogFailureRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.LogValidationFailure(r.Context(), employeeID, dealershipID, kioskID,
		req.ValidationType, req.Reason, req.Metadata); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
