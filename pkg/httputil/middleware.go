package httputil

import (
	"context"
	"net/http"
	"time"

	"github.com/dealerflow/dealerflow-backend/pkg/logger"
	"github.com/google/uuid"
)

type contextKey string

const (
	RequestIDKey    contextKey = "request_id"
	EmployeeIDKey   contextKey = "employee_id"
	DealershipIDKey contextKey = "dealership_id"
	KioskIDKey      contextKey = "kiosk_id"
)

// RequestID middleware adds a request ID to each request
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger middleware logs HTTP requests
func Logger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			log.Info().
				Str("request_id", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", duration).
				Str("employee_id", GetEmployeeID(r.Context())).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

// Recoverer middleware recovers from panics
func Recoverer(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error().
						Interface("panic", err).
						Str("path", r.URL.Path).
						Msg("panic recovered")

					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetEmployeeID retrieves the employee ID from context
func GetEmployeeID(ctx context.Context) string {
	if id, ok := ctx.Value(EmployeeIDKey).(string); ok {
		return id
	}
	return ""
}

// GetDealershipID retrieves the dealership ID from context
func GetDealershipID(ctx context.Context) string {
	if id, ok := ctx.Value(DealershipIDKey).(string); ok {
		return id
	}
	return ""
}

// GetKioskID retrieves the kiosk ID from context
func GetKioskID(ctx context.Context) string {
	if id, ok := ctx.Value(KioskIDKey).(string); ok {
		return id
	}
	return ""
}

// WithIdentity adds the caller identity to the context
func WithIdentity(ctx context.Context, employeeID, dealershipID, kioskID string) context.Context {
	ctx = context.WithValue(ctx, EmployeeIDKey, employeeID)
	ctx = context.WithValue(ctx, DealershipIDKey, dealershipID)
	ctx = context.WithValue(ctx, KioskIDKey, kioskID)
	return ctx
}

// IdentityMiddleware extracts the already-authorized caller identity from
// headers set by the API gateway and adds it to the request context.
//
// Headers expected (set by the gateway after token verification):
//   - X-Dealership-ID: dealership UUID (required)
//   - X-Employee-ID:   employee UUID (required for punch endpoints)
//   - X-Kiosk-ID:      originating kiosk, if the request came from one
//
// The attendance service does not verify credentials itself; authorization
// lives in the gateway. A request without a dealership is rejected fail-fast.
// Exception: /health is allowed through for monitoring.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		dealershipID := r.Header.Get("X-Dealership-ID")
		employeeID := r.Header.Get("X-Employee-ID")
		kioskID := r.Header.Get("X-Kiosk-ID")

		if dealershipID == "" {
			http.Error(w, `{"error":"missing dealership context"}`, http.StatusForbidden)
			return
		}

		ctx := WithIdentity(r.Context(), employeeID, dealershipID, kioskID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
