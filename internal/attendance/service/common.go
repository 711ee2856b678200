package service

import (
	"math"
	"time"

	"github.com/dealerflow/dealerflow-backend/internal/attendance/repository"
	"github.com/dealerflow/dealerflow-backend/pkg/logger"
	"github.com/lib/pq"
)

// isUniqueViolation reports whether err is a Postgres unique violation
func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

// resolveLocation loads the dealership's timezone, falling back to the
// configured default and finally UTC. Shift windows and week boundaries are
// always evaluated in the dealership's local time, never the server's.
func resolveLocation(log *logger.Logger, settings *repository.DealershipSettings, defaultTZ string) *time.Location {
	if settings != nil && settings.Timezone != "" {
		loc, err := settings.Location()
		if err == nil {
			return loc
		}
		log.Warn().Str("timezone", settings.Timezone).Err(err).Msg("invalid dealership timezone, falling back to default")
	}

	loc, err := time.LoadLocation(defaultTZ)
	if err != nil {
		log.Warn().Str("timezone", defaultTZ).Err(err).Msg("invalid timezone, falling back to UTC")
		return time.UTC
	}

	return loc
}

// roundHours rounds to two decimal places, matching the NUMERIC(6,2) columns
func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

// workedHours computes the net worked hours for a closed interval after
// deducting break minutes. Never negative.
func workedHours(clockIn, clockOut time.Time, breakMinutes int) float64 {
	h := clockOut.Sub(clockIn).Hours() - float64(breakMinutes)/60
	if h < 0 {
		h = 0
	}
	return roundHours(h)
}
