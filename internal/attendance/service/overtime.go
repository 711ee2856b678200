package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dealerflow/dealerflow-backend/internal/attendance/events"
	"github.com/dealerflow/dealerflow-backend/internal/attendance/repository"
	"github.com/dealerflow/dealerflow-backend/pkg/config"
	"github.com/dealerflow/dealerflow-backend/pkg/logger"
)

// OvertimeService distributes a week's worked hours into regular and
// overtime. The recompute is always full-week: any insert, edit, close, or
// dispute inside a week reallocates every entry in it.
type OvertimeService struct {
	entries     *repository.TimeEntryRepository
	dealerships *repository.DealershipRepository
	publisher   *events.AttendanceEventPublisher
	logger      *logger.Logger

	thresholdHours float64
	defaultTZ      string
	weekLocks      *keyedMutex
}

// NewOvertimeService creates a new overtime service
func NewOvertimeService(
	entries *repository.TimeEntryRepository,
	dealerships *repository.DealershipRepository,
	publisher *events.AttendanceEventPublisher,
	cfg *config.AttendanceConfig,
	log *logger.Logger,
) *OvertimeService {
	return &OvertimeService{
		entries:        entries,
		dealerships:    dealerships,
		publisher:      publisher,
		logger:         log.WithComponent("overtime"),
		thresholdHours: cfg.WeeklyOvertimeThresholdHours,
		defaultTZ:      cfg.DefaultTimezone,
		weekLocks:      newKeyedMutex(),
	}
}

// NormalizeWeekStart returns the Monday 00:00:00 of the week containing t,
// in the given location.
func NormalizeWeekStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	// Monday-based offset: Monday=0 ... Sunday=6
	offset := (int(local.Weekday()) + 6) % 7
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return midnight.AddDate(0, 0, -offset)
}

// hoursSplit is one entry's share of the weekly allocation
type hoursSplit struct {
	Regular  float64
	Overtime float64
}

// allocateHours walks entry totals chronologically against a regular-hours
// budget. The earliest hours in the week are protected as regular; overtime
// accrues on the latest-worked hours.
func allocateHours(totals []float64, budget float64) []hoursSplit {
	splits := make([]hoursSplit, len(totals))
	remaining := budget

	for i, total := range totals {
		switch {
		case remaining >= total:
			splits[i] = hoursSplit{Regular: total}
			remaining = roundHours(remaining - total)
		case remaining > 0:
			splits[i] = hoursSplit{Regular: remaining, Overtime: roundHours(total - remaining)}
			remaining = 0
		default:
			splits[i] = hoursSplit{Overtime: total}
		}
	}

	return splits
}

// location resolves the timezone weeks are normalized in for a dealership
func (s *OvertimeService) location(ctx context.Context, dealershipID string) (*time.Location, error) {
	settings, err := s.dealerships.GetSettings(ctx, dealershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dealership settings: %w", err)
	}
	return resolveLocation(s.logger, settings, s.defaultTZ), nil
}

// RecalculateWeek recomputes the regular/overtime split for the ISO week
// containing weekStart. Disputed entries are excluded from both the sum and
// the write set. Safe to call repeatedly: an unchanged week writes nothing.
func (s *OvertimeService) RecalculateWeek(ctx context.Context, employeeID, dealershipID string, weekStart time.Time) error {
	loc, err := s.location(ctx, dealershipID)
	if err != nil {
		return err
	}
	return s.recalculateWeek(ctx, employeeID, dealershipID, NormalizeWeekStart(weekStart, loc))
}

// recalculateWeek does the allocation for one already-normalized week start
func (s *OvertimeService) recalculateWeek(ctx context.Context, employeeID, dealershipID string, monday time.Time) error {
	weekEnd := monday.AddDate(0, 0, 7)

	lockKey := employeeID + "|" + dealershipID + "|" + monday.Format("2006-01-02")
	s.weekLocks.Lock(lockKey)
	defer s.weekLocks.Unlock(lockKey)

	entries, err := s.entries.ListWeekEntries(ctx, employeeID, dealershipID, monday, weekEnd)
	if err != nil {
		return fmt.Errorf("failed to list week entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	totals := make([]float64, len(entries))
	var totalWeekly float64
	for i, e := range entries {
		totals[i] = e.TotalHours
		totalWeekly += e.TotalHours
	}

	splits := allocateHours(totals, s.thresholdHours)

	var regularSum, overtimeSum float64
	for i, e := range entries {
		regularSum += splits[i].Regular
		overtimeSum += splits[i].Overtime

		if e.RegularHours == splits[i].Regular && e.OvertimeHours == splits[i].Overtime {
			continue
		}
		if err := s.entries.UpdateHoursSplit(ctx, e.ID, splits[i].Regular, splits[i].Overtime); err != nil {
			return fmt.Errorf("failed to update hours split for entry %s: %w", e.ID, err)
		}
	}

	s.logger.Debug().
		Str("employee_id", employeeID).
		Str("dealership_id", dealershipID).
		Time("week_start", monday).
		Float64("total_hours", roundHours(totalWeekly)).
		Float64("overtime_hours", roundHours(overtimeSum)).
		Msg("weekly overtime recalculated")

	s.publisher.PublishOvertimeRecalculated(ctx, employeeID, dealershipID, monday,
		roundHours(regularSum), roundHours(overtimeSum), len(entries))

	return nil
}

// RecalculateForEntry recomputes the week that contains the given entry
func (s *OvertimeService) RecalculateForEntry(ctx context.Context, entry *repository.TimeEntry) error {
	return s.RecalculateWeek(ctx, entry.EmployeeID, entry.DealershipID, entry.ClockIn)
}

// RecalculateForMove recomputes every week touched by an edit that may have
// moved an entry's clock-in. When the edit crossed a week boundary the source
// week is recomputed too, otherwise its split would keep overtime attributed
// from hours that left the week.
func (s *OvertimeService) RecalculateForMove(ctx context.Context, entry *repository.TimeEntry, previousClockIn time.Time) error {
	loc, err := s.location(ctx, entry.DealershipID)
	if err != nil {
		return err
	}

	newWeek := NormalizeWeekStart(entry.ClockIn, loc)
	if err := s.recalculateWeek(ctx, entry.EmployeeID, entry.DealershipID, newWeek); err != nil {
		return err
	}

	oldWeek := NormalizeWeekStart(previousClockIn, loc)
	if oldWeek.Equal(newWeek) {
		return nil
	}
	return s.recalculateWeek(ctx, entry.EmployeeID, entry.DealershipID, oldWeek)
}
