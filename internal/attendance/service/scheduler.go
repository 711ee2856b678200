package service

import (
	"context"
	"time"

	"github.com/dealerflow/dealerflow-backend/internal/attendance/repository"
	"github.com/dealerflow/dealerflow-backend/pkg/logger"
)

// ScanScheduler runs the auto-close scan periodically across all active
// dealerships. Each cycle is a fresh read of the dealership list, so newly
// onboarded dealerships are picked up without a restart.
type ScanScheduler struct {
	autoClose   *AutoCloseService
	dealerships *repository.DealershipRepository
	interval    time.Duration
	logger      *logger.Logger
	cancel      context.CancelFunc
}

// NewScanScheduler creates a new scan scheduler
func NewScanScheduler(autoClose *AutoCloseService, dealerships *repository.DealershipRepository, interval time.Duration, log *logger.Logger) *ScanScheduler {
	return &ScanScheduler{
		autoClose:   autoClose,
		dealerships: dealerships,
		interval:    interval,
		logger:      log.WithComponent("scheduler"),
	}
}

// Start starts the scheduler in a background goroutine.
// On each tick it sweeps every active dealership for overdue punches.
func (s *ScanScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("auto-close scheduler started")

		// Run an initial scan immediately
		s.runScanCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("auto-close scheduler stopped")
				return
			case <-ticker.C:
				s.runScanCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *ScanScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// runScanCycle sweeps all active dealerships for overdue punches
func (s *ScanScheduler) runScanCycle(ctx context.Context) {
	start := time.Now()

	dealershipIDs, err := s.dealerships.ListActiveDealershipIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list active dealerships")
		return
	}

	for _, dealershipID := range dealershipIDs {
		if err := s.autoClose.ProcessDealership(ctx, dealershipID); err != nil {
			s.logger.Error().Err(err).Str("dealership_id", dealershipID).Msg("overdue scan failed for dealership")
		}
	}

	s.logger.Debug().
		Dur("duration", time.Since(start)).
		Int("dealership_count", len(dealershipIDs)).
		Msg("overdue scan cycle completed")
}
