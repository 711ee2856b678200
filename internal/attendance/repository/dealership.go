package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/dealerflow/dealerflow-backend/pkg/database"
)

// DealershipSettings holds per-dealership attendance configuration: the
// timezone shift windows are evaluated in, the reminder escalation
// thresholds, and the auto-close review policy.
type DealershipSettings struct {
	DealershipID          string    `db:"dealership_id" json:"dealership_id"`
	Timezone              string    `db:"timezone" json:"timezone"`
	FirstReminderMinutes  int       `db:"first_reminder_minutes" json:"first_reminder_minutes"`
	SecondReminderMinutes int       `db:"second_reminder_minutes" json:"second_reminder_minutes"`
	AutoCloseMinutes      int       `db:"auto_close_minutes" json:"auto_close_minutes"`
	AutoCloseNeedsReview  bool      `db:"auto_close_needs_review" json:"auto_close_needs_review"`
	Active                bool      `db:"active" json:"active"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// Location resolves the dealership's timezone
func (d *DealershipSettings) Location() (*time.Location, error) {
	return time.LoadLocation(d.Timezone)
}

// DealershipRepository handles dealership settings persistence
type DealershipRepository struct {
	db *database.DB
}

// NewDealershipRepository creates a new dealership repository
func NewDealershipRepository(db *database.DB) *DealershipRepository {
	return &DealershipRepository{db: db}
}

// GetSettings gets the settings for a dealership
func (r *DealershipRepository) GetSettings(ctx context.Context, dealershipID string) (*DealershipSettings, error) {
	var settings DealershipSettings

	query := `
		SELECT dealership_id, timezone, first_reminder_minutes, second_reminder_minutes,
		       auto_close_minutes, auto_close_needs_review, active, created_at, updated_at
		FROM dealership_settings
		WHERE dealership_id = $1
	`
	err := r.db.GetContext(ctx, &settings, query, dealershipID)
	if err == sql.ErrNoRows {
		return nil, nil // Missing settings fall back to service defaults
	}
	if err != nil {
		return nil, err
	}

	return &settings, nil
}

// Upsert creates or replaces a dealership's settings
func (r *DealershipRepository) Upsert(ctx context.Context, settings *DealershipSettings) error {
	query := `
		INSERT INTO dealership_settings (
			dealership_id, timezone, first_reminder_minutes, second_reminder_minutes,
			auto_close_minutes, auto_close_needs_review, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (dealership_id) DO UPDATE SET
			timezone = EXCLUDED.timezone,
			first_reminder_minutes = EXCLUDED.first_reminder_minutes,
			second_reminder_minutes = EXCLUDED.second_reminder_minutes,
			auto_close_minutes = EXCLUDED.auto_close_minutes,
			auto_close_needs_review = EXCLUDED.auto_close_needs_review,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query,
		settings.DealershipID, settings.Timezone,
		settings.FirstReminderMinutes, settings.SecondReminderMinutes,
		settings.AutoCloseMinutes, settings.AutoCloseNeedsReview, settings.Active,
	).Scan(&settings.CreatedAt, &settings.UpdatedAt)
}

// ListActiveDealershipIDs lists the dealerships the scanner sweeps
func (r *DealershipRepository) ListActiveDealershipIDs(ctx context.Context) ([]string, error) {
	var ids []string

	query := `
		SELECT dealership_id
		FROM dealership_settings
		WHERE active = true
		ORDER BY dealership_id
	`
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, err
	}

	return ids, nil
}
