// Package testutil provides testing utilities for the DealerFlow attendance
// service. It includes testcontainers for PostgreSQL, mock factories, and
// common test fixtures.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "dealerflow_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer container.Terminate(ctx)
//
//	    // Run tests
//	    code := m.Run()
//	    os.Exit(code)
//	}
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = "postgres:15-alpine"
	}
	if cfg.Database == "" {
		cfg.Database = "dealerflow_test"
	}
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// ApplyAttendanceSchema creates the attendance service tables.
// This mirrors the production migrations.
func (c *PostgresContainer) ApplyAttendanceSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS dealership_settings (
			dealership_id UUID PRIMARY KEY,
			timezone VARCHAR(64) NOT NULL DEFAULT 'America/Chicago',
			first_reminder_minutes INT NOT NULL DEFAULT 15,
			second_reminder_minutes INT NOT NULL DEFAULT 30,
			auto_close_minutes INT NOT NULL DEFAULT 60,
			auto_close_needs_review BOOLEAN NOT NULL DEFAULT true,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS assignments (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			employee_id UUID NOT NULL,
			dealership_id UUID NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			shift_start TIME,
			shift_end TIME,
			early_punch_allowed_minutes INT,
			late_punch_grace_minutes INT,
			required_break_minutes INT NOT NULL DEFAULT 0,
			require_face_validation BOOLEAN NOT NULL DEFAULT false,
			auto_close_enabled BOOLEAN NOT NULL DEFAULT true,
			first_reminder_minutes INT,
			second_reminder_minutes INT,
			auto_close_minutes INT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT assignment_status_valid CHECK (status IN ('active', 'inactive', 'suspended')),
			CONSTRAINT assignment_employee_dealership UNIQUE (employee_id, dealership_id)
		);

		CREATE TABLE IF NOT EXISTS time_entries (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			employee_id UUID NOT NULL,
			dealership_id UUID NOT NULL,
			assignment_id UUID NOT NULL REFERENCES assignments(id),
			clock_in TIMESTAMPTZ NOT NULL,
			clock_out TIMESTAMPTZ,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			break_minutes INT NOT NULL DEFAULT 0,
			total_hours NUMERIC(6,2) NOT NULL DEFAULT 0,
			regular_hours NUMERIC(6,2) NOT NULL DEFAULT 0,
			overtime_hours NUMERIC(6,2) NOT NULL DEFAULT 0,
			auto_close_reason TEXT,
			requires_supervisor_review BOOLEAN NOT NULL DEFAULT false,
			dispute_reason TEXT,
			kiosk_id UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT entry_status_valid CHECK (status IN ('active', 'complete', 'disputed')),
			CONSTRAINT clock_out_after_clock_in CHECK (clock_out IS NULL OR clock_out > clock_in)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS one_open_entry_per_employee
			ON time_entries (employee_id) WHERE status = 'active';

		CREATE INDEX IF NOT EXISTS idx_time_entries_employee_week
			ON time_entries (employee_id, clock_in);

		CREATE TABLE IF NOT EXISTS punch_out_reminders (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			time_entry_id UUID NOT NULL REFERENCES time_entries(id),
			reminder_type VARCHAR(30) NOT NULL,
			minutes_overdue INT NOT NULL,
			sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			employee_responded BOOLEAN NOT NULL DEFAULT false,
			CONSTRAINT reminder_type_valid CHECK (reminder_type IN ('first_reminder', 'second_reminder', 'auto_close')),
			CONSTRAINT one_reminder_per_type UNIQUE (time_entry_id, reminder_type)
		);

		CREATE TABLE IF NOT EXISTS validation_failures (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			employee_id UUID,
			dealership_id UUID NOT NULL,
			failure_type VARCHAR(50) NOT NULL,
			reason TEXT,
			kiosk_id UUID,
			metadata JSONB NOT NULL DEFAULT '{}',
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS employee_cache (
			employee_id UUID PRIMARY KEY,
			dealership_id UUID,
			name VARCHAR(255) NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to apply attendance schema: %w", err)
	}

	return nil
}
