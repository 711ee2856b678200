package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/dealerflow/dealerflow-backend/pkg/database"
)

// CachedEmployee is a local copy of employee identity, kept in sync from
// directory service events. Only what attendance queries need for display.
type CachedEmployee struct {
	EmployeeID   string    `db:"employee_id" json:"employee_id"`
	DealershipID *string   `db:"dealership_id" json:"dealership_id,omitempty"`
	Name         string    `db:"name" json:"name"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// EmployeeCacheRepository handles the local employee cache
type EmployeeCacheRepository struct {
	db *database.DB
}

// NewEmployeeCacheRepository creates a new employee cache repository
func NewEmployeeCacheRepository(db *database.DB) *EmployeeCacheRepository {
	return &EmployeeCacheRepository{db: db}
}

// Upsert creates or updates a cached employee
func (r *EmployeeCacheRepository) Upsert(ctx context.Context, emp *CachedEmployee) error {
	query := `
		INSERT INTO employee_cache (employee_id, dealership_id, name, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (employee_id) DO UPDATE SET
			dealership_id = EXCLUDED.dealership_id,
			name = EXCLUDED.name,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, emp.EmployeeID, emp.DealershipID, emp.Name)
	return err
}

// UpdateName updates just the cached display name
func (r *EmployeeCacheRepository) UpdateName(ctx context.Context, employeeID, name string) error {
	query := `
		UPDATE employee_cache
		SET name = $2, updated_at = NOW()
		WHERE employee_id = $1
	`
	_, err := r.db.ExecContext(ctx, query, employeeID, name)
	return err
}

// Get gets a cached employee by ID
func (r *EmployeeCacheRepository) Get(ctx context.Context, employeeID string) (*CachedEmployee, error) {
	var emp CachedEmployee

	query := `
		SELECT employee_id, dealership_id, name, updated_at
		FROM employee_cache
		WHERE employee_id = $1
	`
	err := r.db.GetContext(ctx, &emp, query, employeeID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &emp, nil
}

// Delete removes a cached employee
func (r *EmployeeCacheRepository) Delete(ctx context.Context, employeeID string) error {
	query := `DELETE FROM employee_cache WHERE employee_id = $1`
	_, err := r.db.ExecContext(ctx, query, employeeID)
	return err
}
