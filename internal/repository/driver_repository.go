package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oasistrek/tourops-api/internal/models"
)

// DriverRepository manages persistence for the driver roster.
type DriverRepository struct {
	db *sqlx.DB
}

// NewDriverRepository constructs a DriverRepository.
func NewDriverRepository(db *sqlx.DB) *DriverRepository {
	return &DriverRepository{db: db}
}

const driverColumns = `id, full_name, phone, license_no, vehicle, status, created_at, updated_at`

// List returns drivers matching the provided filters.
func (r *DriverRepository) List(ctx context.Context, filter models.DriverFilter) ([]models.Driver, int, error) {
	base := `FROM drivers WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR phone LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	allowedSorts := map[string]bool{
		"full_name":  true,
		"status":     true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", driverColumns, base, sortBy, sortOrder, pageSize, offset)

	var drivers []models.Driver
	if err := r.db.SelectContext(ctx, &drivers, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list drivers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count drivers: %w", err)
	}

	return drivers, total, nil
}

// FindByID fetches a driver by ID.
func (r *DriverRepository) FindByID(ctx context.Context, id string) (*models.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1 LIMIT 1`
	var driver models.Driver
	if err := r.db.GetContext(ctx, &driver, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find driver by id: %w", err)
	}
	return &driver, nil
}

// Create inserts a new driver record.
func (r *DriverRepository) Create(ctx context.Context, driver *models.Driver) error {
	if driver.ID == "" {
		driver.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if driver.CreatedAt.IsZero() {
		driver.CreatedAt = now
	}
	driver.UpdatedAt = now
	const query = `INSERT INTO drivers (id, full_name, phone, license_no, vehicle, status, created_at, updated_at)
        VALUES (:id, :full_name, :phone, :license_no, :vehicle, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, driver); err != nil {
		return fmt.Errorf("create driver: %w", err)
	}
	return nil
}

// Update modifies an existing driver.
func (r *DriverRepository) Update(ctx context.Context, driver *models.Driver) error {
	driver.UpdatedAt = time.Now().UTC()
	const query = `UPDATE drivers SET full_name = :full_name, phone = :phone, license_no = :license_no, vehicle = :vehicle, status = :status, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, driver)
	if err != nil {
		return fmt.Errorf("update driver: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update driver rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus aggregates drivers by status value.
func (r *DriverRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM drivers GROUP BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count drivers by status: %w", err)
	}
	return counts, nil
}
