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

// GuideRepository manages persistence for guide roster records.
type GuideRepository struct {
	db *sqlx.DB
}

// NewGuideRepository constructs a GuideRepository.
func NewGuideRepository(db *sqlx.DB) *GuideRepository {
	return &GuideRepository{db: db}
}

const guideColumns = `id, full_name, email, phone, rating, specializations, status, created_at, updated_at`

// List returns guides matching the provided filters.
func (r *GuideRepository) List(ctx context.Context, filter models.GuideFilter) ([]models.Guide, int, error) {
	base := `FROM guides WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Specialization != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(specializations)", len(args)+1))
		args = append(args, filter.Specialization)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1))
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
		"email":      true,
		"rating":     true,
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", guideColumns, base, sortBy, sortOrder, pageSize, offset)

	var guides []models.Guide
	if err := r.db.SelectContext(ctx, &guides, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list guides: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count guides: %w", err)
	}

	return guides, total, nil
}

// FindByID fetches a guide by ID.
func (r *GuideRepository) FindByID(ctx context.Context, id string) (*models.Guide, error) {
	query := `SELECT ` + guideColumns + ` FROM guides WHERE id = $1 LIMIT 1`
	var guide models.Guide
	if err := r.db.GetContext(ctx, &guide, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find guide by id: %w", err)
	}
	return &guide, nil
}

// ExistsByEmail checks if a guide with the given email exists, optionally
// excluding an ID.
func (r *GuideRepository) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM guides WHERE LOWER(email) = LOWER($1)"
	args := []interface{}{email}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check guide email: %w", err)
	}
	return true, nil
}

// Create inserts a new guide record.
func (r *GuideRepository) Create(ctx context.Context, guide *models.Guide) error {
	if guide.ID == "" {
		guide.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if guide.CreatedAt.IsZero() {
		guide.CreatedAt = now
	}
	guide.UpdatedAt = now
	const query = `INSERT INTO guides (id, full_name, email, phone, rating, specializations, status, created_at, updated_at)
        VALUES (:id, :full_name, :email, :phone, :rating, :specializations, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, guide); err != nil {
		return fmt.Errorf("create guide: %w", err)
	}
	return nil
}

// Update modifies the editable roster fields. Rating is intentionally
// excluded; it only moves through the review pipeline.
func (r *GuideRepository) Update(ctx context.Context, guide *models.Guide) error {
	guide.UpdatedAt = time.Now().UTC()
	const query = `UPDATE guides SET full_name = :full_name, email = :email, phone = :phone, specializations = :specializations, status = :status, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, guide)
	if err != nil {
		return fmt.Errorf("update guide: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update guide rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus sets the guide's roster status directly.
func (r *GuideRepository) UpdateStatus(ctx context.Context, id string, status models.GuideStatus) error {
	const query = `UPDATE guides SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update guide status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update guide status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReleaseIfIdle flips a busy guide back to available when no non-terminal
// assignment still holds them. Offline guides are left untouched. Returns
// true when the status actually changed.
func (r *GuideRepository) ReleaseIfIdle(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE guides SET status = $2, updated_at = $3
        WHERE id = $1 AND status = $4
        AND NOT EXISTS (
            SELECT 1 FROM tour_assignments WHERE guide_id = $1 AND status IN ($5, $6)
        )`
	result, err := r.db.ExecContext(ctx, query, id,
		models.GuideStatusAvailable, time.Now().UTC(), models.GuideStatusBusy,
		models.AssignmentStatusPending, models.AssignmentStatusActive)
	if err != nil {
		return false, fmt.Errorf("release guide: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release guide rows: %w", err)
	}
	return affected > 0, nil
}

// CountByStatus aggregates guides by roster status.
func (r *GuideRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM guides GROUP BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count guides by status: %w", err)
	}
	return counts, nil
}
