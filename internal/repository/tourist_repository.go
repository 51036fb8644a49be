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

// TouristRepository reads tourist profiles joined against their current
// assignment. Roster status is derived from the join, never stored.
type TouristRepository struct {
	db *sqlx.DB
}

// NewTouristRepository constructs a TouristRepository.
func NewTouristRepository(db *sqlx.DB) *TouristRepository {
	return &TouristRepository{db: db}
}

const touristSelect = `p.id, p.user_id, p.user_type, p.full_name, p.email, p.phone, p.nationality, p.created_at, p.updated_at,
        ta.id AS current_assignment_id, ta.guide_id AS current_guide_id, g.full_name AS current_guide_name, ta.status AS current_status`

// List returns tourists matching the provided filters.
func (r *TouristRepository) List(ctx context.Context, filter models.TouristFilter) ([]models.TouristDetail, int, error) {
	base := `FROM profiles p
        LEFT JOIN tour_assignments ta ON ta.tourist_id = p.id AND ta.status IN ($1, $2)
        LEFT JOIN guides g ON g.id = ta.guide_id`
	args := []interface{}{models.AssignmentStatusPending, models.AssignmentStatusActive}
	conditions := []string{"p.user_type = $3"}
	args = append(args, models.UserTypeTourist)

	switch filter.Status {
	case models.TouristStatusActive:
		conditions = append(conditions, "ta.id IS NULL")
	case models.TouristStatusPending:
		conditions = append(conditions, fmt.Sprintf("ta.status = $%d", len(args)+1))
		args = append(args, models.AssignmentStatusPending)
	case models.TouristStatusAssigned:
		conditions = append(conditions, fmt.Sprintf("ta.status = $%d", len(args)+1))
		args = append(args, models.AssignmentStatusActive)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(p.full_name) LIKE $%d OR LOWER(COALESCE(p.email, '')) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"full_name":   "p.full_name",
		"nationality": "p.nationality",
		"created_at":  "p.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "p.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", touristSelect, base, column, order, size, offset)

	var rows []models.TouristRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list tourists: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(DISTINCT p.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count tourists: %w", err)
	}

	details := make([]models.TouristDetail, 0, len(rows))
	for _, row := range rows {
		details = append(details, row.Detail())
	}
	return details, total, nil
}

// FindByID fetches a tourist detail by profile ID.
func (r *TouristRepository) FindByID(ctx context.Context, id string) (*models.TouristDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles p
        LEFT JOIN tour_assignments ta ON ta.tourist_id = p.id AND ta.status IN ($2, $3)
        LEFT JOIN guides g ON g.id = ta.guide_id
        WHERE p.id = $1 AND p.user_type = $4`, touristSelect)
	var row models.TouristRow
	if err := r.db.GetContext(ctx, &row, query, id, models.AssignmentStatusPending, models.AssignmentStatusActive, models.UserTypeTourist); err != nil {
		return nil, err
	}
	detail := row.Detail()
	return &detail, nil
}

// FindByUserID fetches the tourist profile owned by an auth user.
func (r *TouristRepository) FindByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	const query = `SELECT id, user_id, user_type, full_name, email, phone, nationality, created_at, updated_at FROM profiles WHERE user_id = $1 LIMIT 1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find profile by user: %w", err)
	}
	return &profile, nil
}

// UpsertForUser inserts the profile row for an auth user, or refreshes the
// contact fields when one already exists. Used by tourist sign-up.
func (r *TouristRepository) UpsertForUser(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	const query = `INSERT INTO profiles (id, user_id, user_type, full_name, email, phone, nationality, created_at, updated_at)
        VALUES (:id, :user_id, :user_type, :full_name, :email, :phone, :nationality, :created_at, :updated_at)
        ON CONFLICT (user_id) DO UPDATE SET
            user_type = EXCLUDED.user_type,
            full_name = EXCLUDED.full_name,
            email = EXCLUDED.email,
            phone = EXCLUDED.phone,
            nationality = EXCLUDED.nationality,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// CountByDerivedStatus aggregates tourists by their derived roster status.
func (r *TouristRepository) CountByDerivedStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT CASE
            WHEN ta.id IS NULL THEN 'active'
            WHEN ta.status = $1 THEN 'pending'
            ELSE 'assigned'
        END AS status, COUNT(*) AS count
        FROM profiles p
        LEFT JOIN tour_assignments ta ON ta.tourist_id = p.id AND ta.status IN ($1, $2)
        WHERE p.user_type = $3
        GROUP BY 1`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query, models.AssignmentStatusPending, models.AssignmentStatusActive, models.UserTypeTourist); err != nil {
		return nil, fmt.Errorf("count tourists by status: %w", err)
	}
	return counts, nil
}
