package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oasistrek/tourops-api/internal/models"
)

// GuideRequestRepository persists tourist guide requests and their triage
// outcomes.
type GuideRequestRepository struct {
	db *sqlx.DB
}

// NewGuideRequestRepository constructs the repository.
func NewGuideRequestRepository(db *sqlx.DB) *GuideRequestRepository {
	return &GuideRequestRepository{db: db}
}

const requestColumns = `gr.id, gr.tourist_id, gr.adults, gr.children, gr.note, gr.status, gr.assigned_guide_id, gr.admin_response, gr.responded_by, gr.responded_at, gr.created_at, gr.updated_at`

const requestDetailColumns = requestColumns + `,
        p.full_name AS tourist_name, p.email AS tourist_email, g.full_name AS guide_name`

const requestJoins = `FROM guide_requests gr
        JOIN profiles p ON p.id = gr.tourist_id
        LEFT JOIN guides g ON g.id = gr.assigned_guide_id`

// Create inserts a new guide request.
func (r *GuideRequestRepository) Create(ctx context.Context, request *models.GuideRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.RequestStatusPending
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	const query = `INSERT INTO guide_requests (id, tourist_id, adults, children, note, status, assigned_guide_id, admin_response, responded_by, responded_at, created_at, updated_at)
        VALUES (:id, :tourist_id, :adults, :children, :note, :status, :assigned_guide_id, :admin_response, :responded_by, :responded_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create guide request: %w", err)
	}
	return nil
}

// GetByID fetches a request with display names.
func (r *GuideRequestRepository) GetByID(ctx context.Context, id string) (*models.GuideRequestDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE gr.id = $1", requestDetailColumns, requestJoins)
	var detail models.GuideRequestDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns requests matching the filter with total count.
func (r *GuideRequestRepository) List(ctx context.Context, filter models.GuideRequestFilter) ([]models.GuideRequestDetail, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("gr.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.TouristID != "" {
		conditions = append(conditions, fmt.Sprintf("gr.tourist_id = $%d", len(args)+1))
		args = append(args, filter.TouristID)
	}

	base := fmt.Sprintf("%s WHERE %s", requestJoins, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"created_at":   "gr.created_at",
		"responded_at": "gr.responded_at",
		"status":       "gr.status",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "gr.created_at"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", requestDetailColumns, base, column, order, size, offset)

	var requests []models.GuideRequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list guide requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count guide requests: %w", err)
	}
	return requests, total, nil
}

// RespondParams groups the columns written by triage.
type RespondParams struct {
	ID              string
	Status          models.RequestStatus
	AssignedGuideID *string
	AdminResponse   *string
	RespondedBy     string
	RespondedAt     time.Time
}

// Respond persists the triage outcome. The status guard makes the operation
// single-shot: a request that is no longer pending reports sql.ErrNoRows.
// assigned_guide_id is always written, so a rejection clears any value a
// stale payload might carry.
func (r *GuideRequestRepository) Respond(ctx context.Context, params RespondParams) error {
	query := fmt.Sprintf(`UPDATE guide_requests SET
            status = :status,
            assigned_guide_id = :assigned_guide_id,
            admin_response = :admin_response,
            responded_by = :responded_by,
            responded_at = :responded_at,
            updated_at = :responded_at
        WHERE id = :id AND status = '%s'`, models.RequestStatusPending)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                params.ID,
		"status":            params.Status,
		"assigned_guide_id": params.AssignedGuideID,
		"admin_response":    params.AdminResponse,
		"responded_by":      params.RespondedBy,
		"responded_at":      params.RespondedAt,
	})
	if err != nil {
		return fmt.Errorf("respond to guide request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check respond rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListRecentPending returns the newest pending requests for the overview.
func (r *GuideRequestRepository) ListRecentPending(ctx context.Context, limit int) ([]models.GuideRequestDetail, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	query := fmt.Sprintf("SELECT %s %s WHERE gr.status = $1 ORDER BY gr.created_at DESC LIMIT %d", requestDetailColumns, requestJoins, limit)
	var requests []models.GuideRequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, models.RequestStatusPending); err != nil {
		return nil, fmt.Errorf("list recent pending requests: %w", err)
	}
	return requests, nil
}

// CountByStatus aggregates requests by triage status.
func (r *GuideRequestRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM guide_requests GROUP BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count guide requests by status: %w", err)
	}
	return counts, nil
}
