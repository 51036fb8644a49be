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

// AssignmentRepository persists tourist-guide tour assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, tourist_id, guide_id, tour_name, start_date, end_date, status, created_at, updated_at`

// List returns assignments with tourist and guide display names.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	base := `FROM tour_assignments ta
        JOIN profiles p ON p.id = ta.tourist_id
        JOIN guides g ON g.id = ta.guide_id`
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("ta.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.TouristID != "" {
		conditions = append(conditions, fmt.Sprintf("ta.tourist_id = $%d", len(args)+1))
		args = append(args, filter.TouristID)
	}
	if filter.GuideID != "" {
		conditions = append(conditions, fmt.Sprintf("ta.guide_id = $%d", len(args)+1))
		args = append(args, filter.GuideID)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"start_date": "ta.start_date",
		"end_date":   "ta.end_date",
		"tour_name":  "ta.tour_name",
		"status":     "ta.status",
		"created_at": "ta.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "ta.created_at"
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

	query := fmt.Sprintf(`SELECT ta.id, ta.tourist_id, ta.guide_id, ta.tour_name, ta.start_date, ta.end_date, ta.status, ta.created_at, ta.updated_at,
        p.full_name AS tourist_name, g.full_name AS guide_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}
	return assignments, total, nil
}

// FindByID fetches a single assignment.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.TourAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM tour_assignments WHERE id = $1 LIMIT 1`
	var assignment models.TourAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment by id: %w", err)
	}
	return &assignment, nil
}

// FindCurrentByTourist returns the tourist's non-terminal assignment, if any.
func (r *AssignmentRepository) FindCurrentByTourist(ctx context.Context, touristID string) (*models.TourAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM tour_assignments WHERE tourist_id = $1 AND status IN ($2, $3) LIMIT 1`
	var assignment models.TourAssignment
	err := r.db.GetContext(ctx, &assignment, query, touristID, models.AssignmentStatusPending, models.AssignmentStatusActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find current assignment: %w", err)
	}
	return &assignment, nil
}

// Create inserts a new assignment row.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.TourAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now
	const query = `INSERT INTO tour_assignments (id, tourist_id, guide_id, tour_name, start_date, end_date, status, created_at, updated_at)
        VALUES (:id, :tourist_id, :guide_id, :tour_name, :start_date, :end_date, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// UpsertCurrent reassigns the tourist's current assignment to the candidate's
// guide, or inserts the candidate when no non-terminal assignment exists.
// A reassignment touches guide_id only; tour name, dates and status stay as
// they were. The partial unique index on (tourist_id) for non-terminal rows
// turns a concurrent duplicate insert into an update, so two racing calls
// still leave exactly one current row.
func (r *AssignmentRepository) UpsertCurrent(ctx context.Context, candidate *models.TourAssignment) (*models.AssignmentUpsert, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reassignment: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	outcome := &models.AssignmentUpsert{}

	var existing models.TourAssignment
	err = tx.GetContext(ctx, &existing,
		`SELECT `+assignmentColumns+` FROM tour_assignments WHERE tourist_id = $1 AND status IN ($2, $3) FOR UPDATE`,
		candidate.TouristID, models.AssignmentStatusPending, models.AssignmentStatusActive)
	switch {
	case err == nil:
		var updated models.TourAssignment
		if err := tx.GetContext(ctx, &updated,
			`UPDATE tour_assignments SET guide_id = $2, updated_at = $3 WHERE id = $1 RETURNING `+assignmentColumns,
			existing.ID, candidate.GuideID, now); err != nil {
			return nil, fmt.Errorf("reassign guide: %w", err)
		}
		outcome.Assignment = updated
		outcome.PreviousGuideID = existing.GuideID
	case errors.Is(err, sql.ErrNoRows):
		if candidate.ID == "" {
			candidate.ID = uuid.NewString()
		}
		candidate.CreatedAt = now
		candidate.UpdatedAt = now
		var inserted struct {
			models.TourAssignment
			Inserted bool `db:"inserted"`
		}
		row := tx.QueryRowxContext(ctx,
			`INSERT INTO tour_assignments (id, tourist_id, guide_id, tour_name, start_date, end_date, status, created_at, updated_at)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
             ON CONFLICT (tourist_id) WHERE status IN ('pending', 'active')
             DO UPDATE SET guide_id = EXCLUDED.guide_id, updated_at = EXCLUDED.updated_at
             RETURNING `+assignmentColumns+`, (xmax = 0) AS inserted`,
			candidate.ID, candidate.TouristID, candidate.GuideID, candidate.TourName,
			candidate.StartDate, candidate.EndDate, candidate.Status, candidate.CreatedAt, candidate.UpdatedAt)
		if err := row.StructScan(&inserted); err != nil {
			return nil, fmt.Errorf("insert assignment: %w", err)
		}
		outcome.Assignment = inserted.TourAssignment
		outcome.Created = inserted.Inserted
	default:
		return nil, fmt.Errorf("lock current assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reassignment: %w", err)
	}
	return outcome, nil
}

// UpdateStatus transitions an assignment and returns the stored row.
func (r *AssignmentRepository) UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus) (*models.TourAssignment, error) {
	var updated models.TourAssignment
	err := r.db.GetContext(ctx, &updated,
		`UPDATE tour_assignments SET status = $2, updated_at = $3 WHERE id = $1 RETURNING `+assignmentColumns,
		id, status, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update assignment status: %w", err)
	}
	return &updated, nil
}

// Delete removes an assignment and returns the deleted row.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) (*models.TourAssignment, error) {
	var deleted models.TourAssignment
	err := r.db.GetContext(ctx, &deleted,
		`DELETE FROM tour_assignments WHERE id = $1 RETURNING `+assignmentColumns, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("delete assignment: %w", err)
	}
	return &deleted, nil
}

// CountByStatus aggregates assignments by lifecycle status.
func (r *AssignmentRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM tour_assignments GROUP BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count assignments by status: %w", err)
	}
	return counts, nil
}
