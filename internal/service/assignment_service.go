package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/oasistrek/tourops-api/internal/models"
	"github.com/oasistrek/tourops-api/internal/realtime"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
)

type assignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.TourAssignment, error)
	FindCurrentByTourist(ctx context.Context, touristID string) (*models.TourAssignment, error)
	Create(ctx context.Context, assignment *models.TourAssignment) error
	UpsertCurrent(ctx context.Context, candidate *models.TourAssignment) (*models.AssignmentUpsert, error)
	UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus) (*models.TourAssignment, error)
	Delete(ctx context.Context, id string) (*models.TourAssignment, error)
}

type assignmentTouristReader interface {
	FindByID(ctx context.Context, id string) (*models.TouristDetail, error)
}

type assignmentGuideRepository interface {
	FindByID(ctx context.Context, id string) (*models.Guide, error)
	UpdateStatus(ctx context.Context, id string, status models.GuideStatus) error
	ReleaseIfIdle(ctx context.Context, id string) (bool, error)
}

type assignmentNotifier interface {
	AssignmentCreated(ctx context.Context, assignment *models.TourAssignment)
}

// CreateAssignmentRequest holds payload for the explicit assignment create.
// All five fields are required; nothing is written when validation fails.
type CreateAssignmentRequest struct {
	TouristID string    `json:"tourist_id" validate:"required"`
	GuideID   string    `json:"guide_id" validate:"required"`
	TourName  string    `json:"tour_name" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// UpdateAssignmentStatusRequest moves an assignment through its lifecycle.
type UpdateAssignmentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AssignmentServiceConfig tunes the defaults used by the reconciler when it
// has to create an assignment on the fly.
type AssignmentServiceConfig struct {
	DefaultTourName string
	DefaultSpanDays int
}

// AssignmentService owns the tourist-guide reconciliation flow.
type AssignmentService struct {
	repo      assignmentRepository
	tourists  assignmentTouristReader
	guides    assignmentGuideRepository
	notifier  assignmentNotifier
	feed      *realtime.Feed
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	cfg       AssignmentServiceConfig
}

// AssignmentServiceParams groups constructor dependencies.
type AssignmentServiceParams struct {
	Repo      assignmentRepository
	Tourists  assignmentTouristReader
	Guides    assignmentGuideRepository
	Notifier  assignmentNotifier
	Feed      *realtime.Feed
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    AssignmentServiceConfig
}

// NewAssignmentService constructs an AssignmentService with sane defaults.
func NewAssignmentService(params AssignmentServiceParams) *AssignmentService {
	cfg := params.Config
	if cfg.DefaultTourName == "" {
		cfg.DefaultTourName = "Standard Tour"
	}
	if cfg.DefaultSpanDays <= 0 {
		cfg.DefaultSpanDays = 7
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		repo:      params.Repo,
		tourists:  params.Tourists,
		guides:    params.Guides,
		notifier:  params.Notifier,
		feed:      params.Feed,
		validator: validate,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
	}
}

// List returns assignments with display names and pagination metadata.
func (s *AssignmentService) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown assignment status filter")
	}
	assignments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := models.NewPagination(page, size, total)
	return assignments, pagination, nil
}

// AssignOrReassign points the tourist's current assignment at the given
// guide. When the tourist has no current assignment one is created with the
// configured default tour over the default span, starting today. The upsert
// is a single atomic statement, so two concurrent calls for one tourist
// settle on exactly one row.
func (s *AssignmentService) AssignOrReassign(ctx context.Context, touristID, guideID string) (*models.AssignmentUpsert, error) {
	if touristID == "" || guideID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tourist_id and guide_id are required")
	}
	if _, err := s.tourists.FindByID(ctx, touristID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tourist not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tourist")
	}
	if err := s.requireAvailableGuide(ctx, guideID); err != nil {
		return nil, err
	}

	start := s.today()
	candidate := &models.TourAssignment{
		TouristID: touristID,
		GuideID:   guideID,
		TourName:  s.cfg.DefaultTourName,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, s.cfg.DefaultSpanDays),
		Status:    models.AssignmentStatusActive,
	}

	outcome, err := s.repo.UpsertCurrent(ctx, candidate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reconcile assignment")
	}

	s.occupyGuide(ctx, guideID)
	if outcome.PreviousGuideID != "" && outcome.PreviousGuideID != guideID {
		s.releaseGuide(ctx, outcome.PreviousGuideID)
	}

	action := models.ChangeActionUpdate
	if outcome.Created {
		action = models.ChangeActionInsert
	}
	s.feed.Publish(models.ChangeEvent{Table: models.TableAssignments, Action: action, EntityID: outcome.Assignment.ID})
	s.feed.Publish(models.ChangeEvent{Table: models.TableGuides, Action: models.ChangeActionUpdate, EntityID: guideID})

	return outcome, nil
}

// Create records an explicit assignment with caller-provided tour and dates.
func (s *AssignmentService) Create(ctx context.Context, req CreateAssignmentRequest) (*models.TourAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}
	if _, err := s.tourists.FindByID(ctx, req.TouristID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tourist not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tourist")
	}
	if err := s.requireAvailableGuide(ctx, req.GuideID); err != nil {
		return nil, err
	}

	// The partial unique index backstops this check under concurrency.
	if _, err := s.repo.FindCurrentByTourist(ctx, req.TouristID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "tourist already has a current assignment")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check current assignment")
	}

	assignment := &models.TourAssignment{
		TouristID: req.TouristID,
		GuideID:   req.GuideID,
		TourName:  req.TourName,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Status:    models.AssignmentStatusActive,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.occupyGuide(ctx, req.GuideID)
	if s.notifier != nil {
		s.notifier.AssignmentCreated(ctx, assignment)
	}

	s.feed.Publish(models.ChangeEvent{Table: models.TableAssignments, Action: models.ChangeActionInsert, EntityID: assignment.ID})
	s.feed.Publish(models.ChangeEvent{Table: models.TableGuides, Action: models.ChangeActionUpdate, EntityID: req.GuideID})

	return assignment, nil
}

// UpdateStatus moves an assignment along pending -> active -> completed.
func (s *AssignmentService) UpdateStatus(ctx context.Context, id string, req UpdateAssignmentStatusRequest) (*models.TourAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	next := models.AssignmentStatus(req.Status)
	if !next.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be pending, active or completed")
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if !current.Status.CanTransition(next) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot move assignment from %s to %s", current.Status, next))
	}

	updated, err := s.repo.UpdateStatus(ctx, id, next)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment status")
	}

	if next.Terminal() {
		s.releaseGuide(ctx, updated.GuideID)
		s.feed.Publish(models.ChangeEvent{Table: models.TableGuides, Action: models.ChangeActionUpdate, EntityID: updated.GuideID})
	}
	s.feed.Publish(models.ChangeEvent{Table: models.TableAssignments, Action: models.ChangeActionUpdate, EntityID: updated.ID})

	return updated, nil
}

// Delete removes an assignment entirely, releasing the guide when the
// deleted row was still occupying them.
func (s *AssignmentService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}

	if !deleted.Status.Terminal() {
		s.releaseGuide(ctx, deleted.GuideID)
		s.feed.Publish(models.ChangeEvent{Table: models.TableGuides, Action: models.ChangeActionUpdate, EntityID: deleted.GuideID})
	}
	s.feed.Publish(models.ChangeEvent{Table: models.TableAssignments, Action: models.ChangeActionDelete, EntityID: deleted.ID})

	return nil
}

func (s *AssignmentService) requireAvailableGuide(ctx context.Context, guideID string) error {
	guide, err := s.guides.FindByID(ctx, guideID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "guide not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guide")
	}
	if guide.Status != models.GuideStatusAvailable {
		return appErrors.Clone(appErrors.ErrConflict, "guide is not available")
	}
	return nil
}

// occupyGuide and releaseGuide run after the assignment write committed.
// Failures are logged, never surfaced: ReleaseIfIdle re-checks open
// assignments, so a missed flip corrects itself on the next transition.
func (s *AssignmentService) occupyGuide(ctx context.Context, guideID string) {
	if err := s.guides.UpdateStatus(ctx, guideID, models.GuideStatusBusy); err != nil {
		s.logger.Warn("failed to mark guide busy", zap.String("guide_id", guideID), zap.Error(err))
	}
}

func (s *AssignmentService) releaseGuide(ctx context.Context, guideID string) {
	if _, err := s.guides.ReleaseIfIdle(ctx, guideID); err != nil {
		s.logger.Warn("failed to release guide", zap.String("guide_id", guideID), zap.Error(err))
	}
}

func (s *AssignmentService) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
