package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/oasistrek/tourops-api/internal/models"
	"github.com/oasistrek/tourops-api/internal/realtime"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
)

type guideRepository interface {
	List(ctx context.Context, filter models.GuideFilter) ([]models.Guide, int, error)
	FindByID(ctx context.Context, id string) (*models.Guide, error)
	ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error)
	Create(ctx context.Context, guide *models.Guide) error
	Update(ctx context.Context, guide *models.Guide) error
}

// CreateGuideRequest holds payload for adding a guide to the roster.
// Specializations arrive as one comma-delimited string.
type CreateGuideRequest struct {
	FullName        string `json:"full_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"required"`
	Specializations string `json:"specializations" validate:"required"`
	Status          string `json:"status" validate:"required"`
}

// UpdateGuideRequest holds payload for editing roster fields. Rating is not
// editable here; it only moves through the review pipeline.
type UpdateGuideRequest struct {
	FullName        string `json:"full_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"required"`
	Specializations string `json:"specializations" validate:"required"`
	Status          string `json:"status" validate:"required"`
}

// GuideService handles guide roster use-cases.
type GuideService struct {
	repo      guideRepository
	feed      *realtime.Feed
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGuideService constructs the guide service.
func NewGuideService(repo guideRepository, feed *realtime.Feed, validate *validator.Validate, logger *zap.Logger) *GuideService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuideService{repo: repo, feed: feed, validator: validate, logger: logger}
}

// List returns guides and pagination metadata.
func (s *GuideService) List(ctx context.Context, filter models.GuideFilter) ([]models.Guide, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown guide status filter")
	}
	guides, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list guides")
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
	return guides, pagination, nil
}

// Get returns one guide.
func (s *GuideService) Get(ctx context.Context, id string) (*models.Guide, error) {
	guide, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "guide not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guide")
	}
	return guide, nil
}

// Create adds a guide to the roster. Rating always starts at zero.
func (s *GuideService) Create(ctx context.Context, req CreateGuideRequest) (*models.Guide, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid guide payload")
	}
	status := models.GuideStatus(req.Status)
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be available, busy or offline")
	}
	specializations := models.ParseSpecializations(req.Specializations)
	if len(specializations) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one specialization is required")
	}

	exists, err := s.repo.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already used by another guide")
	}

	guide := &models.Guide{
		FullName:        req.FullName,
		Email:           req.Email,
		Phone:           req.Phone,
		Rating:          0,
		Specializations: specializations,
		Status:          status,
	}
	if err := s.repo.Create(ctx, guide); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create guide")
	}

	s.feed.Publish(models.ChangeEvent{Table: models.TableGuides, Action: models.ChangeActionInsert, EntityID: guide.ID})
	return guide, nil
}

// Update edits roster fields of an existing guide. The stored rating is
// carried over untouched.
func (s *GuideService) Update(ctx context.Context, id string, req UpdateGuideRequest) (*models.Guide, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid guide payload")
	}
	status := models.GuideStatus(req.Status)
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be available, busy or offline")
	}
	specializations := models.ParseSpecializations(req.Specializations)
	if len(specializations) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one specialization is required")
	}

	guide, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "guide not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guide")
	}

	exists, err := s.repo.ExistsByEmail(ctx, req.Email, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already used by another guide")
	}

	guide.FullName = req.FullName
	guide.Email = req.Email
	guide.Phone = req.Phone
	guide.Specializations = specializations
	guide.Status = status
	if err := s.repo.Update(ctx, guide); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "guide not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update guide")
	}

	s.feed.Publish(models.ChangeEvent{Table: models.TableGuides, Action: models.ChangeActionUpdate, EntityID: guide.ID})
	return guide, nil
}
