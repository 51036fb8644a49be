package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/oasistrek/tourops-api/internal/models"
	"github.com/oasistrek/tourops-api/internal/realtime"
	"github.com/oasistrek/tourops-api/internal/repository"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
)

type guideRequestRepository interface {
	Create(ctx context.Context, request *models.GuideRequest) error
	GetByID(ctx context.Context, id string) (*models.GuideRequestDetail, error)
	List(ctx context.Context, filter models.GuideRequestFilter) ([]models.GuideRequestDetail, int, error)
	Respond(ctx context.Context, params repository.RespondParams) error
}

type requestGuideReader interface {
	FindByID(ctx context.Context, id string) (*models.Guide, error)
}

// CreateGuideRequestRequest is the tourist-side submission payload.
type CreateGuideRequestRequest struct {
	Adults   int     `json:"adults" validate:"min=1"`
	Children int     `json:"children" validate:"min=0"`
	Note     *string `json:"note"`
}

// RespondGuideRequestRequest carries an admin triage decision.
type RespondGuideRequestRequest struct {
	Status   string  `json:"status" validate:"required,oneof=approved rejected"`
	GuideID  *string `json:"guide_id"`
	Response *string `json:"response"`
}

// GuideRequestService owns tourist guide-request submission and admin triage.
type GuideRequestService struct {
	repo      guideRequestRepository
	guides    requestGuideReader
	feed      *realtime.Feed
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewGuideRequestService constructs a GuideRequestService.
func NewGuideRequestService(repo guideRequestRepository, guides requestGuideReader, feed *realtime.Feed, validate *validator.Validate, logger *zap.Logger) *GuideRequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuideRequestService{
		repo:      repo,
		guides:    guides,
		feed:      feed,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Create records a pending request on behalf of the given tourist profile.
func (s *GuideRequestService) Create(ctx context.Context, touristID string, req CreateGuideRequestRequest) (*models.GuideRequest, error) {
	if touristID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tourist profile is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid guide request payload")
	}

	request := &models.GuideRequest{
		TouristID: touristID,
		Adults:    req.Adults,
		Children:  req.Children,
		Note:      req.Note,
		Status:    models.RequestStatusPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create guide request")
	}

	s.feed.Publish(models.ChangeEvent{Table: models.TableGuideRequests, Action: models.ChangeActionInsert, EntityID: request.ID})

	return request, nil
}

// List returns requests with display names and pagination metadata.
func (s *GuideRequestService) List(ctx context.Context, filter models.GuideRequestFilter) ([]models.GuideRequestDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown request status filter")
	}
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list guide requests")
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
	return requests, pagination, nil
}

// ListForTourist scopes the list to one tourist profile.
func (s *GuideRequestService) ListForTourist(ctx context.Context, touristID string, filter models.GuideRequestFilter) ([]models.GuideRequestDetail, *models.Pagination, error) {
	if touristID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "tourist profile is required")
	}
	filter.TouristID = touristID
	return s.List(ctx, filter)
}

// Get fetches a single request with display names.
func (s *GuideRequestService) Get(ctx context.Context, id string) (*models.GuideRequestDetail, error) {
	detail, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "guide request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get guide request")
	}
	return detail, nil
}

// Respond applies an admin decision to a pending request. A request may be
// reviewed once: anything past pending reports a conflict. An approval may
// stamp an available guide; a rejection always clears the guide column no
// matter what the payload carried.
func (s *GuideRequestService) Respond(ctx context.Context, id, reviewerID string, req RespondGuideRequestRequest) (*models.GuideRequestDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid respond payload")
	}
	status := models.RequestStatus(req.Status)

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != models.RequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "guide request already reviewed")
	}

	var assigned *string
	if status == models.RequestStatusApproved && req.GuideID != nil && *req.GuideID != "" {
		guide, err := s.guides.FindByID(ctx, *req.GuideID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "guide not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guide")
		}
		if guide.Status != models.GuideStatusAvailable {
			return nil, appErrors.Clone(appErrors.ErrConflict, "guide is not available")
		}
		assigned = req.GuideID
	}

	params := repository.RespondParams{
		ID:              id,
		Status:          status,
		AssignedGuideID: assigned,
		AdminResponse:   req.Response,
		RespondedBy:     reviewerID,
		RespondedAt:     s.now().UTC(),
	}
	if err := s.repo.Respond(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "guide request already reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to respond to guide request")
	}

	s.feed.Publish(models.ChangeEvent{Table: models.TableGuideRequests, Action: models.ChangeActionUpdate, EntityID: id})
	if assigned != nil {
		s.feed.Publish(models.ChangeEvent{Table: models.TableGuides, Action: models.ChangeActionUpdate, EntityID: *assigned})
	}

	return s.Get(ctx, id)
}
