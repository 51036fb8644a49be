package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/oasistrek/tourops-api/internal/models"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
)

type touristRepository interface {
	List(ctx context.Context, filter models.TouristFilter) ([]models.TouristDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.TouristDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.Profile, error)
}

// TouristService serves the tourist roster views.
type TouristService struct {
	repo   touristRepository
	logger *zap.Logger
}

// NewTouristService constructs the tourist service.
func NewTouristService(repo touristRepository, logger *zap.Logger) *TouristService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TouristService{repo: repo, logger: logger}
}

// List returns tourists with their derived roster status.
func (s *TouristService) List(ctx context.Context, filter models.TouristFilter) ([]models.TouristDetail, *models.Pagination, error) {
	if filter.Status != "" {
		switch filter.Status {
		case models.TouristStatusActive, models.TouristStatusPending, models.TouristStatusAssigned:
		default:
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown tourist status filter")
		}
	}
	tourists, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tourists")
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
	return tourists, pagination, nil
}

// Get returns one tourist with the derived status.
func (s *TouristService) Get(ctx context.Context, id string) (*models.TouristDetail, error) {
	tourist, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tourist not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tourist")
	}
	return tourist, nil
}

// GetByUser resolves the profile owned by an authenticated tourist account
// and returns the full roster view for it.
func (s *TouristService) GetByUser(ctx context.Context, userID string) (*models.TouristDetail, error) {
	profile, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tourist profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tourist profile")
	}
	return s.Get(ctx, profile.ID)
}
