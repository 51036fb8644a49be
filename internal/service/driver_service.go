package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/oasistrek/tourops-api/internal/models"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
)

type driverRepository interface {
	List(ctx context.Context, filter models.DriverFilter) ([]models.Driver, int, error)
	FindByID(ctx context.Context, id string) (*models.Driver, error)
	Create(ctx context.Context, driver *models.Driver) error
	Update(ctx context.Context, driver *models.Driver) error
}

// CreateDriverRequest holds payload for adding a driver to the roster.
type CreateDriverRequest struct {
	FullName  string  `json:"full_name" validate:"required"`
	Phone     string  `json:"phone" validate:"required"`
	LicenseNo *string `json:"license_no"`
	Vehicle   *string `json:"vehicle"`
	Status    string  `json:"status" validate:"required"`
}

// UpdateDriverRequest holds payload for editing a driver.
type UpdateDriverRequest struct {
	FullName  string  `json:"full_name" validate:"required"`
	Phone     string  `json:"phone" validate:"required"`
	LicenseNo *string `json:"license_no"`
	Vehicle   *string `json:"vehicle"`
	Status    string  `json:"status" validate:"required"`
}

// DriverService manages the driver roster. Driver status is free-form text;
// only "available" carries scheduling meaning.
type DriverService struct {
	repo      driverRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDriverService constructs a DriverService.
func NewDriverService(repo driverRepository, validate *validator.Validate, logger *zap.Logger) *DriverService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DriverService{repo: repo, validator: validate, logger: logger}
}

// List returns drivers with pagination metadata.
func (s *DriverService) List(ctx context.Context, filter models.DriverFilter) ([]models.Driver, *models.Pagination, error) {
	drivers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list drivers")
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
	return drivers, pagination, nil
}

// Get fetches one driver.
func (s *DriverService) Get(ctx context.Context, id string) (*models.Driver, error) {
	driver, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "driver not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get driver")
	}
	return driver, nil
}

// Create adds a driver to the roster.
func (s *DriverService) Create(ctx context.Context, req CreateDriverRequest) (*models.Driver, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid driver payload")
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must not be blank")
	}

	driver := &models.Driver{
		FullName:  strings.TrimSpace(req.FullName),
		Phone:     strings.TrimSpace(req.Phone),
		LicenseNo: req.LicenseNo,
		Vehicle:   req.Vehicle,
		Status:    status,
	}
	if err := s.repo.Create(ctx, driver); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create driver")
	}
	return driver, nil
}

// Update edits an existing driver.
func (s *DriverService) Update(ctx context.Context, id string, req UpdateDriverRequest) (*models.Driver, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid driver payload")
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must not be blank")
	}

	driver, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	driver.FullName = strings.TrimSpace(req.FullName)
	driver.Phone = strings.TrimSpace(req.Phone)
	driver.LicenseNo = req.LicenseNo
	driver.Vehicle = req.Vehicle
	driver.Status = status

	if err := s.repo.Update(ctx, driver); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "driver not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update driver")
	}
	return driver, nil
}
