package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/oasistrek/tourops-api/internal/models"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error

	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// RequestMeta carries the client details audit rows record about the actor.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// CreateUserRequest is the payload for creating staff accounts. Tourist
// accounts come from signup, never from back-office creation.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN OPERATOR"`
	Active   bool            `json:"active"`
	Password string          `json:"password" validate:"required,min=6"`
}

// UpdateUserRequest is the payload for updating staff accounts.
type UpdateUserRequest struct {
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN OPERATOR"`
	Active   *bool           `json:"active"`
}

// UserService manages back-office staff accounts. Every mutation writes its
// own audit row with before and after values, which is why the generic audit
// middleware stays off these routes.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List pages through accounts.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return users, models.NewPagination(page, pageSize, total), nil
}

// Get loads one account.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create adds a staff account after checking the email is free.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actorID string, meta RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     req.FullName,
		Role:         req.Role,
		Active:       req.Active,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	after, _ := json.Marshal(map[string]interface{}{"id": user.ID, "email": user.Email, "role": user.Role})
	s.audit(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionUserCreate,
		Resource:   "users",
		ResourceID: &user.ID,
		NewValues:  after,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return user, nil
}

// Update rewrites name, role and active flag.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actorID string, meta RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	user, err := s.repo.FindByID(ctx, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	before, _ := json.Marshal(map[string]interface{}{"role": user.Role, "active": user.Active})
	user.FullName = req.FullName
	user.Role = req.Role
	if req.Active != nil {
		user.Active = *req.Active
	}

	err = s.repo.Update(ctx, user)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	after, _ := json.Marshal(map[string]interface{}{"role": user.Role, "active": user.Active})
	s.audit(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionUserUpdate,
		Resource:   "users",
		ResourceID: &user.ID,
		OldValues:  before,
		NewValues:  after,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return user, nil
}

// Delete deactivates an account. Actors cannot deactivate themselves, that
// would lock the last admin out.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, meta RequestMeta) error {
	if id == actorID {
		return appErrors.Clone(appErrors.ErrValidation, "cannot deactivate own account")
	}

	user, err := s.repo.FindByID(ctx, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	case err != nil:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	err = s.repo.Delete(ctx, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	case err != nil:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	before, _ := json.Marshal(map[string]interface{}{"active": user.Active})
	after, _ := json.Marshal(map[string]interface{}{"active": false})
	s.audit(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionUserDelete,
		Resource:   "users",
		ResourceID: &user.ID,
		OldValues:  before,
		NewValues:  after,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return nil
}

func (s *UserService) audit(ctx context.Context, entry *models.AuditLog) {
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", zap.String("action", entry.Action), zap.Error(err))
	}
}
