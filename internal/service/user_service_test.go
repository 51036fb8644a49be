package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oasistrek/tourops-api/internal/models"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
)

// stubUserStore keeps accounts in a slice so tests can reach rows by index.
type stubUserStore struct {
	rows    []models.User
	listErr error
	audits  []*models.AuditLog
}

func (s *stubUserStore) indexOf(id string) int {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *stubUserStore) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	return append([]models.User(nil), s.rows...), len(s.rows), nil
}

func (s *stubUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	i := s.indexOf(id)
	if i < 0 {
		return nil, sql.ErrNoRows
	}
	row := s.rows[i]
	return &row, nil
}

func (s *stubUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for i := range s.rows {
		if s.rows[i].Email == email {
			row := s.rows[i]
			return &row, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubUserStore) Create(ctx context.Context, user *models.User) error {
	s.rows = append(s.rows, *user)
	return nil
}

func (s *stubUserStore) Update(ctx context.Context, user *models.User) error {
	i := s.indexOf(user.ID)
	if i < 0 {
		return sql.ErrNoRows
	}
	s.rows[i] = *user
	return nil
}

func (s *stubUserStore) Delete(ctx context.Context, id string) error {
	i := s.indexOf(id)
	if i < 0 {
		return sql.ErrNoRows
	}
	s.rows[i].Active = false
	return nil
}

func (s *stubUserStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.audits = append(s.audits, log)
	return nil
}

func newUserService(store *stubUserStore) *UserService {
	return NewUserService(store, validator.New(), zap.NewNop())
}

func TestUserServiceList(t *testing.T) {
	store := &stubUserStore{rows: []models.User{{ID: "1", Email: "ops@example.com"}}}
	svc := newUserService(store)

	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 1, pagination.TotalPages)
}

func TestUserServiceCreate(t *testing.T) {
	store := &stubUserStore{}
	svc := newUserService(store)

	user, err := svc.Create(context.Background(), CreateUserRequest{Email: "USER@EXAMPLE.COM", FullName: "User", Password: "secret1", Role: models.RoleOperator, Active: true}, "actor", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	require.Len(t, store.rows, 1)
	assert.NotEmpty(t, store.audits)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	store := &stubUserStore{rows: []models.User{{ID: "1", Email: "user@example.com"}}}
	svc := newUserService(store)

	_, err := svc.Create(context.Background(), CreateUserRequest{Email: "user@example.com", FullName: "User", Password: "secret1", Role: models.RoleOperator}, "actor", RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Len(t, store.rows, 1)
}

func TestUserServiceCreateRejectsTouristRole(t *testing.T) {
	svc := newUserService(&stubUserStore{})

	_, err := svc.Create(context.Background(), CreateUserRequest{Email: "t@example.com", FullName: "Tourist", Password: "secret1", Role: models.RoleTourist, Active: true}, "actor", RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdate(t *testing.T) {
	store := &stubUserStore{rows: []models.User{{ID: "1", Email: "ops@example.com", FullName: "Old", Role: models.RoleOperator, Active: true}}}
	svc := newUserService(store)

	active := false
	user, err := svc.Update(context.Background(), "1", UpdateUserRequest{FullName: "New", Role: models.RoleAdmin, Active: &active}, "actor", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.False(t, user.Active)
	assert.NotEmpty(t, store.audits)
}

func TestUserServiceUpdateMissing(t *testing.T) {
	svc := newUserService(&stubUserStore{})

	_, err := svc.Update(context.Background(), "ghost", UpdateUserRequest{FullName: "New", Role: models.RoleAdmin}, "actor", RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDelete(t *testing.T) {
	store := &stubUserStore{rows: []models.User{{ID: "1", Email: "ops@example.com", FullName: "Old", Role: models.RoleOperator, Active: true}}}
	svc := newUserService(store)

	err := svc.Delete(context.Background(), "1", "actor", RequestMeta{})
	require.NoError(t, err)
	assert.False(t, store.rows[0].Active)
	assert.NotEmpty(t, store.audits)
}

func TestUserServiceDeleteSelf(t *testing.T) {
	store := &stubUserStore{rows: []models.User{{ID: "1", Email: "ops@example.com", Role: models.RoleAdmin, Active: true}}}
	svc := newUserService(store)

	err := svc.Delete(context.Background(), "1", "1", RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.True(t, store.rows[0].Active)
}
