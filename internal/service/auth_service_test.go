package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/oasistrek/tourops-api/internal/models"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
)

// stubAuthStore keeps accounts in a slice and refresh tokens in a map keyed
// by the opaque token value, mirroring the unique index on the real table.
type stubAuthStore struct {
	users  []models.User
	tokens map[string]*models.RefreshToken
	audits []*models.AuditLog
}

func (s *stubAuthStore) byID(id string) int {
	for i := range s.users {
		if s.users[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *stubAuthStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for i := range s.users {
		if s.users[i].Email == email {
			row := s.users[i]
			return &row, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubAuthStore) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	for i := range s.users {
		if s.users[i].Phone != nil && *s.users[i].Phone == phone {
			row := s.users[i]
			return &row, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubAuthStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	i := s.byID(id)
	if i < 0 {
		return nil, sql.ErrNoRows
	}
	row := s.users[i]
	return &row, nil
}

func (s *stubAuthStore) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "new-user"
	}
	s.users = append(s.users, *user)
	return nil
}

func (s *stubAuthStore) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if i := s.byID(id); i >= 0 {
		s.users[i].LastLogin = &ts
	}
	return nil
}

func (s *stubAuthStore) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	i := s.byID(id)
	if i < 0 {
		return sql.ErrNoRows
	}
	s.users[i].PasswordHash = passwordHash
	s.users[i].UpdatedAt = updatedAt
	return nil
}

func (s *stubAuthStore) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	now := time.Now()
	for _, token := range s.tokens {
		if token.UserID == userID && !token.Revoked {
			token.Revoked = true
			token.RevokedAt = &now
		}
	}
	return nil
}

func (s *stubAuthStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if s.tokens == nil {
		s.tokens = make(map[string]*models.RefreshToken)
	}
	s.tokens[token.Token] = token
	return nil
}

func (s *stubAuthStore) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := s.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return stored, nil
}

func (s *stubAuthStore) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range s.tokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *stubAuthStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	s.audits = append(s.audits, entry)
	return nil
}

type stubProfileStore struct {
	profiles []*models.Profile
}

func (s *stubProfileStore) UpsertForUser(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = "new-profile"
	}
	s.profiles = append(s.profiles, profile)
	return nil
}

func newAuthService(store *stubAuthStore, profiles *stubProfileStore) *AuthService {
	if profiles == nil {
		profiles = &stubProfileStore{}
	}
	return NewAuthService(store, profiles, nil, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: time.Hour * 24,
	})
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceLoginByEmail(t *testing.T) {
	store := &stubAuthStore{users: []models.User{
		{ID: "123", Email: "user@example.com", PasswordHash: hashOf(t, "password"), Active: true, Role: models.RoleAdmin},
	}}
	svc := newAuthService(store, nil)

	res, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "user@example.com", Password: "password"}, RequestMeta{IP: "10.0.0.5"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.NotNil(t, store.users[0].LastLogin)

	require.NotEmpty(t, store.tokens)
	for _, token := range store.tokens {
		assert.Equal(t, "10.0.0.5", token.IPAddress)
	}
}

func TestAuthServiceLoginByPhone(t *testing.T) {
	phone := "+971500001111"
	store := &stubAuthStore{users: []models.User{
		{ID: "t1", Phone: &phone, PasswordHash: hashOf(t, "password"), Active: true, Role: models.RoleTourist},
	}}
	svc := newAuthService(store, nil)

	res, err := svc.Login(context.Background(), models.LoginRequest{Identifier: phone, Password: "password"}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTourist, res.User.Role)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	store := &stubAuthStore{users: []models.User{
		{ID: "123", Email: "user@example.com", PasswordHash: hashOf(t, "password"), Active: false},
	}}
	svc := newAuthService(store, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "user@example.com", Password: "password"}, RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginSingleSession(t *testing.T) {
	store := &stubAuthStore{
		users: []models.User{
			{ID: "123", Email: "user@example.com", PasswordHash: hashOf(t, "password"), Active: true, Role: models.RoleAdmin},
		},
		tokens: map[string]*models.RefreshToken{
			"stale": {ID: "rt-1", UserID: "123", Token: "stale", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc := NewAuthService(store, &stubProfileStore{}, nil, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: time.Hour * 24,
		SingleSession:      true,
	})

	res, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "user@example.com", Password: "password"}, RequestMeta{})
	require.NoError(t, err)

	assert.True(t, store.tokens["stale"].Revoked)
	fresh, ok := store.tokens[res.RefreshToken]
	require.True(t, ok)
	assert.False(t, fresh.Revoked)
}

func TestAuthServiceSignup(t *testing.T) {
	store := &stubAuthStore{}
	profiles := &stubProfileStore{}
	svc := newAuthService(store, profiles)

	res, err := svc.Signup(context.Background(), models.SignupRequest{
		FullName:    "Aisha",
		Email:       "Aisha@Example.com",
		Password:    "secret1",
		Nationality: "AE",
	}, RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)

	require.Len(t, store.users, 1)
	created := store.users[0]
	assert.Equal(t, models.RoleTourist, created.Role)
	assert.Equal(t, "aisha@example.com", created.Email)
	assert.True(t, created.Active)

	require.Len(t, profiles.profiles, 1)
	profile := profiles.profiles[0]
	assert.Equal(t, models.UserTypeTourist, profile.UserType)
	require.NotNil(t, profile.UserID)
	assert.Equal(t, created.ID, *profile.UserID)
	require.NotNil(t, profile.Nationality)
	assert.Equal(t, "AE", *profile.Nationality)
}

func TestAuthServiceSignupRequiresContact(t *testing.T) {
	svc := newAuthService(&stubAuthStore{}, nil)

	_, err := svc.Signup(context.Background(), models.SignupRequest{FullName: "Aisha", Password: "secret1"}, RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceSignupDuplicateEmail(t *testing.T) {
	store := &stubAuthStore{users: []models.User{{ID: "existing", Email: "user@example.com"}}}
	svc := newAuthService(store, nil)

	_, err := svc.Signup(context.Background(), models.SignupRequest{FullName: "Aisha", Email: "user@example.com", Password: "secret1"}, RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Len(t, store.users, 1)
}

func TestAuthServiceRefreshToken(t *testing.T) {
	store := &stubAuthStore{
		users: []models.User{{ID: "u1", Email: "user@example.com", PasswordHash: "hash", Active: true, Role: models.RoleAdmin}},
		tokens: map[string]*models.RefreshToken{
			"token": {ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc := newAuthService(store, nil)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"}, RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, store.tokens["token"].Revoked)
}

func TestAuthServiceLogout(t *testing.T) {
	store := &stubAuthStore{tokens: map[string]*models.RefreshToken{
		"token": {ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthService(store, nil)

	err := svc.Logout(context.Background(), "token", "u1", RequestMeta{IP: "10.1.2.3"})
	require.NoError(t, err)
	assert.True(t, store.tokens["token"].Revoked)

	require.NotEmpty(t, store.audits)
	last := store.audits[len(store.audits)-1]
	assert.Equal(t, models.AuditActionLogout, last.Action)
	assert.Equal(t, "10.1.2.3", last.IPAddress)
}

func TestAuthServiceLogoutWrongUser(t *testing.T) {
	store := &stubAuthStore{tokens: map[string]*models.RefreshToken{
		"token": {ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthService(store, nil)

	err := svc.Logout(context.Background(), "token", "someone-else", RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.False(t, store.tokens["token"].Revoked)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash := hashOf(t, "old")
	store := &stubAuthStore{
		users: []models.User{{ID: "u1", PasswordHash: oldHash, Active: true}},
		tokens: map[string]*models.RefreshToken{
			"live": {ID: "rt9", UserID: "u1", Token: "live", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc := newAuthService(store, nil)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "old", NewPassword: "newpassword"}, RequestMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, store.users[0].PasswordHash)
	assert.True(t, store.tokens["live"].Revoked)
}

func TestValidateToken(t *testing.T) {
	svc := newAuthService(&stubAuthStore{}, nil)
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}
	token, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}
