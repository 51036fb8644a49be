package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/oasistrek/tourops-api/internal/models"
	"github.com/oasistrek/tourops-api/internal/realtime"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type authProfileRepository interface {
	UpsertForUser(ctx context.Context, profile *models.Profile) error
}

// AuthConfig defines configuration for authentication flows. With
// SingleSession enabled every login revokes the user's earlier refresh
// tokens, so at most one device stays signed in.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
	SingleSession      bool
}

// AuthService provides authentication use cases for back-office staff and
// tourists.
type AuthService struct {
	repo      authUserRepository
	profiles  authProfileRepository
	feed      *realtime.Feed
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, profiles authProfileRepository, feed *realtime.Feed, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{repo: repo, profiles: profiles, feed: feed, validator: validate, logger: logger, config: config}
}

// Signup registers a tourist account and its profile row, then issues a
// token pair so the client is logged in immediately.
func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest, meta RequestMeta) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup payload")
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	phone := strings.TrimSpace(req.Phone)
	if email == "" && phone == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "email or phone is required")
	}

	if email != "" {
		if _, err := s.repo.FindByEmail(ctx, email); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
		}
	}
	if phone != "" {
		if _, err := s.repo.FindByPhone(ctx, phone); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "phone already registered")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check phone")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         models.RoleTourist,
		Active:       true,
	}
	if phone != "" {
		user.Phone = &phone
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	profile := &models.Profile{
		UserID:   &user.ID,
		UserType: models.UserTypeTourist,
		FullName: req.FullName,
	}
	if email != "" {
		profile.Email = &email
	}
	if phone != "" {
		profile.Phone = &phone
	}
	if nationality := strings.TrimSpace(req.Nationality); nationality != "" {
		profile.Nationality = &nationality
	}
	if err := s.profiles.UpsertForUser(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create tourist profile")
	}

	s.feed.Publish(models.ChangeEvent{
		Table:    models.TableProfiles,
		Action:   models.ChangeActionInsert,
		EntityID: profile.ID,
		UserType: models.UserTypeTourist,
	})

	s.audit(ctx, user.ID, models.AuditActionSignup, []byte(`{"status":"registered"}`), meta)

	return s.issueTokenPair(ctx, user, meta)
}

// Login authenticates a user by email or phone and returns issued tokens.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest, meta RequestMeta) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.findByIdentifier(ctx, req.Identifier)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid identifier or password")
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid identifier or password")
	}

	if s.config.SingleSession {
		if err := s.repo.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
			s.logger.Warn("failed to revoke previous refresh tokens", zap.Error(err))
		}
	}
	if err := s.repo.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	s.audit(ctx, user.ID, models.AuditActionLogin, []byte(`{"status":"success"}`), meta)

	return s.issueTokenPair(ctx, user, meta)
}

// RefreshToken exchanges a refresh token for a new access token pair. The
// presented token is revoked so each value works once.
func (s *AuthService) RefreshToken(ctx context.Context, req models.RefreshTokenRequest, meta RequestMeta) (*models.RefreshTokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	stored, err := s.repo.FindRefreshToken(ctx, req.RefreshToken)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch refresh token")
	}
	if !stored.Usable(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token is expired or revoked")
	}

	user, err := s.repo.FindByID(ctx, stored.UserID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "associated user no longer exists")
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	if err := s.repo.RevokeRefreshToken(ctx, stored.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to revoke used refresh token", zap.Error(err))
	}

	pair, err := s.issueTokenPair(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, models.AuditActionLogin, []byte(`{"refresh":"rotated"}`), meta)

	return &models.RefreshTokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		IssuedAt:     pair.IssuedAt,
	}, nil
}

// Logout revokes the presented refresh token after checking it belongs to
// the caller.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, userID string, meta RequestMeta) error {
	stored, err := s.repo.FindRefreshToken(ctx, refreshToken)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
	case err != nil:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load refresh token")
	}
	if stored.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "token does not belong to user")
	}

	if err := s.repo.RevokeRefreshToken(ctx, stored.ID, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh token")
	}

	s.audit(ctx, userID, models.AuditActionLogout, []byte(`{"status":"logout"}`), meta)
	return nil
}

// ChangePassword verifies the old password, stores a new hash and revokes
// every refresh token so stolen sessions die with the old password.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest, meta RequestMeta) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}

	user, err := s.repo.FindByID(ctx, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	case err != nil:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "old password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash new password")
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke sessions after password change", zap.Error(err))
	}

	s.audit(ctx, userID, models.AuditActionPasswordChange, []byte(`{"status":"changed"}`), meta)
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	if !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// findByIdentifier resolves the login identifier to a user record. Anything
// containing an @ is treated as an email, everything else as a phone number.
func (s *AuthService) findByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return s.repo.FindByEmail(ctx, identifier)
	}
	return s.repo.FindByPhone(ctx, identifier)
}

func (s *AuthService) issueTokenPair(ctx context.Context, user *models.User, meta RequestMeta) (*models.LoginResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	refreshValue, err := s.newRefreshTokenValue()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	now := time.Now().UTC()
	refreshToken := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     refreshValue,
		ExpiresAt: now.Add(s.config.RefreshTokenExpiry),
		CreatedAt: now,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := s.repo.CreateRefreshToken(ctx, refreshToken); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken.Token,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     now,
		User: models.UserInfo{
			ID:       user.ID,
			Email:    user.Email,
			FullName: user.FullName,
			Role:     user.Role,
		},
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	now := time.Now().UTC()
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}

func (s *AuthService) newRefreshTokenValue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// audit appends an auth trail row. Failures are logged, never surfaced.
func (s *AuthService) audit(ctx context.Context, userID, action string, values []byte, meta RequestMeta) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "auth",
		ResourceID: &userID,
		NewValues:  values,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}
