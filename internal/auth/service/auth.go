package service

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/attendtrack/attendance-backend/internal/auth/jwt"
	userdomain "github.com/attendtrack/attendance-backend/internal/user/domain"
	userservice "github.com/attendtrack/attendance-backend/internal/user/service"
	"github.com/attendtrack/attendance-backend/pkg/errors"
	"github.com/attendtrack/attendance-backend/pkg/logger"
)

// UserDirectory resolves accounts for login and admin checks
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// AuthService handles authentication logic
type AuthService struct {
	users      UserDirectory
	jwtManager *jwt.Manager
	logger     *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users UserDirectory, jwtManager *jwt.Manager, log *logger.Logger) *AuthService {
	return &AuthService{
		users:      users,
		jwtManager: jwtManager,
		logger:     log.WithComponent("auth"),
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token     string           `json:"token"`
	TokenType string           `json:"token_type"`
	ExpiresAt time.Time        `json:"expires_at"`
	User      *userdomain.User `json:"user"`
}

// dummyHash keeps unknown-email logins about as slow as wrong-password ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("attendance-placeholder"), bcrypt.DefaultCost)

// Login authenticates a user and returns an access token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	email := userservice.NormalizeEmail(req.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			s.logger.Error().Err(err).Msg("failed to look up user for login")
			return nil, errors.Internal("failed to authenticate", err)
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		return nil, errors.InvalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Info().Str("user_id", user.ID).Msg("login rejected: wrong password")
		return nil, errors.InvalidCredentials()
	}

	token, expiresAt, err := s.jwtManager.Generate(&jwt.UserInfo{
		ID:      user.ID,
		Email:   user.Email,
		Name:    user.Name,
		IsAdmin: user.IsAdmin,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to sign token")
		return nil, errors.Internal("failed to generate token", err)
	}

	s.logger.Info().Str("user_id", user.ID).Bool("is_admin", user.IsAdmin).Msg("user logged in")

	return &LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

// ValidateToken returns the claims of a valid access token
func (s *AuthService) ValidateToken(token string) (*jwt.Claims, error) {
	return s.jwtManager.Validate(token)
}

// FetchUser re-reads an account so role changes take effect before the token expires
func (s *AuthService) FetchUser(ctx context.Context, id string) (*userdomain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Unauthorized("user no longer exists")
		}
		return nil, errors.Internal("failed to load user", err)
	}
	return user, nil
}
