package service

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/attendtrack/attendance-backend/internal/user/domain"
	"github.com/attendtrack/attendance-backend/pkg/errors"
	"github.com/attendtrack/attendance-backend/pkg/logger"
)

// UserRepository is the user store used by the service.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, excludeAdmins bool) ([]*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
}

// EventPublisher announces account changes. Failures are handled by the implementation.
type EventPublisher interface {
	PublishUserCreated(ctx context.Context, user *domain.User)
	PublishUserUpdated(ctx context.Context, user *domain.User, changed []string)
	PublishUserDeleted(ctx context.Context, userID, deletedBy string)
}

// UserService handles user business logic
type UserService struct {
	users      UserRepository
	publisher  EventPublisher
	bcryptCost int
	logger     *logger.Logger
}

// NewUserService creates a new user service. A zero bcryptCost uses bcrypt.DefaultCost.
func NewUserService(users UserRepository, publisher EventPublisher, bcryptCost int, log *logger.Logger) *UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		users:      users,
		publisher:  publisher,
		bcryptCost: bcryptCost,
		logger:     log.WithComponent("users"),
	}
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create creates a new account
func (s *UserService) Create(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	email := NormalizeEmail(req.Email)
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		Department:   req.Department,
		Position:     req.Position,
		Phone:        req.Phone,
		IsAdmin:      req.IsAdmin,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, s.storeError(err, "failed to create user")
	}

	s.logger.Info().Str("user_id", user.ID).Bool("is_admin", user.IsAdmin).Msg("user created")
	s.publisher.PublishUserCreated(ctx, user)

	return user, nil
}

// GetByID gets a user by ID
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "failed to load user")
	}
	return user, nil
}

// List returns every account ordered by name
func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.ListUsers(ctx, false)
	if err != nil {
		return nil, s.storeError(err, "failed to list users")
	}
	return users, nil
}

// Update applies the non-nil fields of req to account id
func (s *UserService) Update(ctx context.Context, id string, req *domain.UpdateUserRequest, actorID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "failed to load user")
	}

	var changed []string
	if req.Email != nil {
		email := NormalizeEmail(*req.Email)
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email, id); err != nil {
				return nil, err
			}
			user.Email = email
			changed = append(changed, "email")
		}
	}
	if req.IsAdmin != nil && *req.IsAdmin != user.IsAdmin {
		if id == actorID && !*req.IsAdmin {
			return nil, errors.BadRequest("you cannot remove your own administrator access")
		}
		user.IsAdmin = *req.IsAdmin
		changed = append(changed, "is_admin")
	}
	changed = applyString(changed, "name", &user.Name, trimmed(req.Name))
	changed = applyString(changed, "department", &user.Department, req.Department)
	changed = applyString(changed, "position", &user.Position, req.Position)
	changed = applyString(changed, "phone", &user.Phone, req.Phone)

	if len(changed) == 0 {
		return user, nil
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, s.storeError(err, "failed to update user")
	}

	s.logger.Info().Str("user_id", id).Strs("changed", changed).Msg("user updated")
	s.publisher.PublishUserUpdated(ctx, user, changed)

	return user, nil
}

// Delete removes account id and, through the schema, its attendance records
func (s *UserService) Delete(ctx context.Context, id, actorID string) error {
	if id == actorID {
		return errors.BadRequest("you cannot delete your own account")
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return s.storeError(err, "failed to delete user")
	}

	s.logger.Info().Str("user_id", id).Str("deleted_by", actorID).Msg("user deleted")
	s.publisher.PublishUserDeleted(ctx, id, actorID)

	return nil
}

// ResetPassword replaces the password of account id
func (s *UserService) ResetPassword(ctx context.Context, id, newPassword string) error {
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return s.storeError(err, "failed to reset password")
	}

	s.logger.Info().Str("user_id", id).Msg("password reset")
	return nil
}

// UpdateProfile applies the self-service fields of req to the caller's account
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *domain.UpdateProfileRequest) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, s.storeError(err, "failed to load profile")
	}

	var changed []string
	changed = applyString(changed, "name", &user.Name, trimmed(req.Name))
	changed = applyString(changed, "phone", &user.Phone, req.Phone)
	changed = applyString(changed, "profile_image", &user.ProfileImage, req.ProfileImage)

	if len(changed) == 0 {
		return user, nil
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, s.storeError(err, "failed to update profile")
	}

	s.publisher.PublishUserUpdated(ctx, user, changed)
	return user, nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email, ownerID string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		return s.storeError(err, "failed to check email")
	}
	if existing.ID != ownerID {
		return errors.Conflict("a user with this email already exists")
	}
	return nil
}

func (s *UserService) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if err == bcrypt.ErrPasswordTooLong {
			return "", errors.Validation(map[string]string{"password": "must be at most 72 bytes"})
		}
		return "", errors.Internal("failed to hash password", err)
	}
	return string(hash), nil
}

// storeError passes AppErrors through and hides everything else behind an Internal error.
func (s *UserService) storeError(err error, message string) error {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	s.logger.Error().Err(err).Msg(message)
	return errors.Internal(message, err)
}

func applyString(changed []string, field string, dst *string, v *string) []string {
	if v == nil || *v == *dst {
		return changed
	}
	*dst = *v
	return append(changed, field)
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
