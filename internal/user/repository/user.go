package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/attendtrack/attendance-backend/internal/user/domain"
	"github.com/attendtrack/attendance-backend/pkg/database"
	"github.com/attendtrack/attendance-backend/pkg/errors"
)

const userColumns = `id, name, email, password_hash, department, position, phone,
	profile_image, is_admin, created_at, updated_at`

// UserRepository handles user persistence
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, department, position, phone, profile_image, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Department,
		user.Position,
		user.Phone,
		user.ProfileImage,
		user.IsAdmin,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID gets a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NotFound("user")
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail gets a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg interface{}) (*domain.User, error) {
	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("user")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListUsers returns every user ordered by name. Administrators are left out when excludeAdmins is set.
func (r *UserRepository) ListUsers(ctx context.Context, excludeAdmins bool) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	if excludeAdmins {
		query += ` WHERE is_admin = FALSE`
	}
	query += ` ORDER BY name, id`

	users := []*domain.User{}
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Update writes every editable field of user
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET name = $2, email = $3, department = $4, position = $5, phone = $6,
			profile_image = $7, is_admin = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Department,
		user.Position,
		user.Phone,
		user.ProfileImage,
		user.IsAdmin,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.NotFound("user")
		}
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// UpdatePassword updates a user's password
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("user")
	}
	return nil
}

// Delete removes a user. Their attendance records go with them (ON DELETE CASCADE).
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("user")
	}
	return nil
}

// ExistsAdmin reports whether at least one administrator account exists
func (r *UserRepository) ExistsAdmin(ctx context.Context) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE is_admin = TRUE)`); err != nil {
		return false, fmt.Errorf("failed to check for admin: %w", err)
	}
	return exists, nil
}
