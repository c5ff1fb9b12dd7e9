package domain

import (
	"time"
)

// User is an employee account. Admins manage accounts and read analytics.
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Department   string    `json:"department" db:"department"`
	Position     string    `json:"position" db:"position"`
	Phone        string    `json:"phone" db:"phone"`
	ProfileImage string    `json:"profile_image" db:"profile_image"`
	IsAdmin      bool      `json:"is_admin" db:"is_admin"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// CreateUserRequest is the admin payload for a new account
type CreateUserRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email,max=255"`
	Password   string `json:"password" validate:"required,min=6,max=100"`
	Department string `json:"department" validate:"max=100"`
	Position   string `json:"position" validate:"max=100"`
	Phone      string `json:"phone" validate:"max=20"`
	IsAdmin    bool   `json:"is_admin"`
}

// UpdateUserRequest is the admin payload for editing an account. Nil fields are left unchanged.
type UpdateUserRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email      *string `json:"email" validate:"omitempty,email,max=255"`
	Department *string `json:"department" validate:"omitempty,max=100"`
	Position   *string `json:"position" validate:"omitempty,max=100"`
	Phone      *string `json:"phone" validate:"omitempty,max=20"`
	IsAdmin    *bool   `json:"is_admin"`
}

// UpdateProfileRequest is what employees may change about themselves
type UpdateProfileRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=100"`
	Phone        *string `json:"phone" validate:"omitempty,max=20"`
	ProfileImage *string `json:"profile_image" validate:"omitempty,max=500"`
}

// ResetPasswordRequest sets a new password for an account
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=6,max=100"`
}
