package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/attendtrack/attendance-backend/internal/auth/handler"
	"github.com/attendtrack/attendance-backend/internal/auth/jwt"
	"github.com/attendtrack/attendance-backend/internal/auth/service"
	userdomain "github.com/attendtrack/attendance-backend/internal/user/domain"
	"github.com/attendtrack/attendance-backend/pkg/config"
	"github.com/attendtrack/attendance-backend/pkg/errors"
	"github.com/attendtrack/attendance-backend/pkg/logger"
	"github.com/attendtrack/attendance-backend/pkg/testutil"
)

type directory struct{ user *userdomain.User }

func (d directory) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	if email == d.user.Email {
		return d.user, nil
	}
	return nil, errors.NotFound("user")
}

func (d directory) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	if id == d.user.ID {
		return d.user, nil
	}
	return nil, errors.NotFound("user")
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)

	dir := directory{user: &userdomain.User{ID: "u1", Name: "Alice", Email: "alice@example.com", PasswordHash: string(hash)}}
	manager := jwt.NewManager(&config.JWTConfig{Secret: "test-secret", AccessExpiry: time.Hour})
	h := handler.NewAuthHandler(service.NewAuthService(dir, manager, logger.Nop()), logger.Nop())

	r := chi.NewRouter()
	r.Post("/api/v1/auth/login", h.Login)
	return r
}

func TestAuthHandler_Login(t *testing.T) {
	router := newRouter(t)

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "alice@example.com", "password": "secret1",
	}))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp service.LoginResponse
	testutil.ParseEnvelope(t, rr, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "Alice", resp.User.Name)
	assert.NotContains(t, rr.Body.String(), "password_hash")
}

func TestAuthHandler_LoginErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"wrong password", map[string]string{"email": "alice@example.com", "password": "wrong"}, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"unknown user", map[string]string{"email": "bob@example.com", "password": "secret1"}, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"missing password", map[string]string{"email": "alice@example.com"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad email", map[string]string{"email": "alice", "password": "secret1"}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := testutil.ExecuteRequest(newRouter(t), testutil.NewHTTPRequest(http.MethodPost, "/api/v1/auth/login", tt.body))

			assert.Equal(t, tt.wantStatus, rr.Code)
			env := testutil.ParseEnvelope(t, rr, nil)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}
