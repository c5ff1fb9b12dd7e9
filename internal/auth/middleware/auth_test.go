package middleware_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendtrack/attendance-backend/internal/auth/jwt"
	"github.com/attendtrack/attendance-backend/internal/auth/middleware"
	userdomain "github.com/attendtrack/attendance-backend/internal/user/domain"
	"github.com/attendtrack/attendance-backend/pkg/config"
	"github.com/attendtrack/attendance-backend/pkg/errors"
	"github.com/attendtrack/attendance-backend/pkg/httputil"
	"github.com/attendtrack/attendance-backend/pkg/logger"
	"github.com/attendtrack/attendance-backend/pkg/testutil"
)

type validator struct{ manager *jwt.Manager }

func (v validator) ValidateToken(token string) (*jwt.Claims, error) { return v.manager.Validate(token) }

type fetcher map[string]*userdomain.User

func (f fetcher) FetchUser(_ context.Context, id string) (*userdomain.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, errors.Unauthorized("user no longer exists")
}

type seen struct {
	userID  string
	isAdmin bool
	called  bool
}

func (s *seen) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.called = true
		s.userID = httputil.GetUserID(r.Context())
		s.isAdmin = httputil.IsAdmin(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	manager := jwt.NewManager(&config.JWTConfig{Secret: "test-secret", AccessExpiry: time.Hour})
	token, _, err := manager.Generate(&jwt.UserInfo{ID: "u1", Email: "alice@example.com", IsAdmin: true})
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"valid", "Bearer " + token, http.StatusOK, ""},
		{"lowercase scheme", "bearer " + token, http.StatusOK, ""},
		{"missing", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"no token", "Bearer", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"tampered", "Bearer " + token + "x", http.StatusUnauthorized, "TOKEN_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &seen{}
			h := middleware.Authenticate(validator{manager}, logger.Nop())(s.handler())

			req := testutil.NewHTTPRequest(http.MethodGet, "/api/v1/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := testutil.ExecuteRequest(h, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantCode == "" {
				assert.True(t, s.called)
				assert.Equal(t, "u1", s.userID)
				assert.True(t, s.isAdmin)
				return
			}
			assert.False(t, s.called)
			env := testutil.ParseEnvelope(t, rr, nil)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	users := fetcher{
		"admin":   {ID: "admin", Email: "admin@example.com", IsAdmin: true},
		"demoted": {ID: "demoted", Email: "demoted@example.com"},
	}

	tests := []struct {
		name       string
		userID     string
		tokenAdmin bool
		wantStatus int
	}{
		{"admin", "admin", true, http.StatusOK},
		{"admin flag from store wins over stale token", "demoted", true, http.StatusForbidden},
		{"promoted since token was issued", "admin", false, http.StatusOK},
		{"deleted account", "gone", true, http.StatusUnauthorized},
		{"anonymous", "", false, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &seen{}
			h := middleware.RequireAdmin(users)(s.handler())

			req := testutil.NewHTTPRequest(http.MethodGet, "/api/v1/analytics", nil)
			if tt.userID != "" {
				req = testutil.AsUser(req, tt.userID, tt.tokenAdmin)
			}
			rr := testutil.ExecuteRequest(h, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, s.called)
			if s.called {
				assert.True(t, s.isAdmin)
			}
		})
	}
}
