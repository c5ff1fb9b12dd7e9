package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/attendtrack/attendance-backend/internal/auth/jwt"
	userdomain "github.com/attendtrack/attendance-backend/internal/user/domain"
	"github.com/attendtrack/attendance-backend/pkg/errors"
	"github.com/attendtrack/attendance-backend/pkg/httputil"
	"github.com/attendtrack/attendance-backend/pkg/logger"
)

// TokenValidator validates bearer tokens
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// UserFetcher re-reads the account behind a token
type UserFetcher interface {
	FetchUser(ctx context.Context, id string) (*userdomain.User, error)
}

// Authenticate requires a valid bearer token and puts the identity in the request context
func Authenticate(tokens TokenValidator, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.Error(w, errors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				httputil.Error(w, errors.Unauthorized("invalid authorization header format"))
				return
			}

			claims, err := tokens.ValidateToken(parts[1])
			if err != nil {
				log.Debug().Err(err).Msg("token validation failed")
				httputil.Error(w, err)
				return
			}

			ctx := httputil.WithUserContext(r.Context(), claims.UserID, claims.Email, claims.IsAdmin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin lets the request through only when the caller's current account is an admin.
// The admin flag in the context is replaced by the stored one.
func RequireAdmin(users UserFetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := httputil.GetUserID(r.Context())
			if userID == "" {
				httputil.Error(w, errors.Unauthorized("authentication required"))
				return
			}

			user, err := users.FetchUser(r.Context(), userID)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			if !user.IsAdmin {
				httputil.Error(w, errors.Forbidden("admin access required"))
				return
			}

			ctx := httputil.WithUserContext(r.Context(), user.ID, user.Email, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
