package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	analyticshandler "github.com/attendtrack/attendance-backend/internal/analytics/handler"
	analyticsservice "github.com/attendtrack/attendance-backend/internal/analytics/service"
	attendancehandler "github.com/attendtrack/attendance-backend/internal/attendance/handler"
	attendanceservice "github.com/attendtrack/attendance-backend/internal/attendance/service"
	authhandler "github.com/attendtrack/attendance-backend/internal/auth/handler"
	authmiddleware "github.com/attendtrack/attendance-backend/internal/auth/middleware"
	authservice "github.com/attendtrack/attendance-backend/internal/auth/service"
	userhandler "github.com/attendtrack/attendance-backend/internal/user/handler"
	userservice "github.com/attendtrack/attendance-backend/internal/user/service"
	"github.com/attendtrack/attendance-backend/pkg/config"
	"github.com/attendtrack/attendance-backend/pkg/httputil"
	"github.com/attendtrack/attendance-backend/pkg/logger"
)

type routerDeps struct {
	cfg          *config.Config
	log          *logger.Logger
	auth         *authservice.AuthService
	users        *userservice.UserService
	attendance   *attendanceservice.AttendanceService
	analytics    *analyticsservice.AnalyticsService
	loginLimiter *httputil.RateLimiter
	health       func(ctx context.Context) map[string]interface{}
}

func newRouter(d routerDeps) http.Handler {
	authH := authhandler.NewAuthHandler(d.auth, d.log)
	userH := userhandler.NewUserHandler(d.users, d.log)
	profileH := userhandler.NewProfileHandler(d.users, d.log)
	attendanceH := attendancehandler.NewAttendanceHandler(d.attendance, d.cfg.Storage.MaxUploadSize, d.log)
	analyticsH := analyticshandler.NewAnalyticsHandler(d.analytics, d.log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(d.log))
	r.Use(httputil.Recoverer(d.log))
	if d.cfg.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.cfg.Server.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, d.health(r.Context()))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(httputil.RateLimit(d.loginLimiter)).Post("/auth/login", authH.Login)

		r.Group(func(r chi.Router) {
			r.Use(authmiddleware.Authenticate(d.auth, d.log))

			r.Get("/profile", profileH.Get)
			r.Put("/profile", profileH.Update)

			r.Route("/attendance", func(r chi.Router) {
				r.Post("/check-in", attendanceH.CheckIn)
				r.Post("/check-out", attendanceH.CheckOut)
				r.Get("/today", attendanceH.Today)
				r.Get("/history", attendanceH.History)
				r.Get("/monthly-stats", attendanceH.MonthlyStats)
				r.Get("/recent", attendanceH.Recent)
				r.Get("/{id}/photo", attendanceH.Photo)
			})

			// Admin only
			r.Group(func(r chi.Router) {
				r.Use(authmiddleware.RequireAdmin(d.auth))

				r.Get("/analytics", analyticsH.Get)
				r.Get("/analytics/export", analyticsH.Export)

				r.Route("/users", func(r chi.Router) {
					r.Get("/", userH.List)
					r.Post("/", userH.Create)
					r.Get("/{id}", userH.Get)
					r.Put("/{id}", userH.Update)
					r.Delete("/{id}", userH.Delete)
					r.Post("/{id}/reset-password", userH.ResetPassword)
				})
			})
		})
	})

	return r
}
