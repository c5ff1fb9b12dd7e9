package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	analyticsservice "github.com/attendtrack/attendance-backend/internal/analytics/service"
	"github.com/attendtrack/attendance-backend/internal/attendance/consumers"
	attendanceevents "github.com/attendtrack/attendance-backend/internal/attendance/events"
	attendancerepo "github.com/attendtrack/attendance-backend/internal/attendance/repository"
	attendanceservice "github.com/attendtrack/attendance-backend/internal/attendance/service"
	"github.com/attendtrack/attendance-backend/internal/auth/jwt"
	authservice "github.com/attendtrack/attendance-backend/internal/auth/service"
	userevents "github.com/attendtrack/attendance-backend/internal/user/events"
	userrepo "github.com/attendtrack/attendance-backend/internal/user/repository"
	userservice "github.com/attendtrack/attendance-backend/internal/user/service"
	"github.com/attendtrack/attendance-backend/pkg/config"
	"github.com/attendtrack/attendance-backend/pkg/database"
	"github.com/attendtrack/attendance-backend/pkg/httputil"
	"github.com/attendtrack/attendance-backend/pkg/logger"
	"github.com/attendtrack/attendance-backend/pkg/messaging"
	"github.com/attendtrack/attendance-backend/pkg/storage"
)

const serviceName = "attendance-service"

func main() {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Attendance Service")

	loc, err := cfg.Attendance.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid attendance timezone")
	}
	cutoff, err := cfg.Attendance.Cutoff()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid late cutoff")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
	}

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()
	go rmq.Watch(ctx)

	userPublisher, err := messaging.NewPublisher(rmq, messaging.ExchangeUserEvents, serviceName, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user event publisher")
	}
	attendancePublisher, err := messaging.NewPublisher(rmq, messaging.ExchangeAttendanceEvents, serviceName, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create attendance event publisher")
	}

	// Photo storage is optional; without it check-ins simply carry no photo.
	var photos attendanceservice.PhotoStore
	var store *storage.Store
	if cfg.Storage.Endpoint != "" {
		store, err = storage.New(&cfg.Storage, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create storage client")
		}
		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare photo bucket")
		}
		photos = store

		consumer, err := consumers.NewUserEventConsumer(rmq, store, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create user event consumer")
		}
		if err := consumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start user event consumer")
		}
	} else {
		log.Warn().Msg("storage endpoint not configured, photo uploads disabled")
	}

	// Initialize repositories
	users := userrepo.NewUserRepository(db)
	records := attendancerepo.NewRecordRepository(db)

	// Initialize services
	userService := userservice.NewUserService(users, userevents.NewUserEventPublisher(userPublisher, log), 0, log)
	authService := authservice.NewAuthService(users, jwt.NewManager(&cfg.JWT), log)
	attendanceService := attendanceservice.NewAttendanceService(
		records,
		photos,
		attendanceevents.NewAttendanceEventPublisher(attendancePublisher, loc, log),
		attendanceservice.Options{Location: loc, MaxUploadSize: cfg.Storage.MaxUploadSize},
		log,
	)
	analyticsService := analyticsservice.NewAnalyticsService(
		users,
		records,
		analyticsservice.Policy{Location: loc, LateCutoff: cutoff, StreakWindowDays: cfg.Attendance.StreakWindowDays},
		cfg.Attendance.DefaultRangeDays,
		log,
	)

	loginLimiter := httputil.NewRateLimiter(cfg.RateLimit.LoginRPS, cfg.RateLimit.LoginBurst)
	go loginLimiter.RunCleanup(time.Minute, ctx.Done())

	r := newRouter(routerDeps{
		cfg:          cfg,
		log:          log,
		auth:         authService,
		users:        userService,
		attendance:   attendanceService,
		analytics:    analyticsService,
		loginLimiter: loginLimiter,
		health: func(ctx context.Context) map[string]interface{} {
			status := map[string]interface{}{
				"status":   "healthy",
				"service":  serviceName,
				"database": db.Health(ctx),
				"rabbitmq": rmq.Health(),
			}
			if store != nil {
				status["storage"] = store.Health(ctx)
			}
			return status
		},
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
