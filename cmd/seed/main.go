package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/attendtrack/attendance-backend/internal/user/domain"
	"github.com/attendtrack/attendance-backend/internal/user/events"
	"github.com/attendtrack/attendance-backend/internal/user/repository"
	"github.com/attendtrack/attendance-backend/internal/user/service"
	"github.com/attendtrack/attendance-backend/pkg/config"
	"github.com/attendtrack/attendance-backend/pkg/database"
	"github.com/attendtrack/attendance-backend/pkg/logger"
	"github.com/attendtrack/attendance-backend/pkg/messaging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadWithValidation("attendance-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("seed", cfg.Server.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	users := repository.NewUserRepository(db)

	exists, err := users.ExistsAdmin(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to check for an administrator")
	}
	if exists {
		log.Info().Msg("administrator already present, nothing to seed")
		return
	}

	// The broker is not needed to bootstrap an empty database.
	svc := service.NewUserService(users, events.NewUserEventPublisher(messaging.NopPublisher{}, log), 0, log)
	admin, err := svc.Create(ctx, &domain.CreateUserRequest{
		Name:     cfg.Seed.AdminName,
		Email:    cfg.Seed.AdminEmail,
		Password: cfg.Seed.AdminPassword,
		IsAdmin:  true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create administrator")
	}

	log.Info().Str("user_id", admin.ID).Str("email", admin.Email).Msg("administrator created")
}
