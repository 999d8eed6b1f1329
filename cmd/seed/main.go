package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"fileportal/internal/config"
	"fileportal/internal/db"
	apperrors "fileportal/internal/errors"
	"fileportal/internal/logger"
	"fileportal/internal/metrics"
	"fileportal/internal/repository"
	"fileportal/internal/service"
)

// seed bootstraps an account without going through the web form. On an
// empty database the seeded account becomes the administrator.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	username := flag.String("username", os.Getenv("SEED_USERNAME"), "account username")
	email := flag.String("email", os.Getenv("SEED_EMAIL"), "account email")
	password := flag.String("password", os.Getenv("SEED_PASSWORD"), "account password")
	approve := flag.Bool("approve", false, "approve the account if it is created pending")
	flag.Parse()

	if err := seed(cfg, log, *username, *email, *password, *approve); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
}

func seed(cfg *config.Config, log zerolog.Logger, username, email, password string, approve bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(gormDB, false); err != nil {
		return err
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("database ready")

	credentials := service.NewCredentialService(repository.NewUserRepository(gormDB), metrics.New(), log)

	user, err := credentials.Register(ctx, username, email, password, password)
	if errors.Is(err, apperrors.ErrConflict) {
		log.Warn().Str("username", username).Msg(apperrors.UserMessage(err, "account already exists"))
		return nil
	}
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	if approve && !user.IsApproved() {
		if user, err = credentials.Approve(ctx, user.ID); err != nil {
			return err
		}
	}

	log.Info().
		Uint("user_id", user.ID).
		Str("username", user.Username).
		Str("role", string(user.Role)).
		Str("status", string(user.Status)).
		Msg("account seeded")
	return nil
}
