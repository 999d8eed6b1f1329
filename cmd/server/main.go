package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"fileportal/docs"
	"fileportal/internal/auth"
	"fileportal/internal/cache"
	"fileportal/internal/config"
	"fileportal/internal/db"
	"fileportal/internal/handler"
	"fileportal/internal/logger"
	"fileportal/internal/metrics"
	"fileportal/internal/repository"
	"fileportal/internal/router"
	"fileportal/internal/service"
	"fileportal/internal/storage"
	"fileportal/internal/web"
)

const defaultSessionSecret = "dev-secret-key-change-in-production"

// @title File Portal
// @version 1.0
// @description Institutional file portal: account registration with administrator approval, session login, administrator uploads and downloads for approved users.
// @host localhost:8080
// @BasePath /
// @schemes http
func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SessionSecret == defaultSessionSecret {
		log.Warn().Msg("SESSION_SECRET is the development default; set it in production")
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	if cfg.ResetDB {
		log.Warn().Msg("RESET_DB=true detected, dropping all tables")
	}
	if err := db.Migrate(gormDB, cfg.ResetDB); err != nil {
		return err
	}

	sessions, closeSessions, err := newSessionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSessions()

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return err
	}

	m := metrics.New()

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	fileRepo := repository.NewFileRepository(gormDB)

	// Initialize services
	jwtService := auth.NewJWTService(cfg.SessionSecret, cfg.SessionTTL)
	credentials := service.NewCredentialService(userRepo, m, log)
	authService := service.NewAuthService(credentials, jwtService, sessions, m, log)
	files := service.NewFileService(fileRepo, store, cfg.MaxUploadBytes, m, log)

	// Initialize handlers
	cookies := handler.CookieOptions{Secure: cfg.CookieSecure}
	renderer, err := web.NewRenderer()
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer

	router.Register(e, cfg, log, jwtService, m, router.Handlers{
		Authenticator: handler.NewAuthenticator(authService, cookies, log),
		Pages:         handler.NewPageHandler(credentials, files, cookies),
		Auth:          handler.NewAuthHandler(credentials, authService, cookies, log),
		Admin:         handler.NewAdminHandler(credentials, cookies),
		Files:         handler.NewFileHandler(files, cookies, cfg.MaxUploadBytes, log),
	})

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
	}
	log.Info().Str("url", swaggerURL(cfg)).Msg("swagger documentation available")

	srv := router.NewServer(e, cfg.ServerPort)
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("storage", cfg.StorageProvider).Str("db", cfg.DBDriver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server start: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newSessionStore uses Redis when REDIS_ADDR is set and process memory otherwise.
func newSessionStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (auth.SessionStore, func(), error) {
	if cfg.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR not set, sessions are kept in memory")
		return auth.NewMemorySessionStore(), func() {}, nil
	}

	client := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis init: %w", err)
	}
	return auth.NewRedisSessionStore(client), func() { _ = client.Close() }, nil
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Provider, error) {
	switch cfg.StorageProvider {
	case "", "local":
		return storage.NewLocalProvider(cfg.UploadFolder)
	case "s3":
		return storage.NewS3Provider(ctx, storage.S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", cfg.StorageProvider)
	}
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + "/swagger/index.html"
}
