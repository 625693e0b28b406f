// Command filedepot starts the file server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"filedepot/internal/archive"
	"filedepot/internal/config"
	"filedepot/internal/limiter"
	"filedepot/internal/marker"
	"filedepot/internal/migrate"
	"filedepot/internal/repository/postgres"
	"filedepot/internal/server/httpserver"
	"filedepot/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, runs migrations, and starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Flags override the environment for the two most commonly tweaked values.
	addr := flag.String("addr", cfg.Addr, "listen address")
	dsn := flag.String("dsn", cfg.DSN, "PostgreSQL DSN")
	flag.Parse()
	cfg.Addr = *addr
	cfg.DSN = *dsn

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("root", cfg.ContentRoot),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("postgres connect", zap.Error(err))
	}
	defer db.Close()

	for _, dir := range []string{cfg.UserRoot(), cfg.PublicRoot(), cfg.ZipRoot()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal("create content dir", zap.String("dir", dir), zap.Error(err))
		}
	}

	// Repositories
	accountRepo := postgres.NewAccountRepo(db)
	tokenRepo := postgres.NewTokenRepo(db)
	auditRepo := postgres.NewAccessLogRepo(db)

	// Core components
	markers := marker.New(cfg.MarkerExt, logger)
	builder := archive.NewBuilder(markers, logger)
	cache := archive.NewCache(markers, builder, cfg.ZipRoot(), cfg.DirectDownloadLimit, logger)

	lim := limiter.NewMemory(map[limiter.Bracket]limiter.Limits{
		limiter.Weak:    {Window: cfg.RateWeakWindow, Max: cfg.RateWeakMax},
		limiter.Medium:  {Window: cfg.RateMediumWindow, Max: cfg.RateMediumMax},
		limiter.Strong:  {Window: cfg.RateStrongWindow, Max: cfg.RateStrongMax},
		limiter.Extreme: {Window: cfg.RateStrongWindow, Max: 1},
	})

	// Services
	creds := service.NewCredentialStore(accountRepo, tokenRepo, auditRepo, cfg.LoginAttempts, logger)
	validator := service.NewTokenValidator(tokenRepo, logger)

	app := httpserver.New(cfg, creds, validator, cache, markers, lim, logger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
