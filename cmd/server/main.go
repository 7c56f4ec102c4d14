// Command bankcards-server starts the bank-card ledger HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ndolgov/bankcards/internal/config"
	"github.com/ndolgov/bankcards/internal/crypto/cardcipher"
	"github.com/ndolgov/bankcards/internal/limiter"
	"github.com/ndolgov/bankcards/internal/migrate"
	"github.com/ndolgov/bankcards/internal/repository/postgres"
	httpserver "github.com/ndolgov/bankcards/internal/server/http"
	"github.com/ndolgov/bankcards/internal/service"
	"github.com/ndolgov/bankcards/internal/worker/sweeper"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and starts the HTTP server
// and the expiry sweeper.
func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTPAddress()),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	cardRepo := postgres.NewCardRepo(db)

	lim := limiter.NewPG(db.Pool, 15*time.Minute, 5, 15*time.Minute)

	codec, err := cardcipher.New(cfg.CardKey)
	if err != nil {
		logger.Fatal("card codec", zap.Error(err))
	}

	// Services
	authSvc := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), cfg.AccessTTL, cfg.RefreshTTL, lim)
	cardSvc := service.NewCardService(cardRepo, userRepo, codec)
	userSvc := service.NewUserService(userRepo)
	transferSvc := service.NewTransferService(cardRepo)

	// Expiry sweeper runs beside the request path, sharing only the store.
	sw := sweeper.New(cardRepo, logger, cfg.SweepInterval)
	go sw.Run(ctx)

	// HTTP server
	app := httpserver.New(authSvc, cardSvc, userSvc, transferSvc, []byte(cfg.JWTSecret), logger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           app.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddress()))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
