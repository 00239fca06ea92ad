package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"dictation/internal/app"
	"dictation/internal/config"
	"dictation/internal/database"
	"dictation/internal/handlers"
	"dictation/internal/logging"
	"dictation/internal/practice"
	"dictation/internal/repository"
	"dictation/internal/security"
	"dictation/internal/service"
)

const sessionCleanupInterval = time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("database connection established", zap.String("type", cfg.Database.Type))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(ctx, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	source, err := app.NewSource(cfg.Assets)
	if err != nil {
		return err
	}
	player, err := app.NewPlayer(*cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up audio playback: %w", err)
	}

	sessions := service.NewSessionService(service.SessionConfig{
		Source:    source,
		Prefs:     repository.NewPreferencesRepository(db),
		Player:    player,
		CuePlayer: player,
		Cues:      practice.Cues{Correct: cfg.Audio.CorrectCue, Wrong: cfg.Audio.WrongCue},
		AudioRoot: cfg.Assets.AudioRoot,
		IdleTTL:   cfg.Session.Duration,
		Logger:    logger,
	})
	defer sessions.Close()

	limiter := security.NewRateLimiter(cfg.Reports.RateLimit, cfg.Reports.RateWindow)
	defer limiter.Stop()
	reports := service.NewReportService(
		repository.NewReportRepository(db),
		limiter,
		security.NewIPHasher(cfg.Reports.IPHashKey),
		logger,
	)

	clientIP, err := security.NewClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid server.trusted_proxies: %w", err)
	}

	handler := handlers.NewRouter(handlers.RouterConfig{
		Sessions: sessions,
		Reports:  reports,
		Signer:   security.NewTokenSigner(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.Duration),
		CSRF:     security.NewCSRFGenerator(cfg.Session.Secret),
		DB:       db,
		ClientIP: clientIP,
		ClipFile: app.ClipResolver(cfg.Assets.AudioRoot, cfg.Assets.AudioDir),
		Logger:   logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start background session cleanup
	go sessions.Run(ctx, sessionCleanupInterval)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
