package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/credvault/internal/adapter/driven/crypto"
	"github.com/ericfisherdev/credvault/internal/adapter/driven/hostapi"
	sqliteadapter "github.com/ericfisherdev/credvault/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/credvault/internal/adapter/driven/unlocktoken"
	httphandler "github.com/ericfisherdev/credvault/internal/adapter/driving/http"
	"github.com/ericfisherdev/credvault/internal/application"
	"github.com/ericfisherdev/credvault/internal/config"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
	"github.com/ericfisherdev/credvault/internal/logging"
	"github.com/ericfisherdev/credvault/internal/metrics"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the vault HTTP API",
		Long: `Run the vault HTTP API. Configuration is read from CREDVAULT_* environment
variables; pending migrations are applied before the listener starts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("config loaded", "config", cfg)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()
	logger.Info("database opened", "path", db.Path())

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	logger.Info("migrations complete")

	// 5. Derive the master key and build the cipher. The raw key is wiped
	// once the AEAD has expanded it.
	key, err := crypto.DeriveMasterKey(cfg.MasterKey)
	if err != nil {
		return err
	}
	cipher, err := crypto.NewEnvelopeCipher(key)
	memguard.WipeBytes(key)
	if err != nil {
		return err
	}

	// 6. Token service shares the host's JWT signing key.
	tokens, err := unlocktoken.NewService(unlocktoken.Config{
		SigningKey: []byte(cfg.JWTKey),
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
	}, clock.WallClock)
	if err != nil {
		return err
	}

	// 7. Scope directory: the host API when configured, else local tables.
	var scopes driven.ScopeDirectory = sqliteadapter.NewScopeRepo(db)
	if cfg.UsesScopeAPI() {
		scopes, err = hostapi.NewScopeDirectory(cfg.ScopeAPIURL, cfg.ScopeAPIToken)
		if err != nil {
			return err
		}
		logger.Info("scope lookups via host api", "url", cfg.ScopeAPIURL)
	}

	// 8. Wire the vault service.
	vault, err := application.NewVaultService(
		sqliteadapter.NewCredentialRepo(db),
		sqliteadapter.NewAccessLogRepo(db),
		scopes,
		cipher,
		tokens,
		cfg.UnlockPassphrase,
		clock.WallClock,
		logger,
	)
	if err != nil {
		return err
	}

	// 9. Metrics and HTTP handler.
	collector := metrics.NewCollector()
	registry := metrics.NewRegistry(collector)

	apiHandler := httphandler.NewHandler(
		vault,
		httphandler.NewUnlockLimiter(cfg.UnlockRate, clock.WallClock),
		collector,
		db,
		logger,
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, metrics.Handler(registry), logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 10. Wait for shutdown signal or listener failure.
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	// 11. Graceful shutdown with 10s drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
