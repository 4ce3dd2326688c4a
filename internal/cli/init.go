// Package cli holds the initialization helpers shared by cmd/budgeteer and
// cmd/budgeteer-worker, and the budgeteer command implementations.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budgeteer/internal/amqp"
	"budgeteer/internal/backend"
	"budgeteer/internal/config"
	"budgeteer/internal/core"
	"budgeteer/internal/log"
)

// SetupLogger installs a text logger at level on w as the default logger.
// An unknown level falls back to info; config validation reports it.
func SetupLogger(level string, w io.Writer) *slog.Logger {
	lvl, _ := log.ParseLevel(level)
	logger := log.New(log.Config{Level: lvl, Component: log.ComponentApp, Output: w})
	log.SetDefault(logger)
	return logger.Logger
}

// WithComponentLogger stores a logger for component, sharing logger's
// handler, in ctx for log.FromContext.
func WithComponentLogger(ctx context.Context, logger *slog.Logger, component string) context.Context {
	return log.WithLogger(ctx, log.New(log.Config{Handler: logger.Handler(), Component: component}))
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration, installs a logger on w at the
// configured level and validates the configuration.
// Exits the process on validation failure.
func LoadAndValidateConfig(w io.Writer) (*config.Config, *slog.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel, w)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenStore creates the configured store.
// Returns the result or exits the process on failure.
func OpenStore(ctx context.Context, logger *slog.Logger, cfg *config.Config) *backend.StoreResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateStore(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to open store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// ConnectAMQP returns a client, or nil when AMQP is not configured or the
// broker is unreachable. Callers treat nil as "publishing disabled".
func ConnectAMQP(logger *slog.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		return nil
	}
	logger.Info("Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client
}

// Categories returns the registry configured by CATEGORIES, or nil for
// the default one.
func Categories(cfg *config.Config) *core.CategoryRegistry {
	if len(cfg.Categories) == 0 {
		return nil
	}
	return core.NewCategoryRegistry(cfg.Categories...)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
