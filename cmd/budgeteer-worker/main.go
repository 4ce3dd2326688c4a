package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budgeteer/internal/backend"
	"budgeteer/internal/cache"
	"budgeteer/internal/cli"
	"budgeteer/internal/core"
	"budgeteer/internal/log"
	"budgeteer/internal/services"
	"budgeteer/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg, logger := cli.LoadAndValidateConfig(os.Stdout)

	logger.Info("Starting budgeteer-worker", "backend", cfg.DataBackend)

	res := cli.OpenStore(context.Background(), logger, cfg)
	defer res.Cleanup()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	sheet, err := backend.NewFactory(logger).CreateSheet(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize spreadsheet export", "error", err)
		os.Exit(1)
	}

	var tracker worker.SyncTracker
	if res.SQLite != nil {
		tracker = res.SQLite
	} else {
		logger.Info("Sync tracking needs the sqlite backend, pending sweeps disabled")
	}
	syncWorker := worker.NewSyncWorker(res.Store, tracker, sheet.Exporter, sheet.Remover, sheet.Alerts, cfg.SyncBatchSize)

	amqpClient := cli.ConnectAMQP(logger, cfg)
	var publisher services.EventPublisher = worker.NewDirectPublisher(syncWorker)
	if amqpClient != nil {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	ledger := services.NewLedger(res.Store, core.NewValidator(cli.Categories(cfg)), services.WithPublisher(publisher))
	recurring := services.NewRecurringProcessor(ledger, res.Store)

	alertsSent := cache.NewLRUCache[bool](1000, 24*time.Hour)
	caches := cache.NewManager()
	caches.Register(alertsSent)
	if sheet.Limiter != nil {
		caches.Register(sheet.Limiter)
	}
	caches.StartCleanup(time.Hour)
	monitor := services.NewBudgetMonitor(ledger, publisher, cfg.BudgetAlertThreshold, alertsSent)

	scheduler := worker.NewScheduler(
		worker.Job{Name: "pending_sync", Interval: cfg.SyncInterval, Run: func(ctx context.Context) error {
			_, err := syncWorker.ProcessPendingExpenses(ctx)
			return err
		}},
		worker.Job{Name: "recurring", Interval: cfg.RecurringInterval, Run: func(ctx context.Context) error {
			_, err := recurring.ProcessDueExpenses(ctx, time.Now())
			return err
		}},
		worker.Job{Name: "budget_monitor", Interval: cfg.SyncInterval, Run: func(ctx context.Context) error {
			_, err := monitor.Check(ctx, time.Now())
			return err
		}},
	)

	stopAll := func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Scheduler did not stop cleanly", "error", err)
		}
		caches.Stop()
	}
	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, stopAll)
	ctx = cli.WithComponentLogger(ctx, logger, log.ComponentWorker)

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		// Not fatal: the periodic sweep retries.
		logger.Error("Failed startup sync check", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if amqpClient != nil {
		g.Go(func() error {
			err := amqpClient.ConsumeMessages(gctx, syncWorker.Handlers())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("Skipping AMQP message consumption - no broker configured")
	}
	g.Go(func() error {
		if err := scheduler.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		stopAll(stopCtx)
		cancel()
		res.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
