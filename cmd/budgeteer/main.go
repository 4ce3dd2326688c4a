package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"budgeteer/internal/cli"
	"budgeteer/internal/core"
	"budgeteer/internal/log"
	"budgeteer/internal/services"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.LoadEnvFile()

	// stdout carries command output, so logs go to stderr.
	cfg, logger := cli.LoadAndValidateConfig(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = cli.WithComponentLogger(ctx, logger, log.ComponentCLI)

	res := cli.OpenStore(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close store", "error", err)
		}
	}()

	opts := []services.LedgerOption{}
	if client := cli.ConnectAMQP(logger, cfg); client != nil {
		defer client.Close()
		opts = append(opts, services.WithPublisher(client))
	}

	ledger := services.NewLedger(res.Store, core.NewValidator(cli.Categories(cfg)), opts...)
	app := cli.NewApp(ledger, services.NewRecurringProcessor(ledger, res.Store), os.Stdout, os.Stderr)

	err := app.Run(ctx, os.Args[1:])
	if err != nil {
		cli.PrintError(os.Stderr, err)
	}
	return cli.ExitCode(err)
}
