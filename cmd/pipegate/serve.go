package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alexisbeaulieu97/pipegate/internal/application/scheduler"
	"github.com/alexisbeaulieu97/pipegate/internal/config"
	"github.com/alexisbeaulieu97/pipegate/internal/infrastructure/httpapi"
)

type serveOptions struct {
	PipelinesPath string
	Address       string
}

func newServeCmd(app *AppContext) *cobra.Command {
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the check API and run the start worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.PipelinesPath, "pipelines", "", "Pipelines file used to seed the in-memory stores")
	cmd.Flags().StringVar(&opts.Address, "address", "", "Listen address, overriding server.address")
	_ = cmd.MarkFlagRequired("pipelines")

	return cmd
}

func runServe(ctx context.Context, app *AppContext, opts serveOptions) error {
	file, err := config.ParsePipelines(opts.PipelinesPath)
	if err != nil {
		return err
	}

	stores, err := app.seedStores(ctx, file)
	if err != nil {
		return err
	}
	g, err := app.buildGate(stores)
	if err != nil {
		return err
	}
	if err := app.Metrics.RegisterProcessCollectors(); err != nil {
		return err
	}

	workerCfg := app.Config.Worker
	queue := scheduler.NewQueue(workerCfg.AckTimeout)
	worker := scheduler.NewWorker(queue, stores.pipelines, g, stores.executions, stores.quotas,
		scheduler.WithWorkerLogger(app.Logger),
		scheduler.WithWorkerMetrics(app.Metrics),
		scheduler.WithWorkerEvents(app.Events),
		scheduler.WithConcurrency(workerCfg.Concurrency),
		scheduler.WithPollInterval(workerCfg.PollInterval),
	)
	worker.SetEnabled(!workerCfg.Paused)

	address := app.Config.Server.Address
	if opts.Address != "" {
		address = opts.Address
	}
	server := httpapi.NewServer(httpapi.Config{
		Address:         address,
		ShutdownTimeout: app.Config.Server.ShutdownTimeout,
	}, g,
		httpapi.WithPipelines(stores.pipelines),
		httpapi.WithQueue(queue),
		httpapi.WithExecutions(stores.executions),
		httpapi.WithLocks(stores.locks),
		httpapi.WithWorker(worker),
		httpapi.WithMetricsHandler(app.Metrics.Handler()),
		httpapi.WithLogger(app.Logger),
	)

	app.Logger.Info(ctx, "starting pipegate", "address", address, "pipelines", len(file.Pipelines), "validators", g.Validators())

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return server.Start(gctx) })
	grp.Go(func() error { return worker.Run(gctx) })

	if err := grp.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	app.Logger.Info(ctx, "pipegate stopped")
	return nil
}
