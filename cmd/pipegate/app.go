package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/alexisbeaulieu97/pipegate/internal/application/gate"
	"github.com/alexisbeaulieu97/pipegate/internal/config"
	"github.com/alexisbeaulieu97/pipegate/internal/infrastructure/events"
	logginginfra "github.com/alexisbeaulieu97/pipegate/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/pipegate/internal/infrastructure/metrics"
	"github.com/alexisbeaulieu97/pipegate/internal/infrastructure/store/memory"
	"github.com/alexisbeaulieu97/pipegate/internal/infrastructure/validators"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
	pipegateerrors "github.com/alexisbeaulieu97/pipegate/pkg/errors"
)

// AppContext bundles long-lived services created at startup.
type AppContext struct {
	Config   *config.GateConfig
	Logger   ports.Logger
	Events   ports.EventPublisher
	Metrics  *metrics.Collector
	Registry *validators.Registry

	logOutput io.Writer
}

// newAppContext prepares the validator registry and a startup logger that
// buffers entries until the configured logger exists.
func newAppContext(logOutput io.Writer) (*AppContext, error) {
	if logOutput == nil {
		logOutput = os.Stderr
	}

	registry := validators.NewRegistry()
	if err := registry.RegisterBuiltins(); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}

	startup := logginginfra.NewStartupLogger(256)
	startup.Debug(context.Background(), "validators registered", "validators", registry.Names())

	return &AppContext{
		Logger:    startup,
		Registry:  registry,
		logOutput: logOutput,
	}, nil
}

// configure loads the gate configuration and replaces the startup logger.
func (a *AppContext) configure(ctx context.Context, flags *rootFlags) error {
	cfg, err := config.LoadGateConfig(flags.configPath)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if flags.verbose {
		level = "debug"
	}

	logger, err := logginginfra.New(logginginfra.Options{
		Writer:    a.logOutput,
		Level:     level,
		Format:    a.logFormat(cfg.Log.Format),
		Layer:     "infrastructure",
		Component: "cli",
	})
	if err != nil {
		return pipegateerrors.NewValidationError("log", err.Error(), err)
	}

	if startup, ok := a.Logger.(*logginginfra.StartupLogger); ok {
		startup.Flush(logger)
	}

	a.Config = cfg
	a.Logger = logger
	a.Metrics = metrics.NewCollector(metrics.WithLogger(logger))
	a.Events = events.NewLoggingPublisher(logger, events.WithMetrics(a.Metrics))

	logger.Debug(ctx, "configuration loaded", "config", flags.configPath, "validators", len(cfg.Validators))
	return nil
}

// logFormat honours an explicit format and otherwise picks console output
// for terminals.
func (a *AppContext) logFormat(configured string) logginginfra.Format {
	if configured != "" {
		return logginginfra.Format(configured)
	}
	if f, ok := a.logOutput.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return logginginfra.FormatConsole
	}
	return logginginfra.FormatJSON
}

// stateStores are the in-memory stores seeded from a pipelines file.
type stateStores struct {
	pipelines  *memory.PipelineRepository
	executions *memory.ExecutionStore
	quotas     *memory.QuotaStore
	locks      *memory.LockStore
}

func (a *AppContext) seedStores(ctx context.Context, file *config.PipelinesFile) (*stateStores, error) {
	quotaOpts := make([]memory.QuotaOption, 0, len(a.Config.Quota.Applications))
	for app, policy := range a.Config.Quota.Applications {
		quotaOpts = append(quotaOpts, memory.WithApplicationPolicy(app, memory.QuotaPolicy{
			PerMinute: policy.PerMinute,
			Burst:     policy.Burst,
		}))
	}

	st := &stateStores{
		pipelines:  memory.NewPipelineRepository(file.DomainPipelines()...),
		executions: memory.NewExecutionStore(),
		quotas: memory.NewQuotaStore(memory.QuotaPolicy{
			PerMinute: a.Config.Quota.PerMinute,
			Burst:     a.Config.Quota.Burst,
		}, quotaOpts...),
		locks: memory.NewLockStore(),
	}

	for pipelineID, running := range file.State.Running {
		for i := 0; i < running; i++ {
			if err := st.executions.MarkStarted(ctx, pipelineID, fmt.Sprintf("%s-seeded-%d", pipelineID, i)); err != nil {
				return nil, fmt.Errorf("seed running executions: %w", err)
			}
		}
	}
	for i, lock := range file.State.Locks {
		err := st.locks.Acquire(ctx, ports.Lock{
			Scope:  ports.LockScope(lock.Scope),
			Target: lock.Target,
			Owner:  lock.Owner,
			Reason: lock.Reason,
		})
		if err != nil {
			return nil, pipegateerrors.NewValidationError(fmt.Sprintf("state.locks[%d]", i), err.Error(), err)
		}
	}

	return st, nil
}

// buildGate assembles the configured validator chain over st.
func (a *AppContext) buildGate(st *stateStores) (*gate.Gate, error) {
	entries := make([]validators.Entry, len(a.Config.Validators))
	for i, v := range a.Config.Validators {
		entries[i] = validators.Entry{
			Name:          v.Name,
			FailClosed:    v.FailClosed,
			DefaultLimit:  v.DefaultLimit,
			RequireStages: v.RequireStages,
		}
	}

	built, err := a.Registry.Build(entries, validators.Dependencies{
		Executions: st.executions,
		Quotas:     st.quotas,
		Locks:      st.locks,
	})
	if err != nil {
		return nil, pipegateerrors.NewValidationError("validators", err.Error(), err)
	}

	chain, err := gate.NewChain(built...)
	if err != nil {
		return nil, fmt.Errorf("build validator chain: %w", err)
	}

	return gate.New(chain,
		gate.WithLogger(a.Logger),
		gate.WithMetrics(a.Metrics),
		gate.WithEvents(a.Events),
	), nil
}
