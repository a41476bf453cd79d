package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/edvin/rollout/internal/activity"
	"github.com/edvin/rollout/internal/config"
	"github.com/edvin/rollout/internal/db"
	"github.com/edvin/rollout/internal/gate"
	"github.com/edvin/rollout/internal/logging"
	"github.com/edvin/rollout/internal/metrics"
	"github.com/edvin/rollout/internal/model"
	"github.com/edvin/rollout/internal/notify"
	"github.com/edvin/rollout/internal/registry"
	"github.com/edvin/rollout/internal/scheduler"
	"github.com/edvin/rollout/internal/telemetry"
	"github.com/edvin/rollout/internal/traffic"
	"github.com/edvin/rollout/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	tlsConfig, err := cfg.TemporalTLS()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure temporal TLS")
	}
	dialOpts := temporalclient.Options{HostPort: cfg.TemporalAddress}
	if tlsConfig != nil {
		dialOpts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
		logger.Info().Msg("temporal mTLS enabled")
	}
	tc, err := temporalclient.Dial(dialOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	registryClient := registry.NewClient(cfg.RegistryURL)
	schedulerClient := scheduler.NewClient(cfg.SchedulerURL)
	telemetryClient := telemetry.NewClient(cfg.TelemetryURL)
	notifier := notify.NewNotifier(cfg.NotifyURL)
	splitter := traffic.NewSplitter(pool)
	suites := gate.NewSuiteSet(cfg.CheckSuiteDir, telemetryClient)

	w := worker.New(tc, model.TaskQueue, worker.Options{})

	// Register activities
	w.RegisterActivity(activity.NewCore(pool))
	w.RegisterActivity(activity.NewFleet(pool, registryClient, schedulerClient))
	w.RegisterActivity(activity.NewGate(gate.New(), suites))
	w.RegisterActivity(activity.NewTraffic(splitter))
	w.RegisterActivity(activity.NewTelemetry(telemetryClient))
	w.RegisterActivity(activity.NewNotify(notifier))

	// Register workflows
	w.RegisterWorkflow(workflow.RolloutWorkflow)
	w.RegisterWorkflow(workflow.TeardownGroupWorkflow)

	if cfg.MetricsAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsAddr)
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("taskQueue", model.TaskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}
