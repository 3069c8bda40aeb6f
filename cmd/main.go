package main

import (
	"context"
	"fmt"
	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/maxaizer/funding-digest/internal/config"
	"github.com/maxaizer/funding-digest/internal/digest"
	"github.com/maxaizer/funding-digest/internal/logger"
	"github.com/maxaizer/funding-digest/internal/metrics"
	"github.com/maxaizer/funding-digest/internal/repositories"
	"github.com/maxaizer/funding-digest/internal/services"
	"github.com/maxaizer/funding-digest/internal/sources"
	"github.com/sirupsen/logrus"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// .env is optional, real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load(config.FilePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "can't load config: %v\n", err)
		return 1
	}

	log, cleanup, err := logger.New(ctx, cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "can't set up logger: %v\n", err)
		return 1
	}
	defer cleanup()

	bus := EventBus.New()
	if err := metrics.Subscribe(bus); err != nil {
		log.Errorf("can't subscribe metrics: %v", err)
		return 1
	}

	pipeline, closeStore, err := buildPipeline(cfg, bus, log)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeConfig).Errorf("can't build pipeline: %v", err)
		return 1
	}
	defer closeStore()

	runOnce := func(ctx context.Context) error {
		_, err := pipeline.Run(ctx, uuid.NewString())
		if pushErr := metrics.Push(cfg.Metrics.PushgatewayURL, cfg.Metrics.JobName); pushErr != nil {
			log.Warnf("can't push metrics: %v", pushErr)
		}
		return err
	}

	if cfg.Schedule == "" {
		return exitCode(runOnce(ctx), log)
	}

	scheduler, err := services.NewScheduler(cfg.Schedule, func(ctx context.Context) {
		// failures are already logged by the pipeline, the next tick retries
		_ = runOnce(ctx)
	}, log)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeConfig).Error(err)
		return 1
	}

	scheduler.Start()
	log.WithField("schedule", cfg.Schedule).Info("waiting for scheduled runs")

	<-ctx.Done()

	log.Info("Shutting down scheduler...")
	scheduler.Stop()
	log.Info("Scheduler stopped.")
	return 0
}

func buildPipeline(cfg *config.Config, bus EventBus.Bus, log logrus.FieldLogger) (*services.Pipeline, func(), error) {
	srcs, err := sources.Build(cfg.Sources, cfg.Profile)
	if err != nil {
		return nil, nil, err
	}

	dispatcher, err := digest.NewDispatcher(cfg.Dispatch, log)
	if err != nil {
		return nil, nil, err
	}

	store, err := repositories.NewSeenStore(cfg.Store, log)
	if err != nil {
		return nil, nil, err
	}

	closeStore := func() {
		if err := store.Close(); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeStore).Errorf("can't close seen store: %v", err)
		}
	}

	aggregator := services.NewAggregator(srcs, cfg.Sources.Timeout, cfg.Sources.Concurrency, bus, log)
	return services.NewPipeline(aggregator, store, dispatcher, cfg.Profile, bus, log), closeStore, nil
}

// exitCode maps a run result to the process exit code.
// The pipeline already logged the failure at error level with its error_type.
func exitCode(err error, log logrus.FieldLogger) int {
	if err == nil {
		return 0
	}
	log.WithField("exit_code", 1).Warnf("run failed: %v", err)
	return 1
}
