package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/joshu-sajeev/orchestrator/internal/logging"
	"github.com/joshu-sajeev/orchestrator/internal/pool"
	"github.com/joshu-sajeev/orchestrator/internal/queue"
	"github.com/joshu-sajeev/orchestrator/internal/realtime"
	"github.com/joshu-sajeev/orchestrator/internal/storage/objectstore"
	"github.com/joshu-sajeev/orchestrator/internal/storage/postgres"
	"github.com/joshu-sajeev/orchestrator/internal/worker"
	"github.com/rs/zerolog/log"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup completes first.
func run() int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := config.LoadAppFromEnv(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load app config")
	}
	logging.Setup(app.LogLevel, app.Environment, "worker")

	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load database config")
	}
	db, err := postgres.ConnectDB(ctx, dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}

	osCfg, err := objectstore.LoadConfigFromEnv(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load object store config")
	}
	artifacts, err := objectstore.New(osCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("object store setup failed")
	}
	if err := artifacts.EnsureBucket(ctx); err != nil {
		log.Fatal().Err(err).Msg("object store bucket check failed")
	}

	rtCfg, err := realtime.LoadConfigFromEnv(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load realtime config")
	}
	rdb, err := realtime.NewRedisClient(ctx, rtCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()
	// The worker only publishes; api instances deliver to sockets.
	emitter := realtime.NewEmitter(realtime.NewRedisRelay(rdb, rtCfg.Channel, nil))

	qCfg, err := queue.LoadConfigFromEnv(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load queue config")
	}
	amqpConn, err := queue.Dial(ctx, qCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq connection failed")
	}
	defer amqpConn.Close()

	consumeCh, err := amqpConn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open consumer channel")
	}
	publishCh, err := amqpConn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open publisher channel")
	}

	hostname, _ := os.Hostname()
	consumer, err := queue.NewConsumer(consumeCh, qCfg, fmt.Sprintf("worker-%s-%d", hostname, os.Getpid()))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up consumer")
	}
	defer consumer.Close()

	publisher, err := queue.NewPublisher(publishCh, qCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up publisher")
	}
	defer publisher.Close()

	jobs := postgres.NewJobRepository(db)
	executor := worker.NewExecutor(
		jobs,
		postgres.NewTenantRepository(db),
		emitter,
		worker.NewSimulatedProvisioner(app.ERPNextBaseDomain, app.ProvisionStepDelay, artifacts),
	)

	lock := postgres.NewAdvisoryLock(db, postgres.SweepLockKey)
	sweeper := pool.NewSweeper(jobs, publisher, emitter, lock, pool.SweepConfig{
		Interval:       app.SweepInterval,
		StaleAfter:     app.StaleRunningAfter,
		RepublishAfter: app.PendingRepublishAfter,
		BatchSize:      app.SweepBatchSize,
	})

	// Deliveries outlive the signal context so in-flight jobs can still be
	// requeued while the pool drains.
	consumeCtx, stopConsuming := context.WithCancel(context.Background())
	defer stopConsuming()
	deliveries, err := consumer.Deliveries(consumeCtx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start consuming")
	}

	workerPool := pool.NewWorkerPool(app.MaxWorkers, executor, sweeper)
	workerPool.Start(deliveries)
	log.Info().Int("workers", app.MaxWorkers).Str("queue", qCfg.Queue).Msg("worker pool active")

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case <-workerPool.Done():
		log.Error().Msg("delivery stream closed, shutting down")
		exitCode = 1
	}

	workerPool.Stop()
	stopConsuming()
	if err := lock.Release(context.Background()); err != nil {
		log.Error().Err(err).Msg("release sweep lock")
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info().Msg("shutdown complete")
	return exitCode
}
