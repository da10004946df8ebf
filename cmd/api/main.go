package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/joshu-sajeev/orchestrator/internal/auth"
	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/joshu-sajeev/orchestrator/internal/job"
	"github.com/joshu-sajeev/orchestrator/internal/logging"
	"github.com/joshu-sajeev/orchestrator/internal/queue"
	"github.com/joshu-sajeev/orchestrator/internal/realtime"
	"github.com/joshu-sajeev/orchestrator/internal/storage/postgres"
	"github.com/joshu-sajeev/orchestrator/middleware"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := config.LoadAppFromEnv(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load app config")
	}
	logging.Setup(app.LogLevel, app.Environment, "api")

	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load database config")
	}
	db, err := postgres.ConnectDB(ctx, dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	if err := postgres.RunMigrations(ctx, dbCfg); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	qCfg, err := queue.LoadConfigFromEnv(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load queue config")
	}
	amqpConn, err := queue.Dial(ctx, qCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq connection failed")
	}
	defer amqpConn.Close()

	ch, err := amqpConn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open rabbitmq channel")
	}
	publisher, err := queue.NewPublisher(ch, qCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up publisher")
	}
	defer publisher.Close()

	rtCfg, err := realtime.LoadConfigFromEnv(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load realtime config")
	}
	rdb, err := realtime.NewRedisClient(ctx, rtCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()

	hub := realtime.NewHub()
	relay := realtime.NewRedisRelay(rdb, rtCfg.Channel, hub)
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error().Err(err).Msg("realtime relay stopped")
		}
	}()
	emitter := realtime.NewEmitter(relay)

	tokens := auth.NewTokenManager(app.SecretKey, app.AccessTokenTTL)

	jobService := job.NewJobService(postgres.NewJobRepository(db), publisher, emitter)
	jobHandler := job.NewJobHandler(jobService)

	if app.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "app": app.Name})
	})
	realtime.NewServer(hub, tokens, rtCfg, app.Name).RegisterRoutes(r)

	api := r.Group("/api/v1", middleware.TimeoutMiddleware(app.RequestTimeout), middleware.ErrorHandler())
	job.RegisterRoutes(api, jobHandler, tokens)

	srv := &http.Server{Addr: app.HTTPAddr, Handler: r}
	go func() {
		log.Info().Str("addr", app.HTTPAddr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info().Msg("shutdown complete")
}
