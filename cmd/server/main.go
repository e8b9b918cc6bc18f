package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"nbaml_v3/pipeline/internal/artifact"
	"nbaml_v3/pipeline/internal/cache"
	"nbaml_v3/pipeline/internal/config"
	"nbaml_v3/pipeline/internal/inference"
	"nbaml_v3/pipeline/internal/logging"
	"nbaml_v3/pipeline/internal/ml"
	"nbaml_v3/pipeline/internal/pipeline"
	"nbaml_v3/pipeline/internal/repository"
	"nbaml_v3/pipeline/internal/scheduler"
	"nbaml_v3/pipeline/internal/server"
	"nbaml_v3/pipeline/internal/trainer"
)

func main() {
	cfg := config.MustLoad()
	logging.Setup(cfg)

	log.Info().
		Str("env", cfg.AppEnv).
		Int("port", cfg.ServerPort).
		Msg("Starting NBA prediction service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	db, err := repository.NewDatabaseFromDSN(ctx, cfg.DatabaseDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	var redisCache *cache.RedisCache
	redisCache, err = cache.NewRedisCache(cache.Config{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.CacheTTL,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
		redisCache = nil
	} else {
		defer redisCache.Close()
		log.Info().Msg("Redis cache connected")
	}

	store, err := artifact.NewFSStore(cfg.ArtifactDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open artifact store")
	}

	svc := inference.New(store, cfg.DefaultFamily)
	if err := svc.Reload(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load model artifacts - train a model first")
	}

	if cfg.EnableScheduler {
		resolver, err := pipeline.LoadResolver(ctx, db)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load team resolver")
		}
		builder := pipeline.NewBuilder(db, resolver)
		tr := trainer.New(store, ml.GBTConfig{
			NEstimators:    cfg.GBTEstimators,
			MaxDepth:       cfg.GBTMaxDepth,
			LearningRate:   cfg.GBTLearningRate,
			MinSamplesLeaf: 5,
		}, cfg.MinTrainingRows)

		sched := scheduler.NewScheduler(cfg, builder, tr, svc, redisCache)
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
		defer sched.Stop()
	}

	if cfg.EnableMetrics {
		go startMetricsServer(cfg.MetricsPort)
	}

	srv := server.New(svc, db, redisCache)
	if err := srv.Start(ctx, cfg.ServerPort); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}

	log.Info().Msg("Service stopped")
}

// startMetricsServer exposes Prometheus metrics on a dedicated port so
// scrapes never contend with prediction traffic.
func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Info().Str("addr", addr).Msg("Metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
