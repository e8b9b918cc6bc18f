// Package scheduler runs the nightly retrain cycle: rebuild feature
// vectors, train each model family, then hot-reload the inference
// snapshot.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"nbaml_v3/pipeline/internal/cache"
	"nbaml_v3/pipeline/internal/config"
	"nbaml_v3/pipeline/internal/features"
	"nbaml_v3/pipeline/internal/inference"
	"nbaml_v3/pipeline/internal/metrics"
	"nbaml_v3/pipeline/internal/pipeline"
	"nbaml_v3/pipeline/internal/trainer"
)

// Scheduler manages the background retrain job
type Scheduler struct {
	cfg     *config.Config
	builder *pipeline.Builder
	trainer *trainer.Trainer
	svc     *inference.Service
	cache   *cache.RedisCache
	cron    *cron.Cron
}

// NewScheduler creates a new scheduler instance. cache may be nil.
func NewScheduler(
	cfg *config.Config,
	builder *pipeline.Builder,
	tr *trainer.Trainer,
	svc *inference.Service,
	redisCache *cache.RedisCache,
) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		builder: builder,
		trainer: tr,
		svc:     svc,
		cache:   redisCache,
		cron:    cron.New(),
	}
}

// Start schedules the nightly retrain
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.NightlyRetrainCron, func() {
		log.Info().Msg("Running nightly retrain...")
		if err := s.RunRetrain(ctx); err != nil {
			log.Error().Err(err).Msg("Nightly retrain failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule nightly retrain: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.cfg.NightlyRetrainCron).
		Msg("Nightly retrain scheduled")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")
	<-s.cron.Stop().Done()
}

// RunRetrain trains every family and reloads the serving snapshot.
// A family that cannot train (not enough rows) is skipped; the others
// still retrain and the reload still happens.
func (s *Scheduler) RunRetrain(ctx context.Context) error {
	trained := 0
	for _, name := range features.Names() {
		family, err := features.ByName(name)
		if err != nil {
			return err
		}

		vectors, err := s.builder.TrainingVectors(ctx, family)
		if err != nil {
			metrics.TrainingRuns.WithLabelValues(name, "error").Inc()
			return fmt.Errorf("failed to build vectors for family %s: %w", name, err)
		}

		res, err := s.trainer.Train(ctx, family, vectors)
		if err != nil {
			if errors.Is(err, trainer.ErrInsufficientData) {
				log.Warn().Err(err).Str("family", name).Msg("Skipping family, not enough data")
				metrics.TrainingRuns.WithLabelValues(name, "skipped").Inc()
				continue
			}
			metrics.TrainingRuns.WithLabelValues(name, "error").Inc()
			return fmt.Errorf("failed to train family %s: %w", name, err)
		}

		trained++
		log.Info().
			Str("family", name).
			Str("artifact_id", res.ArtifactID).
			Float64("accuracy", res.Evaluation.Accuracy).
			Msg("Family retrained")
	}

	if trained == 0 {
		log.Warn().Msg("No family retrained, keeping current snapshot")
		return nil
	}

	if err := s.svc.Reload(ctx); err != nil {
		return fmt.Errorf("failed to reload inference snapshot: %w", err)
	}

	if s.cache != nil {
		for _, name := range features.Names() {
			if err := s.cache.InvalidateFamily(ctx, name); err != nil {
				log.Warn().Err(err).Str("family", name).Msg("Cache invalidation failed")
			}
		}
	}

	log.Info().Int("families", trained).Msg("Retrain cycle complete")
	return nil
}
