// Package server exposes the inference service over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"nbaml_v3/pipeline/internal/cache"
	"nbaml_v3/pipeline/internal/inference"
	"nbaml_v3/pipeline/internal/repository"
)

// PredictionCache is the slice of the Redis cache the handlers use.
type PredictionCache interface {
	GetPrediction(ctx context.Context, family, gameID string) (inference.Prediction, bool)
	SetPrediction(ctx context.Context, gameID string, p inference.Prediction)
	Health(ctx context.Context) error
}

// Server wires the inference service and its collaborators into an
// HTTP API. The database and cache are optional; handlers degrade to
// serving without them.
type Server struct {
	svc   *inference.Service
	db    *repository.Database
	cache PredictionCache

	httpServer *http.Server
}

// New creates a Server. db and redisCache may be nil.
func New(svc *inference.Service, db *repository.Database, redisCache *cache.RedisCache) *Server {
	s := &Server{svc: svc, db: db}
	// A typed nil must not become a non-nil interface.
	if redisCache != nil {
		s.cache = redisCache
	}
	return s
}

// Router builds the route tree.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.Health)
	r.Get("/models", s.Models)
	r.Post("/predict", s.Predict)
	r.Post("/predict/single", s.PredictSingle)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", port).Msg("HTTP server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		log.Info().Msg("HTTP server stopped")
		return nil
	}
}

// requestLogger logs one line per request with latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("latency", time.Since(started)).
			Msg("Request handled")
	})
}
