package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the prediction service

var (
	// Prediction metrics
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbaml_predictions_total",
			Help: "Total number of predictions served",
		},
		[]string{"family", "status"},
	)

	PredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nbaml_prediction_duration_seconds",
			Help:    "Duration of prediction requests in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
		[]string{"family"},
	)

	LoadedArtifacts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nbaml_loaded_artifacts",
			Help: "Whether an artifact is loaded for a model family (1/0)",
		},
		[]string{"family"},
	)

	// Training metrics
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbaml_training_runs_total",
			Help: "Total number of training runs",
		},
		[]string{"family", "status"},
	)

	TrainingAccuracy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nbaml_training_accuracy",
			Help: "Held-out accuracy of the most recent training run",
		},
		[]string{"family"},
	)

	TrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nbaml_training_duration_seconds",
			Help:    "Duration of training runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"family"},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbaml_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nbaml_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nbaml_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nbaml_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nbaml_cache_hits_total",
			Help: "Total number of prediction cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nbaml_cache_misses_total",
			Help: "Total number of prediction cache misses",
		},
	)

	// Pipeline metrics
	VectorsBuilt = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nbaml_feature_vectors_built",
			Help: "Feature vectors produced by the last pipeline run",
		},
		[]string{"family"},
	)

	GamesStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nbaml_games_stored_total",
			Help: "Total number of games in the database",
		},
	)

	OddsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nbaml_odds_records_total",
			Help: "Total number of odds records in the database",
		},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbaml_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordPrediction records a served prediction
func RecordPrediction(family, status string, duration float64) {
	PredictionsTotal.WithLabelValues(family, status).Inc()
	PredictionDuration.WithLabelValues(family).Observe(duration)
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table, status string, duration float64) {
	DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordCacheHit records a prediction cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a prediction cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(active, idle int32) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}

// SetArtifactLoaded flags whether a family currently has a servable model
func SetArtifactLoaded(family string, loaded bool) {
	v := 0.0
	if loaded {
		v = 1.0
	}
	LoadedArtifacts.WithLabelValues(family).Set(v)
}
