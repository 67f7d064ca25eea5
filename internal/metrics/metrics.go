// Package metrics provides Prometheus metrics for the prediction service.
// It covers prediction outcomes, failures by kind, model latency, loaded
// models and live WebSocket sessions, all exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors of the service.
type Metrics struct {
	Predictions       *prometheus.CounterVec   // Successful predictions by disease and outcome
	Errors            *prometheus.CounterVec   // Failed submissions by disease and error kind
	PredictionLatency *prometheus.HistogramVec // Model invocation latency by disease
	Submissions       *prometheus.CounterVec   // Submissions by channel (form, api, ws)

	ModelsLoaded     prometheus.Gauge   // Models in the registry
	WSConnections    prometheus.Gauge   // Open WebSocket sessions
	ArtifactsChanged prometheus.Counter // Artifacts whose checksum changed since the last run
}

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics on a custom registerer, so tests can use an
// isolated registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of successful predictions",
		}, []string{"disease", "outcome"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prediction_errors_total",
			Help: "Total number of failed prediction submissions",
		}, []string{"disease", "kind"}),
		PredictionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Model invocation latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"disease"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "submissions_total",
			Help: "Total number of prediction submissions by channel",
		}, []string{"channel"}),
		ModelsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "models_loaded",
			Help: "Number of models loaded in the registry",
		}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Number of open WebSocket prediction sessions",
		}),
		ArtifactsChanged: factory.NewCounter(prometheus.CounterOpts{
			Name: "model_artifacts_changed_total",
			Help: "Number of model artifacts whose checksum changed since the previous run",
		}),
	}
}

// Outcome label values.
const (
	OutcomePositive = "positive"
	OutcomeNegative = "negative"
)

// OutcomeLabel maps a diagnosis to its metric label.
func OutcomeLabel(positive bool) string {
	if positive {
		return OutcomePositive
	}
	return OutcomeNegative
}
