// Package metrics provides Prometheus metrics for the loan prediction service.
// It defines prediction, validation and model health metrics exposed on the
// /metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	Predictions        *prometheus.CounterVec // Decisions returned, by status
	PredictionFailures prometheus.Counter     // Model errors during inference
	PredictionLatency  prometheus.Histogram   // Align + inference latency in seconds
	ConfidenceScores   prometheus.Histogram   // Distribution of reported confidence

	// Request metrics
	ValidationErrors prometheus.Counter // Requests rejected before prediction

	// Model metrics
	ModelAge         prometheus.Gauge // Age of the loaded artifact in seconds
	UnmappedFeatures prometheus.Gauge // Schema features no request field maps to
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_predictions_total",
			Help: "Total number of loan decisions returned, by status",
		}, []string{"status"}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_prediction_failures_total",
			Help: "Total number of model inference failures",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loan_prediction_latency_seconds",
			Help:    "Feature alignment and inference latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		ConfidenceScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loan_prediction_confidence",
			Help:    "Distribution of reported decision confidence",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ValidationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_request_validation_errors_total",
			Help: "Total number of prediction requests rejected as malformed or incomplete",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "loan_model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}),
		UnmappedFeatures: factory.NewGauge(prometheus.GaugeOpts{
			Name: "loan_model_unmapped_features",
			Help: "Number of model schema features that always resolve to 0",
		}),
	}
}
