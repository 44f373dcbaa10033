// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aquasens_predictions_total",
			Help: "Predictions served, by irrigation level",
		},
		[]string{"level"},
	)

	PredictionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aquasens_prediction_errors_total",
			Help: "Failed predictions, by reason",
		},
		[]string{"reason"},
	)

	PredictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aquasens_prediction_duration_seconds",
			Help:    "Time spent encoding, predicting and explaining one row",
			Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
		},
	)

	DecisionPathLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aquasens_decision_path_steps",
			Help:    "Number of split conditions reported per prediction",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)

	BatchJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aquasens_batch_jobs_total",
			Help: "Batch scoring jobs, by final status",
		},
		[]string{"status"},
	)

	BatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aquasens_batch_queue_depth",
			Help: "Batch jobs waiting for a worker",
		},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aquasens_api_requests_total",
			Help: "HTTP requests, by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aquasens_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordAPIRequest records one finished HTTP request.
func RecordAPIRequest(method, route string, status int, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordPrediction records one successful prediction.
func RecordPrediction(level string, steps int, d time.Duration) {
	PredictionsTotal.WithLabelValues(level).Inc()
	DecisionPathLength.Observe(float64(steps))
	PredictionDuration.Observe(d.Seconds())
}
