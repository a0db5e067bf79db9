// Package metrics holds the Prometheus collectors for the HTTP server and predictions.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests.
	// Labels: method, route, status
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vetdiag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration tracks handler latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vetdiag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// PredictionsTotal counts predictions.
	// Labels: result (success, error), diagnosis
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vetdiag",
			Subsystem: "model",
			Name:      "predictions_total",
			Help:      "Predictions by result and predicted diagnosis",
		},
		[]string{"result", "diagnosis"},
	)

	// ReloadsTotal counts model and dataset reloads.
	// Labels: target (model, dataset), result (success, error)
	ReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vetdiag",
			Subsystem: "reload",
			Name:      "total",
			Help:      "Model and dataset reloads by target and result",
		},
		[]string{"target", "result"},
	)

	// DatasetRecords is the number of cleaned treatment records loaded.
	DatasetRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vetdiag",
			Subsystem: "dataset",
			Name:      "records",
			Help:      "Cleaned treatment records currently loaded",
		},
	)
)

// Result maps an error to the result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Middleware records request count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
