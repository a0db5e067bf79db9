package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CacheLookups counts prediction cache lookups.
// Labels: result (hit, miss, error)
var CacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "vetdiag",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Prediction cache lookups by result",
	},
	[]string{"result"},
)
