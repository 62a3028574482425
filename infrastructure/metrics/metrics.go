package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Data-layer metrics
var (
	// Contract operation counter
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatstore",
			Subsystem: "datalayer",
			Name:      "operations_total",
			Help:      "Total data-layer contract operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// Contract operation duration histogram
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatstore",
			Subsystem: "datalayer",
			Name:      "operation_duration_seconds",
			Help:      "Data-layer operation duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"backend", "operation"},
	)

	// Payload upload bytes counter
	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatstore",
			Subsystem: "datalayer",
			Name:      "upload_bytes_total",
			Help:      "Total element payload bytes written through object storage",
		},
		[]string{"backend"},
	)
)
