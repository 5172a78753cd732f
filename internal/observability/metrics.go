package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceanon",
		Name:      "jobs_processed_total",
		Help:      "Total number of anonymization jobs completed, by outcome",
	}, []string{"outcome"})

	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceanon",
		Name:      "frames_processed_total",
		Help:      "Total number of frames processed",
	}, []string{"job_id"})

	FacesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceanon",
		Name:      "faces_detected_total",
		Help:      "Total number of face regions detected",
	}, []string{"job_id"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceanon",
		Name:      "stage_duration_seconds",
		Help:      "Duration of a single pipeline stage invocation",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "faceanon",
		Name:      "queue_depth",
		Help:      "Number of pending jobs in the work queue",
	})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "faceanon",
		Name:      "active_jobs",
		Help:      "Number of jobs currently running through the pipeline",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceanon",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "faceanon",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
