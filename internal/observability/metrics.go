package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photoclaim",
		Name:      "photos_processed_total",
		Help:      "Total number of photo processing units completed",
	}, []string{"outcome"}) // ready, failed, skipped

	PhotoRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photoclaim",
		Name:      "photo_retries_total",
		Help:      "Total number of photo processing retries",
	})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photoclaim",
		Name:      "faces_detected_total",
		Help:      "Total number of faces extracted from photos",
	})

	ClaimsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photoclaim",
		Name:      "claims_created_total",
		Help:      "Total number of claims created by the match pipeline",
	}, []string{"status"}) // pending, approved

	ClaimDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photoclaim",
		Name:      "claim_decisions_total",
		Help:      "Total number of manual claim approvals/rejections",
	}, []string{"decision"})

	PhotosSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photoclaim",
		Name:      "photos_swept_total",
		Help:      "Total number of expired photos purged by the retention sweeper",
	})

	StaleResets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photoclaim",
		Name:      "stale_processing_resets_total",
		Help:      "Total number of orphaned processing photos reset for retry",
	})

	PipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photoclaim",
		Name:      "pipeline_stage_duration_seconds",
		Help:      "Duration of pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"stage"}) // extract, persist, match, claims

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "photoclaim",
		Name:      "queue_depth",
		Help:      "Number of pending photo tasks in the work queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photoclaim",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "photoclaim",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
