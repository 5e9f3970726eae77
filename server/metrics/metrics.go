// Package metrics holds the process-wide Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sightd_uploads_total",
		Help: "Accepted media uploads, by kind",
	}, []string{"kind"})

	UploadsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sightd_uploads_rejected_total",
		Help: "Rejected media uploads, by reason",
	}, []string{"reason"})

	DetectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sightd_detections_total",
		Help: "Relevant objects detected across all pipeline runs",
	})

	PipelineFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sightd_pipeline_failures_total",
		Help: "Pipeline runs that failed, by stage",
	}, []string{"stage"})

	VideoJobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sightd_video_job_duration_seconds",
		Help:    "Wall time of video detection jobs",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})
)
