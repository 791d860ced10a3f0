package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scheduler metrics
var (
	PassRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_pass_runs_total",
			Help: "Total number of pipeline passes",
		},
		[]string{"pass"}, // "fast", "slow"
	)

	PassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photovault_pass_duration_seconds",
			Help:    "Pipeline pass duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"pass"},
	)

	StageOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_stage_outcomes_total",
			Help: "Per-item stage outcomes",
		},
		[]string{"stage", "outcome"}, // stage: thumbnail/metadata/faces/describe
	)

	FilesDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photovault_files_discovered_total",
			Help: "Total number of newly discovered media files",
		},
	)

	FilesWalked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photovault_files_walked_total",
			Help: "Total number of media files seen by the walker",
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_thumbnails_generated_total",
			Help: "Total number of thumbnails generated",
		},
		[]string{"kind"}, // "image", "video"
	)

	ThumbnailDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photovault_thumbnail_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	VideoFrameSeekRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photovault_video_frame_seek_retries_total",
			Help: "Total number of fallback seek offsets tried during video frame extraction",
		},
	)
)

// Face engine metrics
var (
	FaceDetectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photovault_face_detections_total",
			Help: "Total number of raw face detections",
		},
	)

	FaceGateRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_face_gate_rejections_total",
			Help: "Detections rejected by the quality gate, by reason",
		},
		[]string{"reason"},
	)

	FaceMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_face_matches_total",
			Help: "Face matching outcomes",
		},
		[]string{"result"}, // "matched", "created", "discarded"
	)

	IdentityCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photovault_identities",
			Help: "Number of identities known per user gallery",
		},
		[]string{"user"},
	)
)

// Store metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photovault_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)
