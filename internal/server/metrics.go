package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks upload and analysis counters exposed on /metrics.
type Metrics struct {
	Uploads       *prometheus.CounterVec
	UploadErrors  *prometheus.CounterVec
	ExcludedRows  *prometheus.CounterVec
	AnalysisTimer *prometheus.HistogramVec
}

// NewMetrics registers the server metrics on a registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clubsight_uploads_total",
			Help: "Uploaded files per view.",
		}, []string{"view"}),
		UploadErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clubsight_upload_errors_total",
			Help: "Rejected uploads per view.",
		}, []string{"view"}),
		ExcludedRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clubsight_excluded_rows_total",
			Help: "Rows excluded during cleaning per view.",
		}, []string{"view"}),
		AnalysisTimer: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clubsight_analysis_duration_seconds",
			Help:    "Analysis duration per view.",
			Buckets: prometheus.DefBuckets,
		}, []string{"view"}),
	}
}
