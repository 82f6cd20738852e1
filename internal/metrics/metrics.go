package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ModelBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kubefm_model_build_duration_seconds",
			Help:    "Time spent resolving a schema version and assembling its feature model",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	SchemaWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubefm_schema_warnings",
			Help: "Recoverable schema conditions by kind (unresolved reference, unsupported construct)",
		},
		[]string{"kind"},
	)

	DocumentsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kubefm_documents_processed",
			Help: "Total number of configuration documents translated and validated",
		},
	)

	DocumentFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubefm_documents_failed",
			Help: "Documents that could not be processed, by failure type",
		},
		[]string{"reason"},
	)

	ValidationResult = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubefm_validation_result",
			Help: "Validation outcomes by result (valid, invalid)",
		},
		[]string{"result"},
	)

	UnmappedKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kubefm_unmapped_keys",
			Help: "Total number of document keys with no key mapping entry",
		},
	)

	DocumentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kubefm_document_duration_seconds",
			Help:    "Per-document translate+validate duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
)

func ObserveDocument(start time.Time, valid bool) {
	DocumentsProcessed.Inc()
	DocumentDuration.Observe(time.Since(start).Seconds())
	if valid {
		ValidationResult.WithLabelValues("valid").Inc()
	} else {
		ValidationResult.WithLabelValues("invalid").Inc()
	}
}
