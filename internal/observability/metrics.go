package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper parsing service.
// Metrics are organized by subsystem: parses, structure-service calls, table
// extraction, references, and LLM operations. All counters and histograms are
// registered via promauto for automatic registration with the default
// Prometheus registry.
type Metrics struct {
	// ParsesStarted counts parse requests initiated, labeled by parse type.
	ParsesStarted *prometheus.CounterVec

	// ParsesCompleted counts parses that finished successfully, labeled by parse type.
	ParsesCompleted *prometheus.CounterVec

	// ParsesFailed counts parses that ended in failure, labeled by parse type.
	ParsesFailed *prometheus.CounterVec

	// ParseDuration observes end-to-end parse duration in seconds, labeled by parse type.
	ParseDuration *prometheus.HistogramVec

	// PapersUploaded counts PDF uploads accepted.
	PapersUploaded prometheus.Counter

	// PapersDuplicate counts uploads that matched an existing content hash.
	PapersDuplicate prometheus.Counter

	// UploadBytes observes accepted upload sizes in bytes.
	UploadBytes prometheus.Histogram

	// StructureRequestsTotal counts requests to the document structure service.
	StructureRequestsTotal prometheus.Counter

	// StructureRequestsFailed counts failed structure service requests, labeled by error type.
	StructureRequestsFailed *prometheus.CounterVec

	// StructureRequestDuration observes structure service request duration in seconds.
	StructureRequestDuration prometheus.Histogram

	// TablePassesTotal counts table extraction passes, labeled by strategy.
	TablePassesTotal *prometheus.CounterVec

	// TablePassesFailed counts failed table extraction passes, labeled by strategy.
	TablePassesFailed *prometheus.CounterVec

	// TablesExtracted counts table candidates produced across all passes.
	TablesExtracted prometheus.Counter

	// ReferencesExtracted counts references normalized from structure output.
	ReferencesExtracted prometheus.Counter

	// ReferencesKept counts references accepted by the validity gate.
	ReferencesKept prometheus.Counter

	// ReferencesDropped counts references rejected by the validity gate.
	ReferencesDropped prometheus.Counter

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Parses
		ParsesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parses_started_total",
			Help:      "Total number of parse requests started by parse type",
		}, []string{"parse_type"}),
		ParsesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parses_completed_total",
			Help:      "Total number of parses completed successfully by parse type",
		}, []string{"parse_type"}),
		ParsesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parses_failed_total",
			Help:      "Total number of parses that failed by parse type",
		}, []string{"parse_type"}),
		ParseDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_duration_seconds",
			Help:      "End-to-end parse duration in seconds by parse type",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"parse_type"}),

		// Uploads
		PapersUploaded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_uploaded_total",
			Help:      "Total number of PDF uploads accepted",
		}),
		PapersDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_duplicate_total",
			Help:      "Total number of uploads matching an existing content hash",
		}),
		UploadBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_bytes",
			Help:      "Accepted upload sizes in bytes",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 8),
		}),

		// Structure service
		StructureRequestsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "structure_requests_total",
			Help:      "Total number of requests to the document structure service",
		}),
		StructureRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "structure_requests_failed_total",
			Help:      "Total number of failed structure service requests by error type",
		}, []string{"error_type"}),
		StructureRequestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "structure_request_duration_seconds",
			Help:      "Duration of structure service requests in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		// Table extraction
		TablePassesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_passes_total",
			Help:      "Total number of table extraction passes by strategy",
		}, []string{"strategy"}),
		TablePassesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_passes_failed_total",
			Help:      "Total number of failed table extraction passes by strategy",
		}, []string{"strategy"}),
		TablesExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tables_extracted_total",
			Help:      "Total number of table candidates extracted",
		}),

		// References
		ReferencesExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "references_extracted_total",
			Help:      "Total number of references normalized from structure output",
		}),
		ReferencesKept: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "references_kept_total",
			Help:      "Total number of references accepted by the validity gate",
		}),
		ReferencesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "references_dropped_total",
			Help:      "Total number of references rejected by the validity gate",
		}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by operation",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by operation",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation", "model"}),
	}
}

// RecordParseStarted records that a parse has started.
func (m *Metrics) RecordParseStarted(parseType string) {
	m.ParsesStarted.WithLabelValues(parseType).Inc()
}

// RecordParseCompleted records that a parse has completed.
func (m *Metrics) RecordParseCompleted(parseType string, durationSeconds float64) {
	m.ParsesCompleted.WithLabelValues(parseType).Inc()
	m.ParseDuration.WithLabelValues(parseType).Observe(durationSeconds)
}

// RecordParseFailed records that a parse has failed.
func (m *Metrics) RecordParseFailed(parseType string, durationSeconds float64) {
	m.ParsesFailed.WithLabelValues(parseType).Inc()
	m.ParseDuration.WithLabelValues(parseType).Observe(durationSeconds)
}

// RecordUpload records an accepted upload.
func (m *Metrics) RecordUpload(sizeBytes int64, duplicate bool) {
	m.PapersUploaded.Inc()
	m.UploadBytes.Observe(float64(sizeBytes))
	if duplicate {
		m.PapersDuplicate.Inc()
	}
}

// RecordStructureRequest records a structure service request.
func (m *Metrics) RecordStructureRequest(durationSeconds float64) {
	m.StructureRequestsTotal.Inc()
	m.StructureRequestDuration.Observe(durationSeconds)
}

// RecordStructureRequestFailed records a failed structure service request.
func (m *Metrics) RecordStructureRequestFailed(errorType string) {
	m.StructureRequestsFailed.WithLabelValues(errorType).Inc()
}

// RecordTablePass records a table extraction pass.
func (m *Metrics) RecordTablePass(strategy string, tableCount int) {
	m.TablePassesTotal.WithLabelValues(strategy).Inc()
	m.TablesExtracted.Add(float64(tableCount))
}

// RecordTablePassFailed records a failed table extraction pass.
func (m *Metrics) RecordTablePassFailed(strategy string) {
	m.TablePassesFailed.WithLabelValues(strategy).Inc()
}

// RecordReferencesGated records the outcome of the reference validity gate.
func (m *Metrics) RecordReferencesGated(extracted, kept int) {
	m.ReferencesExtracted.Add(float64(extracted))
	m.ReferencesKept.Add(float64(kept))
	if dropped := extracted - kept; dropped > 0 {
		m.ReferencesDropped.Add(float64(dropped))
	}
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}
