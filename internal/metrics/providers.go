package metrics

import "github.com/prometheus/client_golang/prometheus"

// Provider-facing Prometheus metrics: embedding calls, model calls, and the
// chunker's degraded path.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvlens",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cvlens",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvlens",
			Name:      "embedding_errors_total",
			Help:      "Total embedding errors by type",
		},
		[]string{"provider", "model", "error_type"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvlens",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	ModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvlens",
			Name:      "model_requests_total",
			Help:      "Total number of language model requests",
		},
		[]string{"provider", "model", "status"},
	)

	ModelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cvlens",
			Name:      "model_request_duration_seconds",
			Help:      "Language model request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	ChunkingFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cvlens",
			Name:      "chunking_fallbacks_total",
			Help:      "Documents ingested via the degraded single-section fallback",
		},
	)

	SectionsIndexedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cvlens",
			Name:      "sections_indexed_total",
			Help:      "Total section points written to the vector index",
		},
	)
)

var providerMetricsRegistered bool

// RegisterProviderMetrics registers provider metrics. Must be called once from main.
func RegisterProviderMetrics() {
	if providerMetricsRegistered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingErrorsTotal)
	prometheus.MustRegister(EmbeddingTokensTotal)
	prometheus.MustRegister(ModelRequestsTotal)
	prometheus.MustRegister(ModelRequestDuration)
	prometheus.MustRegister(ChunkingFallbacksTotal)
	prometheus.MustRegister(SectionsIndexedTotal)
	providerMetricsRegistered = true
}
