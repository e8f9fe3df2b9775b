// Package metrics provides Prometheus metrics export for the retrieval
// engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports engine metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Turn metrics
	turnLatency  *prometheus.HistogramVec
	turnRequests *prometheus.CounterVec
	turnsActive  prometheus.Gauge

	// Retrieval metrics
	searchRequests  *prometheus.CounterVec
	searchLatency   *prometheus.HistogramVec
	searchDegraded  *prometheus.CounterVec
	resultsReturned *prometheus.HistogramVec
	rerankFallbacks prometheus.Counter

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// Answer quality metrics
	factCheckVerdicts *prometheus.CounterVec
	answerQuality     *prometheus.HistogramVec
	citationCoverage  prometheus.Histogram

	// Conversation metrics
	topicChanges prometheus.Counter
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.turnLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopsense",
			Subsystem: "ai",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end turn latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"query_type"},
	)

	e.turnRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopsense",
			Subsystem: "ai",
			Name:      "turn_requests_total",
			Help:      "Total number of conversational turns",
		},
		[]string{"query_type", "status"},
	)

	e.turnsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shopsense",
			Subsystem: "ai",
			Name:      "turns_active",
			Help:      "Number of turns currently in flight",
		},
	)

	e.searchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopsense",
			Subsystem: "ai",
			Name:      "search_requests_total",
			Help:      "Total search path invocations",
		},
		[]string{"path", "status"},
	)

	e.searchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopsense",
			Subsystem: "ai",
			Name:      "search_latency_seconds",
			Help:      "Hybrid search latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"query_type"},
	)

	e.searchDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopsense",
			Subsystem: "ai",
			Name:      "search_degraded_total",
			Help:      "Searches that lost one path and ran degraded",
		},
		[]string{"failed_path"},
	)

	e.resultsReturned = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopsense",
			Subsystem: "ai",
			Name:      "search_results_returned",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 3, 5, 10, 20, 50},
		},
		[]string{"query_type"},
	)

	e.rerankFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shopsense",
			Subsystem: "ai",
			Name:      "rerank_fallbacks_total",
			Help:      "Rerank calls that fell back to the original order",
		},
	)

	e.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopsense",
			Subsystem: "ai",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	e.cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopsense",
			Subsystem: "ai",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	e.factCheckVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopsense",
			Subsystem: "ai",
			Name:      "fact_check_verdicts_total",
			Help:      "Fact check verdicts by outcome",
		},
		[]string{"verdict"},
	)

	e.answerQuality = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopsense",
			Subsystem: "ai",
			Name:      "answer_quality_score",
			Help:      "Heuristic answer quality scores (0-1)",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"dimension"},
	)

	e.citationCoverage = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shopsense",
			Subsystem: "ai",
			Name:      "citation_coverage",
			Help:      "Share of sources cited per answer (0-1)",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	e.topicChanges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shopsense",
			Subsystem: "ai",
			Name:      "topic_changes_total",
			Help:      "Detected conversation topic changes",
		},
	)

	registry.MustRegister(
		e.turnLatency,
		e.turnRequests,
		e.turnsActive,
		e.searchRequests,
		e.searchLatency,
		e.searchDegraded,
		e.resultsReturned,
		e.rerankFallbacks,
		e.cacheHits,
		e.cacheMisses,
		e.factCheckVerdicts,
		e.answerQuality,
		e.citationCoverage,
		e.topicChanges,
	)

	return e
}

// RecordTurn records one completed conversational turn.
func (e *PrometheusExporter) RecordTurn(queryType string, latency time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.turnRequests.WithLabelValues(queryType, status).Inc()
	e.turnLatency.WithLabelValues(queryType).Observe(latency.Seconds())
}

// TurnStarted increments the in-flight gauge. Pair with TurnFinished.
func (e *PrometheusExporter) TurnStarted()  { e.turnsActive.Inc() }
func (e *PrometheusExporter) TurnFinished() { e.turnsActive.Dec() }

// RecordSearch records one hybrid search pass.
func (e *PrometheusExporter) RecordSearch(queryType string, latency time.Duration, resultCount int, degradedPath string) {
	e.searchLatency.WithLabelValues(queryType).Observe(latency.Seconds())
	e.resultsReturned.WithLabelValues(queryType).Observe(float64(resultCount))
	if degradedPath != "" {
		e.searchDegraded.WithLabelValues(degradedPath).Inc()
	}
}

// RecordSearchPath records one search-path invocation outcome.
func (e *PrometheusExporter) RecordSearchPath(path string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.searchRequests.WithLabelValues(path, status).Inc()
}

// RecordRerankFallback counts a rerank call that kept the original order.
func (e *PrometheusExporter) RecordRerankFallback() {
	e.rerankFallbacks.Inc()
}

// RecordCacheHit records a cache hit.
func (e *PrometheusExporter) RecordCacheHit(cacheType string) {
	e.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (e *PrometheusExporter) RecordCacheMiss(cacheType string) {
	e.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordFactCheck records a fact check verdict.
func (e *PrometheusExporter) RecordFactCheck(verdict string) {
	e.factCheckVerdicts.WithLabelValues(verdict).Inc()
}

// RecordAnswerQuality records one heuristic quality score.
func (e *PrometheusExporter) RecordAnswerQuality(dimension string, score float64) {
	e.answerQuality.WithLabelValues(dimension).Observe(score)
}

// RecordCitationCoverage records an answer's citation coverage.
func (e *PrometheusExporter) RecordCitationCoverage(coverage float64) {
	e.citationCoverage.Observe(coverage)
}

// RecordTopicChange counts a detected topic change.
func (e *PrometheusExporter) RecordTopicChange() {
	e.topicChanges.Inc()
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
