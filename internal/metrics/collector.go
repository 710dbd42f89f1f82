// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// Collector
// =============================================================================

// Collector owns every Prometheus series agent-chat exports. All Record
// methods are safe on a nil receiver so components can run unmetered.
type Collector struct {
	// operator API
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// protocol client
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	promptTokens       *prometheus.HistogramVec

	// model catalog
	catalogLookups *prometheus.CounterVec

	// conversation
	turnsTotal       *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec
	stateTransitions *prometheus.CounterVec
	injections       prometheus.Counter

	// credential store
	credentialOps *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector registers the series under namespace with the default
// registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of operator API requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Operator API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "Operator API response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of provider completion requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Provider completion latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	c.promptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_prompt_tokens",
			Help:      "Estimated prompt size of prepared turns",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 12),
		},
		[]string{"provider", "model"},
	)

	c.catalogLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_lookups_total",
			Help:      "Model catalog lookups by outcome",
		},
		[]string{"provider", "outcome"}, // outcome: cache_hit, fetched, static, fallback, in_flight
	)

	c.turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_turns_total",
			Help:      "Conversation turns by agent and result",
		},
		[]string{"agent_id", "provider", "status"},
	)

	c.turnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversation_turn_duration_seconds",
			Help:      "Time from prepare to append for one turn",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"agent_id"},
	)

	c.stateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_state_transitions_total",
			Help:      "Run state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	c.injections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_operator_injections_total",
			Help:      "Operator messages injected into a run",
		},
	)

	c.credentialOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_operations_total",
			Help:      "Credential store operations",
		},
		[]string{"operation", "status"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// Operator API
// =============================================================================

// RecordHTTPRequest records one operator API request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// Provider calls
// =============================================================================

// RecordLLMRequest records one completion attempt. status is "success" or
// an error code.
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordPromptTokens records the estimated size of a prepared prompt.
func (c *Collector) RecordPromptTokens(provider, model string, tokens int) {
	if c == nil {
		return
	}
	c.promptTokens.WithLabelValues(provider, model).Observe(float64(tokens))
}

// RecordCatalogLookup records how a model list request was answered.
func (c *Collector) RecordCatalogLookup(provider, outcome string) {
	if c == nil {
		return
	}
	c.catalogLookups.WithLabelValues(provider, outcome).Inc()
}

// =============================================================================
// Conversation
// =============================================================================

// RecordTurn records a finished turn.
func (c *Collector) RecordTurn(agentID, provider, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.turnsTotal.WithLabelValues(agentID, provider, status).Inc()
	c.turnDuration.WithLabelValues(agentID).Observe(duration.Seconds())
}

// RecordStateTransition records a run state change.
func (c *Collector) RecordStateTransition(from, to string) {
	if c == nil {
		return
	}
	c.stateTransitions.WithLabelValues(from, to).Inc()
}

// RecordInjection records an operator injection.
func (c *Collector) RecordInjection() {
	if c == nil {
		return
	}
	c.injections.Inc()
}

// RecordCredentialOp records a credential store call.
func (c *Collector) RecordCredentialOp(operation string, err error) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.credentialOps.WithLabelValues(operation, status).Inc()
}

// statusCode buckets an HTTP status.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
