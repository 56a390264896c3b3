package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// It is passed explicitly to the components that record metrics. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// Listing Metrics
	listingsCreatedTotal      *prometheus.CounterVec
	listingStatusChangesTotal *prometheus.CounterVec

	// Search Metrics
	searchRequestsTotal *prometheus.CounterVec
	searchFallbacks     *prometheus.CounterVec
	searchDuration      *prometheus.HistogramVec
	inferenceCallsTotal *prometheus.CounterVec
	inferenceDuration   prometheus.Histogram

	// Wallet Metrics
	walletConnectsTotal *prometheus.CounterVec

	// Review Workflow Metrics
	reviewWorkflowsTotal *prometheus.CounterVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections prometheus.Gauge
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		listingsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcphub_listings_created_total",
				Help: "Total number of listings created by collection",
			},
			[]string{"collection"},
		),
		listingStatusChangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcphub_listing_status_changes_total",
				Help: "Total number of listing status changes by collection and new status",
			},
			[]string{"collection", "status"},
		),

		searchRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcphub_search_requests_total",
				Help: "Total number of searches by requested mode",
			},
			[]string{"mode"},
		),
		searchFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcphub_search_fallbacks_total",
				Help: "Total number of pro searches that fell back to basic results",
			},
			[]string{"reason"},
		),
		searchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcphub_search_duration_seconds",
				Help:    "Duration of searches in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"mode"},
		),
		inferenceCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcphub_inference_calls_total",
				Help: "Total number of relevance scoring calls by status",
			},
			[]string{"status"},
		),
		inferenceDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mcphub_inference_call_duration_seconds",
				Help:    "Duration of relevance scoring calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),

		walletConnectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcphub_wallet_connects_total",
				Help: "Total number of wallet connection attempts by outcome",
			},
			[]string{"outcome"},
		),

		reviewWorkflowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcphub_review_workflows_total",
				Help: "Total number of listing review workflows by outcome",
			},
			[]string{"outcome"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"event_type"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Listing metric helpers

// RecordListingCreated records a new listing.
func (m *Metrics) RecordListingCreated(collection string) {
	if m == nil {
		return
	}
	m.listingsCreatedTotal.WithLabelValues(collection).Inc()
}

// RecordListingStatusChange records a review decision being applied.
func (m *Metrics) RecordListingStatusChange(collection, status string) {
	if m == nil {
		return
	}
	m.listingStatusChangesTotal.WithLabelValues(collection, status).Inc()
}

// Search metric helpers

// RecordSearch records a completed search.
func (m *Metrics) RecordSearch(mode string, duration float64) {
	if m == nil {
		return
	}
	m.searchRequestsTotal.WithLabelValues(mode).Inc()
	m.searchDuration.WithLabelValues(mode).Observe(duration)
}

// RecordSearchFallback records a pro search degrading to basic results.
func (m *Metrics) RecordSearchFallback(reason string) {
	if m == nil {
		return
	}
	m.searchFallbacks.WithLabelValues(reason).Inc()
}

// RecordInferenceCall records one scoring request.
func (m *Metrics) RecordInferenceCall(status string, duration float64) {
	if m == nil {
		return
	}
	m.inferenceCallsTotal.WithLabelValues(status).Inc()
	m.inferenceDuration.Observe(duration)
}

// Wallet metric helpers

// RecordWalletConnect records a wallet connection attempt.
func (m *Metrics) RecordWalletConnect(outcome string) {
	if m == nil {
		return
	}
	m.walletConnectsTotal.WithLabelValues(outcome).Inc()
}

// Workflow metric helpers

// RecordReviewWorkflow records how a review workflow ended.
func (m *Metrics) RecordReviewWorkflow(outcome string) {
	if m == nil {
		return
	}
	m.reviewWorkflowsTotal.WithLabelValues(outcome).Inc()
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(delta float64) {
	if m == nil {
		return
	}
	m.sseActiveConnections.Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(eventType string) {
	if m == nil {
		return
	}
	m.sseEventsSent.WithLabelValues(eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
