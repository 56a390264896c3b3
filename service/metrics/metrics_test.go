package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordListingCreated("mcps")
		m.RecordListingStatusChange("mcps", "approved")
		m.RecordSearch("pro", 0.1)
		m.RecordSearchFallback("scorer_error")
		m.RecordInferenceCall("success", 0.2)
		m.RecordWalletConnect("success")
		m.RecordReviewWorkflow("approved")
		m.RecordDBQuery("insert", "mcps", 0.01, errors.New("boom"))
		m.RecordHTTPRequest("/health", "GET", 200, 0.001)
		m.RecordSSEConnectionChange(1)
		m.RecordSSEEventSent("listing.created")
		m.RecordNATSPublish("events.listings.mcps", "success", 0.001)
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordListingCreated("mcps")
	m.RecordListingCreated("mcps")
	m.RecordListingCreated("mcp_list")
	m.RecordSearchFallback("scorer_error")
	m.RecordWalletConnect("rejected")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.listingsCreatedTotal.WithLabelValues("mcps")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.listingsCreatedTotal.WithLabelValues("mcp_list")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searchFallbacks.WithLabelValues("scorer_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.walletConnectsTotal.WithLabelValues("rejected")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	handler := HTTPMetricsMiddleware(m, "/api/v1/mcps")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/mcps", nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/v1/mcps", "POST", "2xx")))
}

func TestStatusCodeToString(t *testing.T) {
	assert.Equal(t, "2xx", statusCodeToString(204))
	assert.Equal(t, "3xx", statusCodeToString(302))
	assert.Equal(t, "4xx", statusCodeToString(404))
	assert.Equal(t, "5xx", statusCodeToString(503))
	assert.Equal(t, "unknown", statusCodeToString(99))
}
