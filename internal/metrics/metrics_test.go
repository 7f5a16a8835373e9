package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()

	m.ObserveRequest("dashboard", "complete", 250*time.Millisecond)
	m.ObserveRequest("dashboard", "complete", 100*time.Millisecond)
	m.ObserveRequest("conversational", "complete", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("dashboard", "complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("conversational", "complete")))
}

func TestObserveQuery(t *testing.T) {
	m := New()

	m.ObserveQuery("kpi_sales_summary", "ok", 10*time.Millisecond)
	m.ObserveQuery("kpi_sales_summary", "error", 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("kpi_sales_summary", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("kpi_sales_summary", "error")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.CacheHitsTotal.Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "insights_cache_hits_total 1")
}
