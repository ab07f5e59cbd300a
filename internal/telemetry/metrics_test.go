package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveRequest(t *testing.T) {
	m := NewMetrics()
	m.ObserveRequest(http.MethodGet, "/healthz", 200, 5*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/healthz", 200, 7*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "/invoke", 422, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/healthz", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/invoke", "422")))
}

func TestMetrics_RecordInvocation(t *testing.T) {
	m := NewMetrics()
	m.RecordInvocation(InvocationOK, 10*time.Millisecond)
	m.RecordInvocation(InvocationError, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues(InvocationOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues(InvocationError)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.invocations.WithLabelValues(InvocationClientError)))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest(http.MethodGet, "/", 200, time.Millisecond)
	m.RecordInvocation(InvocationOK, time.Millisecond)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveRequest(http.MethodGet, "/readyz", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tutoragent_http_requests_total{method="GET",route="/readyz",status="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
