package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registration(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	require.NotNil(t, metrics)

	metrics.LoginsInitiated.Inc()
	metrics.ACSOutcomes.WithLabelValues(OutcomeSuccess).Inc()
	metrics.ACSOutcomes.WithLabelValues(OutcomeNoMatchingUser).Inc()
	metrics.SessionsEstablished.Inc()
	metrics.ActiveSessions.Inc()
	metrics.MetadataFetchesTotal.WithLabelValues("success").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LoginsInitiated))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ACSOutcomes.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActiveSessions))
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	assert.Panics(t, func() {
		NewMetrics(registry)
	})
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.LoginsInitiated.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "saml2auth_logins_initiated_total")
}
