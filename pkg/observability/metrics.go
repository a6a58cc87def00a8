package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the SSO flow
type Metrics struct {
	// Initiation metrics
	LoginsInitiated  prometheus.Counter
	UnsafeRedirects  prometheus.Counter

	// Assertion consumer metrics
	ACSOutcomes        *prometheus.CounterVec
	AssertionDuration  prometheus.Histogram

	// Identity resolution metrics
	UsersResolved    prometheus.Counter
	UsersProvisioned prometheus.Counter
	UnmatchedLogins  prometheus.Counter

	// Session metrics
	SessionsEstablished prometheus.Counter
	SessionsDestroyed   prometheus.Counter
	ActiveSessions      prometheus.Gauge

	// Metadata metrics
	MetadataFetchesTotal  *prometheus.CounterVec
	MetadataFetchDuration prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		LoginsInitiated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "saml2auth_logins_initiated_total",
				Help: "Total number of SSO login initiations",
			},
		),
		UnsafeRedirects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "saml2auth_unsafe_redirects_total",
				Help: "Total number of rejected unsafe post-login redirect targets",
			},
		),
		ACSOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saml2auth_acs_outcomes_total",
				Help: "Total assertion consumer invocations by outcome",
			},
			[]string{"outcome"},
		),
		AssertionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "saml2auth_assertion_validation_duration_seconds",
				Help:    "Time spent parsing and validating SAML responses",
				Buckets: prometheus.DefBuckets,
			},
		),
		UsersResolved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "saml2auth_users_resolved_total",
				Help: "Total number of assertions resolved to an existing user",
			},
		),
		UsersProvisioned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "saml2auth_users_provisioned_total",
				Help: "Total number of users auto-provisioned from assertions",
			},
		),
		UnmatchedLogins: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "saml2auth_unmatched_logins_total",
				Help: "Total number of assertions with no matching local user",
			},
		),
		SessionsEstablished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "saml2auth_sessions_established_total",
				Help: "Total number of authenticated sessions established",
			},
		),
		SessionsDestroyed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "saml2auth_sessions_destroyed_total",
				Help: "Total number of sessions destroyed by sign-out",
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "saml2auth_active_sessions",
				Help: "Number of currently active authenticated sessions",
			},
		),
		MetadataFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saml2auth_metadata_fetches_total",
				Help: "Total remote IdP metadata fetches by result",
			},
			[]string{"result"},
		),
		MetadataFetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "saml2auth_metadata_fetch_duration_seconds",
				Help:    "Time spent fetching remote IdP metadata",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		m.LoginsInitiated,
		m.UnsafeRedirects,
		m.ACSOutcomes,
		m.AssertionDuration,
		m.UsersResolved,
		m.UsersProvisioned,
		m.UnmatchedLogins,
		m.SessionsEstablished,
		m.SessionsDestroyed,
		m.ActiveSessions,
		m.MetadataFetchesTotal,
		m.MetadataFetchDuration,
	)

	return m
}

// ACS outcome labels. Every assertion consumer invocation increments
// exactly one of these.
const (
	OutcomeSuccess          = "success"
	OutcomeNoFlow           = "no_flow"
	OutcomeMissingPayload   = "missing_payload"
	OutcomeInvalidAssertion = "invalid_assertion"
	OutcomeMissingIdentity  = "missing_identity"
	OutcomeMissingAttribute = "missing_attribute"
	OutcomeNoMatchingUser   = "no_matching_user"
	OutcomeInactiveUser     = "inactive_user"
	OutcomeInternalError    = "internal_error"
)

// Handler returns an HTTP handler for the /metrics endpoint
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
