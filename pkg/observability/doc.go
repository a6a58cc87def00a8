// Package observability provides structured logging, Prometheus metrics,
// and graceful shutdown handling for the saml2auth service.
//
// # Logging
//
// Structured JSON logging via log/slog with chained fields:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("email", email).Warn("SSO user was not found")
//
// Loggers travel through request contexts; FromContext attaches the
// request ID when one is present.
//
// # Metrics
//
// All metrics use the saml2auth_ prefix and are registered against an
// explicit registry:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.LoginsInitiated.Inc()
//
// # Shutdown
//
// ShutdownManager drains the HTTP server and runs registered cleanup
// functions (session store, database) on SIGINT/SIGTERM.
package observability
