// Package httputil provides HTTP utilities shared by the service's handlers.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteBadRequest(w, "missing SAMLResponse")
//	httputil.WriteInternalError(w, err)
//
// HTML responses for browser-facing pages:
//
//	httputil.WriteHTML(w, http.StatusForbidden, page)
//
// # Middleware
//
// Middleware is composed with Chain, outermost first:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.SecurityHeadersMiddleware,
//	)(mux)
//
// RequestIDMiddleware assigns each request a UUID and propagates it through
// the request context so handler logs correlate with access logs.
package httputil
