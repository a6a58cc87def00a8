// Package sso implements the service provider side of SAML 2.0 web
// browser single sign-on.
//
// The flow has two browser-facing halves. SignIn validates the
// requested post-login destination, persists per-flow state in the
// session, and redirects to the identity provider with an
// authentication request. ACS receives the provider's POSTed response,
// rebuilds the SP configuration from the flow state, validates the
// assertion through gosaml2, and drives identity resolution and
// session establishment.
//
// SP configuration is rebuilt per request from the flow's metadata
// reference and the request's domain. Different tenants can stage
// different identity providers in their sessions and log in
// concurrently without sharing any mutable configuration.
//
// The trust posture is fixed in ServicePolicy: unsolicited responses
// are accepted, authentication requests go out unsigned, logout
// requests are signed, and assertions must carry a valid signature.
package sso
