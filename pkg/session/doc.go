// Package session manages server-side browser sessions for the SSO flow.
//
// A session lives in a pluggable Store (Redis in production, in-memory for
// tests and single-node deployments) and is referenced from the browser by
// an opaque UUID in the saml2auth_session cookie. Nothing about the user or
// the login flow is stored client-side.
//
// Sessions move through two phases. When a login is initiated the Manager
// creates an anonymous session carrying a FlowState (the staged identity
// provider metadata and the post-login redirect target). When the identity
// provider posts back, TakeFlowState consumes that state destructively so a
// replayed callback finds nothing. Establish then mints a fresh session ID
// for the authenticated user, so the pre-login and post-login sessions never
// share an identifier.
package session
