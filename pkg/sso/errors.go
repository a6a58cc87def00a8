package sso

import "errors"

// Flow errors. Handlers convert each of these into a redirect to a
// denial or login surface; none leak to the browser as a raw failure
// except ErrRedirectResolution and ErrMissingRequiredAttribute, which
// indicate misconfiguration and surface as server errors.
var (
	// ErrNoActiveFlow means an assertion arrived with no preceding
	// initiation, or the flow state was already consumed.
	ErrNoActiveFlow = errors.New("no active login flow")

	// ErrMissingAssertionPayload means the callback POST carried no
	// SAMLResponse field.
	ErrMissingAssertionPayload = errors.New("missing assertion payload")

	// ErrInvalidAssertion means the response failed signature, timing
	// or audience validation.
	ErrInvalidAssertion = errors.New("invalid assertion")

	// ErrMissingIdentity means the validated response carried no
	// identity attributes at all.
	ErrMissingIdentity = errors.New("assertion carries no identity")

	// ErrMissingRequiredAttribute means a required mapped attribute
	// (at minimum email) was absent or empty.
	ErrMissingRequiredAttribute = errors.New("missing required attribute")

	// ErrUnsafeRedirect means the requested post-login target failed
	// the same-origin / allow-list check.
	ErrUnsafeRedirect = errors.New("unsafe redirect target")

	// ErrRedirectResolution means initiation could not obtain an
	// identity provider location.
	ErrRedirectResolution = errors.New("could not resolve identity provider redirect")

	// ErrNoMetadata means no identity provider metadata source is
	// available for the flow.
	ErrNoMetadata = errors.New("no identity provider metadata available")
)
