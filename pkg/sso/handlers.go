package sso

import (
	"encoding/xml"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	saml2 "github.com/russellhaering/gosaml2"

	"github.com/Tesorio/saml2auth/pkg/config"
	"github.com/Tesorio/saml2auth/pkg/httputil"
	"github.com/Tesorio/saml2auth/pkg/identity"
	"github.com/Tesorio/saml2auth/pkg/observability"
	"github.com/Tesorio/saml2auth/pkg/session"
)

// Handler implements the browser-facing SSO endpoints.
type Handler struct {
	cfg       config.SAMLConfig
	builder   *ClientBuilder
	metadata  *MetadataResolver
	resolver  *identity.Resolver
	sessions  *session.Manager
	redirects RedirectPolicy
	metrics   *observability.Metrics

	// validateAssertion is swapped by tests; production always goes
	// through the SAML library.
	validateAssertion func(sp *saml2.SAMLServiceProvider, payload string) (*saml2.AssertionInfo, error)
}

// NewHandler wires the SSO endpoints together.
func NewHandler(
	cfg config.SAMLConfig,
	builder *ClientBuilder,
	metadata *MetadataResolver,
	resolver *identity.Resolver,
	sessions *session.Manager,
	metrics *observability.Metrics,
) *Handler {
	return &Handler{
		cfg:      cfg,
		builder:  builder,
		metadata: metadata,
		resolver: resolver,
		sessions: sessions,
		redirects: RedirectPolicy{
			DefaultURL:   cfg.DefaultNextURL,
			AllowedHosts: cfg.AllowedRedirectHosts,
		},
		metrics: metrics,
		validateAssertion: func(sp *saml2.SAMLServiceProvider, payload string) (*saml2.AssertionInfo, error) {
			return sp.RetrieveAssertionInfo(payload)
		},
	}
}

// RegisterRoutes mounts the SSO endpoints on the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc(SignInPath, h.SignIn).Methods(http.MethodGet)
	r.HandleFunc(ACSPath, h.ACS).Methods(http.MethodPost)
	r.HandleFunc(SignOutPath, h.SignOut).Methods(http.MethodGet)
	r.HandleFunc(DeniedPath, h.Denied).Methods(http.MethodGet)
	r.HandleFunc(SPMetadataPath, h.SPMetadata).Methods(http.MethodGet)
}

// StageMetadata stores a tenant's metadata reference in the session so
// the next sign-in uses it instead of the service-wide configuration.
func (h *Handler) StageMetadata(w http.ResponseWriter, r *http.Request, ref MetadataRef) error {
	return h.sessions.BeginFlow(r.Context(), w, r, &session.FlowState{
		MetadataInline: ref.Inline,
		MetadataURL:    ref.URL,
	})
}

// SignIn validates the requested post-login target, persists flow
// state, and redirects the browser to the identity provider.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	staged, err := h.sessions.PeekFlowState(ctx, r)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		logger.WithError(err).Error("failed to read session")
		httputil.WriteInternalError(w, errors.New("session store unavailable"))
		return
	}

	ref := h.metadata.ResolveRef(staged)
	if ref.IsZero() {
		logger.Error("no identity provider metadata configured")
		httputil.WriteInternalError(w, ErrNoMetadata)
		return
	}

	target, err := h.redirects.Resolve(r, r.URL.Query().Get("next"))
	if err != nil {
		h.metrics.UnsafeRedirects.Inc()
		logger.WithError(err).Warn("rejecting unsafe redirect target")
		http.Redirect(w, r, DeniedPath, http.StatusFound)
		return
	}

	flow := &session.FlowState{
		MetadataInline: ref.Inline,
		MetadataURL:    ref.URL,
		RedirectURL:    target,
	}
	if err := h.sessions.BeginFlow(ctx, w, r, flow); err != nil {
		logger.WithError(err).Error("failed to persist flow state")
		httputil.WriteInternalError(w, errors.New("session store unavailable"))
		return
	}

	sp, _, err := h.builder.Build(ctx, h.builder.CurrentDomain(r), ref)
	if err != nil {
		logger.WithError(err).Error("failed to build service provider configuration")
		httputil.WriteInternalError(w, ErrRedirectResolution)
		return
	}

	authURL, err := sp.BuildAuthURL("")
	if err != nil {
		logger.WithError(err).Error("failed to build identity provider redirect")
		httputil.WriteInternalError(w, ErrRedirectResolution)
		return
	}

	h.metrics.LoginsInitiated.Inc()
	logger.WithField("idp", sp.IdentityProviderIssuer).Info("redirecting to identity provider")
	http.Redirect(w, r, authURL, http.StatusFound)
}

// ACS consumes the identity provider's POSTed response. Flow state is
// consumed before anything else, so replaying the same callback never
// produces a second login.
func (h *Handler) ACS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)
	start := time.Now()

	flow, err := h.sessions.TakeFlowState(ctx, r)
	if err != nil {
		logger.Info("assertion received with no active flow")
		h.metrics.ACSOutcomes.WithLabelValues(observability.OutcomeNoFlow).Inc()
		http.Redirect(w, r, SignInPath, http.StatusFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.deny(w, r, logger, observability.OutcomeMissingPayload, "unparseable callback form")
		return
	}
	payload := r.FormValue("SAMLResponse")
	if payload == "" {
		h.deny(w, r, logger, observability.OutcomeMissingPayload, "callback carries no SAMLResponse")
		return
	}

	ref := h.metadata.RefFromFlow(flow)
	sp, _, err := h.builder.Build(ctx, h.builder.CurrentDomain(r), ref)
	if err != nil {
		logger.WithError(err).Error("failed to rebuild service provider configuration")
		h.deny(w, r, logger, observability.OutcomeInternalError, "configuration rebuild failed")
		return
	}

	info, err := h.validateAssertion(sp, payload)
	h.metrics.AssertionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		logger.WithError(err).Info("assertion validation failed")
		h.deny(w, r, logger, observability.OutcomeInvalidAssertion, "assertion rejected")
		return
	}
	if info.WarningInfo != nil && (info.WarningInfo.InvalidTime || info.WarningInfo.NotInAudience) {
		h.deny(w, r, logger, observability.OutcomeInvalidAssertion, "assertion outside validity window or audience")
		return
	}

	claims, err := ExtractClaims(info, h.cfg.Attributes)
	if err != nil {
		if errors.Is(err, ErrMissingRequiredAttribute) {
			// Attribute mapping mismatches are integration bugs, not
			// user mistakes.
			logger.WithError(err).Error("assertion is missing a required mapped attribute")
			h.metrics.ACSOutcomes.WithLabelValues(observability.OutcomeMissingAttribute).Inc()
			httputil.WriteInternalError(w, err)
			return
		}
		h.deny(w, r, logger, observability.OutcomeMissingIdentity, "assertion carries no identity")
		return
	}

	user, err := h.resolver.Resolve(ctx, claims)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrNoMatchingUser):
			h.metrics.UnmatchedLogins.Inc()
			h.metrics.ACSOutcomes.WithLabelValues(observability.OutcomeNoMatchingUser).Inc()
			logger.WithField("email", claims.Email).Info("no account for identity")
			http.Redirect(w, r, h.cfg.NoUserURL, http.StatusFound)
		case errors.Is(err, identity.ErrInactive):
			h.deny(w, r, logger.WithField("email", claims.Email), observability.OutcomeInactiveUser, "account is inactive")
		default:
			logger.WithError(err).Error("identity resolution failed")
			h.metrics.ACSOutcomes.WithLabelValues(observability.OutcomeInternalError).Inc()
			httputil.WriteInternalError(w, errors.New("identity resolution failed"))
		}
		return
	}
	h.metrics.UsersResolved.Inc()

	if _, err := h.sessions.Establish(ctx, w, user.ID, info.NameID, info.SessionIndex); err != nil {
		logger.WithError(err).Error("failed to establish session")
		h.metrics.ACSOutcomes.WithLabelValues(observability.OutcomeInternalError).Inc()
		httputil.WriteInternalError(w, errors.New("session store unavailable"))
		return
	}
	h.metrics.SessionsEstablished.Inc()
	h.metrics.ActiveSessions.Inc()
	h.metrics.ACSOutcomes.WithLabelValues(observability.OutcomeSuccess).Inc()

	target := flow.RedirectURL
	if target == "" {
		target = h.cfg.DefaultNextURL
	}
	logger.WithField("user_id", user.ID).Info("login complete")
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request, logger *observability.Logger, outcome, reason string) {
	logger.WithField("reason", reason).Info("denying sign-in")
	h.metrics.ACSOutcomes.WithLabelValues(outcome).Inc()
	http.Redirect(w, r, DeniedPath, http.StatusFound)
}

// SignOut destroys the local session. When the identity provider
// supports single logout and the session carries the needed handles,
// the browser is sent there with a signed logout request; otherwise a
// confirmation page is rendered.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	sess, sessErr := h.sessions.Current(ctx, r)
	if err := h.sessions.Destroy(ctx, w, r); err != nil {
		logger.WithError(err).Error("failed to destroy session")
	}

	if sessErr != nil || !sess.Authenticated() {
		renderSignedOut(w)
		return
	}
	h.metrics.SessionsDestroyed.Inc()
	h.metrics.ActiveSessions.Dec()
	logger.WithField("user_id", sess.UserID).Info("signed out")

	if sess.NameID == "" {
		renderSignedOut(w)
		return
	}
	ref := h.metadata.ResolveRef(nil)
	if ref.IsZero() {
		renderSignedOut(w)
		return
	}
	domain := h.builder.CurrentDomain(r)
	_, idp, err := h.builder.Build(ctx, domain, ref)
	if err != nil || idp.SLOURL == "" {
		renderSignedOut(w)
		return
	}

	logoutURL, err := h.builder.BuildLogoutURL(idp.SLOURL, domain+ACSPath, sess.NameID, sess.SessionIndex)
	if err != nil {
		logger.WithError(err).Error("failed to build single logout request")
		renderSignedOut(w)
		return
	}
	http.Redirect(w, r, logoutURL, http.StatusFound)
}

// Denied renders the denial page failed flows redirect to.
func (h *Handler) Denied(w http.ResponseWriter, r *http.Request) {
	renderDenied(w)
}

// SPMetadata serves this service's SP metadata document for
// registration with an identity provider.
func (h *Handler) SPMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	ref := h.metadata.ResolveRef(nil)
	if ref.IsZero() {
		httputil.WriteInternalError(w, ErrNoMetadata)
		return
	}
	sp, _, err := h.builder.Build(ctx, h.builder.CurrentDomain(r), ref)
	if err != nil {
		logger.WithError(err).Error("failed to build service provider configuration")
		httputil.WriteInternalError(w, err)
		return
	}

	meta, err := sp.Metadata()
	if err != nil {
		logger.WithError(err).Error("failed to generate SP metadata")
		httputil.WriteInternalError(w, err)
		return
	}
	out, err := xml.Marshal(meta)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Write(out)
}
