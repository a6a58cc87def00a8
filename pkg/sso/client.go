package sso

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"strings"

	saml2 "github.com/russellhaering/gosaml2"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/Tesorio/saml2auth/pkg/config"
)

// Paths of the browser-facing endpoints. The assertion consumer path is
// part of the SP's identity: the entity ID and audience are derived
// from it.
const (
	SignInPath     = "/sso/login"
	ACSPath        = "/sso/acs/"
	SignOutPath    = "/sso/logout"
	DeniedPath     = "/sso/denied/"
	SPMetadataPath = "/sso/metadata/"
)

// ServicePolicy captures the protocol trust decisions this SP makes.
// These are deliberate choices, not defaults inherited from the SAML
// library.
//
// Two aspects of the posture are fixed by construction rather than
// configurable here: unsolicited (IdP-initiated) responses are accepted
// because outgoing request IDs are not tracked, and no signature is
// demanded on the outer response element since the assertion signature
// is what carries trust.
type ServicePolicy struct {
	// SignAuthnRequests signs outgoing authentication requests.
	SignAuthnRequests bool

	// SignLogoutRequests signs outgoing single logout requests.
	SignLogoutRequests bool

	// RequireSignedAssertions rejects responses whose assertions are
	// unsigned.
	RequireSignedAssertions bool
}

// DefaultServicePolicy returns the service's fixed trust posture.
func DefaultServicePolicy() ServicePolicy {
	return ServicePolicy{
		SignAuthnRequests:       false,
		SignLogoutRequests:      true,
		RequireSignedAssertions: true,
	}
}

// ClientBuilder constructs per-request SAML service provider clients.
// A client is rebuilt for every request from the flow's metadata and
// the request's domain, so concurrent logins against different identity
// providers never share configuration.
type ClientBuilder struct {
	cfg      config.SAMLConfig
	resolver *MetadataResolver
	policy   ServicePolicy
	keyStore dsig.X509KeyStore
}

// NewClientBuilder creates a builder. When no SP certificate is
// configured a generated throwaway key pair is used; that is fine for
// the default policy, which signs nothing but logout requests.
func NewClientBuilder(cfg config.SAMLConfig, resolver *MetadataResolver, policy ServicePolicy) (*ClientBuilder, error) {
	keyStore, err := buildKeyStore(cfg)
	if err != nil {
		return nil, err
	}
	return &ClientBuilder{
		cfg:      cfg,
		resolver: resolver,
		policy:   policy,
		keyStore: keyStore,
	}, nil
}

func buildKeyStore(cfg config.SAMLConfig) (dsig.X509KeyStore, error) {
	if cfg.SPCertificatePEM == "" {
		return dsig.RandomKeyStoreForTest(), nil
	}

	certBlock, _ := pem.Decode([]byte(cfg.SPCertificatePEM))
	if certBlock == nil {
		return nil, fmt.Errorf("failed to decode SP certificate PEM")
	}
	if _, err := x509.ParseCertificate(certBlock.Bytes); err != nil {
		return nil, fmt.Errorf("failed to parse SP certificate: %w", err)
	}

	keyBlock, _ := pem.Decode([]byte(cfg.SPPrivateKeyPEM))
	if keyBlock == nil {
		return nil, fmt.Errorf("failed to decode SP private key PEM")
	}
	privateKey, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		pkcs8Key, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse SP private key: %w", err)
		}
		var ok bool
		privateKey, ok = pkcs8Key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("SP private key is not RSA")
		}
	}

	return &dsig.TLSCertKeyStore{
		PrivateKey:  privateKey,
		Certificate: [][]byte{certBlock.Bytes},
	}, nil
}

// CurrentDomain returns the scheme://host prefix that the SP's entity
// ID and assertion consumer URL are derived from. A configured
// assertion URL overrides the request, which matters behind proxies
// that rewrite Host.
func (b *ClientBuilder) CurrentDomain(r *http.Request) string {
	if b.cfg.AssertionURL != "" {
		return strings.TrimRight(b.cfg.AssertionURL, "/")
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// Build loads the referenced metadata and assembles an SP client bound
// to currentDomain. The entity ID and audience are the assertion
// consumer URL, so a request built for one domain only validates
// responses addressed to that same domain.
func (b *ClientBuilder) Build(ctx context.Context, currentDomain string, ref MetadataRef) (*saml2.SAMLServiceProvider, *IdPDescriptor, error) {
	idp, err := b.resolver.Load(ctx, ref)
	if err != nil {
		return nil, nil, err
	}

	acsURL := currentDomain + ACSPath
	sp := &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      idp.SSOURL,
		IdentityProviderSLOURL:      idp.SLOURL,
		IdentityProviderIssuer:      idp.EntityID,
		ServiceProviderIssuer:       acsURL,
		AssertionConsumerServiceURL: acsURL,
		ServiceProviderSLOURL:       currentDomain + SignOutPath,
		SignAuthnRequests:           b.policy.SignAuthnRequests,
		AudienceURI:                 acsURL,
		IDPCertificateStore:         idp.CertStore,
		SPKeyStore:                  b.keyStore,
		SkipSignatureValidation:     !b.policy.RequireSignedAssertions,
		AllowMissingAttributes:      true,
	}
	if b.cfg.NameIDFormat != "" {
		sp.NameIdFormat = b.cfg.NameIDFormat
	}

	return sp, idp, nil
}
