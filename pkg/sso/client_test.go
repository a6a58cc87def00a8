package sso

import (
	"context"
	"crypto/tls"
	"net/http/httptest"
	"testing"

	dsig "github.com/russellhaering/goxmldsig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tesorio/saml2auth/pkg/config"
)

func TestDefaultServicePolicy(t *testing.T) {
	policy := DefaultServicePolicy()

	assert.False(t, policy.SignAuthnRequests)
	assert.True(t, policy.SignLogoutRequests)
	assert.True(t, policy.RequireSignedAssertions)
}

func TestCurrentDomain(t *testing.T) {
	tests := []struct {
		name         string
		assertionURL string
		forwarded    string
		tls          bool
		want         string
	}{
		{
			name: "derived from plain request",
			want: "http://app.example.com",
		},
		{
			name: "derived from tls request",
			tls:  true,
			want: "https://app.example.com",
		},
		{
			name:      "forwarded proto wins behind a proxy",
			forwarded: "https",
			want:      "https://app.example.com",
		},
		{
			name:         "configured assertion url overrides the request",
			assertionURL: "https://sso.example.com/",
			want:         "https://sso.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver, _ := newTestResolver(config.SAMLConfig{})
			builder, err := NewClientBuilder(config.SAMLConfig{AssertionURL: tt.assertionURL}, resolver, DefaultServicePolicy())
			require.NoError(t, err)

			r := httptest.NewRequest("GET", "http://app.example.com/sso/login", nil)
			if tt.tls {
				r.TLS = &tls.ConnectionState{}
			}
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-Proto", tt.forwarded)
			}

			assert.Equal(t, tt.want, builder.CurrentDomain(r))
		})
	}
}

func TestBuildServiceProvider(t *testing.T) {
	cfg := config.SAMLConfig{NameIDFormat: "urn:oasis:names:tc:SAML:1.1:nameid-format:emailAddress"}
	resolver, _ := newTestResolver(cfg)
	builder, err := NewClientBuilder(cfg, resolver, DefaultServicePolicy())
	require.NoError(t, err)

	ref := MetadataRef{Inline: testIdPMetadata(defaultMetadataFixture())}
	sp, idp, err := builder.Build(context.Background(), "https://app.example.com", ref)
	require.NoError(t, err)

	// The SP's identity is derived from the assertion consumer URL, so
	// assertions addressed to another deployment never validate here.
	assert.Equal(t, "https://app.example.com/sso/acs/", sp.AssertionConsumerServiceURL)
	assert.Equal(t, "https://app.example.com/sso/acs/", sp.ServiceProviderIssuer)
	assert.Equal(t, "https://app.example.com/sso/acs/", sp.AudienceURI)
	assert.Equal(t, "https://app.example.com/sso/logout", sp.ServiceProviderSLOURL)

	assert.Equal(t, "https://idp.example.com/sso", sp.IdentityProviderSSOURL)
	assert.Equal(t, "https://idp.example.com/slo", sp.IdentityProviderSLOURL)
	assert.Equal(t, "https://idp.example.com/metadata", sp.IdentityProviderIssuer)

	assert.False(t, sp.SkipSignatureValidation)
	assert.False(t, sp.SignAuthnRequests)
	assert.True(t, sp.AllowMissingAttributes)
	assert.Equal(t, cfg.NameIDFormat, sp.NameIdFormat)

	assert.Equal(t, "https://idp.example.com/metadata", idp.EntityID)
}

func TestBuildSkipsSignatureValidationOnlyWhenPolicyAllows(t *testing.T) {
	resolver, _ := newTestResolver(config.SAMLConfig{})
	policy := DefaultServicePolicy()
	policy.RequireSignedAssertions = false
	builder, err := NewClientBuilder(config.SAMLConfig{}, resolver, policy)
	require.NoError(t, err)

	ref := MetadataRef{Inline: testIdPMetadata(defaultMetadataFixture())}
	sp, _, err := builder.Build(context.Background(), "https://app.example.com", ref)
	require.NoError(t, err)
	assert.True(t, sp.SkipSignatureValidation)
}

func TestBuildPropagatesMetadataErrors(t *testing.T) {
	resolver, _ := newTestResolver(config.SAMLConfig{})
	builder, err := NewClientBuilder(config.SAMLConfig{}, resolver, DefaultServicePolicy())
	require.NoError(t, err)

	_, _, err = builder.Build(context.Background(), "https://app.example.com", MetadataRef{Inline: "garbage"})
	assert.Error(t, err)
}

func TestBuildKeyStoreFromConfiguredPair(t *testing.T) {
	cfg := config.SAMLConfig{
		SPCertificatePEM: testCertificate,
		SPPrivateKeyPEM:  testPrivateKey,
	}

	keyStore, err := buildKeyStore(cfg)
	require.NoError(t, err)

	tlsStore, ok := keyStore.(*dsig.TLSCertKeyStore)
	require.True(t, ok)
	assert.NotNil(t, tlsStore.PrivateKey)
	require.Len(t, tlsStore.Certificate, 1)
}

func TestBuildKeyStoreGeneratesEphemeralPairWhenUnconfigured(t *testing.T) {
	keyStore, err := buildKeyStore(config.SAMLConfig{})
	require.NoError(t, err)

	key, cert, err := keyStore.GetKeyPair()
	require.NoError(t, err)
	assert.NotNil(t, key)
	assert.NotEmpty(t, cert)
}

func TestBuildKeyStoreRejectsMalformedPEM(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SAMLConfig
	}{
		{
			name: "garbage certificate",
			cfg:  config.SAMLConfig{SPCertificatePEM: "not a pem"},
		},
		{
			name: "missing private key",
			cfg:  config.SAMLConfig{SPCertificatePEM: testCertificate},
		},
		{
			name: "garbage private key",
			cfg:  config.SAMLConfig{SPCertificatePEM: testCertificate, SPPrivateKeyPEM: "not a pem"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildKeyStore(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewClientBuilderSurfacesKeyStoreErrors(t *testing.T) {
	resolver, _ := newTestResolver(config.SAMLConfig{})
	_, err := NewClientBuilder(config.SAMLConfig{SPCertificatePEM: "broken"}, resolver, DefaultServicePolicy())
	assert.Error(t, err)
}
