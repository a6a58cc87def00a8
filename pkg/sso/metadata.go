package sso

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/russellhaering/gosaml2/types"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/Tesorio/saml2auth/pkg/config"
	"github.com/Tesorio/saml2auth/pkg/observability"
	"github.com/Tesorio/saml2auth/pkg/session"
)

// Endpoints are selected by binding: HTTP-Redirect is preferred, first
// listed otherwise.
const redirectBinding = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"

// MetadataRef points at one identity provider metadata source. Inline
// XML wins over a remote URL when both are set.
type MetadataRef struct {
	Inline string
	URL    string
}

// IsZero reports whether the reference names no source at all.
func (r MetadataRef) IsZero() bool {
	return r.Inline == "" && r.URL == ""
}

// IdPDescriptor is the subset of identity provider metadata the SP
// configuration needs.
type IdPDescriptor struct {
	EntityID  string
	SSOURL    string
	SLOURL    string
	CertStore *dsig.MemoryX509CertificateStore
}

// MetadataResolver selects and loads identity provider metadata.
type MetadataResolver struct {
	cfg     config.SAMLConfig
	client  *http.Client
	metrics *observability.Metrics
}

// NewMetadataResolver creates a resolver. The HTTP client is used only
// for remote metadata and carries the configured fetch timeout.
func NewMetadataResolver(cfg config.SAMLConfig, metrics *observability.Metrics) *MetadataResolver {
	return &MetadataResolver{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.MetadataFetchTimeout},
		metrics: metrics,
	}
}

// ResolveRef picks the metadata source for a flow. Session-staged
// metadata takes priority over service configuration, and within each
// level inline XML takes priority over a remote URL.
func (m *MetadataResolver) ResolveRef(staged *session.FlowState) MetadataRef {
	if staged != nil {
		if staged.MetadataInline != "" {
			return MetadataRef{Inline: staged.MetadataInline}
		}
		if staged.MetadataURL != "" {
			return MetadataRef{URL: staged.MetadataURL}
		}
	}
	if m.cfg.MetadataInline != "" {
		return MetadataRef{Inline: m.cfg.MetadataInline}
	}
	if m.cfg.MetadataURL != "" {
		return MetadataRef{URL: m.cfg.MetadataURL}
	}
	return MetadataRef{}
}

// RefFromFlow returns the metadata reference persisted in a flow,
// falling back to service configuration when the flow staged none.
func (m *MetadataResolver) RefFromFlow(flow *session.FlowState) MetadataRef {
	return m.ResolveRef(flow)
}

// Load fetches (if remote) and parses the referenced metadata into an
// IdPDescriptor.
func (m *MetadataResolver) Load(ctx context.Context, ref MetadataRef) (*IdPDescriptor, error) {
	if ref.IsZero() {
		return nil, ErrNoMetadata
	}

	raw := ref.Inline
	if raw == "" {
		fetched, err := m.fetch(ctx, ref.URL)
		if err != nil {
			return nil, err
		}
		raw = fetched
	}

	return parseIdPMetadata(raw)
}

func (m *MetadataResolver) fetch(ctx context.Context, url string) (string, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building metadata request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.observeFetch("error", start)
		return "", fmt.Errorf("fetching metadata from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		m.observeFetch("error", start)
		return "", fmt.Errorf("fetching metadata from %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		m.observeFetch("error", start)
		return "", fmt.Errorf("reading metadata from %s: %w", url, err)
	}

	m.observeFetch("success", start)
	return string(body), nil
}

func (m *MetadataResolver) observeFetch(result string, start time.Time) {
	if m.metrics == nil {
		return
	}
	m.metrics.MetadataFetchesTotal.WithLabelValues(result).Inc()
	m.metrics.MetadataFetchDuration.Observe(time.Since(start).Seconds())
}

func parseIdPMetadata(raw string) (*IdPDescriptor, error) {
	var entity types.EntityDescriptor
	if err := xml.Unmarshal([]byte(raw), &entity); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	if entity.IDPSSODescriptor == nil {
		return nil, fmt.Errorf("metadata for %s has no IDPSSODescriptor", entity.EntityID)
	}

	certStore := &dsig.MemoryX509CertificateStore{Roots: []*x509.Certificate{}}
	for _, kd := range entity.IDPSSODescriptor.KeyDescriptors {
		for _, xcert := range kd.KeyInfo.X509Data.X509Certificates {
			if xcert.Data == "" {
				continue
			}
			// Metadata wraps the base64 DER across lines.
			der, err := base64.StdEncoding.DecodeString(stripWhitespace(xcert.Data))
			if err != nil {
				return nil, fmt.Errorf("decoding identity provider certificate: %w", err)
			}
			cert, err := x509.ParseCertificate(der)
			if err != nil {
				return nil, fmt.Errorf("parsing identity provider certificate: %w", err)
			}
			certStore.Roots = append(certStore.Roots, cert)
		}
	}
	if len(certStore.Roots) == 0 {
		return nil, fmt.Errorf("metadata for %s carries no signing certificates", entity.EntityID)
	}

	desc := &IdPDescriptor{
		EntityID:  entity.EntityID,
		CertStore: certStore,
	}
	for _, svc := range entity.IDPSSODescriptor.SingleSignOnServices {
		if desc.SSOURL == "" || svc.Binding == redirectBinding {
			desc.SSOURL = svc.Location
		}
		if svc.Binding == redirectBinding {
			break
		}
	}
	if desc.SSOURL == "" {
		return nil, fmt.Errorf("metadata for %s names no single sign-on endpoint", entity.EntityID)
	}

	for _, svc := range entity.IDPSSODescriptor.SingleLogoutServices {
		if desc.SLOURL == "" || svc.Binding == redirectBinding {
			desc.SLOURL = svc.Location
		}
		if svc.Binding == redirectBinding {
			break
		}
	}

	return desc, nil
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}
