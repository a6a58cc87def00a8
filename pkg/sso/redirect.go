package sso

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RedirectPolicy validates post-login redirect targets. Only relative
// paths, same-host URLs, and explicitly allow-listed hosts pass; an
// unsafe target is always rejected, never followed.
type RedirectPolicy struct {
	// DefaultURL is used when the caller requested no target.
	DefaultURL string

	// AllowedHosts are additional hosts accepted in absolute targets,
	// beyond the request's own host.
	AllowedHosts []string
}

// nested next= parameters are unwrapped at most this deep.
const maxNextDepth = 10

// Resolve validates the requested target against r's origin and
// returns the URL to redirect to after login. It returns
// ErrUnsafeRedirect for cross-origin or scheme-downgrading targets.
func (p RedirectPolicy) Resolve(r *http.Request, requested string) (string, error) {
	target := requested
	if target == "" {
		target = p.DefaultURL
	}

	// Login pages commonly wrap the real destination in their own
	// next= parameter, sometimes more than once.
	target = unwrapNext(target)

	if err := p.check(r, target); err != nil {
		return "", err
	}
	return target, nil
}

func unwrapNext(target string) string {
	for i := 0; i < maxNextDepth; i++ {
		parsed, err := url.Parse(target)
		if err != nil {
			return target
		}
		inner := parsed.Query().Get("next")
		if inner == "" {
			return target
		}
		target = inner
	}
	return target
}

func (p RedirectPolicy) check(r *http.Request, target string) error {
	// Browsers treat backslashes as slashes, so the target must also
	// pass with them normalized.
	if strings.ContainsRune(target, '\\') {
		if err := p.check(r, strings.ReplaceAll(target, `\`, "/")); err != nil {
			return err
		}
	}

	// Protocol-relative URLs parse as host-less but redirect offsite.
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fmt.Errorf("%w: %s", ErrUnsafeRedirect, target)
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnsafeRedirect, target)
	}

	// Relative path on our own origin.
	if parsed.Scheme == "" && parsed.Host == "" {
		return nil
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrUnsafeRedirect, parsed.Scheme)
	}

	// An https page must not send the user back over plain http.
	requestTLS := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
	if requestTLS && parsed.Scheme == "http" {
		return fmt.Errorf("%w: insecure scheme for %s", ErrUnsafeRedirect, target)
	}

	if parsed.Host == r.Host {
		return nil
	}
	for _, host := range p.AllowedHosts {
		if parsed.Host == host {
			return nil
		}
	}
	return fmt.Errorf("%w: host %q", ErrUnsafeRedirect, parsed.Host)
}
