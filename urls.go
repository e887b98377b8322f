package r2up

import (
	"net/url"
	"strings"
)

// PublicURL resolves the URL an object at key is reachable from:
// the operator-configured public base when its host is real, otherwise the
// same-origin proxy path served by the http package, otherwise the direct
// vendor-hosted URL. The fallback chain is a designed degradation path so
// local development works without a public domain, not an error path.
func (s *Service) PublicURL(key string) string {
	if base, ok := s.usablePublicBase(); ok {
		return strings.TrimSuffix(base.String(), "/") + "/" + awsURIEncode(key, false)
	}

	if !s.cfg.DisableProxyFallback {
		return DefaultProxyPathPrefix + "/" + awsURIEncode(key, false)
	}

	return s.creds.baseURL() + s.signer.ResourcePath(key)
}

// usablePublicBase parses the configured public base URL and reports
// whether it points at a real host rather than a placeholder left in an
// operator template.
func (s *Service) usablePublicBase() (*url.URL, bool) {
	base := s.cfg.PublicBaseURL
	if base == "" {
		return nil, false
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return nil, false
	}
	if isPlaceholderHost(u.Hostname()) {
		return nil, false
	}
	return u, true
}

// isPlaceholderHost recognizes hosts that templates and local-development
// setups leave behind: loopback addresses, reserved example/test domains,
// and fill-me-in markers.
func isPlaceholderHost(host string) bool {
	host = strings.ToLower(host)
	if host == "" {
		return true
	}

	switch host {
	case "localhost", "127.0.0.1", "::1", "0.0.0.0":
		return true
	}

	for _, suffix := range []string{".localhost", ".local", ".test", ".invalid", ".example"} {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}

	for _, reserved := range []string{"example.com", "example.org", "example.net"} {
		if host == reserved || strings.HasSuffix(host, "."+reserved) {
			return true
		}
	}
	if strings.HasPrefix(host, "example.") {
		return true
	}

	return strings.Contains(host, "placeholder") || strings.Contains(host, "your-")
}
