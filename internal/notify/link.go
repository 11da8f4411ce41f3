package notify

import (
	"fmt"
	"net/url"
	"strings"
)

// LinkResolver builds absolute notification links from a configured base URL.
// Relative paths are joined onto the base; externally supplied absolute URLs
// are trusted only when they are http(s) and same-host with the base.
type LinkResolver struct {
	base *url.URL
}

// NewLinkResolver parses baseURL, which must be an absolute http(s) URL.
func NewLinkResolver(baseURL string) (*LinkResolver, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http(s), got %q", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", baseURL)
	}
	return &LinkResolver{base: u}, nil
}

// Resolve returns the absolute URL for link and whether it may be embedded
// as a clickable reference. Empty links and links that fail the
// same-origin-or-relative check return ok=false.
func (l *LinkResolver) Resolve(link string) (string, bool) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", false
	}

	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}

	if u.IsAbs() {
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", false
		}
		if u.Host != l.base.Host {
			return "", false
		}
		return u.String(), true
	}

	// Scheme-relative URLs (//host/path) carry a host without a scheme and
	// must pass the same check as absolute ones.
	if u.Host != "" && u.Host != l.base.Host {
		return "", false
	}
	return l.base.ResolveReference(u).String(), true
}
