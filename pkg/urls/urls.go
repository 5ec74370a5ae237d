// Package urls provides utility functions for working with URLs.
package urls

import (
	"net/url"
	"strings"
)

const (
	schemeHTTP  = "http"
	schemeHTTPS = "https"
)

// IsURLValid checks that raw is an absolute http(s) URL with a host.
func IsURLValid(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}

	return u.Scheme == schemeHTTP || u.Scheme == schemeHTTPS
}

// Normalize trims spaces, prepends https to scheme-less input and returns the parsed form.
// Example: youtu.be/abc => https://youtu.be/abc
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}

	if !strings.Contains(raw, "://") {
		raw = schemeHTTPS + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	return u.String()
}
