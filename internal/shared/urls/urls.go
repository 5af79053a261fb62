// Package urls holds the URL and hostname rules shared by the allow-list,
// the coordinator and the HTTP handlers.
package urls

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// MaxURLLength bounds URLs accepted from the render layer.
const MaxURLLength = 8 * 1024

// ErrInvalidURL reports a URL that cannot be checked.
var ErrInvalidURL = errors.New("invalid url")

var internalSchemes = map[string]bool{
	"about":            true,
	"chrome":           true,
	"chrome-extension": true,
	"edge":             true,
	"moz-extension":    true,
	"view-source":      true,
	"devtools":         true,
	"data":             true,
	"javascript":       true,
	"blob":             true,
	"file":             true,
}

// Parse validates a checkable URL: absolute, http or https, with a host.
func Parse(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if len(raw) > MaxURLLength {
		return nil, fmt.Errorf("%w: length %d exceeds %d", ErrInvalidURL, len(raw), MaxURLLength)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}

// Hostname parses raw and returns its normalized hostname.
func Hostname(raw string) (string, error) {
	u, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return NormalizeHost(u.Hostname()), nil
}

// NormalizeHost lowercases, strips a trailing dot and converts IDNs to their
// ASCII form. Hosts idna rejects (underscores, IPv6 literals) are kept as
// lowercased input.
func NormalizeHost(host string) string {
	host = strings.TrimSuffix(strings.TrimSpace(host), ".")
	if host == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	return strings.ToLower(host)
}

// IsInternal reports whether a navigation target is a browser or extension
// page that must never be checked. warningPage is the prefix of the
// extension's own warning page and may be empty.
func IsInternal(raw, warningPage string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return true
	}
	if warningPage != "" && strings.HasPrefix(trimmed, warningPage) {
		return true
	}
	scheme, _, ok := strings.Cut(trimmed, ":")
	if !ok {
		return false
	}
	return internalSchemes[strings.ToLower(scheme)]
}

// WithTarget appends target as the "url" query parameter of base.
func WithTarget(base, target string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?url=" + url.QueryEscape(target)
	}
	q := u.Query()
	q.Set("url", target)
	u.RawQuery = q.Encode()
	return u.String()
}
