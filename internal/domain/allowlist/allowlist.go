package allowlist

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/PhishGuard/internal/shared/urls"
)

// Source identifies which list matched a host.
type Source string

const (
	SourceStatic  Source = "static"
	SourceUser    Source = "user"
	SourceSession Source = "session"
)

// DefaultSafeDomains are always trusted, including their subdomains.
var DefaultSafeDomains = []string{"github.com", "google.com"}

// staticFile is the on-disk format of the safe-domain list.
type staticFile struct {
	SafeDomains []string `yaml:"safe_domains"`
}

// ParseStatic decodes a YAML safe-domain document.
func ParseStatic(data []byte) ([]string, error) {
	var f staticFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse safe domains: %w", err)
	}

	domains := make([]string, 0, len(f.SafeDomains))
	for _, d := range f.SafeDomains {
		if d = urls.NormalizeHost(d); d != "" {
			domains = append(domains, d)
		}
	}
	return domains, nil
}

// LoadStatic reads the safe-domain file at path. An empty path yields no
// extra domains.
func LoadStatic(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read safe domains: %w", err)
	}
	return ParseStatic(data)
}

// Resolver answers whether a host bypasses the classifier.
type Resolver struct {
	static []string
	logger *zap.Logger

	mu           sync.RWMutex
	user         map[string]struct{}
	proceedURLs  map[string]struct{}
	proceedHosts map[string]struct{}
}

// New creates a resolver trusting DefaultSafeDomains plus extra.
func New(extra []string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}

	seen := make(map[string]struct{})
	static := make([]string, 0, len(DefaultSafeDomains)+len(extra))
	for _, d := range append(append([]string{}, DefaultSafeDomains...), extra...) {
		d = urls.NormalizeHost(d)
		if _, dup := seen[d]; dup || d == "" {
			continue
		}
		seen[d] = struct{}{}
		static = append(static, d)
	}

	return &Resolver{
		static:       static,
		logger:       logger,
		user:         make(map[string]struct{}),
		proceedURLs:  make(map[string]struct{}),
		proceedHosts: make(map[string]struct{}),
	}
}

// Static returns the static safe domains.
func (r *Resolver) Static() []string {
	out := make([]string, len(r.static))
	copy(out, r.static)
	return out
}

// IsAllowed reports whether host is trusted by any list.
func (r *Resolver) IsAllowed(host string) bool {
	_, ok := r.Match(host)
	return ok
}

// Match checks the static list (exact or dot-suffix), then the user
// whitelist, then session proceed hosts, and returns the first hit.
func (r *Resolver) Match(host string) (Source, bool) {
	host = urls.NormalizeHost(host)
	if host == "" {
		return "", false
	}

	for _, d := range r.static {
		if host == d || strings.HasSuffix(host, "."+d) {
			return SourceStatic, true
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.user[host]; ok {
		return SourceUser, true
	}
	if _, ok := r.proceedHosts[host]; ok {
		return SourceSession, true
	}
	return "", false
}

// MatchURL is Match on the hostname of raw.
func (r *Resolver) MatchURL(raw string) (Source, bool) {
	host, err := urls.Hostname(raw)
	if err != nil {
		return "", false
	}
	return r.Match(host)
}

// SetUserHosts replaces the user whitelist.
func (r *Resolver) SetUserHosts(hosts []string) {
	user := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		if h = urls.NormalizeHost(h); h != "" {
			user[h] = struct{}{}
		}
	}

	r.mu.Lock()
	r.user = user
	r.mu.Unlock()

	r.logger.Debug("User whitelist replaced", zap.Int("hosts", len(user)))
}

// UserHosts returns the user whitelist, sorted.
func (r *Resolver) UserHosts() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.user))
	for h := range r.user {
		out = append(out, h)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

// GrantProceed records that the user chose to continue to raw: the exact URL
// passes the next interception once and its host is trusted for the session.
func (r *Resolver) GrantProceed(raw string) (string, error) {
	host, err := urls.Hostname(raw)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.proceedURLs[raw] = struct{}{}
	r.proceedHosts[host] = struct{}{}
	r.mu.Unlock()

	r.logger.Info("Proceed granted", zap.String("url", raw), zap.String("host", host))
	return host, nil
}

// ConsumeProceedURL removes and reports an exact-URL grant.
func (r *Resolver) ConsumeProceedURL(raw string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.proceedURLs[raw]; !ok {
		return false
	}
	delete(r.proceedURLs, raw)
	return true
}

// HasProceedURL reports an exact-URL grant without consuming it.
func (r *Resolver) HasProceedURL(raw string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.proceedURLs[raw]
	return ok
}

// ResetSession clears both session grant sets.
func (r *Resolver) ResetSession() {
	r.mu.Lock()
	r.proceedURLs = make(map[string]struct{})
	r.proceedHosts = make(map[string]struct{})
	r.mu.Unlock()
}
