package settings

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/PhishGuard/internal/shared/urls"
)

// Keys understood by the mirror.
const (
	KeyEnabled   = "isEnabled"
	KeyWhitelist = "userWhitelistHosts"
)

// Snapshot is the typed view of the settings the detection layer reads.
type Snapshot struct {
	Enabled        bool     `json:"enabled"`
	WhitelistHosts []string `json:"whitelist"`
}

// Mirror keeps an in-memory copy of the detection settings, kept current by
// the store's change notifications.
type Mirror struct {
	store  Store
	logger *zap.Logger
	cancel func()

	mu        sync.RWMutex
	snap      Snapshot
	listeners []func(Snapshot)

	// serializes read-modify-write of the whitelist
	writeMu sync.Mutex
}

// NewMirror loads the current values and subscribes to changes.
func NewMirror(ctx context.Context, store Store, logger *zap.Logger) (*Mirror, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Mirror{store: store, logger: logger}

	// subscribe first so no change between load and Watch is lost
	m.cancel = store.Watch(m.apply)

	for _, key := range []string{KeyEnabled, KeyWhitelist} {
		value, ok, err := store.Get(ctx, key)
		if err != nil {
			m.cancel()
			return nil, fmt.Errorf("failed to load %s: %w", key, err)
		}
		if ok {
			m.apply(key, value)
		}
	}
	return m, nil
}

// Install seeds isEnabled=false when the store has never been written.
func (m *Mirror) Install(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	_, ok, err := m.store.Get(ctx, KeyEnabled)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	m.logger.Info("Seeding default settings", zap.Bool("enabled", false))
	return m.store.Set(ctx, KeyEnabled, []byte("false"))
}

// Snapshot returns the current values.
func (m *Mirror) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Enabled:        m.snap.Enabled,
		WhitelistHosts: append([]string(nil), m.snap.WhitelistHosts...),
	}
}

// Enabled reports the protection toggle.
func (m *Mirror) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Enabled
}

// WhitelistHosts returns the user whitelist.
func (m *Mirror) WhitelistHosts() []string {
	return m.Snapshot().WhitelistHosts
}

// OnChange registers fn to run after every applied change.
func (m *Mirror) OnChange(fn func(Snapshot)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// SetEnabled persists the protection toggle.
func (m *Mirror) SetEnabled(ctx context.Context, enabled bool) error {
	data, err := sonic.Marshal(enabled)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, KeyEnabled, data)
}

// AddWhitelistHost adds host to the persisted whitelist. It reports false
// when the host was already present.
func (m *Mirror) AddWhitelistHost(ctx context.Context, host string) (bool, error) {
	host = urls.NormalizeHost(host)
	if host == "" {
		return false, fmt.Errorf("%w: empty host", urls.ErrInvalidURL)
	}
	return m.updateWhitelist(ctx, func(hosts []string) ([]string, bool) {
		for _, h := range hosts {
			if h == host {
				return hosts, false
			}
		}
		return append(hosts, host), true
	})
}

// RemoveWhitelistHost removes host from the persisted whitelist. It reports
// false when the host was not present.
func (m *Mirror) RemoveWhitelistHost(ctx context.Context, host string) (bool, error) {
	host = urls.NormalizeHost(host)
	return m.updateWhitelist(ctx, func(hosts []string) ([]string, bool) {
		out := hosts[:0]
		found := false
		for _, h := range hosts {
			if h == host {
				found = true
				continue
			}
			out = append(out, h)
		}
		return out, found
	})
}

func (m *Mirror) updateWhitelist(ctx context.Context, edit func([]string) ([]string, bool)) (bool, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	var hosts []string
	value, ok, err := m.store.Get(ctx, KeyWhitelist)
	if err != nil {
		return false, err
	}
	if ok {
		if err := sonic.Unmarshal(value, &hosts); err != nil {
			return false, fmt.Errorf("failed to decode %s: %w", KeyWhitelist, err)
		}
	}

	hosts, changed := edit(hosts)
	if !changed {
		return false, nil
	}
	sort.Strings(hosts)

	data, err := sonic.Marshal(hosts)
	if err != nil {
		return false, err
	}
	if err := m.store.Set(ctx, KeyWhitelist, data); err != nil {
		return false, err
	}
	return true, nil
}

// Close stops receiving change notifications.
func (m *Mirror) Close() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Mirror) apply(key string, value []byte) {
	m.mu.Lock()
	switch key {
	case KeyEnabled:
		var enabled bool
		if err := sonic.Unmarshal(value, &enabled); err != nil {
			m.mu.Unlock()
			m.logger.Warn("Ignoring malformed setting", zap.String("key", key), zap.Error(err))
			return
		}
		m.snap.Enabled = enabled
	case KeyWhitelist:
		var hosts []string
		if err := sonic.Unmarshal(value, &hosts); err != nil {
			m.mu.Unlock()
			m.logger.Warn("Ignoring malformed setting", zap.String("key", key), zap.Error(err))
			return
		}
		m.snap.WhitelistHosts = hosts
	default:
		m.mu.Unlock()
		return
	}
	snap := Snapshot{
		Enabled:        m.snap.Enabled,
		WhitelistHosts: append([]string(nil), m.snap.WhitelistHosts...),
	}
	listeners := append([]func(Snapshot){}, m.listeners...)
	m.mu.Unlock()

	m.logger.Debug("Settings changed", zap.String("key", key))
	for _, fn := range listeners {
		fn(snap)
	}
}
