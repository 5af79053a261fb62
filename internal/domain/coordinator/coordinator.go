package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/PhishGuard/internal/domain/allowlist"
	"github.com/GriffinCanCode/PhishGuard/internal/domain/cache"
	"github.com/GriffinCanCode/PhishGuard/internal/domain/decision"
	"github.com/GriffinCanCode/PhishGuard/internal/domain/inflight"
	"github.com/GriffinCanCode/PhishGuard/internal/domain/navigation"
	"github.com/GriffinCanCode/PhishGuard/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/PhishGuard/internal/providers/settings"
	"github.com/GriffinCanCode/PhishGuard/internal/shared/clock"
	"github.com/GriffinCanCode/PhishGuard/internal/shared/urls"
)

// DefaultHoverThreshold is the minimum PHISHING score that shows a bubble.
const DefaultHoverThreshold = 0.9

// ErrCheckTimeout is returned when a bounded check outlives CheckTimeout.
// The classifier call keeps running and still fills the cache.
var ErrCheckTimeout = errors.New("classifier unavailable")

// Trigger is what caused a check.
type Trigger string

const (
	TriggerHover      Trigger = "hover"
	TriggerClick      Trigger = "click"
	TriggerPage       Trigger = "page"
	TriggerNavigation Trigger = "navigation"
)

// ParseTrigger maps a render-layer source name to a Trigger. Unknown values
// are treated as a click.
func ParseTrigger(s string) Trigger {
	switch Trigger(s) {
	case TriggerHover, TriggerClick, TriggerPage, TriggerNavigation:
		return Trigger(s)
	}
	return TriggerClick
}

// Source names the stage that produced a decision.
type Source string

const (
	SourceDisabled  Source = "disabled"
	SourceInvalid   Source = "invalid"
	SourceAllowlist Source = "allowlist"
	SourceCache     Source = "cache"
	SourceNetwork   Source = "network"
)

// Settings overrides the mirrored settings for a single evaluation.
type Settings struct {
	Enabled bool
}

// Request is one evaluation.
type Request struct {
	URL     string
	Trigger Trigger
	// Settings overrides the current settings when non-nil
	Settings *Settings
}

// Result of an evaluation.
type Result struct {
	Decision   decision.Decision
	Source     Source
	ShowBubble bool
}

// Fetcher asks the classifier; it only fails when ctx ends.
type Fetcher interface {
	FetchDecision(ctx context.Context, url string) (decision.Decision, error)
}

// SettingsMirror is the typed settings view the coordinator reads and writes.
type SettingsMirror interface {
	Snapshot() settings.Snapshot
	SetEnabled(ctx context.Context, enabled bool) error
	AddWhitelistHost(ctx context.Context, host string) (bool, error)
	RemoveWhitelistHost(ctx context.Context, host string) (bool, error)
	OnChange(fn func(settings.Snapshot))
}

// Config tunes the coordinator.
type Config struct {
	HoverThreshold float64
	// CheckTimeout bounds Evaluate for render-layer requests; zero waits
	// indefinitely. Navigation checks are never bounded.
	CheckTimeout   time.Duration
	CacheTTL       time.Duration
	SkipWindow     time.Duration
	WarningPageURL string
	SafeDomains    []string
	// PruneInterval drops idle navigation sessions; zero disables it
	PruneInterval time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		HoverThreshold: DefaultHoverThreshold,
		CacheTTL:       cache.DefaultTTL,
		SkipWindow:     navigation.DefaultSkipWindow,
		WarningPageURL: "chrome-extension://phishguard/extension/warning.html",
	}
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) { c.clock = clk }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(c *Coordinator) { c.metrics = metrics }
}

func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// Coordinator is the single entry point of the detection layer. It owns
// the cache, the in-flight group, the allow-list and the tab sessions.
type Coordinator struct {
	cfg      Config
	client   Fetcher
	settings SettingsMirror
	notifier Notifier
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	cache   *cache.Cache
	group   *inflight.Group
	allow   *allowlist.Resolver
	tracker *navigation.Tracker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New wires a coordinator around the classifier client and settings mirror.
func New(cfg Config, client Fetcher, mirror SettingsMirror, opts ...Option) *Coordinator {
	if cfg.HoverThreshold <= 0 {
		cfg.HoverThreshold = DefaultHoverThreshold
	}

	c := &Coordinator{
		cfg:      cfg,
		client:   client,
		settings: mirror,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = clock.System()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}

	c.cache = cache.New(cfg.CacheTTL, c.clock)
	var groupOpts []inflight.Option
	if c.metrics != nil {
		groupOpts = append(groupOpts, inflight.WithPendingHook(c.metrics.SetInFlight))
	}
	c.group = inflight.New(c.cache, c.logger.Named("inflight"), groupOpts...)
	c.allow = allowlist.New(cfg.SafeDomains, c.logger.Named("allowlist"))
	c.tracker = navigation.New(cfg.SkipWindow, c.clock, c.logger.Named("navigation"))
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.applySettings(mirror.Snapshot())
	mirror.OnChange(c.applySettings)

	if cfg.PruneInterval > 0 && c.track() {
		go c.pruneLoop(cfg.PruneInterval)
	}

	return c
}

// Evaluate returns the decision for req.URL. Disabled, invalid and
// allow-listed URLs short-circuit, then the cache is consulted, then the
// classifier through the in-flight group. The only errors are ctx errors and
// ErrCheckTimeout.
func (c *Coordinator) Evaluate(ctx context.Context, req Request) (Result, error) {
	return c.evaluate(ctx, req, c.cfg.CheckTimeout)
}

func (c *Coordinator) evaluate(ctx context.Context, req Request, timeout time.Duration) (Result, error) {
	res, err := c.lookup(ctx, req, timeout)
	if err != nil {
		return res, err
	}

	res.ShowBubble = req.Trigger == TriggerHover && res.Decision.AtLeast(c.cfg.HoverThreshold)
	if c.metrics != nil {
		c.metrics.RecordDecision(string(res.Decision.Outcome), string(res.Source))
	}

	c.logger.Debug("Evaluated",
		zap.String("url", req.URL),
		zap.String("trigger", string(req.Trigger)),
		zap.String("source", string(res.Source)),
		zap.String("outcome", string(res.Decision.Outcome)),
		zap.Float64("score", res.Decision.Score),
	)
	return res, nil
}

func (c *Coordinator) lookup(ctx context.Context, req Request, timeout time.Duration) (Result, error) {
	now := c.clock.Now()

	if !c.enabled(req.Settings) {
		return Result{Decision: decision.NewDisabled(req.URL, now), Source: SourceDisabled}, nil
	}

	host, err := urls.Hostname(req.URL)
	if err != nil {
		c.logger.Debug("Rejected url", zap.String("url", req.URL), zap.Error(err))
		return Result{Decision: decision.NewError(req.URL, now), Source: SourceInvalid}, nil
	}

	if _, ok := c.allow.Match(host); ok {
		return Result{Decision: decision.NewSafe(req.URL, now), Source: SourceAllowlist}, nil
	}

	if d, ok := c.cache.Get(req.URL); ok {
		c.recordCache(true)
		return Result{Decision: d, Source: SourceCache}, nil
	}
	c.recordCache(false)

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	d, shared, err := c.group.Resolve(waitCtx, req.URL, c.client.FetchDecision)
	if c.metrics != nil {
		c.metrics.SetCacheEntries(c.cache.Len())
		if shared {
			c.metrics.IncDedupShared()
		}
	}
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("Check timed out, classifier call continues",
				zap.String("url", req.URL),
				zap.Duration("timeout", timeout),
			)
			return Result{}, fmt.Errorf("%w: %w", ErrCheckTimeout, err)
		}
		return Result{}, err
	}
	return Result{Decision: d, Source: SourceNetwork}, nil
}

func (c *Coordinator) enabled(override *Settings) bool {
	if override != nil {
		return override.Enabled
	}
	return c.settings.Snapshot().Enabled
}

func (c *Coordinator) recordCache(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(hit)
	}
}

func (c *Coordinator) applySettings(s settings.Snapshot) {
	c.allow.SetUserHosts(s.WhitelistHosts)
	if c.metrics != nil {
		c.metrics.SetProtectionEnabled(s.Enabled)
	}
}

func (c *Coordinator) pruneLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if n := c.tracker.Prune(interval); n > 0 {
				c.logger.Debug("Pruned idle tab sessions", zap.Int("removed", n))
			}
			if c.metrics != nil {
				c.metrics.SetTabsTracked(c.tracker.Len())
			}
		}
	}
}

// Stats is a point-in-time view for health checks.
type Stats struct {
	Enabled      bool `json:"enabled"`
	CacheEntries int  `json:"cache"`
	InFlight     int  `json:"inflight"`
	Sessions     int  `json:"sessions"`
}

// Stats returns current bookkeeping sizes.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Enabled:      c.Enabled(),
		CacheEntries: c.cache.Len(),
		InFlight:     c.group.Pending(),
		Sessions:     c.tracker.Len(),
	}
}

// Close cancels outstanding navigation checks and classifier calls and
// waits for the background goroutines to exit.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.group.Close()
	c.wg.Wait()
}

// track registers a background goroutine unless Close has started.
func (c *Coordinator) track() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.wg.Add(1)
	return true
}
