package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/PhishGuard/internal/domain/decision"
	"github.com/GriffinCanCode/PhishGuard/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/PhishGuard/internal/providers/settings"
	"github.com/GriffinCanCode/PhishGuard/internal/shared/clock"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type verdict struct {
	outcome decision.Outcome
	score   *float64
}

func score(v float64) *float64 { return &v }

// fakeFetcher answers from a table; URLs with a gate block until it closes.
type fakeFetcher struct {
	clk clock.Clock

	mu       sync.Mutex
	calls    map[string]int
	verdicts map[string]verdict
	gates    map[string]chan struct{}
}

func newFakeFetcher(clk clock.Clock) *fakeFetcher {
	return &fakeFetcher{
		clk:      clk,
		calls:    make(map[string]int),
		verdicts: make(map[string]verdict),
		gates:    make(map[string]chan struct{}),
	}
}

func (f *fakeFetcher) set(url string, outcome decision.Outcome, s *float64) {
	f.mu.Lock()
	f.verdicts[url] = verdict{outcome, s}
	f.mu.Unlock()
}

func (f *fakeFetcher) gate(url string) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[url] = ch
	f.mu.Unlock()
	return ch
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) FetchDecision(ctx context.Context, url string) (decision.Decision, error) {
	f.mu.Lock()
	f.calls[url]++
	v, ok := f.verdicts[url]
	gate := f.gates[url]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return decision.Decision{}, ctx.Err()
		}
	}
	if !ok {
		v = verdict{outcome: decision.Safe}
	}
	return decision.New(url, v.outcome, v.score, f.clk.Now()), nil
}

// recorder collects render-layer messages.
type recorder struct {
	ch chan Message
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Message, 64)}
}

func (r *recorder) Notify(msg Message) { r.ch <- msg }

func (r *recorder) next(t *testing.T) Message {
	t.Helper()
	select {
	case msg := <-r.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case msg := <-r.ch:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

type fixture struct {
	c       *Coordinator
	fetcher *fakeFetcher
	clk     *clock.Fake
	mirror  *settings.Mirror
	store   *settings.MemoryStore
	msgs    *recorder
	metrics *monitoring.Metrics
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	ctx := context.Background()

	clk := clock.NewFake(epoch)
	store := settings.NewMemoryStore()
	mirror, err := settings.NewMirror(ctx, store, nil)
	require.NoError(t, err)
	require.NoError(t, mirror.SetEnabled(ctx, true))

	cfg := DefaultConfig()
	cfg.WarningPageURL = "chrome-extension://ext/extension/warning.html"
	for _, m := range mutate {
		m(&cfg)
	}

	f := &fixture{
		fetcher: newFakeFetcher(clk),
		clk:     clk,
		mirror:  mirror,
		store:   store,
		msgs:    newRecorder(),
		metrics: monitoring.NewMetrics(prometheus.NewRegistry()),
	}
	f.c = New(cfg, f.fetcher, mirror,
		WithClock(clk),
		WithNotifier(NotifierFunc(f.msgs.Notify)),
		WithMetrics(f.metrics),
	)
	t.Cleanup(f.c.Close)
	return f
}

func (f *fixture) evaluate(t *testing.T, url string, trigger Trigger) Result {
	t.Helper()
	res, err := f.c.Evaluate(context.Background(), Request{URL: url, Trigger: trigger})
	require.NoError(t, err)
	return res
}

func TestEvaluateDisabledShortCircuits(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.SetEnabled(context.Background(), false))

	res := f.evaluate(t, "https://evil.test/", TriggerPage)
	assert.Equal(t, decision.Disabled, res.Decision.Outcome)
	assert.Equal(t, SourceDisabled, res.Source)
	assert.Equal(t, 0, f.fetcher.count("https://evil.test/"))
	assert.False(t, f.c.Enabled())
}

func TestEvaluateSettingsOverride(t *testing.T) {
	f := newFixture(t)

	res, err := f.c.Evaluate(context.Background(), Request{
		URL:      "https://evil.test/",
		Trigger:  TriggerPage,
		Settings: &Settings{Enabled: false},
	})
	require.NoError(t, err)
	assert.Equal(t, SourceDisabled, res.Source)
}

func TestEvaluateInvalidURL(t *testing.T) {
	f := newFixture(t)

	for _, url := range []string{"", "not a url", "ftp://files.test/", "https://"} {
		res := f.evaluate(t, url, TriggerClick)
		assert.Equal(t, decision.Error, res.Decision.Outcome, url)
		assert.Equal(t, SourceInvalid, res.Source, url)
	}
}

func TestEvaluateAllowlist(t *testing.T) {
	f := newFixture(t)
	f.fetcher.set("https://sub.github.com/x", decision.Phishing, score(1))

	res := f.evaluate(t, "https://sub.github.com/x", TriggerHover)
	assert.Equal(t, decision.Safe, res.Decision.Outcome)
	assert.Equal(t, SourceAllowlist, res.Source)
	assert.False(t, res.ShowBubble)
	assert.Equal(t, 0, f.fetcher.count("https://sub.github.com/x"))

	f.evaluate(t, "https://notgithub.com/", TriggerPage)
	assert.Equal(t, 1, f.fetcher.count("https://notgithub.com/"))
}

func TestEvaluateCacheTTL(t *testing.T) {
	f := newFixture(t)
	const url = "https://shop.test/"

	first := f.evaluate(t, url, TriggerPage)
	assert.Equal(t, SourceNetwork, first.Source)

	f.clk.Advance(9 * time.Minute)
	second := f.evaluate(t, url, TriggerPage)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, first.Decision, second.Decision)
	assert.Equal(t, 1, f.fetcher.count(url))

	f.clk.Advance(time.Minute)
	third := f.evaluate(t, url, TriggerPage)
	assert.Equal(t, SourceNetwork, third.Source)
	assert.Equal(t, 2, f.fetcher.count(url))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheLookups.WithLabelValues("hit")))
}

func TestEvaluateConcurrentCallsShareOneFetch(t *testing.T) {
	f := newFixture(t)
	const url = "https://fresh.test/login"
	const n = 8
	f.fetcher.set(url, decision.Phishing, score(0.93))
	gate := f.fetcher.gate(url)

	results := make([]Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.c.Evaluate(context.Background(), Request{URL: url, Trigger: TriggerPage})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	require.Eventually(t, func() bool { return f.c.group.Waiters(url) == n }, 2*time.Second, time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, 1, f.fetcher.count(url))
	for _, res := range results {
		assert.Equal(t, results[0].Decision, res.Decision)
		assert.Equal(t, results[0].Decision.ObservedAt, res.Decision.ObservedAt)
	}
}

func TestInFlightGaugeFollowsOpenCalls(t *testing.T) {
	f := newFixture(t)
	const url = "https://pending.test/"
	gate := f.fetcher.gate(url)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := f.c.Evaluate(context.Background(), Request{URL: url, Trigger: TriggerPage})
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.InFlight) == 1
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, 1, f.c.Stats().InFlight)

	close(gate)
	<-done
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.InFlight))
}

func TestEvaluateHoverThreshold(t *testing.T) {
	tests := []struct {
		name    string
		trigger Trigger
		score   float64
		bubble  bool
	}{
		{"hover below threshold", TriggerHover, 0.5, false},
		{"hover above threshold", TriggerHover, 0.95, true},
		{"hover at threshold", TriggerHover, 0.9, true},
		{"click never shows bubble", TriggerClick, 0.99, false},
		{"page never shows bubble", TriggerPage, 0.99, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			const url = "https://link.test/"
			f.fetcher.set(url, decision.Phishing, score(tt.score))

			res := f.evaluate(t, url, tt.trigger)
			assert.Equal(t, decision.Phishing, res.Decision.Outcome)
			assert.Equal(t, tt.bubble, res.ShowBubble)
		})
	}
}

func TestEvaluateCachesUpstreamError(t *testing.T) {
	f := newFixture(t)
	const url = "https://flaky.test/"
	f.fetcher.set(url, decision.Error, nil)

	assert.Equal(t, decision.Error, f.evaluate(t, url, TriggerPage).Decision.Outcome)
	res := f.evaluate(t, url, TriggerPage)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, 1, f.fetcher.count(url))
}

func TestEvaluateCheckTimeout(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.CheckTimeout = 20 * time.Millisecond })
	const url = "https://slow.test/"
	gate := f.fetcher.gate(url)

	_, err := f.c.Evaluate(context.Background(), Request{URL: url, Trigger: TriggerPage})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCheckTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// the shared call keeps running and fills the cache
	close(gate)
	require.Eventually(t, func() bool {
		_, ok := f.c.cache.Get(url)
		return ok
	}, 2*time.Second, time.Millisecond)

	res := f.evaluate(t, url, TriggerPage)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, 1, f.fetcher.count(url))
}

func TestEvaluateCallerCancel(t *testing.T) {
	f := newFixture(t)
	const url = "https://slow.test/"
	f.fetcher.gate(url)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.c.Evaluate(ctx, Request{URL: url, Trigger: TriggerPage})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrCheckTimeout))
}

func TestWhitelistRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	host, err := f.c.AddToWhitelist(ctx, "https://Bank.test/login")
	require.NoError(t, err)
	assert.Equal(t, "bank.test", host)
	assert.Equal(t, []string{"bank.test"}, f.c.Whitelist())

	res := f.evaluate(t, "https://bank.test/other", TriggerPage)
	assert.Equal(t, SourceAllowlist, res.Source)

	// persisted in the store
	raw, ok, err := f.store.Get(ctx, settings.KeyWhitelist)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["bank.test"]`, string(raw))

	removed, err := f.c.RemoveFromWhitelist(ctx, "bank.test")
	require.NoError(t, err)
	assert.True(t, removed)
	res = f.evaluate(t, "https://bank.test/other", TriggerPage)
	assert.Equal(t, SourceNetwork, res.Source)

	_, err = f.c.AddToWhitelist(ctx, "javascript:alert(1)")
	assert.Error(t, err)
}

func TestExternalSettingsChangeUpdatesAllowlist(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Set(context.Background(), settings.KeyWhitelist, []byte(`["corp.test"]`)))

	res := f.evaluate(t, "https://corp.test/", TriggerPage)
	assert.Equal(t, SourceAllowlist, res.Source)
}

func TestStatsAndClose(t *testing.T) {
	f := newFixture(t)
	f.evaluate(t, "https://a.test/", TriggerPage)

	stats := f.c.Stats()
	assert.True(t, stats.Enabled)
	assert.Equal(t, 1, stats.CacheEntries)
	assert.Equal(t, 0, stats.InFlight)

	f.c.Close()
	f.c.Close()
}
