package classifier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/PhishGuard/internal/domain/decision"
	"github.com/GriffinCanCode/PhishGuard/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/PhishGuard/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/PhishGuard/internal/shared/clock"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// scripted answers each request with the next response in the list; the
// last response repeats.
type scripted struct {
	calls     atomic.Int32
	responses []func(w http.ResponseWriter, r *http.Request)
	lastBody  atomic.Value
}

func (s *scripted) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(s.calls.Add(1)) - 1
	body, _ := io.ReadAll(r.Body)
	s.lastBody.Store(string(body))
	if n >= len(s.responses) {
		n = len(s.responses) - 1
	}
	s.responses[n](w, r)
}

func status(code int) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	}
}

func body(raw string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(raw))
	}
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) (*Client, *clock.Fake) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	clk := clock.NewFake(epoch)
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.AttemptTimeout = 2 * time.Second

	opts = append([]Option{WithClock(clk)}, opts...)
	return New(cfg, opts...), clk
}

func TestFetchDecisionSuccess(t *testing.T) {
	h := &scripted{responses: []func(http.ResponseWriter, *http.Request){
		body(`{"decision":"PHISHING","score":0.97}`),
	}}
	c, clk := newTestClient(t, h)

	d, err := c.FetchDecision(context.Background(), "http://evil.example/login")
	require.NoError(t, err)

	assert.Equal(t, decision.Phishing, d.Outcome)
	assert.InDelta(t, 0.97, d.Score, 1e-9)
	assert.Equal(t, "http://evil.example/login", d.URL)
	assert.Equal(t, epoch, d.ObservedAt)
	assert.Equal(t, int32(1), h.calls.Load())
	assert.Empty(t, clk.Waits())

	var sent map[string]string
	require.NoError(t, sonic.UnmarshalString(h.lastBody.Load().(string), &sent))
	assert.Equal(t, "http://evil.example/login", sent["url"])
}

func TestFetchDecisionRetriesUntilSuccess(t *testing.T) {
	h := &scripted{responses: []func(http.ResponseWriter, *http.Request){
		status(http.StatusServiceUnavailable),
		status(http.StatusServiceUnavailable),
		status(http.StatusServiceUnavailable),
		body(`{"decision":"SAFE","score":0.02}`),
	}}
	c, clk := newTestClient(t, h)

	d, err := c.FetchDecision(context.Background(), "https://example.com/")
	require.NoError(t, err)

	assert.Equal(t, decision.Safe, d.Outcome)
	assert.Equal(t, int32(4), h.calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, clk.Waits())
}

func TestFetchDecisionBackoffCapped(t *testing.T) {
	responses := make([]func(http.ResponseWriter, *http.Request), 0, 8)
	for i := 0; i < 7; i++ {
		responses = append(responses, status(http.StatusBadGateway))
	}
	responses = append(responses, body(`{"decision":"SAFE"}`))
	h := &scripted{responses: responses}

	// Breaker that never trips keeps every attempt on the wire.
	breaker := resilience.NewBreaker("test", resilience.Settings{
		ReadyToTrip: func(resilience.Counts) bool { return false },
	})
	c, clk := newTestClient(t, h, WithBreaker(breaker))

	_, err := c.FetchDecision(context.Background(), "https://example.com/")
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second,
		5 * time.Second, 5 * time.Second, 5 * time.Second,
	}, clk.Waits())
}

func TestFetchDecisionMalformedBodiesAreRetried(t *testing.T) {
	h := &scripted{responses: []func(http.ResponseWriter, *http.Request){
		body(`not json`),
		body(`["SAFE"]`),
		body(`{"decision":`),
		body(`{"decision":"SAFE","score":0.1}`),
	}}
	c, _ := newTestClient(t, h)

	d, err := c.FetchDecision(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, decision.Safe, d.Outcome)
	assert.Equal(t, int32(4), h.calls.Load())
}

func TestFetchDecisionResponseMapping(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		outcome decision.Outcome
		score   float64
	}{
		{"phishing without score", `{"decision":"PHISHING"}`, decision.Phishing, 1.0},
		{"safe without score", `{"decision":"SAFE"}`, decision.Safe, 0.0},
		{"lowercase decision", `{"decision":"phishing","score":0.8}`, decision.Phishing, 0.8},
		{"unknown decision", `{"decision":"MAYBE","score":0.5}`, decision.Error, 0.5},
		{"missing decision", `{"score":0.4}`, decision.Error, 0.4},
		{"upstream error", `{"decision":"ERROR"}`, decision.Error, 0.0},
		{"score clamped", `{"decision":"PHISHING","score":7}`, decision.Phishing, 1.0},
		{"extra fields ignored", `{"decision":"SAFE","score":0.1,"model":"v2"}`, decision.Safe, 0.1},
		{"numeric decision", `{"decision":5}`, decision.Error, 0.0},
		{"array decision", `{"decision":["PHISHING"]}`, decision.Error, 0.0},
		{"object decision", `{"decision":{"v":"PHISHING"},"score":0.7}`, decision.Error, 0.7},
		{"null decision", `{"decision":null,"score":0.2}`, decision.Error, 0.2},
		{"string score", `{"decision":"SAFE","score":"0.9"}`, decision.Safe, 0.0},
		{"string score on phishing", `{"decision":"PHISHING","score":"high"}`, decision.Phishing, 1.0},
		{"boolean score", `{"decision":"SAFE","score":true}`, decision.Safe, 0.0},
		{"empty object", `{}`, decision.Error, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &scripted{responses: []func(http.ResponseWriter, *http.Request){body(tt.body)}}
			c, _ := newTestClient(t, h)

			d, err := c.FetchDecision(context.Background(), "https://example.com/")
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, d.Outcome)
			assert.InDelta(t, tt.score, d.Score, 1e-9)
			assert.Equal(t, int32(1), h.calls.Load())
		})
	}
}

func TestFetchDecisionBreakerRefusalIsRetried(t *testing.T) {
	h := &scripted{responses: []func(http.ResponseWriter, *http.Request){
		status(http.StatusInternalServerError),
		body(`{"decision":"SAFE"}`),
	}}

	clk := clock.NewFake(epoch)
	breaker := resilience.NewBreaker("test", resilience.Settings{
		Timeout:     2 * time.Second,
		Clock:       clk,
		ReadyToTrip: func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	srv := httptest.NewServer(h)
	defer srv.Close()
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	c := New(cfg, WithClock(clk), WithBreaker(breaker))

	d, err := c.FetchDecision(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, decision.Safe, d.Outcome)

	// attempt 2 is refused by the open breaker without reaching the server
	assert.Equal(t, int32(2), h.calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clk.Waits())
	assert.Equal(t, resilience.StateClosed, c.BreakerState())
}

func TestFetchDecisionContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 3 {
			cancel()
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c, _ := newTestClient(t, h)

	_, err := c.FetchDecision(ctx, "https://example.com/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchDecisionAttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`{"decision":"SAFE"}`))
	})

	srv := httptest.NewServer(h)
	defer srv.Close()

	clk := clock.NewFake(epoch)
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.AttemptTimeout = 50 * time.Millisecond
	c := New(cfg, WithClock(clk))

	d, err := c.FetchDecision(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, decision.Safe, d.Outcome)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAttemptReturnsTransportError(t *testing.T) {
	h := &scripted{responses: []func(http.ResponseWriter, *http.Request){
		status(http.StatusServiceUnavailable),
	}}
	c, _ := newTestClient(t, h)

	_, err := c.Attempt(context.Background(), "https://example.com/", 7)
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 7, te.Attempt)
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	assert.True(t, IsTransport(err))
	assert.Contains(t, err.Error(), "status 503")
}

func TestAttemptRecordsMetrics(t *testing.T) {
	h := &scripted{responses: []func(http.ResponseWriter, *http.Request){
		status(http.StatusServiceUnavailable),
		body(`{"decision":"SAFE"}`),
	}}
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	c, _ := newTestClient(t, h, WithMetrics(metrics))

	_, err := c.FetchDecision(context.Background(), "https://example.com/")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ClassifierAttempts.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ClassifierAttempts.WithLabelValues("transport_error")))
}
