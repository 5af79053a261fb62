package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/PhishGuard/internal/domain/decision"
	"github.com/GriffinCanCode/PhishGuard/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/PhishGuard/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/PhishGuard/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/PhishGuard/internal/shared/clock"
)

// CheckPath is the classifier endpoint.
const CheckPath = "/check_url"

// Config configures the classifier client.
type Config struct {
	BaseURL        string
	AttemptTimeout time.Duration
	Backoff        resilience.Backoff
	// RateLimit caps attempts per second; zero means unlimited
	RateLimit float64
	UserAgent string
}

// DefaultConfig points at a classifier on localhost.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://127.0.0.1:5030",
		AttemptTimeout: 10 * time.Second,
		Backoff:        resilience.DefaultBackoff(),
		UserAgent:      "PhishGuard/1.0",
	}
}

// Option customizes a Client.
type Option func(*Client)

// WithClock injects the clock used for backoff waits and decision timestamps.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics records attempt counts and latency.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(c *Client) { c.metrics = metrics }
}

// WithTracer records every attempt as a span.
func WithTracer(tracer *tracing.Tracer) Option {
	return func(c *Client) { c.tracer = tracer }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(breaker *resilience.Breaker) Option {
	return func(c *Client) { c.breaker = breaker }
}

// WithTransport replaces the pooled HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// Client asks the remote classifier for decisions and never gives up.
type Client struct {
	cfg       Config
	resty     *resty.Client
	transport http.RoundTripper
	retrier   *resilience.Retrier
	breaker   *resilience.Breaker
	limiter   *rate.Limiter
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	tracer    *tracing.Tracer
}

type checkRequest struct {
	URL string `json:"url"`
}

// checkResponse keeps field values untyped so a wrong-typed field still
// yields a decision instead of a malformed body.
type checkResponse map[string]any

// decision returns the decision field, or "" when it is absent or not a string.
func (r checkResponse) decision() (string, bool) {
	v, ok := r["decision"]
	if !ok || v == nil {
		return "", true
	}
	s, ok := v.(string)
	return s, ok
}

// score returns the score field, or nil when it is absent or not a number.
func (r checkResponse) score() *float64 {
	if f, ok := r["score"].(float64); ok {
		return &f
	}
	return nil
}

// New creates a classifier client.
func New(cfg Config, opts ...Option) *Client {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultConfig().AttemptTimeout
	}
	if cfg.Backoff == (resilience.Backoff{}) {
		cfg.Backoff = resilience.DefaultBackoff()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.clock == nil {
		c.clock = clock.System()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.transport == nil {
		// Pooled transport only; attempts are retried by our own policy.
		c.transport = retryablehttp.NewClient().HTTPClient.Transport
	}
	if c.breaker == nil {
		c.breaker = resilience.NewBreaker("classifier", resilience.Settings{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     10 * time.Second,
			Clock:       c.clock,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: c.onBreakerChange,
		})
	}

	c.limiter = rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	c.retrier = resilience.NewRetrier(cfg.Backoff, c.clock)
	c.resty = resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTransport(c.transport).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent)

	return c
}

// FetchDecision returns the classifier's decision for url. Transport
// failures are retried forever with the configured backoff; only ctx can end
// the call early, in which case ctx.Err() is returned.
func (c *Client) FetchDecision(ctx context.Context, url string) (decision.Decision, error) {
	var result decision.Decision

	err := c.retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		d, err := c.Attempt(ctx, url, attempt)
		if err != nil {
			return err
		}
		result = d
		return nil
	}, func(attempt int, delay time.Duration, err error) {
		c.logger.Warn("Classifier unavailable, retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	})
	if err != nil {
		return decision.Decision{}, err
	}

	c.logger.Debug("Classifier decision",
		zap.String("url", url),
		zap.String("outcome", string(result.Outcome)),
		zap.Float64("score", result.Score),
	)
	return result, nil
}

// Attempt performs exactly one classifier call through the breaker and the
// rate limiter. Any failure is a *TransportError.
func (c *Client) Attempt(ctx context.Context, url string, attempt int) (decision.Decision, error) {
	var span *tracing.Span
	if c.tracer != nil {
		span, ctx = c.tracer.StartSpan(ctx, "classifier.check_url")
		span.SetTag("url", url)
		span.SetTag("attempt", fmt.Sprint(attempt))
		defer func() {
			span.Finish()
			c.tracer.Submit(span)
		}()
	}

	start := time.Now()
	var d decision.Decision
	err := c.breaker.Execute(func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		d, err = c.call(ctx, url)
		return err
	})

	status := "ok"
	if err != nil {
		status = "transport_error"
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			status = "circuit_open"
		}
		var te *TransportError
		if errors.As(err, &te) {
			te.Attempt = attempt
		} else {
			te = &TransportError{Attempt: attempt, Err: err}
		}
		err = te
		if span != nil {
			span.SetError(err)
		}
	}
	if c.metrics != nil {
		c.metrics.RecordClassifierAttempt(status, time.Since(start))
	}
	return d, err
}

// BreakerState exposes the circuit breaker state for health checks.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

func (c *Client) call(ctx context.Context, url string) (decision.Decision, error) {
	body, err := sonic.Marshal(checkRequest{URL: url})
	if err != nil {
		return decision.Decision{}, fmt.Errorf("failed to encode request: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	resp, err := c.resty.R().
		SetContext(attemptCtx).
		SetBody(body).
		Post(CheckPath)
	if err != nil {
		return decision.Decision{}, &TransportError{Err: err}
	}
	if !resp.IsSuccess() {
		return decision.Decision{}, &TransportError{
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("unexpected status %s", resp.Status()),
		}
	}

	return c.decode(url, resp.Body())
}

func (c *Client) decode(url string, body []byte) (decision.Decision, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return decision.Decision{}, &TransportError{Err: ErrMalformedResponse}
	}

	var parsed checkResponse
	if err := sonic.Unmarshal(trimmed, &parsed); err != nil {
		return decision.Decision{}, &TransportError{Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}

	raw, isString := parsed.decision()
	outcome := decision.ParseOutcome(raw)
	if !isString {
		c.logger.Warn("Non-string classifier decision",
			zap.String("url", url),
			zap.Any("decision", parsed["decision"]),
		)
	} else if outcome == decision.Error && raw != string(decision.Error) {
		c.logger.Warn("Unrecognized classifier decision",
			zap.String("url", url),
			zap.String("decision", raw),
		)
	}
	score := parsed.score()
	if score == nil && parsed["score"] != nil {
		c.logger.Warn("Ignoring non-numeric classifier score",
			zap.String("url", url),
			zap.Any("score", parsed["score"]),
		)
	}

	return decision.New(url, outcome, score, c.clock.Now()), nil
}

func (c *Client) onBreakerChange(name string, from, to resilience.State) {
	c.logger.Info("Circuit breaker state changed",
		zap.String("breaker", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	if c.metrics != nil {
		c.metrics.SetBreakerState(name, int(to))
	}
}
