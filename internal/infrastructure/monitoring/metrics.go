package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "phishguard"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Classifier metrics
	ClassifierAttempts *prometheus.CounterVec
	ClassifierDuration prometheus.Histogram
	BreakerState       *prometheus.GaugeVec

	// Decision metrics
	Decisions    *prometheus.CounterVec
	CacheLookups *prometheus.CounterVec
	CacheEntries prometheus.Gauge
	DedupShared  prometheus.Counter
	InFlight     prometheus.Gauge
	NavActions   *prometheus.CounterVec
	TabsTracked  prometheus.Gauge
	ProtectionOn prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the stats endpoint
type Snapshot struct {
	TotalRequests      int64   `json:"totalRequests"`
	TotalErrors        int64   `json:"totalErrors"`
	ClassifierAttempts int64   `json:"classifierAttempts"`
	ClassifierFailures int64   `json:"classifierFailures"`
	CacheHits          int64   `json:"cacheHits"`
	CacheMisses        int64   `json:"cacheMisses"`
	Decisions          int64   `json:"decisions"`
	Phishing           int64   `json:"phishing"`
	ActiveConnections  int64   `json:"activeConnections"`
	UptimeSeconds      float64 `json:"uptimeSeconds"`
}

// NewMetrics registers the collectors on reg. A nil reg uses the default
// Prometheus registerer; tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{startTime: time.Now()}

	// HTTP metrics
	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
	m.RequestSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   []float64{100, 1000, 10000, 100000},
		},
		[]string{"method", "path"},
	)
	m.ResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   []float64{100, 1000, 10000, 100000},
		},
		[]string{"method", "path"},
	)

	// Classifier metrics
	m.ClassifierAttempts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_attempts_total",
			Help:      "Classifier attempts by result",
		},
		[]string{"status"},
	)
	m.ClassifierDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_attempt_duration_seconds",
			Help:      "Duration of a single classifier attempt",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
	m.BreakerState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"breaker"},
	)

	// Decision metrics
	m.Decisions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Decisions returned by outcome and source",
		},
		[]string{"outcome", "source"},
	)
	m.CacheLookups = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Decision cache lookups by result",
		},
		[]string{"result"},
	)
	m.CacheEntries = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Number of entries in the decision cache",
		},
	)
	m.DedupShared = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_shared_total",
			Help:      "Checks served by joining an in-flight classifier call",
		},
	)
	m.InFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_checks",
			Help:      "Classifier calls currently in flight",
		},
	)
	m.NavActions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigation_actions_total",
			Help:      "Navigation resolutions by action",
		},
		[]string{"action"},
	)
	m.TabsTracked = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tabs_tracked",
			Help:      "Tabs with navigation state",
		},
	)
	m.ProtectionOn = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "protection_enabled",
			Help:      "1 when protection is enabled",
		},
	)

	// WebSocket metrics
	m.WSConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Number of active WebSocket connections",
		},
	)
	m.WSMessages = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "Total number of WebSocket messages",
		},
		[]string{"direction", "type"},
	)

	// System metrics
	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordClassifierAttempt records one classifier attempt
func (m *Metrics) RecordClassifierAttempt(status string, duration time.Duration) {
	m.ClassifierAttempts.WithLabelValues(status).Inc()
	m.ClassifierDuration.Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.ClassifierAttempts++
	if status != "ok" {
		m.snapshot.ClassifierFailures++
	}
	m.mu.Unlock()
}

// SetBreakerState sets the state gauge of a circuit breaker
func (m *Metrics) SetBreakerState(name string, state int) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordDecision counts a decision handed back to a caller
func (m *Metrics) RecordDecision(outcome, source string) {
	m.Decisions.WithLabelValues(outcome, source).Inc()
	m.mu.Lock()
	m.snapshot.Decisions++
	if outcome == "PHISHING" {
		m.snapshot.Phishing++
	}
	m.mu.Unlock()
}

// RecordCacheLookup records a cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()

	m.mu.Lock()
	if hit {
		m.snapshot.CacheHits++
	} else {
		m.snapshot.CacheMisses++
	}
	m.mu.Unlock()
}

// SetCacheEntries sets the cache size gauge
func (m *Metrics) SetCacheEntries(count int) {
	m.CacheEntries.Set(float64(count))
}

// IncDedupShared counts a caller that joined an existing fetch
func (m *Metrics) IncDedupShared() {
	m.DedupShared.Inc()
}

// SetInFlight sets the in-flight gauge
func (m *Metrics) SetInFlight(count int) {
	m.InFlight.Set(float64(count))
}

// RecordNavAction counts a navigation resolution
func (m *Metrics) RecordNavAction(action string) {
	m.NavActions.WithLabelValues(action).Inc()
}

// SetTabsTracked sets the tracked tab gauge
func (m *Metrics) SetTabsTracked(count int) {
	m.TabsTracked.Set(float64(count))
}

// SetProtectionEnabled mirrors the protection toggle
func (m *Metrics) SetProtectionEnabled(enabled bool) {
	if enabled {
		m.ProtectionOn.Set(1)
		return
	}
	m.ProtectionOn.Set(0)
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// GetSnapshot returns a copy of the current counters
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
