package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/PhishGuard/internal/domain/coordinator"
	"github.com/GriffinCanCode/PhishGuard/internal/infrastructure/monitoring"
)

// StatsSnapshot combines coordinator bookkeeping with metric totals.
type StatsSnapshot struct {
	Timestamp   time.Time            `json:"timestamp"`
	Coordinator coordinator.Stats    `json:"coordinator"`
	Metrics     *monitoring.Snapshot `json:"metrics,omitempty"`
	Summary     StatsSummary         `json:"summary"`
}

// StatsSummary provides high-level ratios
type StatsSummary struct {
	CacheHitRate       float64 `json:"cacheHitRate"`
	PhishingRate       float64 `json:"phishingRate"`
	ClassifierFailRate float64 `json:"classifierFailRate"`
	UptimeSeconds      float64 `json:"uptimeSeconds"`
}

// Stats returns a JSON view of detection activity
func (h *Handlers) Stats(c *gin.Context) {
	snapshot := StatsSnapshot{
		Timestamp:   time.Now(),
		Coordinator: h.coord.Stats(),
	}
	if h.metrics != nil {
		m := h.metrics.GetSnapshot()
		snapshot.Metrics = &m
		snapshot.Summary = summarize(m)
	}

	c.JSON(http.StatusOK, snapshot)
}

func summarize(m monitoring.Snapshot) StatsSummary {
	return StatsSummary{
		CacheHitRate:       ratio(m.CacheHits, m.CacheHits+m.CacheMisses),
		PhishingRate:       ratio(m.Phishing, m.Decisions),
		ClassifierFailRate: ratio(m.ClassifierFailures, m.ClassifierAttempts),
		UptimeSeconds:      m.UptimeSeconds,
	}
}

func ratio(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
