package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/PhishGuard/internal/domain/coordinator"
	"github.com/GriffinCanCode/PhishGuard/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/PhishGuard/internal/infrastructure/resilience"
)

// BreakerReporter exposes the classifier circuit state for health checks.
type BreakerReporter interface {
	BreakerState() resilience.State
}

// Handlers contains all render-layer HTTP handlers
type Handlers struct {
	coord   *coordinator.Coordinator
	breaker BreakerReporter
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandlers creates a new handler set. breaker, metrics and logger may be nil.
func NewHandlers(
	coord *coordinator.Coordinator,
	breaker BreakerReporter,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		coord:   coord,
		breaker: breaker,
		metrics: metrics,
		logger:  logger.Named("api"),
	}
}

// Register mounts every route on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.POST("/check-link", h.CheckLink)
	api.POST("/check-page", h.CheckPage)
	api.POST("/proceed", h.Proceed)
	api.POST("/whitelist", h.AddToWhitelist)
	api.DELETE("/whitelist/:host", h.RemoveFromWhitelist)
	api.GET("/state", h.GetState)
	api.PUT("/state", h.UpdateState)
	api.GET("/stats", h.Stats)
	api.POST("/logs", h.StreamLogs)

	nav := api.Group("/nav")
	nav.POST("/overlay-init", h.OverlayInit)
	nav.POST("/skip", h.Skip)

	tabs := api.Group("/tabs/:tabId")
	tabs.POST("/navigation", h.Navigation)
	tabs.DELETE("", h.ForgetTab)
}

// CheckLinkRequest is sent by the content script on hover or click.
type CheckLinkRequest struct {
	URL     string `json:"url" binding:"required"`
	PageURL string `json:"pageUrl"`
	Source  string `json:"source"`
}

// CheckPageRequest asks for a verdict on the current page.
type CheckPageRequest struct {
	URL string `json:"url" binding:"required"`
}

// CheckLink evaluates a link the user hovered or clicked
func (h *Handlers) CheckLink(c *gin.Context) {
	var req CheckLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	res, err := h.coord.Evaluate(c.Request.Context(), coordinator.Request{
		URL:     req.URL,
		Trigger: coordinator.ParseTrigger(req.Source),
	})
	if err != nil {
		h.evaluateFailed(c, req.URL, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"decision":   res.Decision.Outcome,
		"score":      res.Decision.Score,
		"showBubble": res.ShowBubble,
		"source":     res.Source,
	})
}

// CheckPage evaluates the page the user is on
func (h *Handlers) CheckPage(c *gin.Context) {
	var req CheckPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	res, err := h.coord.Evaluate(c.Request.Context(), coordinator.Request{
		URL:     req.URL,
		Trigger: coordinator.TriggerPage,
	})
	if err != nil {
		h.evaluateFailed(c, req.URL, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"decision": res.Decision.Outcome,
		"score":    res.Decision.Score,
		"source":   res.Source,
	})
}

// evaluateFailed maps the only errors Evaluate returns onto status codes.
func (h *Handlers) evaluateFailed(c *gin.Context, url string, err error) {
	switch {
	case errors.Is(err, coordinator.ErrCheckTimeout):
		h.logger.Warn("Check timed out, fetch continues", zap.String("url", url))
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error":   "classifier unavailable",
			"pending": true,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request cancelled"})
	default:
		h.logger.Error("Check failed", zap.String("url", url), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Health reports service and classifier health
func (h *Handlers) Health(c *gin.Context) {
	stats := h.coord.Stats()
	status := "healthy"
	breaker := "unknown"
	if h.breaker != nil {
		state := h.breaker.BreakerState()
		breaker = state.String()
		if state == resilience.StateOpen {
			status = "degraded"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"enabled":  stats.Enabled,
		"cache":    stats.CacheEntries,
		"inflight": stats.InFlight,
		"sessions": stats.Sessions,
		"breaker":  breaker,
	})
}
