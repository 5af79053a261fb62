package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/PhishGuard/internal/shared/urls"
)

// URLRequest carries a single url from the warning page or popup.
type URLRequest struct {
	URL string `json:"url" binding:"required"`
}

// StateRequest toggles protection.
type StateRequest struct {
	State *bool `json:"state" binding:"required"`
}

// Proceed grants a one-time pass for the URL the user chose to visit anyway
func (h *Handlers) Proceed(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	host, err := h.coord.Proceed(req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("User proceeded past warning",
		zap.String("url", req.URL),
		zap.String("host", host))
	c.JSON(http.StatusOK, gin.H{"ok": true, "url": req.URL})
}

// AddToWhitelist persists the host of the given url
func (h *Handlers) AddToWhitelist(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	host, err := h.coord.AddToWhitelist(c.Request.Context(), req.URL)
	if err != nil {
		if errors.Is(err, urls.ErrInvalidURL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "host": host})
}

// RemoveFromWhitelist deletes a host from the user whitelist
func (h *Handlers) RemoveFromWhitelist(c *gin.Context) {
	host := c.Param("host")

	removed, err := h.coord.RemoveFromWhitelist(c.Request.Context(), host)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "removed": removed})
}

// GetState returns the protection toggle and the user whitelist
func (h *Handlers) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"enabled":   h.coord.Enabled(),
		"whitelist": h.coord.Whitelist(),
	})
}

// UpdateState turns protection on or off
func (h *Handlers) UpdateState(c *gin.Context) {
	var req StateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state is required"})
		return
	}

	if err := h.coord.SetEnabled(c.Request.Context(), *req.State); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"enabled": *req.State})
}
