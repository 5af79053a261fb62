package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/PhishGuard/internal/domain/coordinator"
)

// OverlayInitRequest is sent when a page starts rendering.
type OverlayInitRequest struct {
	TabID string `json:"tabId"`
	URL   string `json:"url" binding:"required"`
}

// SkipRequest is sent when the user dismisses the checking overlay.
type SkipRequest struct {
	TabID string `json:"tabId" binding:"required"`
}

// NavigationRequest reports a tab update.
type NavigationRequest struct {
	URL             string `json:"url" binding:"required"`
	IsLoadCompleted bool   `json:"isLoadCompleted"`
}

// OverlayInit tells the page whether to show the checking overlay
func (h *Handlers) OverlayInit(c *gin.Context) {
	var req OverlayInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"shouldShow": h.coord.OverlayInit(req.TabID, req.URL)})
}

// Skip opens the tab's skip window
func (h *Handlers) Skip(c *gin.Context) {
	var req SkipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tabId is required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"skipUntil": h.coord.Skip(req.TabID)})
}

// Navigation starts a page check for a completed load. The verdict is
// delivered over the stream.
func (h *Handlers) Navigation(c *gin.Context) {
	var req NavigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	out := h.coord.HandleNavigation(c.Request.Context(), coordinator.NavigationEvent{
		TabID:           c.Param("tabId"),
		URL:             req.URL,
		IsLoadCompleted: req.IsLoadCompleted,
	})

	c.JSON(http.StatusAccepted, gin.H{"status": out.Status})
}

// ForgetTab drops the navigation session of a closed tab
func (h *Handlers) ForgetTab(c *gin.Context) {
	h.coord.ForgetTab(c.Param("tabId"))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
