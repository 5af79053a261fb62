package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/PhishGuard/internal/shared/id"
)

// maxLogBatch bounds a single log upload.
const maxLogBatch = 100

// RenderLogEntry is one log line from a content script, popup or warning page.
type RenderLogEntry struct {
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	TabID     string         `json:"tabId"`
	URL       string         `json:"url"`
	Context   map[string]any `json:"context"`
	Timestamp string         `json:"timestamp"`
}

// RenderLogRequest is a batch of render-layer log lines.
type RenderLogRequest struct {
	Source  string           `json:"source" binding:"required,oneof=content popup warning"`
	Entries []RenderLogEntry `json:"entries" binding:"required,min=1"`
}

// StreamLogs forwards render-layer logs into the service log
func (h *Handlers) StreamLogs(c *gin.Context) {
	var req RenderLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log request format"})
		return
	}
	if len(req.Entries) > maxLogBatch {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Too many log entries"})
		return
	}

	batch := id.NewBatchID()
	logger := h.logger.Named("render").With(
		zap.String("source", req.Source),
		zap.String("batch_id", batch.String()),
	)
	for _, entry := range req.Entries {
		h.writeRenderLog(logger, entry)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "batchId": batch, "received": len(req.Entries)})
}

func (h *Handlers) writeRenderLog(logger *zap.Logger, entry RenderLogEntry) {
	fields := make([]zap.Field, 0, len(entry.Context)+3)
	fields = append(fields,
		zap.String("tab_id", entry.TabID),
		zap.String("url", entry.URL),
		zap.String("render_timestamp", entry.Timestamp),
	)
	for key, value := range entry.Context {
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, v))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	switch entry.Level {
	case "error":
		logger.Error(entry.Message, fields...)
	case "warn":
		logger.Warn(entry.Message, fields...)
	case "debug":
		logger.Debug(entry.Message, fields...)
	default:
		logger.Info(entry.Message, fields...)
	}
}
