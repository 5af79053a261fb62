package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig defines CORS configuration options.
type CORSConfig struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
	// AllowBrowserExtensions accepts chrome-extension:// and moz-extension://
	// origins, which is where the render layer runs.
	AllowBrowserExtensions bool
	MaxAge                 time.Duration
}

// DefaultCORSConfig returns CORS configuration for the extension pages.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Content-Length",
			"Accept",
			"Origin",
			"X-Trace-ID",
			"X-Span-ID",
		},
		AllowBrowserExtensions: true,
		MaxAge:                 12 * time.Hour,
	}
}

// CORS creates a CORS middleware with the provided configuration.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:           cfg.AllowOrigins,
		AllowMethods:           cfg.AllowMethods,
		AllowHeaders:           cfg.AllowHeaders,
		ExposeHeaders:          []string{"X-Trace-ID", "X-Span-ID"},
		AllowBrowserExtensions: cfg.AllowBrowserExtensions,
		MaxAge:                 cfg.MaxAge,
	})
}
