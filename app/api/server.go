package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Routes
	setupRoutes(r, handler)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler) {
	// Resolution endpoints
	r.POST("/resolve", handler.Resolve)
	r.GET("/resolve/rss", handler.ResolveRSS)
	r.POST("/discover", handler.Discover)
	r.POST("/parse", handler.Parse)
	r.POST("/validate", handler.Validate)

	// Bulk ingestion endpoint
	r.POST("/ingest", handler.Ingest)

	// Cache management endpoints
	r.POST("/cache/flush", handler.FlushCache)
	r.POST("/cache/invalidate", handler.InvalidateCache)

	// Health and status endpoints
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service":     "url2feed",
			"description": "Resolves arbitrary page URLs into RSS feeds, synthesizing one when none exists",
			"endpoints": map[string]string{
				"resolve":     "/resolve (POST)",
				"resolve_rss": "/resolve/rss?url=<page-url>",
				"discover":    "/discover (POST)",
				"parse":       "/parse (POST)",
				"validate":    "/validate (POST)",
				"ingest":      "/ingest (POST)",
				"health":      "/health",
				"stats":       "/stats",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}
