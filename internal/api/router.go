package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"callops-dashboard/internal/config"
	"callops-dashboard/internal/monitor"
	"callops-dashboard/internal/observability"
)

// SetupRouter sets up the Gin router with all routes
func SetupRouter(cfg *config.Config, callMonitor *monitor.CallMonitor) *gin.Engine {
	// Set Gin mode
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORS.AllowedOrigins,
		AllowMethods:     cfg.Server.CORS.AllowedMethods,
		AllowHeaders:     cfg.Server.CORS.AllowedHeaders,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Create handler
	handler := NewHandler(callMonitor)

	// Health checks
	router.GET("/", handler.HealthCheck)
	router.GET("/readiness", handler.Readiness)

	// Call routes
	calls := router.Group("/calls")
	{
		calls.GET("", handler.ListCalls)
		calls.POST("", handler.WatchCall)
		calls.GET("/:session_id", handler.GetCall)
		calls.DELETE("/:session_id", handler.UnwatchCall)
		calls.GET("/:session_id/transcript", handler.GetTranscript)
		calls.GET("/:session_id/log", handler.GetCallLog)
		calls.POST("/:session_id/mute", handler.ToggleMute)
	}

	// WebSocket routes
	router.GET("/ws/calls/:session_id", handler.WebSocketCall)
	router.GET("/ws/dashboard", handler.WebSocketDashboard)

	// Additional utility routes
	router.GET("/stats", handler.GetUsageStats)
	router.GET("/ws/stats", handler.GetWebSocketStats)
	router.GET("/metrics", gin.WrapH(observability.Handler()))

	return router
}
