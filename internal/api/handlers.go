package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"callops-dashboard/internal/monitor"
)

// Handler holds the dependencies for HTTP handlers
type Handler struct {
	callMonitor *monitor.CallMonitor
}

// NewHandler creates a new handler instance
func NewHandler(callMonitor *monitor.CallMonitor) *Handler {
	return &Handler{
		callMonitor: callMonitor,
	}
}

// HealthCheck handles the root endpoint
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "CallOps Dashboard API is running",
	})
}

// Readiness handles GET /readiness by proxying the engine's health report
func (h *Handler) Readiness(c *gin.Context) {
	health, err := h.callMonitor.Engine().FetchHealth(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, health)
}

// ListCalls handles GET /calls
func (h *Handler) ListCalls(c *gin.Context) {
	calls := h.callMonitor.ListCalls()
	c.JSON(http.StatusOK, calls)
}

// WatchCall handles POST /calls
func (h *Handler) WatchCall(c *gin.Context) {
	var req struct {
		SessionID     string `json:"session_id"`
		CustomerPhone string `json:"customer_phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	call, err := h.callMonitor.WatchCall(req.SessionID, req.CustomerPhone)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, call)
}

// GetCall handles GET /calls/{session_id}
func (h *Handler) GetCall(c *gin.Context) {
	sessionID := c.Param("session_id")

	call, exists := h.callMonitor.GetCall(sessionID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
		return
	}

	c.JSON(http.StatusOK, call)
}

// UnwatchCall handles DELETE /calls/{session_id}
func (h *Handler) UnwatchCall(c *gin.Context) {
	sessionID := c.Param("session_id")

	if err := h.callMonitor.UnwatchCall(sessionID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Call unwatched successfully"})
}

// GetTranscript handles GET /calls/{session_id}/transcript
func (h *Handler) GetTranscript(c *gin.Context) {
	sessionID := c.Param("session_id")

	transcript, err := h.callMonitor.GetTranscript(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transcript": transcript})
}

// GetCallLog handles GET /calls/{session_id}/log
func (h *Handler) GetCallLog(c *gin.Context) {
	sessionID := c.Param("session_id")

	lines := 100 // default
	if linesStr := c.Query("lines"); linesStr != "" {
		if parsedLines, err := strconv.Atoi(linesStr); err == nil && parsedLines > 0 {
			lines = parsedLines
		}
	}

	log, err := h.callMonitor.GetCallLog(sessionID, lines)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"log": log})
}

// ToggleMute handles POST /calls/{session_id}/mute
func (h *Handler) ToggleMute(c *gin.Context) {
	sessionID := c.Param("session_id")

	muted, err := h.callMonitor.ToggleMute(sessionID)
	if err != nil {
		statusCode := http.StatusInternalServerError
		if err.Error() == "call not found" {
			statusCode = http.StatusNotFound
		}
		c.JSON(statusCode, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"muted": muted})
}

// GetUsageStats handles GET /stats
func (h *Handler) GetUsageStats(c *gin.Context) {
	stats := h.callMonitor.GetUsageStats()
	c.JSON(http.StatusOK, stats)
}

// GetWebSocketStats handles GET /ws/stats
func (h *Handler) GetWebSocketStats(c *gin.Context) {
	wsHub := h.callMonitor.GetWebSocketHub()
	c.JSON(http.StatusOK, gin.H{
		"total_clients": wsHub.GetClientCount(),
		"calls_watched": len(h.callMonitor.ListCalls()),
	})
}

// WebSocketCall handles WebSocket connections following one call
func (h *Handler) WebSocketCall(c *gin.Context) {
	sessionID := c.Param("session_id")

	if _, exists := h.callMonitor.GetCall(sessionID); !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
		return
	}

	wsHub := h.callMonitor.GetWebSocketHub()
	wsHub.ServeCallWs(c, sessionID)
}

// WebSocketDashboard handles WebSocket connections following every call
func (h *Handler) WebSocketDashboard(c *gin.Context) {
	wsHub := h.callMonitor.GetWebSocketHub()
	wsHub.ServeDashboardWs(c)
}
