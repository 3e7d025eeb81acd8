package monitor

import (
	"time"

	"callops-dashboard/internal/models"
	"callops-dashboard/internal/websocket"
)

// GetWebSocketHub returns the dashboard hub for real-time updates
func (m *CallMonitor) GetWebSocketHub() *websocket.Hub {
	return m.wsHub
}

// broadcastUpdate pushes an update to the browsers following a call
func (m *CallMonitor) broadcastUpdate(sessionID, updateType string, data interface{}) {
	m.wsHub.BroadcastToSession(models.DashboardMessage{
		Type:      updateType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now(),
	})
}
