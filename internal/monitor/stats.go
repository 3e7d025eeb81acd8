package monitor

import (
	"time"

	"callops-dashboard/internal/models"
)

// GetUsageStats gets gateway usage statistics
func (m *CallMonitor) GetUsageStats() *models.UsageStats {
	m.mu.RLock()
	calls := make([]*watchedCall, 0, len(m.calls))
	for _, call := range m.calls {
		calls = append(calls, call)
	}
	total := len(m.calls)
	uptime := time.Since(m.startTime).Seconds()
	m.mu.RUnlock()

	active := 0
	for _, call := range calls {
		switch call.store.Snapshot().Status {
		case models.CallStatusIdle, models.CallStatusEnded:
		default:
			active++
		}
	}

	return &models.UsageStats{
		WatchedCalls:  total,
		ActiveCalls:   active,
		UptimeSeconds: uptime,
	}
}
