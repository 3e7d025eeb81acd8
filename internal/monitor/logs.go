package monitor

import (
	"fmt"
	"time"

	"callops-dashboard/internal/models"
)

// GetCallLog gets the activity log for a watched call
func (m *CallMonitor) GetCallLog(sessionID string, lines int) ([]models.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.logBuffers[sessionID]; !exists {
		return nil, fmt.Errorf("call not found")
	}
	return m.recentLogUnsafe(sessionID, lines), nil
}

// recentLog returns the most recent log entries for a call
func (m *CallMonitor) recentLog(sessionID string, lines int) []models.LogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recentLogUnsafe(sessionID, lines)
}

// recentLogUnsafe returns recent entries without acquiring the mutex
func (m *CallMonitor) recentLogUnsafe(sessionID string, lines int) []models.LogEntry {
	logs := m.logBuffers[sessionID]

	if lines <= 0 {
		lines = 200
	}
	if lines > m.logBufferSize {
		lines = m.logBufferSize
	}
	if lines > len(logs) {
		lines = len(logs)
	}

	result := make([]models.LogEntry, lines)
	copy(result, logs[len(logs)-lines:])
	return result
}

// addLogEntry appends an activity-log entry for a call
func (m *CallMonitor) addLogEntry(sessionID, level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addLogEntryUnsafe(sessionID, models.LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
	})
}

// addLogEntryUnsafe appends a log entry without acquiring the mutex
func (m *CallMonitor) addLogEntryUnsafe(sessionID string, entry models.LogEntry) {
	logs, exists := m.logBuffers[sessionID]
	if !exists {
		return
	}

	logs = append(logs, entry)
	if len(logs) > m.logBufferSize {
		logs = logs[len(logs)-m.logBufferSize:]
	}
	m.logBuffers[sessionID] = logs
}
