package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"callops-dashboard/internal/models"
	"callops-dashboard/internal/observability"
	"callops-dashboard/internal/stream"
)

// WatchCall activates monitoring for one call: it registers the session with
// the engine, fetches media credentials, joins the media room and opens the
// event stream. Any failure aborts activation; partially created engine state
// is left for the engine's own expiry (see DESIGN notes on orphaned sessions).
func (m *CallMonitor) WatchCall(sessionID, customerPhone string) (*models.WatchedCall, error) {
	m.mu.Lock()

	if !m.running {
		m.mu.Unlock()
		return nil, fmt.Errorf("call monitor not running")
	}

	if len(m.calls) >= m.config.Engine.MaxWatchedCalls {
		m.mu.Unlock()
		return nil, fmt.Errorf("maximum number of watched calls (%d) reached", m.config.Engine.MaxWatchedCalls)
	}

	if sessionID == "" {
		sessionID = fmt.Sprintf("call_%s", uuid.New().String()[:8])
	}

	if _, exists := m.calls[sessionID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("call %s is already watched", sessionID)
	}
	m.mu.Unlock()

	// Activation happens outside the lock; each step can block on the engine
	ctx, cancel := context.WithTimeout(m.ctx, m.config.Engine.RequestTimeout)
	defer cancel()

	engineSession, err := m.engine.CreateSession(ctx, sessionID, customerPhone)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine session: %w", err)
	}
	sessionID = engineSession.SessionID

	token, err := m.engine.FetchVoiceToken(ctx, sessionID)
	if err != nil {
		logrus.Errorf("Aborting watch of %s: %v", sessionID, err)
		return nil, fmt.Errorf("failed to fetch voice token: %w", err)
	}

	mediaSession := m.mediaFactory(sessionID)
	if err := mediaSession.Connect(ctx, token.RoomURL, token.Token); err != nil {
		logrus.Errorf("Aborting watch of %s: %v", sessionID, err)
		return nil, fmt.Errorf("failed to join media room: %w", err)
	}

	endpoint := m.config.Engine.WSURL + "/" + sessionID
	now := time.Now()

	call := &watchedCall{
		info: &models.WatchedCall{
			SessionID:     sessionID,
			CustomerPhone: customerPhone,
			Endpoint:      endpoint,
			CreatedAt:     now,
		},
		store: m.newStore(),
		conn:  stream.NewConn(),
		media: mediaSession,
	}

	call.store.SetChangeCallback(func(eventType string, snapshot models.CallState) {
		m.broadcastUpdate(sessionID, eventType, snapshot)
	})
	call.store.SetAvailabilityCallback(func(update models.AvailabilityUpdate) {
		m.broadcastUpdate(sessionID, "availability_update", update)
	})
	call.store.SetTeardownCallback(func(sid string) {
		m.handleTeardown(sid)
	})

	call.conn.SetHandlers(stream.Handlers{
		OnOpen: func() {
			m.addLogEntry(sessionID, "info", "Event stream connected")
		},
		OnMessage: func(raw []byte) {
			if err := call.store.Apply(raw); err != nil {
				m.addLogEntry(sessionID, "warn", fmt.Sprintf("Dropped unparseable frame: %v", err))
			}
		},
		OnClose: func(err error) {
			m.addLogEntry(sessionID, "warn", fmt.Sprintf("Event stream closed: %v", err))
		},
		OnError: func(err error) {
			m.addLogEntry(sessionID, "error", fmt.Sprintf("Event stream error: %v", err))
			m.recordCallError(sessionID, err)
		},
	})

	m.mu.Lock()
	if _, exists := m.calls[sessionID]; exists {
		m.mu.Unlock()
		call.store.Close()
		return nil, fmt.Errorf("call %s is already watched", sessionID)
	}
	m.calls[sessionID] = call
	m.logBuffers[sessionID] = make([]models.LogEntry, 0, m.logBufferSize)
	m.addLogEntryUnsafe(sessionID, models.LogEntry{
		Timestamp: time.Now(),
		Level:     "info",
		Message:   fmt.Sprintf("Watching call at %s", endpoint),
	})
	observability.SetWatchedCalls(len(m.calls))
	m.mu.Unlock()

	call.conn.Open(endpoint)

	logrus.Infof("Watching call %s", sessionID)
	return m.callCopy(call), nil
}

// UnwatchCall deliberately stops monitoring a call and releases its engine
// session. The stream close handler is detached before teardown so no
// reconnect fires.
func (m *CallMonitor) UnwatchCall(sessionID string) error {
	m.mu.Lock()
	call, exists := m.calls[sessionID]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("call not found")
	}
	delete(m.calls, sessionID)
	delete(m.logBuffers, sessionID)
	observability.SetWatchedCalls(len(m.calls))
	m.mu.Unlock()

	call.conn.Close()
	call.store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), m.config.Engine.RequestTimeout)
	defer cancel()

	if err := call.media.Disconnect(ctx); err != nil {
		logrus.Errorf("Failed to leave media room for %s: %v", sessionID, err)
	}
	if err := m.engine.DeleteSession(ctx, sessionID); err != nil {
		logrus.Errorf("Failed to delete engine session %s: %v", sessionID, err)
	}

	logrus.Infof("Unwatched call %s", sessionID)
	return nil
}

// handleTeardown runs after the post-farewell delay has cleared call state.
// The call stays listed with an ended stamp so the dashboard can show history.
func (m *CallMonitor) handleTeardown(sessionID string) {
	m.mu.Lock()
	call, exists := m.calls[sessionID]
	if !exists {
		m.mu.Unlock()
		return
	}
	now := time.Now()
	call.info.EndedAt = &now
	m.mu.Unlock()

	call.conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), m.config.Engine.RequestTimeout)
	defer cancel()

	if err := call.media.Disconnect(ctx); err != nil {
		logrus.Errorf("Failed to leave media room for %s: %v", sessionID, err)
	}
	if err := m.engine.DeleteSession(ctx, sessionID); err != nil {
		logrus.Errorf("Failed to delete engine session %s: %v", sessionID, err)
	}

	m.addLogEntry(sessionID, "info", "Call torn down after farewell")
}

// recordCallError stamps the most recent stream error on the call record
func (m *CallMonitor) recordCallError(sessionID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if call, exists := m.calls[sessionID]; exists {
		msg := err.Error()
		call.info.ErrorMsg = &msg
	}
}

// ToggleMute flips the operator's media mute for one call
func (m *CallMonitor) ToggleMute(sessionID string) (bool, error) {
	m.mu.RLock()
	call, exists := m.calls[sessionID]
	m.mu.RUnlock()

	if !exists {
		return false, fmt.Errorf("call not found")
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.config.Engine.RequestTimeout)
	defer cancel()

	muted, err := call.media.ToggleMute(ctx)
	if err != nil {
		return false, err
	}

	m.broadcastUpdate(sessionID, "mute_changed", map[string]interface{}{"muted": muted})
	return muted, nil
}

// GetCall gets a watched call by session ID
func (m *CallMonitor) GetCall(sessionID string) (*models.WatchedCall, bool) {
	m.mu.RLock()
	call, exists := m.calls[sessionID]
	m.mu.RUnlock()

	if !exists {
		return nil, false
	}
	return m.callCopy(call), true
}

// ListCalls lists all watched calls
func (m *CallMonitor) ListCalls() []*models.WatchedCall {
	m.mu.RLock()
	calls := make([]*watchedCall, 0, len(m.calls))
	for _, call := range m.calls {
		calls = append(calls, call)
	}
	m.mu.RUnlock()

	result := make([]*models.WatchedCall, 0, len(calls))
	for _, call := range calls {
		result = append(result, m.callCopy(call))
	}
	return result
}

// GetTranscript returns the transcript of one watched call
func (m *CallMonitor) GetTranscript(sessionID string) ([]models.TranscriptEntry, error) {
	m.mu.RLock()
	call, exists := m.calls[sessionID]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("call not found")
	}
	return call.store.Snapshot().Transcript, nil
}

// callCopy snapshots a watched call so callers never see live state
func (m *CallMonitor) callCopy(call *watchedCall) *models.WatchedCall {
	m.mu.RLock()
	info := *call.info
	m.mu.RUnlock()

	info.State = call.store.Snapshot()
	info.Log = m.recentLog(call.info.SessionID, 100)
	return &info
}
