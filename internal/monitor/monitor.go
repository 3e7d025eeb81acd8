package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"callops-dashboard/internal/config"
	"callops-dashboard/internal/media"
	"callops-dashboard/internal/models"
	"callops-dashboard/internal/platform"
	"callops-dashboard/internal/session"
	"callops-dashboard/internal/stream"
	"callops-dashboard/internal/websocket"
)

// watchedCall bundles the per-call collaborators: the event stream, the state
// store it feeds and the media-room session
type watchedCall struct {
	info  *models.WatchedCall
	store *session.Store
	conn  *stream.Conn
	media media.Session
}

// CallMonitor manages the set of watched calls
type CallMonitor struct {
	config        *config.Config
	engine        *platform.Client
	wsHub         *websocket.Hub
	mediaFactory  media.Factory
	newStore      func() *session.Store
	calls         map[string]*watchedCall
	logBuffers    map[string][]models.LogEntry
	logBufferSize int
	running       bool
	startTime     time.Time
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewCallMonitor creates a new call monitor
func NewCallMonitor(cfg *config.Config) *CallMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &CallMonitor{
		config:        cfg,
		engine:        platform.NewClient(cfg.Engine.BaseURL, cfg.Engine.RequestTimeout),
		wsHub:         websocket.NewHub(cfg.Server.CORS.AllowedOrigins),
		mediaFactory:  media.NewRoomSession,
		newStore:      session.NewStore,
		calls:         make(map[string]*watchedCall),
		logBuffers:    make(map[string][]models.LogEntry),
		logBufferSize: 1000,
		startTime:     time.Now(),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start starts the call monitor
func (m *CallMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("call monitor already running")
	}

	logrus.Info("Starting call monitor")
	m.running = true
	m.startTime = time.Now()

	m.wsHub.Start()

	logrus.Info("Call monitor started successfully")
	return nil
}

// Stop stops the call monitor and releases every watched call
func (m *CallMonitor) Stop() error {
	m.mu.Lock()

	if !m.running {
		m.mu.Unlock()
		return nil
	}

	logrus.Info("Stopping call monitor")
	m.running = false
	m.cancel()

	sessionIDs := make([]string, 0, len(m.calls))
	for sessionID := range m.calls {
		sessionIDs = append(sessionIDs, sessionID)
	}
	m.mu.Unlock()

	for _, sessionID := range sessionIDs {
		if err := m.UnwatchCall(sessionID); err != nil {
			logrus.Errorf("Failed to unwatch call %s during shutdown: %v", sessionID, err)
		}
	}

	m.wsHub.Stop()

	logrus.Info("Call monitor stopped successfully")
	return nil
}

// Engine returns the engine REST client, used by the readiness endpoint
func (m *CallMonitor) Engine() *platform.Client {
	return m.engine
}
