package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"callops-dashboard/internal/observability"
)

// DefaultReconnectDelay is the fixed wait before the single reconnect attempt
// that follows an unexpected close
const DefaultReconnectDelay = 3000 * time.Millisecond

// Status represents the lifecycle of the logical stream connection
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusOpen       Status = "open"
	StatusClosed     Status = "closed"
)

// State is a point-in-time view of the connection. Generation increments on
// every connect attempt and is the sole defense against callbacks from a
// superseded connection corrupting current state.
type State struct {
	Status     Status `json:"status"`
	Generation uint64 `json:"generation"`
}

// Handlers is the mutable behavior of the connection. Swapping handlers never
// tears down or reconnects the socket; only Open/Close touch the transport.
type Handlers struct {
	OnOpen    func()
	OnMessage func(raw []byte)
	OnClose   func(err error)
	OnError   func(err error)
}

// getStateFrame is sent once after every successful (re)connect so the engine
// resends an authoritative snapshot covering any frames missed while down
var getStateFrame = map[string]string{"type": "get_state"}

// Conn owns one logical WebSocket connection to one engine endpoint, with a
// fixed-delay reconnect after unexpected closes. Connection identity (target
// endpoint) drives reconnection; handler behavior is mutable in place.
type Conn struct {
	mu         sync.Mutex
	endpoint   string
	generation uint64
	status     Status
	ws         *websocket.Conn
	handlers   Handlers
	reconnect  *time.Timer

	// ReconnectDelay is fixed in production; tests shorten it
	ReconnectDelay time.Duration

	dialer *websocket.Dialer
}

// NewConn creates a disconnected stream connection manager
func NewConn() *Conn {
	return &Conn{
		status:         StatusClosed,
		ReconnectDelay: DefaultReconnectDelay,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
	}
}

// SetHandlers replaces the handler set in place. Callers update behavior
// freely without triggering reconnection.
func (c *Conn) SetHandlers(handlers Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = handlers
}

// State returns the current connection status and generation
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Status: c.status, Generation: c.generation}
}

// Open connects to the given endpoint. Any previous connection is
// force-closed with its callbacks detached (generation bump), so it can
// neither deliver frames nor trigger a reconnect.
func (c *Conn) Open(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.endpoint = endpoint
	c.connectLocked()
}

// connectLocked starts one generation-tagged connect attempt (lock held)
func (c *Conn) connectLocked() {
	c.generation++
	generation := c.generation

	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}

	c.status = StatusConnecting
	endpoint := c.endpoint

	logrus.WithFields(logrus.Fields{
		"endpoint":   endpoint,
		"generation": generation,
	}).Debug("Opening stream connection")

	go c.dial(generation, endpoint)
}

// dial performs the blocking handshake for one attempt. Every outcome is
// checked against the current generation before it may touch state.
func (c *Conn) dial(generation uint64, endpoint string) {
	ws, _, err := c.dialer.Dial(endpoint, nil)

	c.mu.Lock()
	if generation != c.generation {
		// Superseded while dialing; discard silently
		c.mu.Unlock()
		if ws != nil {
			ws.Close()
		}
		return
	}

	if err != nil {
		c.status = StatusClosed
		onError := c.handlers.OnError
		c.scheduleReconnectLocked(generation)
		c.mu.Unlock()

		logrus.WithField("endpoint", endpoint).Warnf("Stream dial failed: %v", err)
		if onError != nil {
			onError(fmt.Errorf("failed to dial %s: %w", endpoint, err))
		}
		return
	}

	c.ws = ws
	c.status = StatusOpen
	onOpen := c.handlers.OnOpen

	// Request the authoritative snapshot before anything else so state
	// missed during downtime is resent
	if err := ws.WriteJSON(getStateFrame); err != nil {
		logrus.Warnf("Failed to send get_state after connect: %v", err)
	}
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"endpoint":   endpoint,
		"generation": generation,
	}).Info("Stream connected")

	if onOpen != nil {
		onOpen()
	}

	go c.readLoop(generation, ws)
}

// readLoop pumps frames to the message handler until the socket dies
func (c *Conn) readLoop(generation uint64, ws *websocket.Conn) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			c.handleClose(generation, err)
			return
		}

		c.mu.Lock()
		stale := generation != c.generation
		onMessage := c.handlers.OnMessage
		c.mu.Unlock()

		if stale {
			// A delayed read from a superseded connection; drop everything
			return
		}
		if onMessage != nil {
			onMessage(raw)
		}
	}
}

// handleClose reacts to an unexpected close of the tagged connection
func (c *Conn) handleClose(generation uint64, err error) {
	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		return
	}

	c.status = StatusClosed
	c.ws = nil
	onClose := c.handlers.OnClose
	c.scheduleReconnectLocked(generation)
	c.mu.Unlock()

	logrus.WithField("generation", generation).Warnf("Stream closed unexpectedly: %v", err)
	if onClose != nil {
		onClose(err)
	}
}

// scheduleReconnectLocked arms exactly one reconnect attempt (lock held).
// The timer is cancelled by an intentional Close or an endpoint change, and
// its generation check makes a late fire from a superseded attempt a no-op.
func (c *Conn) scheduleReconnectLocked(generation uint64) {
	if c.endpoint == "" {
		return
	}

	c.reconnect = time.AfterFunc(c.ReconnectDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if generation != c.generation || c.endpoint == "" {
			return
		}
		observability.RecordStreamReconnect()
		logrus.WithField("endpoint", c.endpoint).Info("Reconnecting stream")
		c.connectLocked()
	})
}

// Send writes one JSON frame on the current connection
func (c *Conn) Send(frame interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ws == nil || c.status != StatusOpen {
		return fmt.Errorf("stream not connected")
	}
	if err := c.ws.WriteJSON(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Close tears the connection down deliberately. The close handler of the
// underlying socket is detached by the generation bump, so no reconnect is
// ever scheduled for an intentional close.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.endpoint = ""
	c.generation++
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.status = StatusClosed
}
