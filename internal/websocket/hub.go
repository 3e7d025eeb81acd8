package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"callops-dashboard/internal/models"
	"callops-dashboard/internal/observability"
)

// Hub fans call updates out to dashboard browsers
type Hub struct {
	clients          map[*Client]bool
	clientsBySession map[string]map[*Client]bool
	dashboardClients map[*Client]bool
	broadcast        chan models.DashboardMessage
	register         chan *Client
	unregister       chan *Client
	allowedOrigins   map[string]bool
	running          bool
	mu               sync.RWMutex
}

// Client represents one connected dashboard browser
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan models.DashboardMessage
	sessionID   string
	isDashboard bool // true for clients following every call
}

// NewHub creates a dashboard hub; allowedOrigins drives the upgrade check
func NewHub(allowedOrigins []string) *Hub {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[origin] = true
	}

	return &Hub{
		clients:          make(map[*Client]bool),
		clientsBySession: make(map[string]map[*Client]bool),
		dashboardClients: make(map[*Client]bool),
		broadcast:        make(chan models.DashboardMessage, 256),
		register:         make(chan *Client, 256),
		unregister:       make(chan *Client, 256),
		allowedOrigins:   origins,
	}
}

// Start starts the hub
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return
	}

	h.running = true
	go h.run()
	logrus.Info("Dashboard hub started")
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return
	}

	h.running = false
	close(h.broadcast)
	close(h.register)
	close(h.unregister)
	logrus.Info("Dashboard hub stopped")
}

// run dispatches registrations and broadcasts
func (h *Hub) run() {
	for {
		select {
		case client, ok := <-h.register:
			if !ok {
				return
			}
			if client == nil {
				continue
			}
			h.mu.Lock()
			h.clients[client] = true
			if client.isDashboard {
				h.dashboardClients[client] = true
				logrus.Debug("Dashboard-wide client registered")
			} else {
				if h.clientsBySession[client.sessionID] == nil {
					h.clientsBySession[client.sessionID] = make(map[*Client]bool)
				}
				h.clientsBySession[client.sessionID][client] = true
				logrus.Debugf("Dashboard client registered for session %s", client.sessionID)
			}
			observability.SetDashboardClients(len(h.clients))
			h.mu.Unlock()

		case client, ok := <-h.unregister:
			if !ok {
				return
			}
			if client == nil {
				continue
			}
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			if client.isDashboard {
				delete(h.dashboardClients, client)
			} else {
				if sessionClients, ok := h.clientsBySession[client.sessionID]; ok {
					delete(sessionClients, client)
					if len(sessionClients) == 0 {
						delete(h.clientsBySession, client.sessionID)
					}
				}
			}
			observability.SetDashboardClients(len(h.clients))
			h.mu.Unlock()

		case message, ok := <-h.broadcast:
			if !ok {
				return
			}
			// Write lock: slow consumers are evicted from the maps here
			h.mu.Lock()
			// Clients following this call
			if sessionClients, ok := h.clientsBySession[message.SessionID]; ok {
				for client := range sessionClients {
					select {
					case client.send <- message:
					default:
						close(client.send)
						delete(h.clients, client)
						delete(sessionClients, client)
					}
				}
			}
			// Dashboard-wide clients get every call's messages
			for client := range h.dashboardClients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
					delete(h.dashboardClients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToSession pushes a message to clients following one call and to
// every dashboard-wide client
func (h *Hub) BroadcastToSession(message models.DashboardMessage) {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		return
	}

	select {
	case h.broadcast <- message:
	default:
		logrus.Warn("Dashboard broadcast channel full, dropping message")
	}
}

// upgrader builds the WebSocket upgrader with the configured origin check
func (h *Hub) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return h.allowedOrigins[origin]
		},
	}
}

// ServeCallWs upgrades a browser connection following one call
func (h *Hub) ServeCallWs(c *gin.Context, sessionID string) {
	h.serve(c, sessionID, false)
}

// ServeDashboardWs upgrades a browser connection following every call
func (h *Hub) ServeDashboardWs(c *gin.Context) {
	h.serve(c, "", true)
}

func (h *Hub) serve(c *gin.Context, sessionID string, isDashboard bool) {
	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Errorf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}

	client := &Client{
		hub:         h,
		conn:        conn,
		send:        make(chan models.DashboardMessage, 256),
		sessionID:   sessionID,
		isDashboard: isDashboard,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// writePump pumps hub messages to the browser
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteJSON(message); err != nil {
			logrus.Errorf("Failed to write dashboard message: %v", err)
			return
		}
	}

	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump drains browser messages; the only one handled is ping
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Errorf("Dashboard WebSocket error: %v", err)
			}
			break
		}

		// Browsers keep the socket warm with pings; the pong goes through
		// the send channel so only writePump ever writes to the socket
		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &msg); err == nil && msg.Type == "ping" {
			select {
			case c.send <- models.DashboardMessage{Type: "pong", Timestamp: time.Now()}:
			default:
			}
		}
	}
}

// GetClientCount returns the number of connected browsers
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetSessionClientCount returns the number of browsers following one call
func (h *Hub) GetSessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if sessionClients, ok := h.clientsBySession[sessionID]; ok {
		return len(sessionClients)
	}
	return 0
}
