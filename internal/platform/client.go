package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the conversation engine's REST API: session lifecycle,
// media tokens and readiness. It never owns call state; failures are
// surfaced to the caller and nothing is rolled back here.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a REST client for the engine API rooted at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// Session describes one engine conversation session
type Session struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	TurnCount    int       `json:"turn_count"`
	CurrentAgent string    `json:"current_agent"`
	IsActive     bool      `json:"is_active"`
}

// VoiceToken carries the media-room credentials for one session
type VoiceToken struct {
	Token     string `json:"token"`
	RoomURL   string `json:"livekit_url"`
	SessionID string `json:"session_id"`
}

// Health is the engine's readiness report
type Health struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

// CreateSession creates a conversation session. Both arguments are optional;
// the engine generates a session id when none is given.
func (c *Client) CreateSession(ctx context.Context, sessionID, customerPhone string) (*Session, error) {
	body := map[string]string{}
	if sessionID != "" {
		body["session_id"] = sessionID
	}
	if customerPhone != "" {
		body["customer_phone"] = customerPhone
	}

	var session Session
	if err := c.do(ctx, http.MethodPost, "/sessions", body, &session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &session, nil
}

// DeleteSession ends a conversation session
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	if err := c.do(ctx, http.MethodDelete, "/sessions/"+sessionID, nil, nil); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// FetchVoiceToken requests media-room credentials for a session
func (c *Client) FetchVoiceToken(ctx context.Context, sessionID string) (*VoiceToken, error) {
	body := map[string]string{"session_id": sessionID}

	var token VoiceToken
	if err := c.do(ctx, http.MethodPost, "/voice/token", body, &token); err != nil {
		return nil, fmt.Errorf("failed to fetch voice token: %w", err)
	}
	return &token, nil
}

// FetchHealth reads the engine's readiness status
func (c *Client) FetchHealth(ctx context.Context) (*Health, error) {
	var health Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return nil, fmt.Errorf("failed to fetch engine health: %w", err)
	}
	return &health, nil
}

// do runs one JSON request/response round trip
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("engine returned %d: %s", resp.StatusCode, string(snippet))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
