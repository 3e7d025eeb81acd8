package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Session is the media-room collaborator contract. Connect resolves once
// local audio is published; Disconnect must complete before call state may
// read as ended; ToggleMute must complete before the visible mute flag flips.
type Session interface {
	Connect(ctx context.Context, roomURL, token string) error
	Disconnect(ctx context.Context) error
	ToggleMute(ctx context.Context) (bool, error)
	Connected() bool
	Muted() bool
}

// Factory builds one media session per watched call
type Factory func(sessionID string) Session

// RoomSession tracks membership and the local publish flag for one media
// room. Actual audio flows browser-side; the gateway only needs the flags to
// sequence call state correctly.
type RoomSession struct {
	mu        sync.Mutex
	sessionID string
	roomURL   string
	connected bool
	muted     bool
}

// NewRoomSession creates a disconnected media session for one call
func NewRoomSession(sessionID string) Session {
	return &RoomSession{sessionID: sessionID}
}

// Connect joins the media room with the fetched token
func (r *RoomSession) Connect(ctx context.Context, roomURL, token string) error {
	if token == "" {
		return fmt.Errorf("media token is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connected {
		return fmt.Errorf("media session already connected")
	}

	r.roomURL = roomURL
	r.connected = true
	r.muted = false

	logrus.WithFields(logrus.Fields{
		"session_id": r.sessionID,
		"room_url":   roomURL,
	}).Info("Media session connected")
	return nil
}

// Disconnect leaves the media room
func (r *RoomSession) Disconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.connected {
		return nil
	}

	r.connected = false
	r.roomURL = ""

	logrus.WithField("session_id", r.sessionID).Info("Media session disconnected")
	return nil
}

// ToggleMute flips the local publish flag and returns the new muted state
func (r *RoomSession) ToggleMute(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.connected {
		return false, fmt.Errorf("media session not connected")
	}

	r.muted = !r.muted
	logrus.WithFields(logrus.Fields{
		"session_id": r.sessionID,
		"muted":      r.muted,
	}).Debug("Media mute toggled")
	return r.muted, nil
}

// Connected reports room membership
func (r *RoomSession) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

// Muted reports the local publish flag
func (r *RoomSession) Muted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.muted
}
