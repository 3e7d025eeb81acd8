package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"callops-dashboard/internal/models"
	"callops-dashboard/internal/observability"
)

// Delays for the timer-driven evictions. Tests shorten them through the
// matching Store fields; production code leaves the defaults alone.
const (
	DefaultStatusClearDelay = 10 * time.Second
	DefaultNotificationTTL  = 10 * time.Second
	DefaultTeardownDelay    = 10 * time.Second
)

// Store owns the live snapshot of one watched call. Frames are applied one at
// a time; eviction timers run concurrently but re-validate against current
// state under the store lock before mutating (see Scheduler).
type Store struct {
	mu    sync.Mutex
	state models.CallState
	sched *Scheduler

	StatusClearDelay time.Duration
	NotificationTTL  time.Duration
	TeardownDelay    time.Duration

	// Behavior is mutable in place and never affects the stream connection
	onChange       func(eventType string, snapshot models.CallState)
	onAvailability func(update models.AvailabilityUpdate)
	onTeardown     func(sessionID string)
}

// NewStore creates a store with an idle snapshot and default eviction delays
func NewStore() *Store {
	s := &Store{
		state: models.CallState{
			Status:        models.CallStatusIdle,
			Transcript:    []models.TranscriptEntry{},
			Notifications: []models.Notification{},
			PendingTasks:  []models.PendingTask{},
		},
		StatusClearDelay: DefaultStatusClearDelay,
		NotificationTTL:  DefaultNotificationTTL,
		TeardownDelay:    DefaultTeardownDelay,
	}
	s.sched = NewScheduler(&s.mu)
	return s
}

// SetChangeCallback sets the callback invoked with a fresh snapshot after
// every applied event, keyed by the originating event type
func (s *Store) SetChangeCallback(callback func(eventType string, snapshot models.CallState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = callback
}

// SetAvailabilityCallback sets the consumer for availability pass-throughs
func (s *Store) SetAvailabilityCallback(callback func(update models.AvailabilityUpdate)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAvailability = callback
}

// SetTeardownCallback sets the hook run after the post-farewell delay; the
// store has already cleared its per-call state when it fires
func (s *Store) SetTeardownCallback(callback func(sessionID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTeardown = callback
}

// Snapshot returns a deep copy of the current call state
func (s *Store) Snapshot() models.CallState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Apply decodes one raw frame and runs it through the reducer. Frames that
// fail to parse are dropped with an error; frames the core does not consume
// are dropped silently. Neither ever blocks subsequent frames.
func (s *Store) Apply(raw []byte) error {
	event, err := DecodeEvent(raw)
	if err != nil {
		observability.RecordFrameDropped()
		return err
	}
	if event == nil {
		return nil
	}

	observability.RecordFrame(event.EventType())

	s.mu.Lock()
	next, effects := Reduce(s.state, event, time.Now())
	s.state = next
	snapshot := next.Clone()
	onChange := s.onChange
	onAvailability := s.onAvailability
	s.mu.Unlock()

	for _, effect := range effects {
		s.runEffect(effect, onAvailability)
	}

	if onChange != nil {
		onChange(event.EventType(), snapshot)
	}
	return nil
}

// runEffect arms the eviction timers and fires pass-throughs for one effect
func (s *Store) runEffect(effect Effect, onAvailability func(models.AvailabilityUpdate)) {
	switch e := effect.(type) {
	case ClearHumanStatusEffect:
		// Capture the terminal value and its assignment stamp; any newer
		// assignment, even of the same value, invalidates this timer
		expected, expectedAt := e.Status, e.At
		s.sched.Schedule(s.StatusClearDelay,
			func() bool {
				still := s.state.HumanAgentStatus != nil &&
					*s.state.HumanAgentStatus == expected &&
					s.state.HumanStatusSetAt.Equal(expectedAt)
				if !still {
					observability.RecordEviction("human_status", false)
				}
				return still
			},
			func() {
				s.state.HumanAgentStatus = nil
				observability.RecordEviction("human_status", true)
				s.notifyLocked("human_status_cleared")
			})

	case DismissNotificationEffect:
		id := e.NotificationID
		s.sched.Schedule(s.NotificationTTL,
			func() bool {
				still := containsNotification(s.state.Notifications, id)
				if !still {
					observability.RecordEviction("notification", false)
				}
				return still
			},
			func() {
				s.state.Notifications = removeNotification(s.state.Notifications, id)
				observability.RecordEviction("notification", true)
				s.notifyLocked("notification_expired")
			})

	case TeardownEffect:
		sessionID := e.SessionID
		s.sched.Schedule(s.TeardownDelay,
			func() bool {
				still := s.state.SessionID == sessionID && sessionID != ""
				if !still {
					observability.RecordEviction("teardown", false)
				}
				return still
			},
			func() {
				logrus.WithField("session_id", sessionID).Info("Tearing down call after farewell")
				s.state = models.CallState{
					Status:        models.CallStatusIdle,
					Transcript:    []models.TranscriptEntry{},
					Notifications: []models.Notification{},
					PendingTasks:  []models.PendingTask{},
					UpdatedAt:     time.Now(),
				}
				observability.RecordEviction("teardown", true)
				s.notifyLocked("call_teardown")
				if s.onTeardown != nil {
					go s.onTeardown(sessionID)
				}
			})

	case AvailabilityEffect:
		if onAvailability != nil {
			onAvailability(e.Update)
		}
	}
}

// notifyLocked pushes a snapshot to the change callback from a timer apply,
// which already holds the store lock. The callback runs on its own goroutine
// so hub fan-out can never deadlock against frame processing.
func (s *Store) notifyLocked(eventType string) {
	if s.onChange == nil {
		return
	}
	snapshot := s.state.Clone()
	onChange := s.onChange
	go onChange(eventType, snapshot)
}

// PendingTimers returns the number of armed eviction timers
func (s *Store) PendingTimers() int {
	return s.sched.Pending()
}

// Close cancels every pending eviction timer
func (s *Store) Close() {
	s.sched.Stop()
}

func containsNotification(notifications []models.Notification, id string) bool {
	for i := range notifications {
		if notifications[i].NotificationID == id {
			return true
		}
	}
	return false
}

func removeNotification(notifications []models.Notification, id string) []models.Notification {
	kept := notifications[:0]
	for _, n := range notifications {
		if n.NotificationID != id {
			kept = append(kept, n)
		}
	}
	return kept
}
