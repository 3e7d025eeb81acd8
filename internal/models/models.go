package models

import (
	"time"
)

// CallStatus represents the single active status of a watched call
type CallStatus string

const (
	CallStatusIdle           CallStatus = "idle"
	CallStatusConnecting     CallStatus = "connecting"
	CallStatusAIConversation CallStatus = "ai_conversation"
	CallStatusProcessing     CallStatus = "processing"
	CallStatusEscalating     CallStatus = "escalating"
	CallStatusInConference   CallStatus = "in_conference"
	CallStatusEnded          CallStatus = "ended"
)

// HumanAgentStatus represents the human escalation status of a call
type HumanAgentStatus string

const (
	HumanStatusChecking            HumanAgentStatus = "checking"
	HumanStatusInitiated           HumanAgentStatus = "initiated"
	HumanStatusCalling             HumanAgentStatus = "calling"
	HumanStatusRinging             HumanAgentStatus = "ringing"
	HumanStatusWaitingConfirmation HumanAgentStatus = "waiting_confirmation"
	HumanStatusConfirmed           HumanAgentStatus = "confirmed"
	HumanStatusConnected           HumanAgentStatus = "connected"
	HumanStatusNoAnswer            HumanAgentStatus = "no-answer"
	HumanStatusBusy                HumanAgentStatus = "busy"
	HumanStatusFailed              HumanAgentStatus = "failed"
	HumanStatusCanceled            HumanAgentStatus = "canceled"
	HumanStatusDeclined            HumanAgentStatus = "declined"
	HumanStatusVoicemail           HumanAgentStatus = "voicemail"
	HumanStatusUnavailable         HumanAgentStatus = "unavailable"
	HumanStatusReturnedToAI        HumanAgentStatus = "returned_to_ai"
)

// Active reports whether the status means an escalation is still in progress
func (s HumanAgentStatus) Active() bool {
	switch s {
	case HumanStatusInitiated, HumanStatusCalling, HumanStatusRinging,
		HumanStatusWaitingConfirmation, HumanStatusConfirmed, HumanStatusConnected:
		return true
	}
	return false
}

// Terminal reports whether the status is final and eligible for timed clearing
func (s HumanAgentStatus) Terminal() bool {
	switch s {
	case HumanStatusNoAnswer, HumanStatusBusy, HumanStatusFailed,
		HumanStatusCanceled, HumanStatusReturnedToAI, HumanStatusDeclined,
		HumanStatusVoicemail:
		return true
	}
	return false
}

// MessageRole represents the speaker of a transcript entry
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Intent values that indicate a booking flow is underway
const (
	IntentBookService   = "book_service"
	IntentBookTestDrive = "book_test_drive"
	IntentReschedule    = "reschedule"
)

// IsBookingIntent reports whether the intent collects booking slots
func IsBookingIntent(intent string) bool {
	return intent == IntentBookService || intent == IntentBookTestDrive || intent == IntentReschedule
}

// LatencyReport represents end-to-end timing for one assistant turn
type LatencyReport struct {
	STTMs           float64  `json:"stt_ms"`
	LLMMs           float64  `json:"llm_ms"`
	TTSMs           float64  `json:"tts_ms"`
	TotalMs         float64  `json:"total_ms"`
	AudioDurationMs *float64 `json:"audio_duration_ms,omitempty"`
}

// TranscriptEntry represents one line of the call transcript.
// Entries are append-only; the only permitted mutation after append is
// attaching a LatencyReport once.
type TranscriptEntry struct {
	Role            MessageRole    `json:"role"`
	Content         string         `json:"content"`
	Timestamp       time.Time      `json:"timestamp"`
	AgentType       string         `json:"agent_type,omitempty"`
	Latency         *LatencyReport `json:"latency,omitempty"`
	IsNotification  bool           `json:"is_notification"`
	IsSystemMessage bool           `json:"is_system_message"`
}

// Customer represents the identified caller, replaced wholesale on each update
type Customer struct {
	CustomerID *int                     `json:"customer_id,omitempty"`
	Name       string                   `json:"name,omitempty"`
	Phone      string                   `json:"phone,omitempty"`
	Email      string                   `json:"email,omitempty"`
	Vehicles   []map[string]interface{} `json:"vehicles,omitempty"`
}

// Notification represents an ephemeral dashboard notification with a fixed TTL
type Notification struct {
	NotificationID string    `json:"notification_id"`
	TaskID         string    `json:"task_id,omitempty"`
	Message        string    `json:"message,omitempty"`
	Priority       string    `json:"priority,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
}

// PendingTask represents a background task on the engine, upserted by task_id
type PendingTask struct {
	TaskID   string                 `json:"task_id"`
	TaskType string                 `json:"task_type,omitempty"`
	Status   string                 `json:"status,omitempty"`
	Result   map[string]interface{} `json:"result,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// AvailabilityUpdate is a stateless pass-through of slot availability changes
type AvailabilityUpdate struct {
	SlotDate        string    `json:"slot_date"`
	SlotTime        string    `json:"slot_time"`
	AppointmentType string    `json:"appointment_type"`
	InventoryID     *int      `json:"inventory_id,omitempty"`
	IsAvailable     bool      `json:"is_available"`
	ReceivedAt      time.Time `json:"received_at"`
}

// CallState is the full reconstructed snapshot of one phone call
type CallState struct {
	SessionID     string     `json:"session_id"`
	CustomerPhone string     `json:"customer_phone,omitempty"`
	Status        CallStatus `json:"status"`

	CurrentAgent         string            `json:"current_agent,omitempty"`
	Intent               string            `json:"intent,omitempty"`
	Confidence           float64           `json:"confidence"`
	EscalationInProgress bool              `json:"escalation_in_progress"`
	HumanAgentStatus     *HumanAgentStatus `json:"human_agent_status,omitempty"`
	// HumanStatusSetAt stamps each status assignment so a repeated identical
	// terminal status re-arms its clear timer instead of inheriting the old one
	HumanStatusSetAt time.Time `json:"-"`

	Transcript []TranscriptEntry `json:"transcript"`

	BookingSlots         map[string]interface{} `json:"booking_slots,omitempty"`
	BookingInProgress    bool                   `json:"booking_in_progress"`
	ConfirmedAppointment map[string]interface{} `json:"confirmed_appointment,omitempty"`

	Customer      *Customer      `json:"customer,omitempty"`
	Notifications []Notification `json:"notifications"`
	PendingTasks  []PendingTask  `json:"pending_tasks"`

	Latency   *LatencyReport `json:"latency,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a deep copy so snapshots handed out stay immutable
func (s CallState) Clone() CallState {
	next := s

	if s.Transcript != nil {
		next.Transcript = make([]TranscriptEntry, len(s.Transcript))
		copy(next.Transcript, s.Transcript)
		for i, e := range s.Transcript {
			if e.Latency != nil {
				lat := *e.Latency
				next.Transcript[i].Latency = &lat
			}
		}
	}
	if s.BookingSlots != nil {
		next.BookingSlots = make(map[string]interface{}, len(s.BookingSlots))
		for k, v := range s.BookingSlots {
			next.BookingSlots[k] = v
		}
	}
	if s.ConfirmedAppointment != nil {
		next.ConfirmedAppointment = make(map[string]interface{}, len(s.ConfirmedAppointment))
		for k, v := range s.ConfirmedAppointment {
			next.ConfirmedAppointment[k] = v
		}
	}
	if s.Customer != nil {
		customer := *s.Customer
		next.Customer = &customer
	}
	if s.HumanAgentStatus != nil {
		status := *s.HumanAgentStatus
		next.HumanAgentStatus = &status
	}
	if s.Notifications != nil {
		next.Notifications = make([]Notification, len(s.Notifications))
		copy(next.Notifications, s.Notifications)
	}
	if s.PendingTasks != nil {
		next.PendingTasks = make([]PendingTask, len(s.PendingTasks))
		copy(next.PendingTasks, s.PendingTasks)
	}
	if s.Latency != nil {
		lat := *s.Latency
		next.Latency = &lat
	}

	return next
}

// LogEntry represents one entry in a watched call's activity log
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// WatchedCall represents one call the dashboard is following
type WatchedCall struct {
	SessionID     string     `json:"session_id"`
	CustomerPhone string     `json:"customer_phone,omitempty"`
	Endpoint      string     `json:"endpoint"`
	CreatedAt     time.Time  `json:"created_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	ErrorMsg      *string    `json:"error_message,omitempty"`
	State         CallState  `json:"state"`
	Log           []LogEntry `json:"log"`
}

// DashboardMessage represents a message pushed to dashboard browsers
type DashboardMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// UsageStats represents gateway usage statistics
type UsageStats struct {
	WatchedCalls  int     `json:"watched_calls"`
	ActiveCalls   int     `json:"active_calls"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}
