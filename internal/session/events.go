package session

import (
	"bytes"
	"encoding/json"
	"fmt"

	"callops-dashboard/internal/models"
)

// Event is one decoded frame from the conversation engine's push stream
type Event interface {
	EventType() string
}

// CallStartedEvent announces a new inbound call; it fully resets call state
type CallStartedEvent struct {
	SessionID     string `json:"session_id"`
	CustomerPhone string `json:"customer_phone"`
}

func (CallStartedEvent) EventType() string { return "call_started" }

// StreamStartedEvent marks the audio stream as live. Resumed is set when the
// engine re-established the stream after a human hand-back.
type StreamStartedEvent struct {
	Resumed bool `json:"-"`
}

func (e StreamStartedEvent) EventType() string {
	if e.Resumed {
		return "stream_resumed"
	}
	return "stream_started"
}

// ReturnedToAIEvent signals the human agent handed the call back to the AI
type ReturnedToAIEvent struct{}

func (ReturnedToAIEvent) EventType() string { return "returned_to_ai" }

// StreamEndedEvent marks the call as over. CallEnded distinguishes the
// engine's call_ended frame from stream_ended; both reduce identically.
type StreamEndedEvent struct {
	CallEnded bool `json:"-"`
}

func (e StreamEndedEvent) EventType() string {
	if e.CallEnded {
		return "call_ended"
	}
	return "stream_ended"
}

// CallEndingEvent marks the farewell-in-progress display state
type CallEndingEvent struct{}

func (CallEndingEvent) EventType() string { return "call_ending" }

// HumanConnectedEvent signals a human agent joined the conference
type HumanConnectedEvent struct{}

func (HumanConnectedEvent) EventType() string { return "human_connected" }

// HumanUnavailableEvent signals no human agent could be reached.
// A returned_to_ai frame is expected to follow, so CallStatus is untouched.
type HumanUnavailableEvent struct{}

func (HumanUnavailableEvent) EventType() string { return "human_unavailable" }

// EscalationEvent signals a human hand-off has started
type EscalationEvent struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (EscalationEvent) EventType() string { return "escalation" }

// HumanStatusEvent carries progress of the outbound call to the human agent
type HumanStatusEvent struct {
	Status string `json:"status"`
}

func (HumanStatusEvent) EventType() string { return "human_status" }

// StateUpdateEvent is the engine's authoritative partial snapshot. Pointer
// fields distinguish absent (keep prior value) from present. The human agent
// status keeps its raw JSON because the suppression rule in the reducer needs
// to tell an explicit null apart from an absent field.
type StateUpdateEvent struct {
	SessionID            string                 `json:"session_id"`
	CurrentAgent         *string                `json:"current_agent"`
	Intent               *string                `json:"intent"`
	Confidence           *float64               `json:"confidence"`
	EscalationInProgress *bool                  `json:"escalation_in_progress"`
	HumanAgentStatus     json.RawMessage        `json:"human_agent_status"`
	Customer             *models.Customer       `json:"customer"`
	BookingSlots         map[string]interface{} `json:"booking_slots"`
	ConfirmedAppointment map[string]interface{} `json:"confirmed_appointment"`
	PendingTasks         *[]models.PendingTask  `json:"pending_tasks"`
}

func (StateUpdateEvent) EventType() string { return "state_update" }

// humanStatusField interprets the raw human_agent_status value of a
// state_update. It returns the parsed status (nil for JSON null or the
// literal "none") and whether the field was present at all.
func (e StateUpdateEvent) humanStatusField() (status *models.HumanAgentStatus, present bool) {
	if len(e.HumanAgentStatus) == 0 {
		return nil, false
	}
	if bytes.Equal(bytes.TrimSpace(e.HumanAgentStatus), []byte("null")) {
		return nil, true
	}
	var s string
	if err := json.Unmarshal(e.HumanAgentStatus, &s); err != nil || s == "" || s == "none" {
		return nil, true
	}
	parsed := models.HumanAgentStatus(s)
	return &parsed, true
}

// TranscriptEvent carries one spoken line. The wire has no server timestamp;
// the reducer stamps it with the client receipt time.
type TranscriptEvent struct {
	Role      models.MessageRole `json:"role"`
	Content   string             `json:"content"`
	AgentType string             `json:"agent_type,omitempty"`
}

func (TranscriptEvent) EventType() string { return "transcript" }

// NotificationEvent carries a background-task notification
type NotificationEvent struct {
	NotificationID string `json:"notification_id"`
	TaskID         string `json:"task_id,omitempty"`
	Message        string `json:"message,omitempty"`
	Priority       string `json:"priority,omitempty"`
}

func (NotificationEvent) EventType() string { return "notification" }

// LatencyEvent carries turn timing to correlate with the transcript
type LatencyEvent struct {
	STTMs           float64  `json:"stt_ms"`
	LLMMs           float64  `json:"llm_ms"`
	TTSMs           float64  `json:"tts_ms"`
	TotalMs         float64  `json:"total_ms"`
	AudioDurationMs *float64 `json:"audio_duration_ms,omitempty"`
}

func (LatencyEvent) EventType() string { return "latency" }

// Report converts the event into the stored latency record
func (e LatencyEvent) Report() models.LatencyReport {
	return models.LatencyReport{
		STTMs:           e.STTMs,
		LLMMs:           e.LLMMs,
		TTSMs:           e.TTSMs,
		TotalMs:         e.TotalMs,
		AudioDurationMs: e.AudioDurationMs,
	}
}

// AvailabilityUpdateEvent is forwarded to dashboards, never stored
type AvailabilityUpdateEvent struct {
	SlotDate        string `json:"slot_date"`
	SlotTime        string `json:"slot_time"`
	AppointmentType string `json:"appointment_type"`
	InventoryID     *int   `json:"inventory_id,omitempty"`
	IsAvailable     bool   `json:"is_available"`
}

func (AvailabilityUpdateEvent) EventType() string { return "availability_update" }

// BookingSlotUpdateEvent carries a single collected slot, optionally with the
// engine's full slot map for reconciliation
type BookingSlotUpdateEvent struct {
	SlotName  string                 `json:"slot_name"`
	SlotValue interface{}            `json:"slot_value"`
	AllSlots  map[string]interface{} `json:"all_slots,omitempty"`
}

func (BookingSlotUpdateEvent) EventType() string { return "booking_slot_update" }

// TaskUpdateEvent upserts one background task
type TaskUpdateEvent struct {
	Task models.PendingTask `json:"task"`
}

func (TaskUpdateEvent) EventType() string { return "task_update" }

// EndCallEvent tells the dashboard to speak the farewell and tear down
type EndCallEvent struct {
	FarewellMessage string `json:"farewell_message"`
}

func (EndCallEvent) EventType() string { return "end_call" }

// DecodeEvent parses one raw frame into its typed event. Frames the core does
// not consume (heartbeats, pongs, voice-worker signals) decode to nil with no
// error so the caller can skip them silently.
func DecodeEvent(raw []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse frame envelope: %w", err)
	}

	switch envelope.Type {
	case "call_started":
		var ev CallStartedEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s frame: %w", envelope.Type, err)
		}
		return ev, nil
	case "stream_started":
		return StreamStartedEvent{}, nil
	case "stream_resumed":
		return StreamStartedEvent{Resumed: true}, nil
	case "returned_to_ai":
		return ReturnedToAIEvent{}, nil
	case "stream_ended":
		return StreamEndedEvent{}, nil
	case "call_ended":
		return StreamEndedEvent{CallEnded: true}, nil
	case "call_ending":
		return CallEndingEvent{}, nil
	case "human_connected":
		return HumanConnectedEvent{}, nil
	case "human_unavailable":
		return HumanUnavailableEvent{}, nil
	case "escalation":
		var ev EscalationEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s frame: %w", envelope.Type, err)
		}
		return ev, nil
	case "human_status":
		var ev HumanStatusEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s frame: %w", envelope.Type, err)
		}
		return ev, nil
	case "state_update":
		var ev StateUpdateEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s frame: %w", envelope.Type, err)
		}
		return ev, nil
	case "transcript":
		var ev TranscriptEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s frame: %w", envelope.Type, err)
		}
		return ev, nil
	case "notification":
		var ev NotificationEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s frame: %w", envelope.Type, err)
		}
		return ev, nil
	case "latency":
		var ev LatencyEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s frame: %w", envelope.Type, err)
		}
		return ev, nil
	case "availability_update":
		var ev AvailabilityUpdateEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s frame: %w", envelope.Type, err)
		}
		return ev, nil
	case "booking_slot_update":
		var ev BookingSlotUpdateEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s frame: %w", envelope.Type, err)
		}
		return ev, nil
	case "task_update":
		var ev TaskUpdateEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s frame: %w", envelope.Type, err)
		}
		return ev, nil
	case "end_call":
		var ev EndCallEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s frame: %w", envelope.Type, err)
		}
		return ev, nil
	default:
		// Heartbeats, pongs and voice-worker-only signals are not call state
		return nil, nil
	}
}
