package session

import (
	"testing"

	"callops-dashboard/internal/models"
)

func TestDecodeEvent_KnownTypes(t *testing.T) {
	tests := []struct {
		raw      string
		wantType string
	}{
		{`{"type":"call_started","session_id":"s1","customer_phone":"+15550001"}`, "call_started"},
		{`{"type":"stream_started"}`, "stream_started"},
		{`{"type":"stream_resumed"}`, "stream_resumed"},
		{`{"type":"returned_to_ai"}`, "returned_to_ai"},
		{`{"type":"stream_ended"}`, "stream_ended"},
		{`{"type":"call_ended"}`, "call_ended"},
		{`{"type":"call_ending"}`, "call_ending"},
		{`{"type":"human_connected"}`, "human_connected"},
		{`{"type":"human_unavailable"}`, "human_unavailable"},
		{`{"type":"escalation","status":"initiated","reason":"angry customer"}`, "escalation"},
		{`{"type":"human_status","status":"ringing"}`, "human_status"},
		{`{"type":"state_update","current_agent":"service"}`, "state_update"},
		{`{"type":"transcript","role":"user","content":"hello"}`, "transcript"},
		{`{"type":"notification","notification_id":"n1","message":"done"}`, "notification"},
		{`{"type":"latency","stt_ms":100,"llm_ms":200,"tts_ms":50,"total_ms":350}`, "latency"},
		{`{"type":"availability_update","slot_date":"2026-08-25","slot_time":"09:00","appointment_type":"service","is_available":true}`, "availability_update"},
		{`{"type":"booking_slot_update","slot_name":"date","slot_value":"2026-08-25"}`, "booking_slot_update"},
		{`{"type":"task_update","task":{"task_id":"t1"}}`, "task_update"},
		{`{"type":"end_call","farewell_message":"bye"}`, "end_call"},
	}

	for _, tt := range tests {
		ev, err := DecodeEvent([]byte(tt.raw))
		if err != nil {
			t.Errorf("DecodeEvent(%s) failed: %v", tt.raw, err)
			continue
		}
		if ev == nil {
			t.Errorf("DecodeEvent(%s) returned nil for a known type", tt.raw)
			continue
		}
		if ev.EventType() != tt.wantType {
			t.Errorf("DecodeEvent(%s) type = %s, want %s", tt.raw, ev.EventType(), tt.wantType)
		}
	}
}

func TestDecodeEvent_UnknownTypesAreSkipped(t *testing.T) {
	for _, raw := range []string{
		`{"type":"heartbeat"}`,
		`{"type":"pong"}`,
		`{"type":"audio_chunk","data":"AAAA"}`,
		`{"type":""}`,
	} {
		ev, err := DecodeEvent([]byte(raw))
		if err != nil {
			t.Errorf("Unknown frame %s must not error: %v", raw, err)
		}
		if ev != nil {
			t.Errorf("Unknown frame %s must decode to nil, got %T", raw, ev)
		}
	}
}

func TestDecodeEvent_MalformedFrame(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{not json`)); err == nil {
		t.Error("Malformed JSON must return an error")
	}
	if _, err := DecodeEvent([]byte(`{"type":"transcript","role":7}`)); err == nil {
		t.Error("A known type with a mistyped field must return an error")
	}
}

func TestStateUpdateEvent_HumanStatusField(t *testing.T) {
	tests := []struct {
		raw         string
		wantPresent bool
		wantStatus  *models.HumanAgentStatus
	}{
		{`{"type":"state_update"}`, false, nil},
		{`{"type":"state_update","human_agent_status":null}`, true, nil},
		{`{"type":"state_update","human_agent_status":"none"}`, true, nil},
		{`{"type":"state_update","human_agent_status":""}`, true, nil},
		{`{"type":"state_update","human_agent_status":"ringing"}`, true, statusPtr(models.HumanStatusRinging)},
	}

	for _, tt := range tests {
		ev, err := DecodeEvent([]byte(tt.raw))
		if err != nil {
			t.Fatalf("DecodeEvent(%s) failed: %v", tt.raw, err)
		}
		update, ok := ev.(StateUpdateEvent)
		if !ok {
			t.Fatalf("Expected StateUpdateEvent, got %T", ev)
		}

		status, present := update.humanStatusField()
		if present != tt.wantPresent {
			t.Errorf("%s: present = %v, want %v", tt.raw, present, tt.wantPresent)
		}
		if (status == nil) != (tt.wantStatus == nil) {
			t.Errorf("%s: status = %v, want %v", tt.raw, status, tt.wantStatus)
		} else if status != nil && *status != *tt.wantStatus {
			t.Errorf("%s: status = %s, want %s", tt.raw, *status, *tt.wantStatus)
		}
	}
}

func statusPtr(s models.HumanAgentStatus) *models.HumanAgentStatus {
	return &s
}
