package session

import (
	"testing"
	"time"

	"callops-dashboard/internal/models"
)

func TestReduce_CallLifecycle(t *testing.T) {
	now := time.Now()
	st := models.CallState{Status: models.CallStatusIdle}

	st, _ = Reduce(st, CallStartedEvent{SessionID: "sess-1", CustomerPhone: "+15550001"}, now)
	if st.Status != models.CallStatusConnecting {
		t.Fatalf("Expected status connecting after call_started, got %s", st.Status)
	}
	if st.SessionID != "sess-1" || st.CustomerPhone != "+15550001" {
		t.Errorf("Call identity not set: %s / %s", st.SessionID, st.CustomerPhone)
	}

	st, _ = Reduce(st, StreamStartedEvent{}, now)
	if st.Status != models.CallStatusAIConversation {
		t.Fatalf("Expected status ai_conversation after stream_started, got %s", st.Status)
	}

	st, _ = Reduce(st, TranscriptEvent{Role: models.RoleUser, Content: "I need an oil change"}, now)
	if st.Status != models.CallStatusProcessing {
		t.Errorf("Expected status processing after user transcript, got %s", st.Status)
	}

	st, _ = Reduce(st, TranscriptEvent{Role: models.RoleAssistant, Content: "Sure, when works for you?", AgentType: "service"}, now)
	if st.Status != models.CallStatusAIConversation {
		t.Errorf("Expected status ai_conversation after assistant transcript, got %s", st.Status)
	}
	if len(st.Transcript) != 2 {
		t.Fatalf("Expected 2 transcript entries, got %d", len(st.Transcript))
	}

	st, _ = Reduce(st, LatencyEvent{STTMs: 120, LLMMs: 250, TTSMs: 80, TotalMs: 450}, now)
	if st.Latency == nil || st.Latency.TotalMs != 450 {
		t.Fatal("Global latency snapshot not recorded")
	}
	if st.Transcript[1].Latency == nil {
		t.Fatal("Latency not attached to the last assistant entry")
	}
	if st.Transcript[1].Latency.TotalMs != 450 {
		t.Errorf("Expected total_ms 450 on assistant entry, got %v", st.Transcript[1].Latency.TotalMs)
	}
	if st.Transcript[0].Latency != nil {
		t.Error("Latency must not attach to a user entry")
	}

	st, _ = Reduce(st, StreamEndedEvent{}, now)
	if st.Status != models.CallStatusIdle {
		t.Errorf("Expected status idle after stream_ended, got %s", st.Status)
	}
	if len(st.Transcript) != 2 {
		t.Error("Transcript must be retained after stream_ended for post-call review")
	}
}

func TestReduce_CallStartedResetsEverything(t *testing.T) {
	now := time.Now()
	status := models.HumanStatusBusy
	st := models.CallState{
		SessionID:        "old",
		Status:           models.CallStatusInConference,
		HumanAgentStatus: &status,
		Transcript:       []models.TranscriptEntry{{Role: models.RoleUser, Content: "old line"}},
		BookingSlots:     map[string]interface{}{"date": "2026-08-20"},
		Notifications:    []models.Notification{{NotificationID: "n1"}},
		PendingTasks:     []models.PendingTask{{TaskID: "t1"}},
	}

	st, effects := Reduce(st, CallStartedEvent{SessionID: "new"}, now)
	if len(effects) != 0 {
		t.Errorf("call_started must not request effects, got %d", len(effects))
	}
	if st.SessionID != "new" {
		t.Errorf("Expected session new, got %s", st.SessionID)
	}
	if len(st.Transcript) != 0 || len(st.Notifications) != 0 || len(st.PendingTasks) != 0 {
		t.Error("Per-call collections must be dropped on call_started")
	}
	if st.HumanAgentStatus != nil || st.BookingSlots != nil {
		t.Error("Status and slots must be dropped on call_started")
	}
}

func TestReduce_EscalationFlow(t *testing.T) {
	now := time.Now()
	st := models.CallState{SessionID: "sess-1", Status: models.CallStatusAIConversation}

	st, _ = Reduce(st, EscalationEvent{Reason: "customer asked for a human"}, now)
	if st.Status != models.CallStatusEscalating {
		t.Fatalf("Expected status escalating, got %s", st.Status)
	}
	if !st.EscalationInProgress {
		t.Error("Escalation flag must be set")
	}
	if st.HumanAgentStatus == nil || *st.HumanAgentStatus != models.HumanStatusChecking {
		t.Error("Escalation without a status must default to checking")
	}

	st, effects := Reduce(st, HumanStatusEvent{Status: "ringing"}, now)
	if len(effects) != 0 {
		t.Errorf("Active status ringing must not arm a clear timer, got %d effects", len(effects))
	}
	if !st.EscalationInProgress {
		t.Error("Escalation must stay in progress while ringing")
	}

	st, _ = Reduce(st, HumanConnectedEvent{}, now)
	if st.Status != models.CallStatusInConference {
		t.Fatalf("Expected status in_conference, got %s", st.Status)
	}

	st, _ = Reduce(st, ReturnedToAIEvent{}, now)
	if st.Status != models.CallStatusAIConversation {
		t.Fatalf("Expected status ai_conversation after hand-back, got %s", st.Status)
	}
	if st.EscalationInProgress {
		t.Error("Escalation flag must clear on hand-back")
	}
	if st.HumanAgentStatus == nil || *st.HumanAgentStatus != models.HumanStatusReturnedToAI {
		t.Error("Hand-back must leave the returned_to_ai sentinel status")
	}
}

func TestReduce_TerminalStatusArmsClearTimer(t *testing.T) {
	now := time.Now()
	st := models.CallState{SessionID: "sess-1", EscalationInProgress: true}

	st, effects := Reduce(st, HumanStatusEvent{Status: "busy"}, now)
	if st.EscalationInProgress {
		t.Error("Terminal status must end the escalation")
	}
	if len(effects) != 1 {
		t.Fatalf("Expected 1 effect for terminal status, got %d", len(effects))
	}
	clear, ok := effects[0].(ClearHumanStatusEffect)
	if !ok {
		t.Fatalf("Expected ClearHumanStatusEffect, got %T", effects[0])
	}
	if clear.Status != models.HumanStatusBusy {
		t.Errorf("Expected captured status busy, got %s", clear.Status)
	}
	if !clear.At.Equal(now) {
		t.Error("Effect must carry the assignment stamp")
	}

	// The same terminal status again carries a fresh stamp
	later := now.Add(5 * time.Second)
	st, effects = Reduce(st, HumanStatusEvent{Status: "busy"}, later)
	if len(effects) != 1 {
		t.Fatalf("Expected a fresh effect on repeated terminal status, got %d", len(effects))
	}
	if !effects[0].(ClearHumanStatusEffect).At.Equal(later) {
		t.Error("Repeated terminal status must carry its own assignment stamp")
	}
	if !st.HumanStatusSetAt.Equal(later) {
		t.Error("State stamp must move on repeated assignment")
	}
}

func TestReduce_HumanUnavailableKeepsCallStatus(t *testing.T) {
	now := time.Now()
	st := models.CallState{Status: models.CallStatusEscalating}

	st, _ = Reduce(st, HumanUnavailableEvent{}, now)
	if st.Status != models.CallStatusEscalating {
		t.Errorf("human_unavailable must not change call status, got %s", st.Status)
	}
	if st.HumanAgentStatus == nil || *st.HumanAgentStatus != models.HumanStatusUnavailable {
		t.Error("human_unavailable must set the unavailable status")
	}
}

func TestReduce_StateUpdateMergesPartially(t *testing.T) {
	now := time.Now()
	st := models.CallState{
		SessionID:    "sess-1",
		CurrentAgent: "triage",
		Intent:       "book_service",
		Confidence:   0.8,
	}

	raw := []byte(`{"type":"state_update","current_agent":"service","confidence":1.7}`)
	ev, err := DecodeEvent(raw)
	if err != nil {
		t.Fatalf("Failed to decode state_update: %v", err)
	}

	st, _ = Reduce(st, ev, now)
	if st.CurrentAgent != "service" {
		t.Errorf("Expected current_agent service, got %s", st.CurrentAgent)
	}
	if st.Intent != "book_service" {
		t.Error("Absent intent must keep its prior value")
	}
	if st.Confidence != 1.0 {
		t.Errorf("Confidence must clamp to [0,1], got %v", st.Confidence)
	}

	// Applying the same update twice yields the same snapshot
	again, _ := Reduce(st, ev, now)
	if again.CurrentAgent != st.CurrentAgent || again.Confidence != st.Confidence || again.Intent != st.Intent {
		t.Error("state_update merge must be idempotent")
	}
}

func TestReduce_StateUpdateStatusSuppression(t *testing.T) {
	now := time.Now()
	status := models.HumanStatusRinging

	// Explicit null with no escalation force-clears the status
	st := models.CallState{HumanAgentStatus: &status}
	ev, err := DecodeEvent([]byte(`{"type":"state_update","human_agent_status":null,"escalation_in_progress":false}`))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	st, _ = Reduce(st, ev, now)
	if st.HumanAgentStatus != nil {
		t.Error("Explicit null without escalation must clear the status")
	}

	// Explicit "none" during an active escalation keeps the prior value
	st = models.CallState{HumanAgentStatus: &status, EscalationInProgress: true}
	ev, err = DecodeEvent([]byte(`{"type":"state_update","human_agent_status":"none","escalation_in_progress":true}`))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	st, _ = Reduce(st, ev, now)
	if st.HumanAgentStatus == nil || *st.HumanAgentStatus != models.HumanStatusRinging {
		t.Error("Explicit none during active escalation must keep the prior status")
	}

	// An absent field always keeps the prior value
	st = models.CallState{HumanAgentStatus: &status}
	ev, err = DecodeEvent([]byte(`{"type":"state_update","current_agent":"service"}`))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	st, _ = Reduce(st, ev, now)
	if st.HumanAgentStatus == nil {
		t.Error("Absent status field must keep the prior status")
	}
}

func TestReduce_BookingSlots(t *testing.T) {
	now := time.Now()
	st := models.CallState{SessionID: "sess-1"}

	st, _ = Reduce(st, BookingSlotUpdateEvent{SlotName: "date", SlotValue: "2026-08-24"}, now)
	if !st.BookingInProgress {
		t.Error("A slot update must mark booking in progress")
	}
	if st.BookingSlots["date"] != "2026-08-24" {
		t.Errorf("Slot not stored: %v", st.BookingSlots["date"])
	}

	// A null for a collected slot never regresses it
	st, _ = Reduce(st, BookingSlotUpdateEvent{SlotName: "date", SlotValue: nil, AllSlots: map[string]interface{}{
		"date": nil,
		"time": "10:30",
	}}, now)
	if st.BookingSlots["date"] != "2026-08-24" {
		t.Error("Collected slot value must not regress to null")
	}
	if st.BookingSlots["time"] != "10:30" {
		t.Error("New slot from all_slots not merged")
	}

	// A confirmed appointment ends the booking flow
	ev, err := DecodeEvent([]byte(`{"type":"state_update","confirmed_appointment":{"appointment_id":42}}`))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	st, _ = Reduce(st, ev, now)
	if st.BookingInProgress {
		t.Error("Confirmed appointment must end the booking flow")
	}
	if st.ConfirmedAppointment == nil {
		t.Error("Confirmed appointment not stored")
	}
}

func TestReduce_TaskUpsert(t *testing.T) {
	now := time.Now()
	st := models.CallState{}

	st, _ = Reduce(st, TaskUpdateEvent{Task: models.PendingTask{TaskID: "t1", Status: "running"}}, now)
	st, _ = Reduce(st, TaskUpdateEvent{Task: models.PendingTask{TaskID: "t2", Status: "running"}}, now)
	st, _ = Reduce(st, TaskUpdateEvent{Task: models.PendingTask{TaskID: "t1", Status: "done"}}, now)

	if len(st.PendingTasks) != 2 {
		t.Fatalf("Expected 2 tasks after upsert, got %d", len(st.PendingTasks))
	}
	if st.PendingTasks[0].TaskID != "t1" || st.PendingTasks[0].Status != "done" {
		t.Errorf("Task t1 not updated in place: %+v", st.PendingTasks[0])
	}
}

func TestReduce_NotificationAppendsTranscriptLine(t *testing.T) {
	now := time.Now()
	st := models.CallState{}

	st, effects := Reduce(st, NotificationEvent{NotificationID: "n1", Message: "Part is in stock"}, now)
	if len(st.Notifications) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(st.Notifications))
	}
	if len(st.Transcript) != 1 || !st.Transcript[0].IsNotification {
		t.Error("Notification must append a flagged transcript line")
	}
	if len(effects) != 1 {
		t.Fatalf("Expected a dismissal effect, got %d", len(effects))
	}
	if effects[0].(DismissNotificationEffect).NotificationID != "n1" {
		t.Error("Dismissal effect must carry the notification id")
	}
}

func TestReduce_AvailabilityPassThrough(t *testing.T) {
	now := time.Now()
	st := models.CallState{SessionID: "sess-1", UpdatedAt: now.Add(-time.Minute)}
	before := st.Clone()

	st, effects := Reduce(st, AvailabilityUpdateEvent{SlotDate: "2026-08-25", SlotTime: "09:00", AppointmentType: "service", IsAvailable: false}, now)
	if len(effects) != 1 {
		t.Fatalf("Expected 1 availability effect, got %d", len(effects))
	}
	eff, ok := effects[0].(AvailabilityEffect)
	if !ok {
		t.Fatalf("Expected AvailabilityEffect, got %T", effects[0])
	}
	if eff.Update.SlotTime != "09:00" || eff.Update.IsAvailable {
		t.Errorf("Availability payload mangled: %+v", eff.Update)
	}
	if !st.UpdatedAt.Equal(before.UpdatedAt) {
		t.Error("availability_update must leave the snapshot untouched")
	}
}

func TestReduce_EndCallAppendsFarewellAndTearsDown(t *testing.T) {
	now := time.Now()
	st := models.CallState{SessionID: "sess-1"}

	st, effects := Reduce(st, EndCallEvent{FarewellMessage: "Thanks for calling, goodbye"}, now)
	if len(st.Transcript) != 1 || !st.Transcript[0].IsSystemMessage {
		t.Error("Farewell must land in the transcript as a system message")
	}
	if st.Transcript[0].Role != models.RoleAssistant {
		t.Error("Farewell line must read as assistant speech")
	}
	if len(effects) != 1 {
		t.Fatalf("Expected a teardown effect, got %d", len(effects))
	}
	if effects[0].(TeardownEffect).SessionID != "sess-1" {
		t.Error("Teardown must carry the session id")
	}
}

func TestReduce_StreamResumedClearsEscalation(t *testing.T) {
	now := time.Now()
	status := models.HumanStatusConnected
	st := models.CallState{
		Status:               models.CallStatusInConference,
		EscalationInProgress: true,
		HumanAgentStatus:     &status,
	}

	st, _ = Reduce(st, StreamStartedEvent{Resumed: true}, now)
	if st.Status != models.CallStatusAIConversation {
		t.Errorf("Expected ai_conversation after resume, got %s", st.Status)
	}
	if st.EscalationInProgress || st.HumanAgentStatus != nil {
		t.Error("Resume must clear escalation state")
	}
}

func TestReduce_InputSnapshotNotMutated(t *testing.T) {
	now := time.Now()
	st := models.CallState{
		SessionID:  "sess-1",
		Transcript: []models.TranscriptEntry{{Role: models.RoleUser, Content: "hello"}},
	}

	next, _ := Reduce(st, TranscriptEvent{Role: models.RoleAssistant, Content: "hi"}, now)
	if len(st.Transcript) != 1 {
		t.Fatalf("Input snapshot mutated: %d entries", len(st.Transcript))
	}
	if len(next.Transcript) != 2 {
		t.Fatalf("Expected 2 entries in output, got %d", len(next.Transcript))
	}
}
