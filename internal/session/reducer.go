package session

import (
	"time"

	"callops-dashboard/internal/models"
)

// Effect is a deferred or out-of-state action requested by the reducer.
// Timers are armed by the Store, which owns the delays and the guard
// re-validation; the reducer itself stays a pure transition function.
type Effect interface {
	effectType() string
}

// ClearHumanStatusEffect requests a delayed clear of the human agent status,
// guarded on the status still being the captured terminal value at fire time.
// At is the assignment stamp: a repeated identical terminal status re-arms a
// fresh timer and turns this one into a no-op.
type ClearHumanStatusEffect struct {
	Status models.HumanAgentStatus
	At     time.Time
}

func (ClearHumanStatusEffect) effectType() string { return "clear_human_status" }

// DismissNotificationEffect requests the delayed removal of one notification
type DismissNotificationEffect struct {
	NotificationID string
}

func (DismissNotificationEffect) effectType() string { return "dismiss_notification" }

// TeardownEffect requests the delayed post-farewell teardown of the call
type TeardownEffect struct {
	SessionID string
}

func (TeardownEffect) effectType() string { return "teardown" }

// AvailabilityEffect forwards a slot availability change to its consumer
type AvailabilityEffect struct {
	Update models.AvailabilityUpdate
}

func (AvailabilityEffect) effectType() string { return "availability" }

// Reduce applies one decoded event to a call snapshot and returns the next
// snapshot plus any requested effects. The input snapshot is never mutated.
func Reduce(st models.CallState, ev Event, now time.Time) (models.CallState, []Effect) {
	next := st.Clone()
	var effects []Effect

	switch e := ev.(type) {
	case CallStartedEvent:
		// Full reset before populating the new call's identity. Everything
		// per-call is dropped, including retained transcript from the
		// previous call.
		next = models.CallState{
			SessionID:     e.SessionID,
			CustomerPhone: e.CustomerPhone,
			Status:        models.CallStatusConnecting,
			Transcript:    []models.TranscriptEntry{},
			Notifications: []models.Notification{},
			PendingTasks:  []models.PendingTask{},
		}

	case StreamStartedEvent:
		next.Status = models.CallStatusAIConversation
		if e.Resumed {
			next.EscalationInProgress = false
			next.HumanAgentStatus = nil
		}

	case ReturnedToAIEvent:
		next.Status = models.CallStatusAIConversation
		status := models.HumanStatusReturnedToAI
		next.HumanAgentStatus = &status
		next.HumanStatusSetAt = now
		next.EscalationInProgress = false

	case StreamEndedEvent:
		// Transcript and customer data are retained for post-call review
		next.Status = models.CallStatusIdle
		next.EscalationInProgress = false
		next.HumanAgentStatus = nil

	case CallEndingEvent:
		next.Status = models.CallStatusEnded

	case HumanConnectedEvent:
		next.Status = models.CallStatusInConference
		status := models.HumanStatusConnected
		next.HumanAgentStatus = &status
		next.HumanStatusSetAt = now

	case HumanUnavailableEvent:
		// CallStatus is untouched; a returned_to_ai frame follows
		status := models.HumanStatusUnavailable
		next.HumanAgentStatus = &status
		next.HumanStatusSetAt = now

	case EscalationEvent:
		next.Status = models.CallStatusEscalating
		next.EscalationInProgress = true
		status := models.HumanStatusChecking
		if e.Status != "" {
			status = models.HumanAgentStatus(e.Status)
		}
		next.HumanAgentStatus = &status
		next.HumanStatusSetAt = now

	case HumanStatusEvent:
		status := models.HumanAgentStatus(e.Status)
		next.HumanAgentStatus = &status
		next.HumanStatusSetAt = now
		next.EscalationInProgress = status.Active()
		if status.Terminal() {
			effects = append(effects, ClearHumanStatusEffect{Status: status, At: now})
		}

	case StateUpdateEvent:
		next = reduceStateUpdate(next, e, now)

	case TranscriptEvent:
		next.Transcript = append(next.Transcript, models.TranscriptEntry{
			Role:      e.Role,
			Content:   e.Content,
			Timestamp: now,
			AgentType: e.AgentType,
		})
		switch e.Role {
		case models.RoleUser:
			next.Status = models.CallStatusProcessing
		case models.RoleAssistant:
			next.Status = models.CallStatusAIConversation
		}

	case NotificationEvent:
		notification := models.Notification{
			NotificationID: e.NotificationID,
			TaskID:         e.TaskID,
			Message:        e.Message,
			Priority:       e.Priority,
			ReceivedAt:     now,
		}
		next.Notifications = append(next.Notifications, notification)
		next.Transcript = append(next.Transcript, models.TranscriptEntry{
			Role:           models.RoleAssistant,
			Content:        e.Message,
			Timestamp:      now,
			IsNotification: true,
		})
		effects = append(effects, DismissNotificationEffect{NotificationID: e.NotificationID})

	case LatencyEvent:
		report := e.Report()
		next.Latency = &report
		attachLatency(next.Transcript, report)

	case AvailabilityUpdateEvent:
		// Stateless pass-through; the snapshot is not touched
		effects = append(effects, AvailabilityEffect{Update: models.AvailabilityUpdate{
			SlotDate:        e.SlotDate,
			SlotTime:        e.SlotTime,
			AppointmentType: e.AppointmentType,
			InventoryID:     e.InventoryID,
			IsAvailable:     e.IsAvailable,
			ReceivedAt:      now,
		}})
		return st, effects

	case BookingSlotUpdateEvent:
		if next.BookingSlots == nil {
			next.BookingSlots = make(map[string]interface{})
		}
		if e.SlotName != "" {
			mergeSlot(next.BookingSlots, e.SlotName, e.SlotValue)
		}
		for name, value := range e.AllSlots {
			mergeSlot(next.BookingSlots, name, value)
		}
		next.BookingInProgress = true

	case TaskUpdateEvent:
		next.PendingTasks = upsertTask(next.PendingTasks, e.Task)

	case EndCallEvent:
		next.Transcript = append(next.Transcript, models.TranscriptEntry{
			Role:            models.RoleAssistant,
			Content:         e.FarewellMessage,
			Timestamp:       now,
			IsSystemMessage: true,
		})
		effects = append(effects, TeardownEffect{SessionID: next.SessionID})

	default:
		return st, nil
	}

	next.UpdatedAt = now
	return next, effects
}

// reduceStateUpdate merges a partial engine snapshot field by field; fields
// absent from the payload keep their prior values
func reduceStateUpdate(next models.CallState, e StateUpdateEvent, now time.Time) models.CallState {
	if e.CurrentAgent != nil {
		next.CurrentAgent = *e.CurrentAgent
	}
	if e.Intent != nil {
		next.Intent = *e.Intent
		if models.IsBookingIntent(*e.Intent) {
			next.BookingInProgress = true
		}
	}
	if e.Confidence != nil {
		next.Confidence = clamp01(*e.Confidence)
	}
	if e.EscalationInProgress != nil {
		next.EscalationInProgress = *e.EscalationInProgress
	}

	if status, present := e.humanStatusField(); present {
		if status != nil {
			next.HumanAgentStatus = status
			next.HumanStatusSetAt = now
		} else if !next.EscalationInProgress {
			// Suppression rule: an explicit null/"none" with no escalation in
			// progress force-clears the status. An explicit null during an
			// active escalation keeps the prior value; the asymmetry is
			// intentional and must not be generalized.
			next.HumanAgentStatus = nil
		}
	}

	if e.Customer != nil {
		customer := *e.Customer
		next.Customer = &customer
	}

	if e.BookingSlots != nil {
		if next.BookingSlots == nil {
			next.BookingSlots = make(map[string]interface{})
		}
		for name, value := range e.BookingSlots {
			mergeSlot(next.BookingSlots, name, value)
		}
		for _, value := range next.BookingSlots {
			if value != nil {
				next.BookingInProgress = true
				break
			}
		}
	}

	if e.ConfirmedAppointment != nil {
		appointment := make(map[string]interface{}, len(e.ConfirmedAppointment))
		for k, v := range e.ConfirmedAppointment {
			appointment[k] = v
		}
		next.ConfirmedAppointment = appointment
		// Booking is complete once an appointment is confirmed
		next.BookingInProgress = false
	}

	if e.PendingTasks != nil {
		tasks := make([]models.PendingTask, len(*e.PendingTasks))
		copy(tasks, *e.PendingTasks)
		next.PendingTasks = tasks
	}

	return next
}

// mergeSlot overwrites a slot value, but never regresses a collected value
// back to null; slots only reset on call_started
func mergeSlot(slots map[string]interface{}, name string, value interface{}) {
	if value == nil {
		if _, exists := slots[name]; !exists {
			slots[name] = nil
		}
		return
	}
	slots[name] = value
}

// upsertTask replaces a pending task by task_id, appending when new
func upsertTask(tasks []models.PendingTask, task models.PendingTask) []models.PendingTask {
	for i := range tasks {
		if tasks[i].TaskID == task.TaskID {
			tasks[i] = task
			return tasks
		}
	}
	return append(tasks, task)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
