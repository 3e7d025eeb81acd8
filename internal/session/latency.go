package session

import (
	"callops-dashboard/internal/models"
)

// attachLatency correlates a just-received timing record with the most recent
// assistant transcript entry that has none, scanning from the tail. Entries
// carrying a record already are never overwritten; notifications and system
// messages are not spoken turns and are skipped. Returns false when no entry
// qualified, in which case only the global latency snapshot changes.
func attachLatency(entries []models.TranscriptEntry, report models.LatencyReport) bool {
	for i := len(entries) - 1; i >= 0; i-- {
		entry := &entries[i]
		if entry.Role != models.RoleAssistant || entry.IsNotification || entry.IsSystemMessage {
			continue
		}
		if entry.Latency != nil {
			continue
		}
		latency := report
		entry.Latency = &latency
		return true
	}
	return false
}
