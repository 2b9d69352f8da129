package domain

import "time"

// MaxHistoryDetailLength truncates a history entry's details field on
// write (recovered from the original's defensive history-text truncation,
// SPEC_FULL §3).
const MaxHistoryDetailLength = 2000

// HistoryEntry is an append-only job_history row (spec §3.2).
type HistoryEntry struct {
	ID        int64
	JobID     int64
	Status    string
	Timestamp time.Time
	Details   string
}

// TruncateDetails caps details to MaxHistoryDetailLength.
func TruncateDetails(details string) string {
	if len(details) <= MaxHistoryDetailLength {
		return details
	}
	return details[:MaxHistoryDetailLength]
}
