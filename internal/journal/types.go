package journal

import "time"

// SessionEntry is one stream session as recorded in the journal.
type SessionEntry struct {
	ID        string
	Company   string
	Prompt    string
	StartedAt time.Time
	EndedAt   time.Time // zero while the session is running
	Outcome   string
	Error     string
	Fragments int
	Failures  int
}

// Running reports whether the session had not finished when it was read.
func (e SessionEntry) Running() bool {
	return e.Outcome == OutcomeRunning
}

// OutcomeRunning marks a session that has started but not yet finished.
const OutcomeRunning = "running"

// ToolUsageEntry is one tool usage notification as recorded in the journal.
// Title is empty when the end notification could not be correlated.
type ToolUsageEntry struct {
	ID         int64
	RunID      string
	Kind       string
	Content    string
	Title      string
	ObservedAt time.Time
}
