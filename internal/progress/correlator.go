// Package progress consumes the tool-usage push channel and pairs each run's
// end notification with the title derived from its start.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindStart Kind = "start"
	KindEnd   Kind = "end"
)

// ToolUsageEvent is one notification from the push channel.
type ToolUsageEvent struct {
	Kind       Kind
	RunID      string
	Content    string
	ObservedAt time.Time
}

// ToolUsageRecord is what the progress list displays. For a start record
// ResolvedTitle is the derived title. For an end record it is the matching
// start title marked complete, or nil when no start was seen for the run, in
// which case the display falls back to Content.
type ToolUsageRecord struct {
	ID            int
	Kind          Kind
	RunID         string
	Content       string
	ObservedAt    time.Time
	ResolvedTitle *string
}

// Title returns the text to show for the record.
func (r ToolUsageRecord) Title() string {
	if r.ResolvedTitle != nil {
		return *r.ResolvedTitle
	}
	return r.Content
}

// Correlator turns events into records, remembering start titles by run id.
// Entries are never evicted; an end may be delivered twice or late.
// It is not safe for concurrent use.
type Correlator struct {
	titles map[string]string
	nextID int
}

func NewCorrelator() *Correlator {
	return &Correlator{titles: make(map[string]string)}
}

// OnEvent never fails: an end without a matching start yields a record with
// a nil ResolvedTitle.
func (c *Correlator) OnEvent(ev ToolUsageEvent) ToolUsageRecord {
	rec := ToolUsageRecord{
		ID:         c.nextID,
		Kind:       ev.Kind,
		RunID:      ev.RunID,
		Content:    ev.Content,
		ObservedAt: ev.ObservedAt,
	}
	c.nextID++

	switch ev.Kind {
	case KindStart:
		title := DeriveTitle(ev.Content)
		c.titles[ev.RunID] = title
		rec.ResolvedTitle = &title
	default:
		if title, ok := c.titles[ev.RunID]; ok {
			done := title + CompletedSuffix
			rec.ResolvedTitle = &done
		}
	}
	return rec
}

// Known reports whether a start has been seen for runID.
func (c *Correlator) Known(runID string) bool {
	_, ok := c.titles[runID]
	return ok
}

// ErrInvalidMessage is returned for push messages missing a required field.
var ErrInvalidMessage = errors.New("invalid tool usage message")

type wireMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	RunID     string `json:"run_id"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

// ParseMessage decodes one push message. All four fields must be present and
// non-empty. Any type other than "start" is treated as an end. A timestamp
// that matches no known layout is replaced by now.
func ParseMessage(data []byte, now time.Time) (ToolUsageEvent, error) {
	var m wireMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return ToolUsageEvent{}, fmt.Errorf("decode tool usage message: %w", err)
	}
	if m.Type == "" || m.Content == "" || m.Timestamp == "" || m.RunID == "" {
		return ToolUsageEvent{}, ErrInvalidMessage
	}
	kind := KindEnd
	if m.Type == string(KindStart) {
		kind = KindStart
	}
	return ToolUsageEvent{
		Kind:       kind,
		RunID:      m.RunID,
		Content:    m.Content,
		ObservedAt: parseTimestamp(m.Timestamp, now),
	}, nil
}

func parseTimestamp(s string, now time.Time) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return now
}
