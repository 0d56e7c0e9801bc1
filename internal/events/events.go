package events

// Event is a tool usage notification pushed to progress subscribers. It is
// the wire shape of one /ws/tool_usage text message.
type Event struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	RunID     string `json:"run_id"`
}

const (
	TypeStart = "start"
	TypeEnd   = "end"
)

// TimestampLayout matches the service's naive ISO timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Broadcaster sends events to connected subscribers.
// A nil Broadcaster is safe to use with Send -- it becomes a no-op.
type Broadcaster interface {
	Broadcast(e Event)
}

// Send broadcasts e on b unless b is nil.
func Send(b Broadcaster, e Event) {
	if b != nil {
		b.Broadcast(e)
	}
}
