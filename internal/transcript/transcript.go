// Package transcript folds stream events and user input into the ordered list
// of messages shown in the chat pane.
//
// Reduce is a pure function: it never mutates the State it is given, and the
// same input sequence always produces the same transcript. At most one
// pending placeholder exists at any time and, when present, it is the last
// message.
package transcript

import (
	"slices"

	"github.com/zsprackett/stockchat/internal/event"
)

type Role string

const (
	RoleUser    Role = "user"
	RolePending Role = "pending"
	RoleAgent   Role = "agent"
	RoleError   Role = "error"
	RoleSystem  Role = "system"
)

// Message is one entry of the transcript. Sender is only set for agent
// messages.
type Message struct {
	ID     int
	Role   Role
	Sender string
	Text   string
}

// State is an immutable snapshot of the transcript.
type State struct {
	messages []Message
	nextID   int
}

// Messages returns a copy of the transcript in display order.
func (s State) Messages() []Message {
	return slices.Clone(s.messages)
}

func (s State) Len() int { return len(s.messages) }

// Pending reports whether the trailing placeholder is present.
func (s State) Pending() bool {
	n := len(s.messages)
	return n > 0 && s.messages[n-1].Role == RolePending
}

// Input is anything that drives the transcript: Submitted, Received,
// StreamEnded, TransportFailed or Cancelled.
type Input interface {
	isInput()
}

// Submitted starts a new exchange with the user's message.
type Submitted struct{ Text string }

// Received carries one decoded stream event.
type Received struct{ Event event.Event }

// StreamEnded is a normal end of the response body.
type StreamEnded struct{}

// TransportFailed is a connection or HTTP failure other than cancellation.
type TransportFailed struct{ Err error }

// Cancelled is a user-initiated or superseding stop.
type Cancelled struct{}

func (Submitted) isInput()       {}
func (Received) isInput()        {}
func (StreamEnded) isInput()     {}
func (TransportFailed) isInput() {}
func (Cancelled) isInput()       {}

// Reduce returns the state that results from applying in to s.
func Reduce(s State, in Input) State {
	switch in := in.(type) {
	case Submitted:
		// The previous transcript is replaced, not merged.
		return State{}.appendMsg(RoleUser, "", in.Text).appendMsg(RolePending, "", "")
	case Received:
		return s.receive(in.Event)
	case StreamEnded:
		return s.withoutPending()
	case TransportFailed:
		text := "transport failure"
		if in.Err != nil {
			text = in.Err.Error()
		}
		return s.withoutPending().appendMsg(RoleError, "", text)
	case Cancelled:
		return s.withoutPending()
	default:
		return s
	}
}

// Fold applies inputs in order starting from the empty transcript.
func Fold(inputs ...Input) State {
	var s State
	for _, in := range inputs {
		s = Reduce(s, in)
	}
	return s
}

func (s State) receive(ev event.Event) State {
	switch ev := ev.(type) {
	case event.ContentFragment:
		// More output may follow, so a fresh placeholder goes right back in.
		return s.withoutPending().
			appendMsg(RoleAgent, ev.Sender, ev.Body).
			appendMsg(RolePending, "", "")
	case event.Failure:
		return s.withoutPending().appendMsg(RoleError, "", ev.Error())
	case event.MalformedPayload:
		return s.withoutPending().appendMsg(RoleSystem, "", ev.Raw)
	default:
		return s
	}
}

func (s State) withoutPending() State {
	if !s.Pending() {
		return s
	}
	return State{messages: s.messages[:len(s.messages)-1:len(s.messages)-1], nextID: s.nextID}
}

// appendMsg never writes into a backing array shared with another State.
func (s State) appendMsg(role Role, sender, text string) State {
	msgs := make([]Message, len(s.messages), len(s.messages)+1)
	copy(msgs, s.messages)
	msgs = append(msgs, Message{ID: s.nextID, Role: role, Sender: sender, Text: text})
	return State{messages: msgs, nextID: s.nextID + 1}
}
