// Package event decodes stream frames into domain events.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zsprackett/stockchat/internal/framer"
)

// DefaultSender labels content that carries no "<name>: " prefix.
const DefaultSender = "agent"

// ErrMalformedPayload is wrapped by MalformedPayload.Err.
var ErrMalformedPayload = errors.New("malformed payload")

// Event is one decoded occurrence from the chat stream. The concrete types
// are ContentFragment, Failure and MalformedPayload.
type Event interface {
	isEvent()
}

// ContentFragment is a piece of agent output.
type ContentFragment struct {
	Sender string
	Body   string
}

// Failure is an explicit error reported by the remote service. The stream
// may continue after it.
type Failure struct {
	Message string
	Details string
}

func (f Failure) Error() string {
	if f.Details == "" {
		return f.Message
	}
	return f.Message + ": " + f.Details
}

// MalformedPayload carries a frame whose payload could not be parsed.
type MalformedPayload struct {
	Raw string
	Err error
}

func (ContentFragment) isEvent()  {}
func (Failure) isEvent()          {}
func (MalformedPayload) isEvent() {}

type payload struct {
	Content *string `json:"content"`
	Error   *string `json:"error"`
	Details string  `json:"details"`
}

// Decode parses one frame. ok is false when the payload is well formed but
// carries neither content nor an error, e.g. a status keep-alive.
func Decode(f framer.Frame) (ev Event, ok bool) {
	var p payload
	if err := json.Unmarshal([]byte(f.Data), &p); err != nil {
		return MalformedPayload{Raw: f.Data, Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}, true
	}
	if p.Error != nil && *p.Error != "" {
		return Failure{Message: *p.Error, Details: p.Details}, true
	}
	if p.Content != nil && *p.Content != "" {
		sender, body := SplitSender(*p.Content)
		return ContentFragment{Sender: sender, Body: body}, true
	}
	return nil, false
}

// SplitSender splits "<name>: <body>" on the first separator. Without a
// separator, or with an empty name, the sender is DefaultSender and the whole
// text is the body.
func SplitSender(text string) (sender, body string) {
	name, rest, found := strings.Cut(text, ": ")
	if !found || name == "" {
		return DefaultSender, text
	}
	return name, rest
}
