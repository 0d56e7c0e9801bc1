// Package framer cuts an event-stream response body into complete frames.
//
// Chunks arrive in whatever sizes the transport delivers them. A Framer keeps
// everything it has not yet been able to terminate and only ever emits a frame
// once its delimiter has been seen in full, so the frames produced for a body
// do not depend on where the chunk boundaries fell.
package framer

import (
	"bytes"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/zsprackett/stockchat/internal/applog"
)

// DataPrefix marks the significant lines of the stream.
const DataPrefix = "data: "

// Mode selects the delimiter convention.
type Mode int

const (
	// ModeLines treats every newline-terminated line as a unit.
	ModeLines Mode = iota
	// ModeEvents groups lines into events terminated by a blank line.
	ModeEvents
)

func (m Mode) String() string {
	switch m {
	case ModeLines:
		return "lines"
	case ModeEvents:
		return "events"
	default:
		return "unknown"
	}
}

// Frame is the payload of one significant line, prefix stripped.
type Frame struct {
	Data string
}

// Framer accumulates chunks and emits complete frames.
// It is not safe for concurrent use.
type Framer struct {
	mode   Mode
	buf    []byte
	event  []string // lines of the event being assembled (ModeEvents)
	logger *slog.Logger
}

// New returns a Framer for the given delimiter convention. A nil logger
// discards dropped-line diagnostics.
func New(mode Mode, logger *slog.Logger) *Framer {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Framer{mode: mode, logger: logger}
}

// Feed appends chunk to the buffer and returns every frame it completes,
// in stream order.
func (f *Framer) Feed(chunk []byte) []Frame {
	if len(chunk) == 0 {
		return nil
	}
	f.buf = append(f.buf, chunk...)

	var frames []Frame
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSuffix(string(f.buf[:i]), "\r")
		f.buf = f.buf[i+1:]
		frames = f.line(line, frames)
	}
	// Release the consumed prefix once nothing is pending.
	if len(f.buf) == 0 {
		f.buf = nil
	}
	return frames
}

func (f *Framer) line(line string, frames []Frame) []Frame {
	switch f.mode {
	case ModeEvents:
		if line == "" {
			frames = f.emitEvent(f.event, frames)
			f.event = f.event[:0]
			return frames
		}
		f.event = append(f.event, line)
		return frames
	default:
		if line == "" {
			return frames
		}
		if data, ok := strings.CutPrefix(line, DataPrefix); ok {
			return append(frames, Frame{Data: data})
		}
		f.logger.Debug("framer: dropping non-data line", "line", line)
		return frames
	}
}

func (f *Framer) emitEvent(lines []string, frames []Frame) []Frame {
	for _, l := range lines {
		if data, ok := strings.CutPrefix(l, DataPrefix); ok {
			frames = append(frames, Frame{Data: data})
			continue
		}
		f.logger.Debug("framer: dropping non-data event line", "line", l)
	}
	return frames
}

// Flush makes one last extraction from whatever is still buffered and resets
// the framer. Only residual lines carrying the data prefix survive; anything
// else is discarded.
func (f *Framer) Flush() []Frame {
	var residual []string
	if f.mode == ModeEvents {
		residual = append(residual, f.event...)
	}
	if len(f.buf) > 0 {
		residual = append(residual, strings.TrimSuffix(string(f.buf), "\r"))
	}
	f.buf = nil
	f.event = nil

	var frames []Frame
	for _, l := range residual {
		if l == "" {
			continue
		}
		if data, ok := strings.CutPrefix(l, DataPrefix); ok {
			frames = append(frames, Frame{Data: data})
			continue
		}
		// Known limitation: an interrupted non-data tail is lost.
		f.logger.Debug("framer: discarding residual content at end of stream", "residual", l)
	}
	return frames
}

// Buffered reports how many bytes are held waiting for a delimiter.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

const readSize = 4096

// Frames reads r to EOF and lazily yields the frames it carries. A read error
// other than io.EOF is yielded once with an empty frame and ends the sequence;
// the buffered tail is not flushed in that case.
func Frames(r io.Reader, mode Mode, logger *slog.Logger) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		f := New(mode, logger)
		buf := make([]byte, readSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				for _, fr := range f.Feed(buf[:n]) {
					if !yield(fr, nil) {
						return
					}
				}
			}
			if errors.Is(err, io.EOF) {
				for _, fr := range f.Flush() {
					if !yield(fr, nil) {
						return
					}
				}
				return
			}
			if err != nil {
				yield(Frame{}, err)
				return
			}
		}
	}
}
