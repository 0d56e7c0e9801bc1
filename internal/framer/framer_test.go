package framer_test

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/zsprackett/stockchat/internal/framer"
)

func feedAll(f *framer.Framer, chunks ...string) []framer.Frame {
	var out []framer.Frame
	for _, c := range chunks {
		out = append(out, f.Feed([]byte(c))...)
	}
	return append(out, f.Flush()...)
}

func datas(frames []framer.Frame) []string {
	out := make([]string, 0, len(frames))
	for _, fr := range frames {
		out = append(out, fr.Data)
	}
	return out
}

func TestFeed_SingleLine(t *testing.T) {
	f := framer.New(framer.ModeLines, nil)
	got := f.Feed([]byte("data: {\"content\":\"A: hi\"}\n"))
	if len(got) != 1 || got[0].Data != `{"content":"A: hi"}` {
		t.Fatalf("got %v", got)
	}
	if f.Buffered() != 0 {
		t.Errorf("expected empty buffer, got %d bytes", f.Buffered())
	}
}

func TestFeed_EmptyChunk(t *testing.T) {
	for _, mode := range []framer.Mode{framer.ModeLines, framer.ModeEvents} {
		f := framer.New(mode, nil)
		if got := f.Feed(nil); len(got) != 0 {
			t.Errorf("%s: expected no frames, got %v", mode, got)
		}
		if got := f.Feed([]byte{}); len(got) != 0 {
			t.Errorf("%s: expected no frames, got %v", mode, got)
		}
	}
}

func TestFeed_PartialLineRetained(t *testing.T) {
	f := framer.New(framer.ModeLines, nil)
	if got := f.Feed([]byte("data: {\"content\":")); len(got) != 0 {
		t.Fatalf("partial line emitted: %v", got)
	}
	got := f.Feed([]byte("\"x\"}\n"))
	if len(got) != 1 || got[0].Data != `{"content":"x"}` {
		t.Fatalf("got %v", got)
	}
}

func TestFeed_MultipleDelimitersInOneChunk(t *testing.T) {
	f := framer.New(framer.ModeLines, nil)
	got := datas(f.Feed([]byte("data: 1\ndata: 2\n\ndata: 3\n")))
	want := []string{"1", "2", "3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestFeed_DropsNonDataLines(t *testing.T) {
	f := framer.New(framer.ModeLines, nil)
	got := datas(feedAll(f, ": keepalive\nevent: message\ndata: x\nretry: 10\n"))
	if !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("got %v", got)
	}
}

func TestFeed_CRLF(t *testing.T) {
	f := framer.New(framer.ModeEvents, nil)
	got := datas(feedAll(f, "data: a\r", "\n\r\n", "data: b\r\n\r\n"))
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("got %v", got)
	}
}

func TestEvents_WaitForBlankLine(t *testing.T) {
	f := framer.New(framer.ModeEvents, nil)
	if got := f.Feed([]byte("data: a\ndata: b\n")); len(got) != 0 {
		t.Fatalf("event emitted before blank line: %v", got)
	}
	got := datas(f.Feed([]byte("\n")))
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("got %v", got)
	}
}

func TestEvents_CommentsAndFieldsDropped(t *testing.T) {
	f := framer.New(framer.ModeEvents, nil)
	got := datas(feedAll(f, ": ping\n\nevent: update\nid: 7\ndata: x\n\n"))
	if !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("got %v", got)
	}
}

func TestFlush(t *testing.T) {
	cases := []struct {
		name  string
		mode  framer.Mode
		input string
		want  []string
	}{
		{"lines data tail", framer.ModeLines, "data: 1\ndata: 2", []string{"1", "2"}},
		{"lines junk tail", framer.ModeLines, "data: 1\ngarbage", []string{"1"}},
		{"events unterminated", framer.ModeEvents, "data: 1\n\ndata: 2\ndata: 3", []string{"1", "2", "3"}},
		{"events junk tail", framer.ModeEvents, "data: 1\n\n: comment", []string{"1"}},
		{"nothing buffered", framer.ModeEvents, "data: 1\n\n", []string{"1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := framer.New(tc.mode, nil)
			got := datas(feedAll(f, tc.input))
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %v want %v", got, tc.want)
			}
			if f.Buffered() != 0 {
				t.Errorf("flush left %d bytes buffered", f.Buffered())
			}
		})
	}
}

const body = "data: {\"content\":\"Researcher: Revenue grew 10%.\"}\n\n" +
	": keepalive\n\n" +
	"data: {\"error\":\"boom\"}\n\n" +
	"data: {\"content\":\"Analyst: 한국어 텍스트\"}\r\n\r\n" +
	"data: not json\n\n" +
	"data: {\"status\":\"Stream ended\"}"

// Every way of splitting the body in two, and every byte on its own, must
// produce the same frames as delivering it whole.
func TestFragmentationInvariance(t *testing.T) {
	for _, mode := range []framer.Mode{framer.ModeLines, framer.ModeEvents} {
		want := datas(feedAll(framer.New(mode, nil), body))
		if len(want) != 5 {
			t.Fatalf("%s: expected 5 frames from whole body, got %d: %v", mode, len(want), want)
		}
		for i := 0; i <= len(body); i++ {
			got := datas(feedAll(framer.New(mode, nil), body[:i], body[i:]))
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("%s: split at %d: got %v want %v", mode, i, got, want)
			}
		}
		var single []string
		for i := 0; i < len(body); i++ {
			single = append(single, body[i:i+1])
		}
		if got := datas(feedAll(framer.New(mode, nil), single...)); !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: byte-at-a-time: got %v want %v", mode, got, want)
		}
	}
}

func TestFrames_Reader(t *testing.T) {
	r := iotest.OneByteReader(strings.NewReader("data: a\n\ndata: b"))
	var got []string
	for fr, err := range framer.Frames(r, framer.ModeEvents, nil) {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, fr.Data)
	}
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("got %v", got)
	}
}

func TestFrames_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("data: a\n\ndata: partial"), iotest.ErrReader(boom))
	var got []string
	var gotErr error
	for fr, err := range framer.Frames(r, framer.ModeEvents, nil) {
		if err != nil {
			gotErr = err
			continue
		}
		got = append(got, fr.Data)
	}
	if !errors.Is(gotErr, boom) {
		t.Errorf("expected read error, got %v", gotErr)
	}
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("got %v", got)
	}
}

func TestFrames_StopEarly(t *testing.T) {
	r := strings.NewReader("data: a\ndata: b\ndata: c\n")
	n := 0
	for range framer.Frames(r, framer.ModeLines, nil) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("expected to stop after 1 frame, got %d", n)
	}
}
