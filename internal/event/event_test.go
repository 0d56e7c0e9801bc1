package event_test

import (
	"errors"
	"testing"

	"github.com/zsprackett/stockchat/internal/event"
	"github.com/zsprackett/stockchat/internal/framer"
)

func decode(t *testing.T, data string) (event.Event, bool) {
	t.Helper()
	return event.Decode(framer.Frame{Data: data})
}

func TestDecode_Content(t *testing.T) {
	ev, ok := decode(t, `{"content":"A: hi"}`)
	if !ok {
		t.Fatal("expected an event")
	}
	frag, isFrag := ev.(event.ContentFragment)
	if !isFrag {
		t.Fatalf("expected ContentFragment, got %T", ev)
	}
	if frag.Sender != "A" || frag.Body != "hi" {
		t.Errorf("got %+v", frag)
	}
}

func TestDecode_ErrorWins(t *testing.T) {
	for _, data := range []string{
		`{"error":"boom"}`,
		`{"error":"boom","content":"Researcher: ignored"}`,
	} {
		ev, ok := decode(t, data)
		if !ok {
			t.Fatalf("%s: expected an event", data)
		}
		f, isFailure := ev.(event.Failure)
		if !isFailure {
			t.Fatalf("%s: expected Failure, got %T", data, ev)
		}
		if f.Message != "boom" {
			t.Errorf("%s: message %q", data, f.Message)
		}
	}
}

func TestDecode_ErrorDetails(t *testing.T) {
	ev, _ := decode(t, `{"error":"Error during stream execution","details":"timeout"}`)
	f := ev.(event.Failure)
	if f.Error() != "Error during stream execution: timeout" {
		t.Errorf("got %q", f.Error())
	}
}

func TestDecode_Malformed(t *testing.T) {
	cases := []string{
		`not json`,
		`{"content":`,
		`[1,2]`,
		`"just a string"`,
		`{"content":42}`,
	}
	for _, data := range cases {
		ev, ok := decode(t, data)
		if !ok {
			t.Errorf("%q: expected an event", data)
			continue
		}
		m, isMalformed := ev.(event.MalformedPayload)
		if !isMalformed {
			t.Errorf("%q: expected MalformedPayload, got %T", data, ev)
			continue
		}
		if m.Raw != data {
			t.Errorf("%q: raw %q", data, m.Raw)
		}
		if !errors.Is(m.Err, event.ErrMalformedPayload) {
			t.Errorf("%q: err %v does not wrap ErrMalformedPayload", data, m.Err)
		}
	}
}

func TestDecode_Ignored(t *testing.T) {
	for _, data := range []string{
		`{"status":"Stream ended"}`,
		`{}`,
		`null`,
		`{"content":"","error":""}`,
	} {
		if ev, ok := decode(t, data); ok {
			t.Errorf("%q: expected no event, got %#v", data, ev)
		}
	}
}

func TestSplitSender(t *testing.T) {
	cases := []struct {
		in, sender, body string
	}{
		{"Researcher: Revenue grew 10%.", "Researcher", "Revenue grew 10%."},
		{"A: b: c", "A", "b: c"},
		{"no separator here", "agent", "no separator here"},
		{"ratio 3:1", "agent", "ratio 3:1"},
		{": orphan", "agent", ": orphan"},
		{"Analyst: ", "Analyst", ""},
	}
	for _, tc := range cases {
		sender, body := event.SplitSender(tc.in)
		if sender != tc.sender || body != tc.body {
			t.Errorf("SplitSender(%q) = %q, %q; want %q, %q", tc.in, sender, body, tc.sender, tc.body)
		}
	}
}
