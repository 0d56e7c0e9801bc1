package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/zsprackett/stockchat/internal/event"
	"github.com/zsprackett/stockchat/internal/progress"
	"github.com/zsprackett/stockchat/internal/transcript"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
		cut  bool
	}{
		{"short", 10, "short", false},
		{"exactly10!", 10, "exactly10!", false},
		{"abcdefghijk", 10, "abcdefghij...", true},
		{"삼성전자 분석 결과", 4, "삼성전자...", true},
	}
	for _, tc := range cases {
		got, cut := Truncate(tc.in, tc.n)
		if got != tc.want || cut != tc.cut {
			t.Errorf("Truncate(%q, %d) = %q, %v; want %q, %v", tc.in, tc.n, got, cut, tc.want, tc.cut)
		}
	}
}

func TestRenderTranscript(t *testing.T) {
	long := strings.Repeat("x", TruncateLength+50)
	s := transcript.Fold(
		transcript.Submitted{Text: "Analyze Acme [ACME] stock."},
		transcript.Received{Event: event.ContentFragment{Sender: "Researcher", Body: long}},
		transcript.Received{Event: event.Failure{Message: "boom", Details: "db down"}},
	)
	out := RenderTranscript(s.Messages(), false)

	if !strings.Contains(out, "Acme [ACME[] stock.") {
		t.Errorf("user text not escaped:\n%s", out)
	}
	if !strings.Contains(out, "Researcher") || !strings.Contains(out, "press e to expand") {
		t.Errorf("agent rendering:\n%s", out)
	}
	if strings.Contains(out, long) {
		t.Error("long message should be truncated")
	}
	if !strings.Contains(out, "boom: db down") {
		t.Errorf("error rendering:\n%s", out)
	}

	expanded := RenderTranscript(s.Messages(), true)
	if !strings.Contains(expanded, long) || strings.Contains(expanded, "press e to expand") {
		t.Error("expanded transcript should show the full message")
	}
}

func TestRenderTranscriptShowsMalformedPayloadInFull(t *testing.T) {
	raw := "{bad json " + strings.Repeat("x", TruncateLength+100) + "TAIL"
	s := transcript.Fold(
		transcript.Submitted{Text: "Analyze Acme stock."},
		transcript.Received{Event: event.MalformedPayload{Raw: raw}},
	)
	for _, expand := range []bool{false, true} {
		out := RenderTranscript(s.Messages(), expand)
		if !strings.Contains(out, raw) {
			t.Errorf("expand=%v: payload cut:\n%s", expand, out)
		}
		if strings.Contains(out, "press e to expand") {
			t.Errorf("expand=%v: unexpected expand hint", expand)
		}
	}
}

func TestRenderTranscriptPending(t *testing.T) {
	s := transcript.Fold(transcript.Submitted{Text: "Analyze Acme stock."})
	out := RenderTranscript(s.Messages(), false)
	if !strings.Contains(out, "analyzing...") {
		t.Errorf("pending placeholder missing:\n%s", out)
	}
}

func TestRenderToolUsage(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := progress.NewCorrelator()
	recs := []progress.ToolUsageRecord{
		c.OnEvent(progress.ToolUsageEvent{Kind: progress.KindStart, RunID: "r1", Content: "Running tool 'stock_news' with input {'ticker': 'XYZ'}", ObservedAt: now.Add(-3 * time.Second)}),
		c.OnEvent(progress.ToolUsageEvent{Kind: progress.KindEnd, RunID: "r1", Content: "done", ObservedAt: now}),
	}
	out := RenderToolUsage(recs, now)
	if !strings.Contains(out, "XYZ 관련 뉴스 분석\n") {
		t.Errorf("start title missing:\n%s", out)
	}
	if !strings.Contains(out, "XYZ 관련 뉴스 분석 [완료]") {
		t.Errorf("end title missing:\n%s", out)
	}
	if !strings.Contains(out, "3 seconds ago") {
		t.Errorf("relative time missing:\n%s", out)
	}

	if out := RenderToolUsage(nil, now); !strings.Contains(out, "No tool activity") {
		t.Errorf("empty: %s", out)
	}
}

func TestStatusLine(t *testing.T) {
	line := StatusLine(true, false, "Acme: streaming")
	if !strings.Contains(line, "service online") || !strings.Contains(line, "progress reconnecting") || !strings.Contains(line, "Acme: streaming") {
		t.Errorf("got %q", line)
	}
}
