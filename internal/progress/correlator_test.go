package progress_test

import (
	"errors"
	"testing"
	"time"

	"github.com/zsprackett/stockchat/internal/progress"
)

const stockNewsStart = "Running tool 'stock_news' with {'ticker':'XYZ'}"

func start(runID, content string) progress.ToolUsageEvent {
	return progress.ToolUsageEvent{Kind: progress.KindStart, RunID: runID, Content: content}
}

func end(runID, content string) progress.ToolUsageEvent {
	return progress.ToolUsageEvent{Kind: progress.KindEnd, RunID: runID, Content: content}
}

func TestDeriveTitle(t *testing.T) {
	cases := []struct {
		content string
		want    string
	}{
		{stockNewsStart, "XYZ 관련 뉴스 분석"},
		{"Running tool 'stock_price_1y' with {'ticker': 'AAPL'}", "AAPL 1년간 주가 정보 분석"},
		{"Running tool 'relative_strength_index' with {}", "STOCK 차트 기술 분석"},
		{"Running tool 'web_search' with {'query':'x'}", "Running web_search..."},
		{"tool finished", progress.UnknownToolTitle},
		{"", progress.UnknownToolTitle},
	}
	for _, tc := range cases {
		if got := progress.DeriveTitle(tc.content); got != tc.want {
			t.Errorf("DeriveTitle(%q) = %q, want %q", tc.content, got, tc.want)
		}
	}
}

func TestCorrelator_StartThenEnd(t *testing.T) {
	c := progress.NewCorrelator()
	first := c.OnEvent(start("r1", stockNewsStart))
	second := c.OnEvent(end("r1", "done"))

	if first.ResolvedTitle == nil || *first.ResolvedTitle != "XYZ 관련 뉴스 분석" {
		t.Fatalf("start title: %v", first.ResolvedTitle)
	}
	if second.ResolvedTitle == nil || *second.ResolvedTitle != "XYZ 관련 뉴스 분석 [완료]" {
		t.Fatalf("end title: %v", second.ResolvedTitle)
	}
	if second.Title() != *second.ResolvedTitle {
		t.Errorf("Title(): %q", second.Title())
	}
	if first.ID == second.ID {
		t.Errorf("record ids must differ, both %d", first.ID)
	}
}

func TestCorrelator_EndWithoutStart(t *testing.T) {
	c := progress.NewCorrelator()
	orphan := c.OnEvent(end("r9", "raw output"))
	if orphan.ResolvedTitle != nil {
		t.Fatalf("expected nil resolved title, got %q", *orphan.ResolvedTitle)
	}
	if orphan.Title() != "raw output" {
		t.Errorf("fallback title: %q", orphan.Title())
	}

	// A late start does not reach back into the record already emitted.
	c.OnEvent(start("r9", stockNewsStart))
	if orphan.ResolvedTitle != nil {
		t.Error("already-emitted end record was modified")
	}
	again := c.OnEvent(end("r9", "raw output"))
	if again.ResolvedTitle == nil {
		t.Error("end after start should resolve")
	}
}

func TestCorrelator_DuplicateEnd(t *testing.T) {
	c := progress.NewCorrelator()
	c.OnEvent(start("r1", stockNewsStart))
	a := c.OnEvent(end("r1", "done"))
	b := c.OnEvent(end("r1", "done"))
	if a.ResolvedTitle == nil || b.ResolvedTitle == nil || *a.ResolvedTitle != *b.ResolvedTitle {
		t.Errorf("duplicate end should resolve the same: %v %v", a.ResolvedTitle, b.ResolvedTitle)
	}
}

func TestCorrelator_StartOverwrites(t *testing.T) {
	c := progress.NewCorrelator()
	c.OnEvent(start("r1", stockNewsStart))
	c.OnEvent(start("r1", "Running tool 'stock_price_1m' with {'ticker':'ABC'}"))
	rec := c.OnEvent(end("r1", "done"))
	if rec.ResolvedTitle == nil || *rec.ResolvedTitle != "ABC 1달간 주가 정보 분석 [완료]" {
		t.Errorf("got %v", rec.ResolvedTitle)
	}
}

func TestCorrelator_UnknownToolStart(t *testing.T) {
	c := progress.NewCorrelator()
	s := c.OnEvent(start("r2", "something opaque"))
	e := c.OnEvent(end("r2", "done"))
	if *s.ResolvedTitle != progress.UnknownToolTitle {
		t.Errorf("start: %q", *s.ResolvedTitle)
	}
	if *e.ResolvedTitle != progress.UnknownToolTitle+progress.CompletedSuffix {
		t.Errorf("end: %q", *e.ResolvedTitle)
	}
	if !c.Known("r2") || c.Known("r3") {
		t.Error("Known mismatch")
	}
}

func TestParseMessage(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	ev, err := progress.ParseMessage([]byte(`{"type":"start","content":"c","timestamp":"2026-01-01T10:00:00.123456","run_id":"r1"}`), now)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != progress.KindStart || ev.RunID != "r1" || ev.Content != "c" {
		t.Errorf("got %+v", ev)
	}
	if want := time.Date(2026, 1, 1, 10, 0, 0, 123456000, time.UTC); !ev.ObservedAt.Equal(want) {
		t.Errorf("timestamp: got %v want %v", ev.ObservedAt, want)
	}

	ev, err = progress.ParseMessage([]byte(`{"type":"finish","content":"c","timestamp":"yesterday","run_id":"r1"}`), now)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != progress.KindEnd {
		t.Errorf("non-start type should map to end, got %q", ev.Kind)
	}
	if !ev.ObservedAt.Equal(now) {
		t.Errorf("unparseable timestamp should fall back to now, got %v", ev.ObservedAt)
	}
}

func TestParseMessage_Invalid(t *testing.T) {
	now := time.Now()
	for _, raw := range []string{
		`{"type":"start","content":"c","timestamp":"t"}`,
		`{"type":"","content":"c","timestamp":"t","run_id":"r"}`,
		`{"content":"c","timestamp":"t","run_id":"r"}`,
	} {
		if _, err := progress.ParseMessage([]byte(raw), now); !errors.Is(err, progress.ErrInvalidMessage) {
			t.Errorf("%s: expected ErrInvalidMessage, got %v", raw, err)
		}
	}
	if _, err := progress.ParseMessage([]byte(`not json`), now); err == nil || errors.Is(err, progress.ErrInvalidMessage) {
		t.Errorf("expected decode error, got %v", err)
	}
}
