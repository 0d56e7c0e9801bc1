package ui

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/zsprackett/stockchat/internal/stream"
	"github.com/zsprackett/stockchat/internal/transcript"
)

type emptyOpener struct{}

func (emptyOpener) Open(ctx context.Context, req stream.Request) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func TestPublishTranscriptDoesNotBlock(t *testing.T) {
	a := NewApp(Deps{Chat: stream.NewChat(emptyOpener{}, stream.ChatConfig{})})

	// The event loop is not running, so nothing drains tview's update queue.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			a.publishTranscript(transcript.Fold(transcript.Submitted{Text: "Analyze Acme stock."}))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("change callback blocked")
	}

	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	if !a.redrawQueued || a.latest.Len() != 2 {
		t.Errorf("queued=%v latest=%+v", a.redrawQueued, a.latest.Messages())
	}
}

func TestSubmitKeepsSubmissionOrder(t *testing.T) {
	chat := stream.NewChat(emptyOpener{}, stream.ChatConfig{})
	a := NewApp(Deps{Chat: chat})

	a.submit(stream.Request{Company: "Old"})
	a.submit(stream.Request{Company: "New"})

	cur := chat.Current()
	if cur == nil || cur.Request.Company != "New" || a.company != "New" {
		t.Fatalf("current session: %+v, company %q", cur, a.company)
	}
	if err := cur.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if msgs := chat.Transcript().Messages(); len(msgs) != 1 || msgs[0].Text != "Analyze New stock." {
		t.Errorf("transcript: %+v", msgs)
	}
}
