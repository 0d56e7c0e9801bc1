package webserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zsprackett/stockchat/internal/events"
)

// Step is one scripted agent turn. {company} and {ticker} in Body are
// substituted per request. A step with Error set emits an error payload
// instead of content.
type Step struct {
	Sender  string
	Tool    string
	Body    string
	Error   string
	Details string
}

var DefaultScript = []Step{
	{Sender: "Researcher", Tool: "stock_news", Body: "Collected the latest {company} headlines; sentiment is mixed."},
	{Sender: "Financial Analyst", Tool: "get_financial_statement", Body: "{ticker} revenue grew 10% year over year with stable margins."},
	{Sender: "Technical Analyst", Tool: "relative_strength_index", Body: "{ticker} RSI sits near 55, neither overbought nor oversold."},
	{Sender: "Supervisor", Body: "Summary for {company}: fundamentals are solid, momentum is neutral."},
}

type analysisRequest struct {
	Company   string  `json:"company"`
	UserInput *string `json:"user_input"`
}

type analysisHandler struct {
	script []Step
	delay  time.Duration
	bc     events.Broadcaster
	logger *slog.Logger
}

func (h *analysisHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Company) == "" {
		http.Error(w, "company is required", http.StatusUnprocessableEntity)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := tickerFor(req.Company)
	expand := strings.NewReplacer("{company}", req.Company, "{ticker}", ticker)
	logger := h.logger.With("company", req.Company)
	logger.Info("webserver: analysis started")

	for _, step := range h.script {
		if step.Tool != "" {
			runID := uuid.NewString()
			events.Send(h.bc, toolEvent(events.TypeStart, runID,
				fmt.Sprintf("Running tool '%s' with input {'ticker': '%s'}", step.Tool, ticker)))
			if !h.pause(r) {
				return
			}
			events.Send(h.bc, toolEvent(events.TypeEnd, runID,
				fmt.Sprintf("Tool '%s' finished", step.Tool)))
		}

		var payload map[string]string
		if step.Error != "" {
			payload = map[string]string{"error": step.Error}
			if step.Details != "" {
				payload["details"] = step.Details
			}
		} else {
			payload = map[string]string{"content": step.Sender + ": " + expand.Replace(step.Body)}
		}
		if err := writeFrame(w, flusher, payload); err != nil {
			logger.Debug("webserver: client went away", "err", err)
			return
		}
		if !h.pause(r) {
			return
		}
	}
	writeFrame(w, flusher, map[string]string{"status": "Stream ended"})
	logger.Info("webserver: analysis finished")
}

// pause waits one step delay. It reports false when the client disconnected.
func (h *analysisHandler) pause(r *http.Request) bool {
	if h.delay <= 0 {
		return r.Context().Err() == nil
	}
	t := time.NewTimer(h.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.Context().Done():
		return false
	}
}

func writeFrame(w http.ResponseWriter, f http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	f.Flush()
	return nil
}

func toolEvent(kind, runID, content string) events.Event {
	return events.Event{
		Type:      kind,
		Content:   content,
		Timestamp: time.Now().Format(events.TimestampLayout),
		RunID:     runID,
	}
}

// tickerFor derives a ticker-looking symbol from a company name.
func tickerFor(company string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(company) {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
		if b.Len() == 4 {
			break
		}
	}
	if b.Len() == 0 {
		return "STOCK"
	}
	return b.String()
}
