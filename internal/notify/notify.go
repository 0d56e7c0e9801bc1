package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/zsprackett/stockchat/internal/applog"
	"github.com/zsprackett/stockchat/internal/stream"
)

// Config holds notification settings.
type Config struct {
	Enabled bool   `json:"enabled"`
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

// Notifier posts a webhook and/or ntfy message when an analysis session
// finishes. Cancelled sessions are not reported.
type Notifier struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New returns a Notifier with the given config.
func New(cfg Config, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// SessionStarted implements stream.Observer.
func (n *Notifier) SessionStarted(stream.Summary) {}

// SessionFinished implements stream.Observer.
func (n *Notifier) SessionFinished(s stream.Summary) {
	if !n.cfg.Enabled || s.Outcome == stream.OutcomeCancelled {
		return
	}
	if n.cfg.Webhook != "" {
		n.sendWebhook(s)
	}
	if n.cfg.NtfyURL != "" {
		n.sendNtfy(s)
	}
}

type webhookPayload struct {
	Session   string `json:"session"`
	Company   string `json:"company"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
	Fragments int    `json:"fragments"`
	Duration  string `json:"duration"`
	Timestamp string `json:"timestamp"`
}

func (n *Notifier) sendWebhook(s stream.Summary) {
	payload := webhookPayload{
		Session:   s.ID,
		Company:   s.Request.Company,
		Outcome:   string(s.Outcome),
		Fragments: s.Fragments,
		Duration:  s.EndedAt.Sub(s.StartedAt).Round(time.Millisecond).String(),
		Timestamp: s.EndedAt.UTC().Format(time.RFC3339),
	}
	if s.Err != nil {
		payload.Error = s.Err.Error()
	}
	n.post("webhook", n.cfg.Webhook, payload)
}

type ntfyPayload struct {
	Topic    string   `json:"topic,omitempty"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func (n *Notifier) sendNtfy(s stream.Summary) {
	payload := ntfyPayload{
		Title:    fmt.Sprintf("%s analysis finished", s.Request.Company),
		Message:  fmt.Sprintf("%d agent messages", s.Fragments),
		Priority: 3,
		Tags:     []string{"chart_with_upwards_trend"},
	}
	if s.Outcome == stream.OutcomeFailed {
		payload.Title = fmt.Sprintf("%s analysis failed", s.Request.Company)
		payload.Priority = 4
		payload.Tags = []string{"rotating_light"}
		if s.Err != nil {
			payload.Message = s.Err.Error()
		}
	}
	n.post("ntfy", n.cfg.NtfyURL, payload)
}

func (n *Notifier) post(kind, url string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Warn("notify: encode payload", "kind", kind, "err", err)
		return
	}
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("notify: "+kind+" post failed", "url", url, "err", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logger.Warn("notify: "+kind+" rejected", "url", url, "status", resp.StatusCode)
	}
}
