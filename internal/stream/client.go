package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/zsprackett/stockchat/internal/applog"
	"github.com/zsprackett/stockchat/internal/auth"
)

// Request is one user submission.
type Request struct {
	Company   string
	UserInput string
}

// Prompt is the text shown as the user's message.
func (r Request) Prompt() string {
	if strings.TrimSpace(r.UserInput) != "" {
		return r.UserInput
	}
	return fmt.Sprintf("Analyze %s stock.", r.Company)
}

type wireRequest struct {
	Company   string  `json:"company"`
	UserInput *string `json:"user_input"`
}

// MarshalJSON sends an empty user input as null.
func (r Request) MarshalJSON() ([]byte, error) {
	w := wireRequest{Company: r.Company}
	if r.UserInput != "" {
		in := r.UserInput
		w.UserInput = &in
	}
	return json.Marshal(w)
}

// ErrCancelled is returned by Session.Wait when the session was cancelled or
// superseded. It is not a failure.
var ErrCancelled = errors.New("session cancelled")

// TransportError is a connection or HTTP failure. It ends the session.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s: HTTP error! status: %d: %s", e.Op, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP error! status: %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": transport failure"
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// Opener starts the response stream for a request.
type Opener interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}

const streamPath = "/stream_endpoint"

// maxErrorBody bounds how much of a non-2xx body is kept for the error.
const maxErrorBody = 512

// Client talks to the analysis service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *auth.TokenSource
	logger  *slog.Logger
}

// NewClient returns a Client for baseURL. connectTimeout bounds dialing and
// waiting for response headers; the body itself may stream indefinitely.
// tokens may be nil.
func NewClient(baseURL string, connectTimeout time.Duration, tokens *auth.TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = applog.Discard()
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if connectTimeout > 0 {
		tr.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext
		tr.ResponseHeaderTimeout = connectTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: tr},
		tokens:  tokens,
		logger:  logger,
	}
}

// Open posts req and returns the event-stream body. The body is closed by the
// caller; cancelling ctx tears the connection down.
func (c *Client) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+streamPath, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Op: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if err := c.tokens.Apply(httpReq); err != nil {
		return nil, &TransportError{Op: "authorize", Err: err}
	}

	c.logger.Debug("stream: opening", "url", httpReq.URL.String(), "company", req.Company)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "post " + streamPath, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{
			Op:         "post " + streamPath,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return resp.Body, nil
}

// Ping fetches the service banner from GET /.
func (c *Client) Ping(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var banner struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &banner); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	return banner.Message, nil
}
