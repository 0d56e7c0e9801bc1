// Package webserver is a stand-in for the stock analysis service. It streams a
// scripted agent run over POST /stream_endpoint and pushes the matching tool
// usage notifications to /ws/tool_usage subscribers.
package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/zsprackett/stockchat/internal/applog"
	"github.com/zsprackett/stockchat/internal/auth"
	"github.com/zsprackett/stockchat/internal/events"
)

// Banner is returned by GET /.
const Banner = "LangGraph Stock Agent API"

type Config struct {
	Enabled   bool
	Host      string
	Port      int
	StepDelay time.Duration
	// JWTSecret enables bearer token checks on everything except GET /.
	JWTSecret string
	// Script replaces DefaultScript when set.
	Script []Step
}

type Server struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	clients map[chan events.Event]struct{}
	done    chan struct{}
	stopped bool

	httpSrv *http.Server
	addr    string
}

func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = applog.Discard()
	}
	if len(cfg.Script) == 0 {
		cfg.Script = DefaultScript
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[chan events.Event]struct{}),
		done:    make(chan struct{}),
	}
}

// Broadcast implements events.Broadcaster. Slow subscribers miss events.
func (s *Server) Broadcast(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.clients {
		select {
		case ch <- e:
		default:
			s.logger.Debug("webserver: dropped tool usage event for slow subscriber", "run_id", e.RunID)
		}
	}
}

func (s *Server) addClient(ch chan events.Event) {
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeClient(ch chan events.Event) {
	s.mu.Lock()
	delete(s.clients, ch)
	s.mu.Unlock()
}

// Subscribers reports how many progress subscribers are connected.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.Handle("POST /stream_endpoint", &analysisHandler{
		script: s.cfg.Script,
		delay:  s.cfg.StepDelay,
		bc:     s,
		logger: s.logger,
	})
	mux.HandleFunc("GET /ws/tool_usage", s.handleToolUsage)
	if s.cfg.JWTSecret == "" {
		return mux
	}
	return auth.Middleware(s.cfg.JWTSecret, []string{"/"}, mux)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.addr = ln.Addr().String()
	s.httpSrv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("webserver: serve failed", "err", err)
		}
	}()
	s.logger.Info("webserver: listening", "addr", s.addr)
	return nil
}

// Addr is the bound address after Start.
func (s *Server) Addr() string { return s.addr }

// Shutdown closes progress subscribers with a normal closure and stops the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.done)
	}
	s.mu.Unlock()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": Banner})
}
