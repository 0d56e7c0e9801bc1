package progress

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zsprackett/stockchat/internal/applog"
)

// DefaultReconnectDelay is the fixed wait before redialing after an abnormal
// closure.
const DefaultReconnectDelay = 5 * time.Second

type Config struct {
	URL            string
	ReconnectDelay time.Duration
	// Token, when set, supplies a bearer token for each dial.
	Token func() (string, error)
	// OnStatus, when set, is told whenever the connection comes up or goes down.
	OnStatus func(connected bool)
}

// Channel owns the single connection to the tool-usage push endpoint. It is
// constructed once, started once and stopped explicitly. The read goroutine
// is the only user of the correlator, so titles survive reconnects for as
// long as the Channel lives.
type Channel struct {
	cfg     Config
	dialer  *websocket.Dialer
	handler func(ToolUsageRecord)
	corr    *Correlator
	logger  *slog.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

// New returns a Channel that calls handler, from its read goroutine, with
// every record in arrival order.
func New(cfg Config, handler func(ToolUsageRecord), logger *slog.Logger) *Channel {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if logger == nil {
		logger = applog.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		cfg:     cfg,
		dialer:  websocket.DefaultDialer,
		handler: handler,
		corr:    NewCorrelator(),
		logger:  logger,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the connection loop. Calling it again has no effect.
func (c *Channel) Start() {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.run()
	})
}

// Stop closes the connection with a normal closure and waits for the read
// goroutine to exit. It is safe to call more than once.
func (c *Channel) Stop() {
	c.stopOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		if c.conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutting down")
			c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			c.conn.Close()
		}
		c.mu.Unlock()
	})
	c.wg.Wait()
}

func (c *Channel) run() {
	defer c.wg.Done()
	for {
		if c.session() {
			return
		}
		c.logger.Info("progress: reconnecting", "url", c.cfg.URL, "delay", c.cfg.ReconnectDelay)
		t := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-c.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// session dials once and reads until the connection ends. It reports true
// when the loop should not reconnect.
func (c *Channel) session() (done bool) {
	header := http.Header{}
	if c.cfg.Token != nil {
		tok, err := c.cfg.Token()
		if err != nil {
			c.logger.Warn("progress: token unavailable", "err", err)
			return false
		}
		header.Set("Authorization", "Bearer "+tok)
	}

	conn, resp, err := c.dialer.DialContext(c.ctx, c.cfg.URL, header)
	if err != nil {
		if c.ctx.Err() != nil {
			return true
		}
		attrs := []any{"url", c.cfg.URL, "err", err}
		if resp != nil {
			attrs = append(attrs, "status", resp.StatusCode)
		}
		c.logger.Warn("progress: dial failed", attrs...)
		return false
	}

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		conn.Close()
		return true
	}
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("progress: connected", "url", c.cfg.URL)
	c.status(true)
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
		c.status(false)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				return true
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Info("progress: closed by server")
				return true
			}
			c.logger.Warn("progress: connection lost", "err", err)
			return false
		}
		c.dispatch(data)
	}
}

func (c *Channel) dispatch(data []byte) {
	ev, err := ParseMessage(data, c.now())
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, ErrInvalidMessage) {
			level = slog.LevelWarn
		}
		c.logger.Log(c.ctx, level, "progress: dropping message", "err", err, "message", string(data))
		return
	}
	rec := c.corr.OnEvent(ev)
	if ev.Kind == KindEnd && rec.ResolvedTitle == nil {
		c.logger.Debug("progress: end without matching start", "run_id", ev.RunID)
	}
	if c.handler != nil {
		c.handler(rec)
	}
}

func (c *Channel) status(connected bool) {
	if c.cfg.OnStatus != nil {
		c.cfg.OnStatus(connected)
	}
}
