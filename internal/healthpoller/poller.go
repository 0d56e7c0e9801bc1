// Package healthpoller periodically checks that the analysis service answers.
package healthpoller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zsprackett/stockchat/internal/applog"
)

// Pinger is satisfied by *stream.Client.
type Pinger interface {
	Ping(ctx context.Context) (string, error)
}

// Status is the result of one poll.
type Status struct {
	Online  bool
	Banner  string
	Err     error
	Checked time.Time
}

type Poller struct {
	pinger   Pinger
	interval time.Duration
	onStatus func(Status)
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *slog.Logger

	mu   sync.Mutex
	last Status
}

// New returns a Poller that reports every result to onStatus from its own
// goroutine. onStatus may be nil.
func New(pinger Pinger, interval time.Duration, onStatus func(Status), logger *slog.Logger) *Poller {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Poller{
		pinger:   pinger,
		interval: interval,
		onStatus: onStatus,
		stop:     make(chan struct{}),
		logger:   logger,
	}
}

func (p *Poller) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.poll()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.poll()
			case <-p.stop:
				return
			}
		}
	}()
}

// Stop ends polling and waits for an in-flight check. Safe to call twice.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// Last returns the most recent result.
func (p *Poller) Last() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Poller) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()
	go func() {
		select {
		case <-p.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	banner, err := p.pinger.Ping(ctx)
	st := Status{Online: err == nil, Banner: banner, Err: err, Checked: time.Now()}

	p.mu.Lock()
	changed := p.last.Checked.IsZero() || p.last.Online != st.Online
	p.last = st
	p.mu.Unlock()

	if err != nil {
		p.logger.Debug("health poll failed", "err", err)
	}
	if changed {
		p.logger.Info("service health changed", "online", st.Online)
	}
	if p.onStatus != nil {
		p.onStatus(st)
	}
}
