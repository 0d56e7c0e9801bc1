// Package stream runs chat sessions against the analysis service: it opens
// the response stream, pushes it through the framer and decoder, and folds
// the resulting events into the transcript.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zsprackett/stockchat/internal/applog"
	"github.com/zsprackett/stockchat/internal/event"
	"github.com/zsprackett/stockchat/internal/framer"
	"github.com/zsprackett/stockchat/internal/transcript"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Summary describes a session for observers.
type Summary struct {
	ID        string
	Request   Request
	StartedAt time.Time
	EndedAt   time.Time
	Outcome   Outcome
	Err       error
	Fragments int
	Failures  int
}

// Observer is told when sessions start and finish. Calls are made from the
// session goroutine; SessionFinished runs before Wait returns.
type Observer interface {
	SessionStarted(Summary)
	SessionFinished(Summary)
}

type ChatConfig struct {
	Mode      framer.Mode
	Observers []Observer
	Logger    *slog.Logger
}

// Chat owns the transcript. Only the most recently submitted session may
// change it, and only until that session finishes or is cancelled.
type Chat struct {
	opener    Opener
	mode      framer.Mode
	observers []Observer
	logger    *slog.Logger

	mu       sync.Mutex
	state    transcript.State
	gen      uint64
	current  *Session
	onChange func(transcript.State)
	pubSeq   uint64 // sequence of the last snapshot taken; guarded by mu

	// Change callbacks run in pubSeq order with no lock held. delivered is
	// the sequence of the last finished callback.
	deliverMu   sync.Mutex
	deliverCond *sync.Cond
	delivered   uint64
}

func NewChat(opener Opener, cfg ChatConfig) *Chat {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	c := &Chat{
		opener:    opener,
		mode:      cfg.Mode,
		observers: cfg.Observers,
		logger:    logger,
	}
	c.deliverCond = sync.NewCond(&c.deliverMu)
	return c
}

// OnChange registers fn to receive a snapshot after every transcript
// mutation. Snapshots arrive in mutation order on the mutating goroutine.
// fn may read the chat but must not call Submit or Cancel synchronously,
// and should not block for long: later mutations wait for it.
func (c *Chat) OnChange(fn func(transcript.State)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Transcript returns the current snapshot.
func (c *Chat) Transcript() transcript.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the active session, or nil.
func (c *Chat) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Submit supersedes any in-flight session and starts a new one. The previous
// session loses write access before the transcript is reset.
func (c *Chat) Submit(ctx context.Context, req Request) *Session {
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ID:        uuid.NewString(),
		Request:   req,
		chat:      c,
		cancel:    cancel,
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}

	c.mu.Lock()
	prev := c.current
	if prev != nil {
		prev.revoked = true
	}
	c.gen++
	s.gen = c.gen
	c.current = s
	c.state = transcript.Reduce(c.state, transcript.Submitted{Text: req.Prompt()})
	c.publishLocked()

	if prev != nil {
		c.logger.Debug("stream: superseding session", "session", prev.ID, "by", s.ID)
		prev.Cancel()
	}
	c.logger.Info("stream: session started", "session", s.ID, "company", req.Company)
	go s.run(sctx)
	return s
}

// Close cancels the active session, if any.
func (c *Chat) Close() {
	if s := c.Current(); s != nil {
		s.Cancel()
	}
}

// apply folds in on behalf of s. It reports false once s has lost write
// access. When final is set, s loses write access after the mutation.
func (c *Chat) apply(s *Session, in transcript.Input, final bool) bool {
	c.mu.Lock()
	if s.revoked || s.gen != c.gen {
		c.mu.Unlock()
		return false
	}
	if final {
		s.revoked = true
	}
	c.state = transcript.Reduce(c.state, in)
	c.publishLocked()
	return true
}

// publishLocked hands the snapshot to the change callback in mutation order.
// It must be called with c.mu held and releases it before waiting for
// earlier callbacks, so a callback may read the chat freely.
func (c *Chat) publishLocked() {
	c.pubSeq++
	seq, snap, fn := c.pubSeq, c.state, c.onChange
	c.mu.Unlock()

	c.deliverMu.Lock()
	for c.delivered != seq-1 {
		c.deliverCond.Wait()
	}
	c.deliverMu.Unlock()

	if fn != nil {
		fn(snap)
	}

	c.deliverMu.Lock()
	c.delivered = seq
	c.deliverMu.Unlock()
	c.deliverCond.Broadcast()
}

// Session is one request lifecycle. Cancel is its cancellation token.
type Session struct {
	ID      string
	Request Request

	chat       *Chat
	gen        uint64
	revoked    bool // guarded by chat.mu
	cancel     context.CancelFunc
	cancelOnce sync.Once
	done       chan struct{}
	err        error
	startedAt  time.Time

	fragments int
	failures  int
}

// Cancel tears the transport down and stops any further transcript change
// from this session. The pending placeholder is removed silently if the
// session still owns the transcript. Calling Cancel again does nothing.
func (s *Session) Cancel() {
	s.cancelOnce.Do(func() {
		s.chat.apply(s, transcript.Cancelled{}, true)
		s.cancel()
	})
}

// Done is closed when the session has stopped reading.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session ends. It returns nil after a clean end of
// stream, ErrCancelled after cancellation, or a *TransportError.
func (s *Session) Wait() error {
	<-s.done
	return s.err
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	logger := s.chat.logger.With("session", s.ID)
	s.notify(func(o Observer, sum Summary) { o.SessionStarted(sum) })

	body, err := s.chat.opener.Open(ctx, s.Request)
	if err != nil {
		s.finish(ctx, logger, err)
		return
	}
	defer body.Close()

	for fr, err := range framer.Frames(body, s.chat.mode, logger) {
		if err != nil {
			s.finish(ctx, logger, err)
			return
		}
		ev, ok := event.Decode(fr)
		if !ok {
			continue
		}
		switch ev := ev.(type) {
		case event.ContentFragment:
			s.fragments++
		case event.Failure:
			s.failures++
			logger.Warn("stream: service reported an error", "err", ev.Error())
		case event.MalformedPayload:
			logger.Warn("stream: malformed payload", "err", ev.Err, "frame", ev.Raw)
		}
		if !s.chat.apply(s, transcript.Received{Event: ev}, false) {
			s.finish(ctx, logger, ErrCancelled)
			return
		}
	}
	s.finish(ctx, logger, nil)
}

func (s *Session) finish(ctx context.Context, logger *slog.Logger, err error) {
	outcome := OutcomeCompleted
	switch {
	case ctx.Err() != nil || errors.Is(err, ErrCancelled):
		// Covers a parent context going away without Cancel being called.
		s.chat.apply(s, transcript.Cancelled{}, true)
		s.err = ErrCancelled
		outcome = OutcomeCancelled
	case err != nil:
		var te *TransportError
		if !errors.As(err, &te) {
			te = &TransportError{Op: "read stream", Err: err}
		}
		s.chat.apply(s, transcript.TransportFailed{Err: te}, true)
		s.err = te
		outcome = OutcomeFailed
	default:
		s.chat.apply(s, transcript.StreamEnded{}, true)
	}
	logger.Info("stream: session finished", "outcome", string(outcome), "fragments", s.fragments, "err", s.err)

	end := time.Now()
	s.notify(func(o Observer, sum Summary) {
		sum.EndedAt = end
		sum.Outcome = outcome
		sum.Err = s.err
		o.SessionFinished(sum)
	})
}

func (s *Session) notify(fn func(Observer, Summary)) {
	sum := Summary{
		ID:        s.ID,
		Request:   s.Request,
		StartedAt: s.startedAt,
		Fragments: s.fragments,
		Failures:  s.failures,
	}
	for _, o := range s.chat.observers {
		fn(o, sum)
	}
}
