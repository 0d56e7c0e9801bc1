package ui

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/stockchat/internal/applog"
	"github.com/zsprackett/stockchat/internal/healthpoller"
	"github.com/zsprackett/stockchat/internal/journal"
	"github.com/zsprackett/stockchat/internal/progress"
	"github.com/zsprackett/stockchat/internal/stream"
	"github.com/zsprackett/stockchat/internal/transcript"
	"github.com/zsprackett/stockchat/internal/ui/dialogs"
)

// lastCompanyKey is the journal metadata key remembering the last company.
const lastCompanyKey = "last_company"

// Service is a background worker the app starts and stops with itself, such
// as the progress channel or the health poller.
type Service interface {
	Start()
	Stop()
}

type Deps struct {
	Chat *stream.Chat
	// Journal may be nil.
	Journal        *journal.Journal
	DefaultCompany string
	Logger         *slog.Logger
}

type App struct {
	tapp    *tview.Application
	pages   *tview.Pages
	view    *ChatView
	chat    *stream.Chat
	journal *journal.Journal
	logger  *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
	company   string // last submitted or default; UI goroutine only
	cancelled bool   // the current analysis was cancelled; UI goroutine only

	// latest is the newest transcript snapshot not yet drawn. At most one
	// redraw is queued at a time.
	stateMu      sync.Mutex
	latest       transcript.State
	redrawQueued bool
}

func NewApp(d Deps) *App {
	logger := d.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		chat:    d.Chat,
		journal: d.Journal,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		company: d.DefaultCompany,
	}
	if a.company == "" && a.journal != nil {
		if last, err := a.journal.GetMeta(lastCompanyKey); err == nil {
			a.company = last
		}
	}

	a.tapp = tview.NewApplication()
	a.pages = tview.NewPages()
	a.view = NewChatView()

	a.pages.AddPage("chat", a.view, true, true)
	a.tapp.SetRoot(a.pages, true).EnableMouse(false)
	a.tapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == '?' && !a.dialogOpen() {
			a.showHelp()
			return nil
		}
		return event
	})

	a.view.SetCallbacks(a.onAsk, a.onCancel, a.onHistory, a.onQuit)
	return a
}

// OnToolUsage is the progress channel handler. Safe from any goroutine.
func (a *App) OnToolUsage(rec progress.ToolUsageRecord) {
	a.queue(func() { a.view.AddToolUsage(rec) })
}

// OnProgressStatus is the progress channel status callback.
func (a *App) OnProgressStatus(up bool) {
	a.queue(func() { a.view.SetProgressConnected(up) })
}

// OnHealth is the health poller callback.
func (a *App) OnHealth(st healthpoller.Status) {
	a.queue(func() { a.view.SetHealth(st.Online) })
}

// Run shows the UI until the user quits. services are started before the UI
// and stopped, in reverse order, after it.
func (a *App) Run(services ...Service) error {
	a.chat.OnChange(a.publishTranscript)
	for _, s := range services {
		s.Start()
	}
	defer func() {
		a.closed.Store(true)
		a.chat.OnChange(nil)
		a.chat.Close()
		a.cancel()
		// Let observers record the outcome before the journal is closed.
		if s := a.chat.Current(); s != nil {
			s.Wait()
		}
		for i := len(services) - 1; i >= 0; i-- {
			services[i].Stop()
		}
	}()

	a.onAsk()
	return a.tapp.Run()
}

// queue runs fn on the UI goroutine unless the app has shut down.
func (a *App) queue(fn func()) {
	if a.closed.Load() {
		return
	}
	a.tapp.QueueUpdateDraw(fn)
}

// publishTranscript is the chat change callback. It never blocks: the chat
// holds back later mutations until it returns, and QueueUpdateDraw blocks
// once tview's update queue is full.
func (a *App) publishTranscript(s transcript.State) {
	a.stateMu.Lock()
	a.latest = s
	queued := a.redrawQueued
	a.redrawQueued = true
	a.stateMu.Unlock()
	if queued {
		return
	}
	go a.queue(func() {
		a.stateMu.Lock()
		s := a.latest
		a.redrawQueued = false
		a.stateMu.Unlock()
		a.onTranscript(s)
	})
}

func (a *App) onTranscript(s transcript.State) {
	a.view.SetTranscript(s)
	switch {
	case s.Pending():
		a.view.SetActivity(a.company + ": analyzing")
	case s.Len() > 0 && !a.cancelled:
		a.view.SetActivity(a.company + ": done")
	}
}

func (a *App) dialogOpen() bool {
	name, _ := a.pages.GetFrontPage()
	return name != "chat"
}

func (a *App) showDialog(name string, widget tview.Primitive, width, height int) {
	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexColumn).
			AddItem(nil, 0, 1, false).
			AddItem(widget, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)
	a.pages.AddPage(name, modal, true, true)
	a.tapp.SetFocus(widget)
}

func (a *App) closeDialog(name string) {
	a.pages.RemovePage(name)
	a.tapp.SetFocus(a.view.transcript)
}

func (a *App) showHelp() {
	a.showDialog("help", dialogs.HelpDialog(func() { a.closeDialog("help") }), 64, 24)
}

func (a *App) onAsk() {
	form := dialogs.AskDialog(a.company,
		func(res dialogs.AskResult) {
			a.closeDialog("ask")
			a.submit(stream.Request{Company: res.Company, UserInput: res.Question})
		},
		func() { a.closeDialog("ask") },
	)
	a.showDialog("ask", form, 72, 9)
}

func (a *App) submit(req stream.Request) {
	a.company = req.Company
	a.cancelled = false
	a.view.SetActivity(req.Company + ": connecting")
	if a.journal != nil {
		if err := a.journal.SetMeta(lastCompanyKey, req.Company); err != nil {
			a.logger.Warn("ui: remember company", "err", err)
		}
	}
	a.chat.Submit(a.ctx, req)
}

func (a *App) onCancel() {
	s := a.chat.Current()
	if s == nil {
		return
	}
	select {
	case <-s.Done():
		return
	default:
	}
	s.Cancel()
	a.cancelled = true
	a.view.SetActivity(s.Request.Company + ": cancelled")
}

func (a *App) onHistory() {
	var src dialogs.HistorySource
	if a.journal != nil {
		src = a.journal
	}
	d := dialogs.NewHistoryDialog(src, func() { a.closeDialog("history") })
	a.showDialog("history", d, 90, 26)
}

func (a *App) onQuit() {
	if !a.chat.Transcript().Pending() {
		a.tapp.Stop()
		return
	}
	modal := dialogs.ConfirmQuitDialog(a.company,
		func() { a.tapp.Stop() },
		func() { a.closeDialog("quit") },
	)
	a.pages.AddPage("quit", modal, true, true)
}
