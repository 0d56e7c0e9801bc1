package ui

import (
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/stockchat/internal/progress"
	"github.com/zsprackett/stockchat/internal/transcript"
)

// maxToolRecords bounds the tool usage pane; older records scroll away.
const maxToolRecords = 200

// ChatView is the main screen: transcript on the left, tool usage on the
// right. All methods must run on the tview event goroutine.
type ChatView struct {
	*tview.Flex
	header     *tview.TextView
	transcript *tview.TextView
	tools      *tview.TextView
	footer     *tview.TextView

	msgs       []transcript.Message
	records    []progress.ToolUsageRecord
	expand     bool
	online     bool
	progressUp bool
	activity   string

	onAsk     func()
	onCancel  func()
	onHistory func()
	onQuit    func()
}

func NewChatView() *ChatView {
	v := &ChatView{activity: "ready"}

	v.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	v.header.SetBackgroundColor(ColorBackgroundPanel)

	v.transcript = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true).
		SetWordWrap(true)
	v.transcript.SetBackgroundColor(ColorBackground)
	v.transcript.SetBorderPadding(0, 0, 1, 1)

	v.tools = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	v.tools.SetBackgroundColor(ColorBackground)
	v.tools.SetBorderPadding(0, 0, 1, 1)

	v.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	v.footer.SetBackgroundColor(ColorBackgroundPanel)
	v.footer.SetText(
		"[green]n/Enter[-] ask  [green]Esc[-] cancel  [green]e[-] expand  " +
			"[green]c[-] clear tools  [green]h[-] history  [green]?[-] help  [green]q[-] quit")

	separator := tview.NewBox().SetBackgroundColor(ColorBorder)

	content := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(v.transcript, 0, 65, true).
		AddItem(separator, 1, 0, false).
		AddItem(v.tools, 0, 35, false)

	v.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.header, 1, 0, false).
		AddItem(content, 0, 1, true).
		AddItem(v.footer, 1, 0, false)

	v.setupInput()
	v.renderHeader()
	v.renderTools()
	return v
}

func (v *ChatView) SetCallbacks(onAsk, onCancel, onHistory, onQuit func()) {
	v.onAsk = onAsk
	v.onCancel = onCancel
	v.onHistory = onHistory
	v.onQuit = onQuit
}

// SetTranscript replaces the transcript with a new snapshot.
func (v *ChatView) SetTranscript(s transcript.State) {
	v.msgs = s.Messages()
	v.renderTranscript()
}

func (v *ChatView) AddToolUsage(rec progress.ToolUsageRecord) {
	v.records = append(v.records, rec)
	if len(v.records) > maxToolRecords {
		v.records = v.records[len(v.records)-maxToolRecords:]
	}
	v.renderTools()
}

func (v *ChatView) ClearToolUsage() {
	v.records = nil
	v.renderTools()
}

func (v *ChatView) SetHealth(online bool) {
	v.online = online
	v.renderHeader()
}

func (v *ChatView) SetProgressConnected(up bool) {
	v.progressUp = up
	v.renderHeader()
}

func (v *ChatView) SetActivity(s string) {
	v.activity = s
	v.renderHeader()
}

func (v *ChatView) ToggleExpand() {
	v.expand = !v.expand
	v.renderTranscript()
}

func (v *ChatView) renderTranscript() {
	v.transcript.SetText(RenderTranscript(v.msgs, v.expand))
	v.transcript.ScrollToEnd()
}

func (v *ChatView) renderTools() {
	v.tools.SetText(RenderToolUsage(v.records, time.Now()))
	v.tools.ScrollToEnd()
}

func (v *ChatView) renderHeader() {
	v.header.SetText(StatusLine(v.online, v.progressUp, v.activity))
}

func (v *ChatView) setupInput() {
	v.transcript.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter:
			if v.onAsk != nil {
				v.onAsk()
			}
			return nil
		case tcell.KeyEscape:
			if v.onCancel != nil {
				v.onCancel()
			}
			return nil
		}

		switch event.Rune() {
		case 'n':
			if v.onAsk != nil {
				v.onAsk()
			}
			return nil
		case 'e':
			v.ToggleExpand()
			return nil
		case 'c':
			v.ClearToolUsage()
			return nil
		case 'h':
			if v.onHistory != nil {
				v.onHistory()
			}
			return nil
		case 'q':
			if v.onQuit != nil {
				v.onQuit()
			}
			return nil
		}
		return event
	})
}
