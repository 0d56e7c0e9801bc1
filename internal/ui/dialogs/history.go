package dialogs

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/stockchat/internal/journal"
)

// historyLimit is how many sessions the dialog lists.
const historyLimit = 20

// HistorySource is satisfied by *journal.Journal.
type HistorySource interface {
	RecentSessions(limit int) ([]journal.SessionEntry, error)
}

// HistoryDialog is a text view listing recent analysis sessions.
type HistoryDialog struct {
	*tview.TextView
	src HistorySource
}

// NewHistoryDialog creates the dialog and loads it. onClose is called on Q or
// Escape; R reloads.
func NewHistoryDialog(src HistorySource, onClose func()) *HistoryDialog {
	d := &HistoryDialog{TextView: tview.NewTextView(), src: src}
	d.SetBorder(true).SetTitle(" Session History ").SetTitleAlign(tview.AlignLeft)
	d.SetDynamicColors(true)
	d.SetBackgroundColor(tcell.ColorDefault)

	d.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyEscape, event.Rune() == 'q', event.Rune() == 'Q':
			onClose()
			return nil
		case event.Rune() == 'r', event.Rune() == 'R':
			d.Reload()
			return nil
		}
		return event
	})

	d.Reload()
	return d
}

// Reload re-reads the journal and updates the displayed text.
func (d *HistoryDialog) Reload() {
	if d.src == nil {
		d.SetText(FormatHistory(nil, fmt.Errorf("journal disabled"), time.Now()))
		return
	}
	entries, err := d.src.RecentSessions(historyLimit)
	d.SetText(FormatHistory(entries, err, time.Now()))
}

// FormatHistory renders entries, newest first, as tview-tagged text.
func FormatHistory(entries []journal.SessionEntry, err error, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("\n")
	switch {
	case err != nil:
		sb.WriteString(fmt.Sprintf("  [red]Cannot read history: %s[-]\n", tview.Escape(err.Error())))
	case len(entries) == 0:
		sb.WriteString("  [yellow]No sessions recorded yet.[-]\n")
	}

	for _, e := range entries {
		color := "green"
		switch e.Outcome {
		case "failed":
			color = "red"
		case "cancelled":
			color = "gray"
		case journal.OutcomeRunning:
			color = "yellow"
		}
		sb.WriteString(fmt.Sprintf("  [%s]%-9s[-] %-16s %s",
			color, e.Outcome, tview.Escape(truncateRunes(e.Company, 16)),
			humanize.RelTime(e.StartedAt, now, "ago", "from now")))
		if !e.EndedAt.IsZero() {
			sb.WriteString(fmt.Sprintf("  %s, %d messages", e.EndedAt.Sub(e.StartedAt).Round(time.Second), e.Fragments))
		}
		sb.WriteString("\n")
		if e.Error != "" {
			sb.WriteString(fmt.Sprintf("            [red]%s[-]\n", tview.Escape(truncateRunes(e.Error, 60))))
		}
	}
	sb.WriteString("\n  [green]R[-] reload  [green]Q/Esc[-] close")
	return sb.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
