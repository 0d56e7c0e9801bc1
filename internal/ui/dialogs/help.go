package dialogs

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const helpText = `[yellow]Chat Keys[-]

  [green]n/Enter[-]  Ask about a company
  [green]Esc[-]      Cancel the running analysis
  [green]e[-]        Expand or collapse long agent messages
  [green]c[-]        Clear the tool usage list
  [green]h[-]        Session history
  [green]↑↓ PgUp PgDn[-]  Scroll the transcript
  [green]?[-]        This help
  [green]q[-]        Quit

[yellow]Tool Usage[-]

  [violet]⟳[-]  a tool started
  [green]✓[-]  a tool finished; its title is the start title plus [완료]

Press [green]Escape[-] or [green]?[-] to close.`

func HelpDialog(onClose func()) *tview.TextView {
	tv := tview.NewTextView()
	tv.SetBorder(true).SetTitle(" Help ").SetTitleAlign(tview.AlignLeft)
	tv.SetDynamicColors(true)
	tv.SetBackgroundColor(tcell.ColorDefault)
	tv.SetText(helpText)
	tv.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == '?' {
			onClose()
			return nil
		}
		return event
	})
	return tv
}
