package dialogs

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// ConfirmQuitDialog asks before quitting while an analysis is still streaming.
// onQuit is called for "Quit"; onStay on "Keep waiting" or Escape.
func ConfirmQuitDialog(company string, onQuit func(), onStay func()) *tview.Modal {
	modal := tview.NewModal().
		SetText(fmt.Sprintf("The %s analysis is still running.\nQuitting cancels it.", company)).
		AddButtons([]string{"Quit", "Keep waiting"}).
		SetDoneFunc(func(_ int, label string) {
			if label == "Quit" {
				onQuit()
			} else {
				onStay()
			}
		})
	modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			onStay()
			return nil
		}
		return event
	})
	return modal
}
