package dialogs

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type AskResult struct {
	Company  string
	Question string
}

// AskDialog shows a form for a new analysis request. The question is optional;
// without it the service is asked for a general analysis of the company.
// onSubmit is only called with a non-blank company.
func AskDialog(defaultCompany string, onSubmit func(AskResult), onCancel func()) *tview.Form {
	form := tview.NewForm()
	form.SetBorder(true).SetTitle(" Ask ").SetTitleAlign(tview.AlignLeft)
	form.SetBackgroundColor(tcell.ColorDefault)
	form.SetFieldBackgroundColor(tcell.ColorDefault)

	form.AddInputField("Company", defaultCompany, 30, nil, nil)
	form.AddInputField("Question (optional)", "", 50, nil, nil)

	submit := func() {
		company := strings.TrimSpace(form.GetFormItemByLabel("Company").(*tview.InputField).GetText())
		question := strings.TrimSpace(form.GetFormItemByLabel("Question (optional)").(*tview.InputField).GetText())
		if company == "" {
			form.SetFocus(0)
			return
		}
		onSubmit(AskResult{Company: company, Question: question})
	}
	form.AddButton("Analyze", submit)
	form.AddButton("Cancel", onCancel)

	form.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			onCancel()
			return nil
		}
		return event
	})
	return form
}
