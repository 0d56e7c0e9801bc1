package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"

	"github.com/zsprackett/stockchat/internal/progress"
	"github.com/zsprackett/stockchat/internal/transcript"
)

// TruncateLength is how many characters of a long agent message are shown
// until the transcript is expanded.
const TruncateLength = 200

// Truncate shortens text to n characters plus an ellipsis. It reports whether
// anything was cut.
func Truncate(text string, n int) (string, bool) {
	r := []rune(text)
	if len(r) <= n {
		return text, false
	}
	return string(r[:n]) + "...", true
}

// RenderTranscript renders msgs as tview-tagged text. Long agent messages are
// truncated unless expand is set.
func RenderTranscript(msgs []transcript.Message, expand bool) string {
	var sb strings.Builder
	for i, m := range msgs {
		if i > 0 {
			sb.WriteString("\n")
		}
		icon, color := RoleStyle(m.Role)
		tag := colorTag(color)
		switch m.Role {
		case transcript.RoleUser:
			fmt.Fprintf(&sb, "%s%s [::b]You[::-][-]\n  %s\n", tag, icon, tview.Escape(m.Text))
		case transcript.RolePending:
			fmt.Fprintf(&sb, "%s%s analyzing...[-]\n", tag, icon)
		case transcript.RoleAgent:
			text, cut := m.Text, false
			if !expand {
				text, cut = Truncate(m.Text, TruncateLength)
			}
			fmt.Fprintf(&sb, "%s%s [::b]%s[::-][-]\n  %s\n", tag, icon, tview.Escape(m.Sender), tview.Escape(text))
			if cut {
				fmt.Fprintf(&sb, "  %s(press e to expand)[-]\n", colorTag(ColorTextMuted))
			}
		case transcript.RoleError:
			fmt.Fprintf(&sb, "%s%s %s[-]\n", tag, icon, tview.Escape(m.Text))
		case transcript.RoleSystem:
			// Shown in full so the raw payload can be inspected.
			fmt.Fprintf(&sb, "%s%s unreadable payload:[-] %s\n", tag, icon, tview.Escape(m.Text))
		}
	}
	return sb.String()
}

// RenderToolUsage renders records oldest first. Ages are relative to now.
func RenderToolUsage(recs []progress.ToolUsageRecord, now time.Time) string {
	if len(recs) == 0 {
		return colorTag(ColorTextMuted) + "No tool activity yet.[-]"
	}
	var sb strings.Builder
	for _, r := range recs {
		icon, color := KindStyle(r.Kind)
		fmt.Fprintf(&sb, "%s%s[-] %s\n", colorTag(color), icon, tview.Escape(r.Title()))
		fmt.Fprintf(&sb, "  %s%s[-]\n", colorTag(ColorTextMuted), humanize.RelTime(r.ObservedAt, now, "ago", "from now"))
	}
	return sb.String()
}

// StatusLine renders the header: service health, progress channel state and
// what the chat is doing.
func StatusLine(online, progressUp bool, activity string) string {
	health := colorTag(ColorError) + "● service offline[-]"
	if online {
		health = colorTag(ColorSuccess) + "● service online[-]"
	}
	push := colorTag(ColorWarning) + "◌ progress reconnecting[-]"
	if progressUp {
		push = colorTag(ColorSuccess) + "◉ progress live[-]"
	}
	return fmt.Sprintf("%s[::b]STOCKCHAT[::-][-]   %s  %s   %s",
		colorTag(ColorPrimary), health, push, tview.Escape(activity))
}
