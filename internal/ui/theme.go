package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/zsprackett/stockchat/internal/progress"
	"github.com/zsprackett/stockchat/internal/transcript"
)

// Theme colors for the TUI.
var (
	ColorBackground      = tcell.NewHexColor(0x1e1e2e)
	ColorBackgroundPanel = tcell.NewHexColor(0x181825)
	ColorBackgroundElem  = tcell.NewHexColor(0x313244)
	ColorPrimary         = tcell.NewHexColor(0x89b4fa) // blue
	ColorAccent          = tcell.NewHexColor(0xcba6f7) // mauve
	ColorText            = tcell.NewHexColor(0xcdd6f4)
	ColorTextMuted       = tcell.NewHexColor(0x6c7086)
	ColorSuccess         = tcell.NewHexColor(0xa6e3a1) // green
	ColorWarning         = tcell.NewHexColor(0xf9e2af) // yellow
	ColorError           = tcell.NewHexColor(0xf38ba8) // red
	ColorBorder          = tcell.NewHexColor(0x45475a)
)

// Icons
const (
	IconUser    = "›"
	IconPending = "◐"
	IconAgent   = "●"
	IconError   = "✗"
	IconSystem  = "⚠"
	IconRunning = "⟳"
	IconDone    = "✓"
)

// RoleStyle returns the icon and color a transcript role is drawn with.
func RoleStyle(role transcript.Role) (string, tcell.Color) {
	switch role {
	case transcript.RoleUser:
		return IconUser, ColorPrimary
	case transcript.RolePending:
		return IconPending, ColorTextMuted
	case transcript.RoleAgent:
		return IconAgent, ColorSuccess
	case transcript.RoleError:
		return IconError, ColorError
	case transcript.RoleSystem:
		return IconSystem, ColorWarning
	default:
		return " ", ColorText
	}
}

// KindStyle returns the icon and color for a tool usage record.
func KindStyle(kind progress.Kind) (string, tcell.Color) {
	if kind == progress.KindStart {
		return IconRunning, ColorAccent
	}
	return IconDone, ColorSuccess
}

// colorTag renders c as a tview color tag.
func colorTag(c tcell.Color) string {
	return fmt.Sprintf("[#%06x]", c.Hex())
}
