package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zsprackett/stockchat/internal/progress"
	"github.com/zsprackett/stockchat/internal/stream"
	"github.com/zsprackett/stockchat/internal/transcript"
)

var (
	askJSON     bool
	askProgress bool
)

var askCmd = &cobra.Command{
	Use:   "ask <company> [question...]",
	Short: "Run one analysis and print the answers",
	Long: `Run one analysis without the terminal UI. Messages are printed as they
arrive. Ctrl-C cancels the analysis.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print one JSON object per message")
	askCmd.Flags().BoolVar(&askProgress, "progress", true, "Print tool activity to stderr")
}

type printedMessage struct {
	Role   transcript.Role `json:"role"`
	Sender string          `json:"sender,omitempty"`
	Text   string          `json:"text"`
}

// messagePrinter writes each settled transcript message once.
type messagePrinter struct {
	mu      sync.Mutex
	w       io.Writer
	json    bool
	color   bool
	printed int
}

// update prints messages past the last printed one. Everything before the
// pending placeholder is settled; the reducer only appends.
func (p *messagePrinter) update(s transcript.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := s.Messages()
	if len(msgs) < p.printed {
		// A new submission reset the transcript.
		p.printed = 0
	}
	for ; p.printed < len(msgs); p.printed++ {
		m := msgs[p.printed]
		if m.Role == transcript.RolePending {
			return
		}
		p.print(m)
	}
}

func (p *messagePrinter) print(m transcript.Message) {
	if p.json {
		b, _ := json.Marshal(printedMessage{Role: m.Role, Sender: m.Sender, Text: m.Text})
		fmt.Fprintln(p.w, string(b))
		return
	}
	label := string(m.Role)
	if m.Sender != "" {
		label = m.Sender
	}
	if p.color {
		label = ansiColor(m.Role) + label + "\x1b[0m"
	}
	fmt.Fprintf(p.w, "%s: %s\n", label, m.Text)
}

func ansiColor(r transcript.Role) string {
	switch r {
	case transcript.RoleUser:
		return "\x1b[1;36m"
	case transcript.RoleAgent:
		return "\x1b[1;32m"
	case transcript.RoleError:
		return "\x1b[1;31m"
	default:
		return "\x1b[1;33m"
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	e, err := setup(nil, true)
	if err != nil {
		return err
	}
	defer e.Close()

	chat, err := e.newChat(e.client())
	if err != nil {
		return err
	}
	printer := &messagePrinter{
		w:     os.Stdout,
		json:  askJSON,
		color: !askJSON && term.IsTerminal(int(os.Stdout.Fd())),
	}
	chat.OnChange(printer.update)

	if askProgress {
		ch := e.newProgress(func(rec progress.ToolUsageRecord) {
			fmt.Fprintf(os.Stderr, "  %s %s\n", kindMark(rec.Kind), rec.Title())
		}, nil)
		ch.Start()
		defer ch.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := stream.Request{Company: args[0], UserInput: strings.Join(args[1:], " ")}
	return askOutcome(cmd, chat.Submit(ctx, req).Wait())
}

// askOutcome maps the session result to the command result. Transport
// failures already appear in the printed transcript, so cobra is told not to
// print them again; the command still fails.
func askOutcome(cmd *cobra.Command, err error) error {
	var te *stream.TransportError
	switch {
	case errors.Is(err, stream.ErrCancelled):
		fmt.Fprintln(cmd.ErrOrStderr(), "cancelled")
		return nil
	case errors.As(err, &te):
		cmd.SilenceErrors = true
		return err
	}
	return err
}

func kindMark(k progress.Kind) string {
	if k == progress.KindStart {
		return "▶"
	}
	return "✓"
}
