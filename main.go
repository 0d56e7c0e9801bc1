// Command stockchat is a terminal client for the stock analysis service.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zsprackett/stockchat/internal/applog"
	"github.com/zsprackett/stockchat/internal/auth"
	"github.com/zsprackett/stockchat/internal/config"
	"github.com/zsprackett/stockchat/internal/healthpoller"
	"github.com/zsprackett/stockchat/internal/journal"
	"github.com/zsprackett/stockchat/internal/notify"
	"github.com/zsprackett/stockchat/internal/progress"
	"github.com/zsprackett/stockchat/internal/stream"
	"github.com/zsprackett/stockchat/internal/ui"
)

var (
	configPath  string
	baseURL     string
	progressURL string
	logLevel    string
	company     string
)

var rootCmd = &cobra.Command{
	Use:   "stockchat",
	Short: "Chat with the stock analysis service",
	Long: `stockchat sends a company (and optionally a question) to the stock
analysis service, shows the agents' answers as they stream in, and lists
the tools the agents run in a second pane.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config.json")
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "", "Analysis service base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&progressURL, "progress-url", "", "Tool usage websocket URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	rootCmd.Flags().StringVar(&company, "company", "", "Company to prefill in the ask form")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env is the wiring shared by every command.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	tokens  *auth.TokenSource
	journal *journal.Journal
	closers []io.Closer
}

// setup loads config and logging. echo, when set, mirrors log lines there.
func setup(echo io.Writer, withJournal bool) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.Service.BaseURL = baseURL
	}
	if progressURL != "" {
		cfg.Service.ProgressURL = progressURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	e := &env{cfg: cfg}
	logger, logCloser, err := applog.Init(applog.InitConfig{
		LogDir:   cfg.LogDir,
		LogLevel: cfg.LogLevel,
		Echo:     echo,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not init log file: %v\n", err)
		logger = applog.Discard()
	} else {
		e.closers = append(e.closers, logCloser)
	}
	e.logger = logger

	if cfg.Auth.JWTSecret != "" {
		e.tokens = auth.NewTokenSource(cfg.Auth.JWTSecret, cfg.Auth.Subject, cfg.TokenTTL())
	}

	if withJournal && cfg.Journal.Enabled {
		j, err := openJournal(cfg.Journal.Path, logger)
		if err != nil {
			logger.Warn("journal disabled", "err", err)
			fmt.Fprintf(os.Stderr, "warning: journal disabled: %v\n", err)
		} else {
			e.journal = j
			e.closers = append(e.closers, j)
		}
	}
	return e, nil
}

func openJournal(path string, logger *slog.Logger) (*journal.Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	j, err := journal.Open(path, logger)
	if err != nil {
		return nil, err
	}
	if err := j.Migrate(); err != nil {
		j.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i].Close()
	}
}

func (e *env) client() *stream.Client {
	return stream.NewClient(e.cfg.Service.BaseURL, e.cfg.RequestTimeout(), e.tokens, e.logger)
}

func (e *env) newChat(client *stream.Client) (*stream.Chat, error) {
	mode, err := e.cfg.FramingMode()
	if err != nil {
		return nil, err
	}
	var observers []stream.Observer
	if e.journal != nil {
		observers = append(observers, e.journal)
	}
	if e.cfg.Notifications.Enabled {
		observers = append(observers, notify.New(notify.Config{
			Enabled: e.cfg.Notifications.Enabled,
			Webhook: e.cfg.Notifications.Webhook,
			NtfyURL: e.cfg.Notifications.NtfyURL,
		}, e.logger))
	}
	return stream.NewChat(client, stream.ChatConfig{Mode: mode, Observers: observers, Logger: e.logger}), nil
}

// newProgress builds the tool usage channel. Every record is journaled before
// it reaches handler.
func (e *env) newProgress(handler func(progress.ToolUsageRecord), onStatus func(bool)) *progress.Channel {
	cfg := progress.Config{
		URL:            e.cfg.Service.ProgressURL,
		ReconnectDelay: e.cfg.ReconnectDelay(),
		OnStatus:       onStatus,
	}
	if e.tokens.Enabled() {
		cfg.Token = e.tokens.Token
	}
	return progress.New(cfg, func(rec progress.ToolUsageRecord) {
		if e.journal != nil {
			if err := e.journal.RecordToolUsage(rec); err != nil {
				e.logger.Warn("journal tool usage", "run_id", rec.RunID, "err", err)
			}
		}
		handler(rec)
	}, e.logger)
}

func runTUI(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("the chat UI needs a terminal; use `stockchat ask` for plain output")
	}
	e, err := setup(nil, true)
	if err != nil {
		return err
	}
	defer e.Close()

	client := e.client()
	chat, err := e.newChat(client)
	if err != nil {
		return err
	}
	app := ui.NewApp(ui.Deps{
		Chat:           chat,
		Journal:        e.journal,
		DefaultCompany: company,
		Logger:         e.logger,
	})
	ch := e.newProgress(app.OnToolUsage, app.OnProgressStatus)
	health := healthpoller.New(client, e.cfg.HealthInterval(), app.OnHealth, e.logger)

	e.logger.Info("stockchat started", "service", e.cfg.Service.BaseURL)
	return app.Run(ch, health)
}
