package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zsprackett/stockchat/internal/webserver"
)

var (
	mockHost string
	mockPort int
)

var serveMockCmd = &cobra.Command{
	Use:   "serve-mock",
	Short: "Run a local stand-in for the analysis service",
	Long: `Serve GET /, POST /stream_endpoint and the /ws/tool_usage websocket
with a scripted analysis, so the client can be tried without the real
service.`,
	Args: cobra.NoArgs,
	RunE: runServeMock,
}

func init() {
	rootCmd.AddCommand(serveMockCmd)
	serveMockCmd.Flags().StringVar(&mockHost, "host", "", "Listen host (overrides config)")
	serveMockCmd.Flags().IntVar(&mockPort, "port", -1, "Listen port, 0 for any (overrides config)")
}

func runServeMock(cmd *cobra.Command, args []string) error {
	e, err := setup(os.Stderr, false)
	if err != nil {
		return err
	}
	defer e.Close()

	cfg := e.cfg.Mock
	if mockHost != "" {
		cfg.Host = mockHost
	}
	if mockPort >= 0 {
		cfg.Port = mockPort
	}
	srv := webserver.New(webserver.Config{
		Enabled:   true,
		Host:      cfg.Host,
		Port:      cfg.Port,
		StepDelay: e.cfg.MockStepDelay(),
		JWTSecret: e.cfg.Auth.JWTSecret,
	}, e.logger)
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "mock analysis service on http://%s\n", srv.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
