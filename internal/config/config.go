package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zsprackett/stockchat/internal/framer"
)

type ServiceConfig struct {
	BaseURL     string `json:"baseURL"`
	ProgressURL string `json:"progressURL"`
	// Framing is "events" (blank-line delimited) or "lines".
	Framing        string `json:"framing"`
	ReconnectDelay string `json:"reconnectDelay"`
	RequestTimeout string `json:"requestTimeout"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwtSecret"`
	Subject   string `json:"subject"`
	TokenTTL  string `json:"tokenTTL"`
}

type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type NotificationsConfig struct {
	Enabled bool   `json:"enabled"`
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

type HealthConfig struct {
	Interval string `json:"interval"`
}

type MockConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	StepDelay string `json:"stepDelay"`
}

type Config struct {
	Service       ServiceConfig       `json:"service"`
	Auth          AuthConfig          `json:"auth"`
	LogDir        string              `json:"logDir"`
	LogLevel      string              `json:"logLevel"`
	Journal       JournalConfig       `json:"journal"`
	Notifications NotificationsConfig `json:"notifications"`
	Health        HealthConfig        `json:"health"`
	Mock          MockConfig          `json:"mock"`
}

func Defaults() Config {
	return Config{
		Service: ServiceConfig{
			BaseURL:        "http://localhost:8000",
			ProgressURL:    "ws://localhost:8000/ws/tool_usage",
			Framing:        "events",
			ReconnectDelay: "5s",
			RequestTimeout: "30s",
		},
		Auth: AuthConfig{
			Subject:  "stockchat",
			TokenTTL: "15m",
		},
		LogDir:   filepath.Join(Dir(), "logs"),
		LogLevel: "info",
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(Dir(), "journal.db"),
		},
		Health: HealthConfig{Interval: "30s"},
		Mock: MockConfig{
			Host:      "127.0.0.1",
			Port:      8000,
			StepDelay: "750ms",
		},
	}
}

// Dir is the per-user state directory.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".stockchat")
}

func DefaultPath() string {
	return filepath.Join(Dir(), "config.json")
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if _, err := cfg.FramingMode(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FramingMode maps Service.Framing to a framer mode.
func (c Config) FramingMode() (framer.Mode, error) {
	switch c.Service.Framing {
	case "", "events":
		return framer.ModeEvents, nil
	case "lines":
		return framer.ModeLines, nil
	default:
		return 0, fmt.Errorf("unknown framing %q (want events or lines)", c.Service.Framing)
	}
}

func (c Config) ReconnectDelay() time.Duration {
	return parseDuration(c.Service.ReconnectDelay, 5*time.Second)
}

func (c Config) RequestTimeout() time.Duration {
	return parseDuration(c.Service.RequestTimeout, 30*time.Second)
}

func (c Config) TokenTTL() time.Duration {
	return parseDuration(c.Auth.TokenTTL, 15*time.Minute)
}

func (c Config) HealthInterval() time.Duration {
	return parseDuration(c.Health.Interval, 30*time.Second)
}

func (c Config) MockStepDelay() time.Duration {
	return parseDuration(c.Mock.StepDelay, 750*time.Millisecond)
}

// parseDuration returns def for empty, malformed or non-positive values.
func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
