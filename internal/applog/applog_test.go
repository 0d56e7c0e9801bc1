package applog_test

import (
	"bytes"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zsprackett/stockchat/internal/applog"
)

func TestDailyRotator_CreatesFileOnFirstWrite(t *testing.T) {
	dir := t.TempDir()
	r := applog.NewDailyRotator(dir, "", 7)
	defer r.Close()

	if _, err := r.Write([]byte("hello\n")); err != nil {
		t.Fatal(err)
	}

	today := time.Now().Format("2006-01-02")
	name := filepath.Join(dir, "stockchat-"+today+".log")
	if _, err := os.Stat(name); err != nil {
		t.Errorf("expected log file %q to exist: %v", name, err)
	}
}

func TestDailyRotator_RotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	r := applog.NewDailyRotator(dir, "mock", 7)
	defer r.Close()

	r.SetNow(func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) })
	if _, err := r.Write([]byte("day1\n")); err != nil {
		t.Fatal(err)
	}
	r.SetNow(func() time.Time { return time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC) })
	if _, err := r.Write([]byte("day2\n")); err != nil {
		t.Fatal(err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "mock-*.log"))
	if len(matches) != 2 {
		t.Errorf("expected 2 log files after rotation, got %d", len(matches))
	}
	data, _ := os.ReadFile(r.FileName(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)))
	if string(data) != "day2\n" {
		t.Errorf("day 2 contents: %q", data)
	}
}

func TestDailyRotator_PrunesOldFiles(t *testing.T) {
	dir := t.TempDir()
	r := applog.NewDailyRotator(dir, "", 3)

	for i := 1; i <= 5; i++ {
		day := i
		r.SetNow(func() time.Time { return time.Date(2026, 1, day, 12, 0, 0, 0, time.UTC) })
		if _, err := r.Write([]byte("entry\n")); err != nil {
			t.Fatal(err)
		}
	}
	r.Close()

	matches, _ := filepath.Glob(filepath.Join(dir, "stockchat-*.log"))
	if len(matches) != 3 {
		t.Errorf("expected 3 log files after pruning, got %d: %v", len(matches), matches)
	}
	for _, name := range matches {
		base := filepath.Base(name)
		if base == "stockchat-2026-01-01.log" || base == "stockchat-2026-01-02.log" {
			t.Errorf("old file %q should have been pruned", base)
		}
	}
}

func TestDailyRotator_PruneIgnoresOtherPrefixes(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(dir, "other-2020-01-01.log")
	os.WriteFile(other, []byte("x"), 0644)

	r := applog.NewDailyRotator(dir, "", 1)
	r.Write([]byte("entry\n"))
	r.Close()

	if _, err := os.Stat(other); err != nil {
		t.Errorf("unrelated log file was removed: %v", err)
	}
}

func TestInit_CreatesLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "newlogs")
	_, closer, err := applog.Init(applog.InitConfig{LogDir: dir, LogLevel: "info"})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected log dir %q to be created: %v", dir, err)
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{" WARN ", slog.LevelWarn},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := applog.ParseLevel(tc.input); got != tc.level {
			t.Errorf("ParseLevel(%q): got %v want %v", tc.input, got, tc.level)
		}
	}
}

func TestInit_StdlibLogRedirectedAndEchoed(t *testing.T) {
	dir := t.TempDir()
	var echo bytes.Buffer
	logger, closer, err := applog.Init(applog.InitConfig{LogDir: dir, LogLevel: "debug", Echo: &echo})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	log.Print("stdlib-log-test-marker")
	logger.Debug("slog-marker", "session", "abc")

	today := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(dir, "stockchat-"+today+".log"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"stdlib-log-test-marker", "slog-marker", "session=abc"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file missing %q; contents: %q", want, data)
		}
		if !strings.Contains(echo.String(), want) {
			t.Errorf("echo missing %q", want)
		}
	}
}

func TestDiscard(t *testing.T) {
	applog.Discard().Error("dropped", "err", "nothing")
}
