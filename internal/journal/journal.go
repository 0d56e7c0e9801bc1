// Package journal keeps an operational sqlite log of stream sessions and tool
// usage notifications. Entries are never replayed into a transcript.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zsprackett/stockchat/internal/applog"
	"github.com/zsprackett/stockchat/internal/progress"
	"github.com/zsprackett/stockchat/internal/stream"
)

type Journal struct {
	sql    *sql.DB
	logger *slog.Logger
}

func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &Journal{sql: conn, logger: logger}, nil
}

func (j *Journal) Close() error {
	return j.sql.Close()
}

func (j *Journal) Migrate() error {
	_, err := j.sql.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create metadata: %w", err)
	}

	_, err = j.sql.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			company    TEXT NOT NULL,
			prompt     TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at   INTEGER NOT NULL DEFAULT 0,
			outcome    TEXT NOT NULL DEFAULT 'running',
			error      TEXT NOT NULL DEFAULT '',
			fragments  INTEGER NOT NULL DEFAULT 0,
			failures   INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("create sessions: %w", err)
	}

	_, err = j.sql.Exec(`
		CREATE TABLE IF NOT EXISTS tool_usage (
			id          INTEGER PRIMARY KEY,
			run_id      TEXT NOT NULL,
			kind        TEXT NOT NULL,
			content     TEXT NOT NULL,
			title       TEXT,
			observed_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create tool_usage: %w", err)
	}

	if _, err := j.sql.Exec(`CREATE INDEX IF NOT EXISTS idx_tool_usage_run_id ON tool_usage(run_id, observed_at)`); err != nil {
		return fmt.Errorf("index tool_usage: %w", err)
	}
	return nil
}

// SessionStarted implements stream.Observer.
func (j *Journal) SessionStarted(s stream.Summary) {
	_, err := j.sql.Exec(`
		INSERT OR REPLACE INTO sessions (id, company, prompt, started_at, outcome)
		VALUES (?,?,?,?,?)`,
		s.ID, s.Request.Company, s.Request.Prompt(), s.StartedAt.UnixMilli(), OutcomeRunning,
	)
	if err != nil {
		j.logger.Warn("journal: record session start", "session", s.ID, "err", err)
	}
}

// SessionFinished implements stream.Observer.
func (j *Journal) SessionFinished(s stream.Summary) {
	errText := ""
	if s.Err != nil && s.Outcome == stream.OutcomeFailed {
		errText = s.Err.Error()
	}
	_, err := j.sql.Exec(`
		UPDATE sessions SET ended_at = ?, outcome = ?, error = ?, fragments = ?, failures = ?
		WHERE id = ?`,
		s.EndedAt.UnixMilli(), string(s.Outcome), errText, s.Fragments, s.Failures, s.ID,
	)
	if err != nil {
		j.logger.Warn("journal: record session end", "session", s.ID, "err", err)
	}
}

// RecordToolUsage appends rec. A correlation miss is stored with a NULL title.
func (j *Journal) RecordToolUsage(rec progress.ToolUsageRecord) error {
	var title sql.NullString
	if rec.ResolvedTitle != nil {
		title = sql.NullString{String: *rec.ResolvedTitle, Valid: true}
	}
	_, err := j.sql.Exec(
		`INSERT INTO tool_usage (run_id, kind, content, title, observed_at) VALUES (?,?,?,?,?)`,
		rec.RunID, string(rec.Kind), rec.Content, title, rec.ObservedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert tool usage: %w", err)
	}
	return nil
}

// RecentSessions returns up to limit sessions, newest first.
func (j *Journal) RecentSessions(limit int) ([]SessionEntry, error) {
	rows, err := j.sql.Query(`
		SELECT id, company, prompt, started_at, ended_at, outcome, error, fragments, failures
		FROM sessions
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionEntry
	for rows.Next() {
		var e SessionEntry
		var started, ended int64
		if err := rows.Scan(&e.ID, &e.Company, &e.Prompt, &started, &ended, &e.Outcome, &e.Error, &e.Fragments, &e.Failures); err != nil {
			return nil, err
		}
		e.StartedAt = time.UnixMilli(started)
		if ended != 0 {
			e.EndedAt = time.UnixMilli(ended)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ToolUsage returns the entries recorded for runID in observation order.
func (j *Journal) ToolUsage(runID string) ([]ToolUsageEntry, error) {
	rows, err := j.sql.Query(`
		SELECT id, run_id, kind, content, title, observed_at
		FROM tool_usage
		WHERE run_id = ?
		ORDER BY observed_at, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ToolUsageEntry
	for rows.Next() {
		var e ToolUsageEntry
		var title sql.NullString
		var observed int64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Kind, &e.Content, &title, &observed); err != nil {
			return nil, err
		}
		e.Title = title.String
		e.ObservedAt = time.UnixMilli(observed)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *Journal) SetMeta(key, value string) error {
	_, err := j.sql.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES (?,?)", key, value)
	return err
}

// GetMeta returns "" for a missing key.
func (j *Journal) GetMeta(key string) (string, error) {
	var value string
	err := j.sql.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}
