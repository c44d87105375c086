// Package journal records the command timeline: every validated console
// command, keyed by session, with configurable retention. The journal is an
// audit trail only; nothing reads it on the hot path.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mixctl/mixctl-core/internal/interpret"
)

// Config controls journal persistence and retention.
type Config struct {
	Path          string
	RetentionMode string // ephemeral|session|persistent
	RetentionDays int
	MaxSessions   int
	VacuumOnStart bool
}

// Record is one journaled command.
type Record struct {
	ID         int64
	SessionID  string
	CommandID  string
	SourceText string
	WireText   string
	Category   string
	Confidence float64
	CreatedAt  time.Time
}

// Store wraps the SQLite-backed command journal. In ephemeral mode every
// operation is a no-op.
type Store struct {
	db    *sql.DB
	cfg   Config
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the journal according to config.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("journal vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("journal prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS commands (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    command_id TEXT,
    source_text TEXT,
    wire_text TEXT NOT NULL,
    category TEXT,
    confidence REAL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_commands_session_created ON commands(session_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginSession ensures a session row exists.
func (s *Store) BeginSession(ctx context.Context, sessionID string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, created_at) VALUES(?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		sessionID, s.clock().UTC())
	return err
}

// Append journals executed commands for a session.
func (s *Store) Append(ctx context.Context, sessionID string, cmds []interpret.Command) error {
	if s.db == nil || len(cmds) == 0 {
		return nil
	}
	if err := s.BeginSession(ctx, sessionID); err != nil {
		return err
	}
	for _, cmd := range cmds {
		created := cmd.CreatedAt
		if created.IsZero() {
			created = s.clock().UTC()
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO commands(session_id, command_id, source_text, wire_text, category, confidence, created_at)
			 VALUES(?, ?, ?, ?, ?, ?, ?)`,
			sessionID, cmd.ID, cmd.SourceText, cmd.WireText, string(cmd.Category), cmd.Confidence, created)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListSession retrieves up to limit commands for a session, oldest first.
func (s *Store) ListSession(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, command_id, source_text, wire_text, category, confidence, created_at
		 FROM commands WHERE session_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var created string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.CommandID, &r.SourceText, &r.WireText, &r.Category, &r.Confidence, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			r.CreatedAt = ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// EndSession applies session retention: in session mode the session's rows
// are dropped as soon as it ends.
func (s *Store) EndSession(ctx context.Context, sessionID string) error {
	if s.db == nil || s.cfg.RetentionMode != "session" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	return err
}

// Prune applies age and session-count retention.
func (s *Store) Prune(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour).UTC()
		if _, err = tx.ExecContext(ctx, `DELETE FROM commands WHERE created_at < ?`, cutoff); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?`, cutoff); err != nil {
			return err
		}
	}
	if s.cfg.MaxSessions > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id IN (
			SELECT session_id FROM sessions ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxSessions)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
