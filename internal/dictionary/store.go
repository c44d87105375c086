// Package dictionary persists the personal vocabulary learned from operator
// rephrases. Each entry maps a failed utterance to the corrected text that
// worked, with provenance fixed at creation: how the operator responded to
// the learning prompt and whether a verified console link was up when the
// mapping was learned.
package dictionary

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/mixctl/mixctl-core/internal/similarity"
)

// Operator responses to a learning prompt.
const (
	ResponseAccepted = "accepted"
	ResponseRejected = "rejected"
	ResponseIgnored  = "ignored"
)

// Entry is one learned mapping. Key is derived from the normalized original
// text, so repeated failures of the same phrase share a row.
type Entry struct {
	Key             uint64
	OriginalText    string
	CorrectedText   string
	UserResponse    string
	ConsoleVerified bool
	UsageCount      int
	SessionID       string
	Distance        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Config controls the store's location and cache size.
type Config struct {
	Path          string
	CacheSize     int
	VacuumOnStart bool
}

// Store is the SQLite-backed dictionary with an in-memory read cache.
type Store struct {
	db    *sql.DB
	cache *lru.Cache[uint64, Entry]
	log   *slog.Logger
	clock func() time.Time
}

// Key derives the dictionary key for an utterance. Case and surrounding
// whitespace never distinguish entries.
func Key(originalText string) uint64 {
	return xxhash.Sum64String(normalizeKey(originalText))
}

func normalizeKey(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Open initializes the dictionary store.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
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

	size := cfg.CacheSize
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[uint64, Entry](size)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("dictionary cache: %w", err)
	}

	s := &Store{db: db, cache: cache, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("dictionary vacuum failed", slog.String("error", err.Error()))
		}
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS entries (
    key INTEGER PRIMARY KEY,
    original_text TEXT NOT NULL,
    corrected_text TEXT NOT NULL,
    user_response TEXT NOT NULL,
    console_verified INTEGER NOT NULL DEFAULT 0,
    usage_count INTEGER NOT NULL DEFAULT 0,
    session_id TEXT,
    distance INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_response ON entries(user_response, console_verified);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put upserts an entry. A later write for the same original text replaces
// the correction and response but keeps the first-seen timestamp.
func (s *Store) Put(ctx context.Context, e Entry) (Entry, error) {
	e.Key = Key(e.OriginalText)
	now := s.clock().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries(key, original_text, corrected_text, user_response, console_verified, usage_count, session_id, distance, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		     corrected_text=excluded.corrected_text,
		     user_response=excluded.user_response,
		     console_verified=excluded.console_verified,
		     session_id=excluded.session_id,
		     distance=excluded.distance,
		     updated_at=excluded.updated_at`,
		int64(e.Key), e.OriginalText, e.CorrectedText, e.UserResponse,
		boolInt(e.ConsoleVerified), e.UsageCount, e.SessionID, e.Distance,
		e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("put entry: %w", err)
	}
	s.cache.Remove(e.Key)
	return e, nil
}

// Lookup fetches the entry for an utterance, if one exists.
func (s *Store) Lookup(ctx context.Context, originalText string) (Entry, bool, error) {
	key := Key(originalText)
	if e, ok := s.cache.Get(key); ok {
		return e, true, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT key, original_text, corrected_text, user_response, console_verified, usage_count, session_id, distance, created_at, updated_at
		 FROM entries WHERE key = ?`, int64(key))
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	s.cache.Add(key, e)
	return e, true, nil
}

// Accepted returns the accepted correction for an utterance: the only kind
// of entry the interpreter may substitute before matching.
func (s *Store) Accepted(ctx context.Context, originalText string) (Entry, bool, error) {
	e, ok, err := s.Lookup(ctx, originalText)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	if e.UserResponse != ResponseAccepted {
		return Entry{}, false, nil
	}
	return e, true, nil
}

// IncrementUsage bumps an entry's usage counter.
func (s *Store) IncrementUsage(ctx context.Context, originalText string) error {
	key := Key(originalText)
	_, err := s.db.ExecContext(ctx,
		`UPDATE entries SET usage_count = usage_count + 1, updated_at = ? WHERE key = ?`,
		s.clock().UTC(), int64(key))
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	s.cache.Remove(key)
	return nil
}

// FindCandidates returns accepted entries whose original text is a likely
// match for the utterance under the word-level similarity rule, nearest
// first. An exact hit comes back at distance zero; near misses within the
// stored text's threshold follow.
func (s *Store) FindCandidates(ctx context.Context, text string) ([]Entry, error) {
	if !similarity.Eligible(text) {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, original_text, corrected_text, user_response, console_verified, usage_count, session_id, distance, created_at, updated_at
		 FROM entries WHERE user_response = ?`, ResponseAccepted)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer rows.Close()

	type candidate struct {
		entry Entry
		dist  int
	}
	var cands []candidate
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		res := similarity.Compare(e.OriginalText, text)
		if !res.Match {
			continue
		}
		cands = append(cands, candidate{entry: e, dist: res.Distance})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	out := make([]Entry, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.entry)
	}
	return out, nil
}

// PromotionEligible lists entries cleared for promotion to the shared
// terminology table: operator accepted AND learned over a verified console
// link, with at least minUsage uses. Both gates are mandatory and both are
// fixed when the entry is created.
func (s *Store) PromotionEligible(ctx context.Context, minUsage int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, original_text, corrected_text, user_response, console_verified, usage_count, session_id, distance, created_at, updated_at
		 FROM entries
		 WHERE console_verified = 1 AND user_response = ? AND usage_count >= ?
		 ORDER BY usage_count DESC`,
		ResponseAccepted, minUsage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var key int64
	var verified int
	var created, updated string
	err := row.Scan(&key, &e.OriginalText, &e.CorrectedText, &e.UserResponse,
		&verified, &e.UsageCount, &e.SessionID, &e.Distance, &created, &updated)
	if err != nil {
		return Entry{}, err
	}
	e.Key = uint64(key)
	e.ConsoleVerified = verified == 1
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		e.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		e.UpdatedAt = ts
	}
	return e, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
