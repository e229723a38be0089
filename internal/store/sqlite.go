package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rcliao/codex-mem/internal/model"
)

const (
	// DefaultMergeThreshold is the similarity at or above which a candidate
	// merges into an existing memory.
	DefaultMergeThreshold = 0.82

	// DefaultMergeWindow is how many recent memories of the same kind and
	// scope are compared against a candidate.
	DefaultMergeWindow = 8

	// DefaultBusyTimeout is how long a connection waits on a locked database.
	DefaultBusyTimeout = 5 * time.Second
)

// tsLayout is fixed-width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string

	mergeThreshold float64
	mergeWindow    int

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Option configures a SQLiteStore.
type Option func(*options)

type options struct {
	mergeThreshold float64
	mergeWindow    int
	busyTimeout    time.Duration
}

// WithMergeThreshold sets the similarity needed to merge a candidate.
// Below 1, a text restated inside a longer one always merges; at 1 only
// texts equal ignoring case merge.
func WithMergeThreshold(t float64) Option {
	return func(o *options) {
		if t > 0 && t <= 1 {
			o.mergeThreshold = t
		}
	}
}

// WithMergeWindow sets how many recent memories are compared on insert.
func WithMergeWindow(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.mergeWindow = n
		}
	}
}

// WithBusyTimeout sets how long to wait on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	o := options{
		mergeThreshold: DefaultMergeThreshold,
		mergeWindow:    DefaultMergeWindow,
		busyTimeout:    DefaultBusyTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(%d)&_txlock=immediate",
		dbPath, o.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, wrapErr("open db", err)
	}

	s := &SQLiteStore{
		db:             db,
		dbPath:         dbPath,
		mergeThreshold: o.mergeThreshold,
		mergeWindow:    o.mergeWindow,
		entropy:        ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, wrapErr("migrate", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id                     TEXT PRIMARY KEY,
		thread_id              TEXT NOT NULL,
		turn_id                TEXT NOT NULL,
		ts_utc                 TEXT NOT NULL,
		cwd                    TEXT NOT NULL,
		project_root           TEXT,
		input_messages_json    TEXT NOT NULL,
		assistant_message      TEXT NOT NULL,
		assistant_message_json TEXT,
		surface                TEXT,
		hash                   TEXT NOT NULL UNIQUE
	);
	CREATE INDEX IF NOT EXISTS idx_turns_ts ON turns(ts_utc DESC);

	CREATE TABLE IF NOT EXISTS memories (
		seq            INTEGER PRIMARY KEY,
		id             TEXT NOT NULL UNIQUE,
		ts_utc         TEXT NOT NULL,
		project_root   TEXT,
		kind           TEXT NOT NULL,
		text           TEXT NOT NULL,
		source_turn_id TEXT REFERENCES turns(id),
		importance     INTEGER NOT NULL DEFAULT 3,
		is_pinned      INTEGER NOT NULL DEFAULT 0,
		is_deleted     INTEGER NOT NULL DEFAULT 0,
		tags_json      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_scope_kind ON memories(project_root, kind, ts_utc DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_rank ON memories(is_pinned DESC, importance DESC, ts_utc DESC);

	CREATE VIRTUAL TABLE IF NOT EXISTS memory_fts USING fts5(
		text,
		project_root,
		kind,
		content=memories,
		content_rowid=seq
	);

	CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
		INSERT INTO memory_fts(rowid, text, project_root, kind)
		VALUES (new.seq, new.text, new.project_root, new.kind);
	END;
	CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
		INSERT INTO memory_fts(memory_fts, rowid, text, project_root, kind)
		VALUES ('delete', old.seq, old.text, old.project_root, old.kind);
	END;
	CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
		INSERT INTO memory_fts(memory_fts, rowid, text, project_root, kind)
		VALUES ('delete', old.seq, old.text, old.project_root, old.kind);
		INSERT INTO memory_fts(rowid, text, project_root, kind)
		VALUES (new.seq, new.text, new.project_root, new.kind);
	END;
	`
	_, err := s.db.Exec(schema)
	return err
}

// Ping checks that the database is reachable and the index is consistent.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return wrapErr("ping", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO memory_fts(memory_fts) VALUES ('integrity-check')`); err != nil {
		return wrapErr("fts integrity check", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// wrapErr annotates a driver error with the operation and marks retryable
// SQLite failures with ErrTransient.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransientSQLite(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isTransientSQLite(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR,
			sqlite3.SQLITE_FULL, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_READONLY:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) time.Time {
	if t, err := time.Parse(tsLayout, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

const memoryColumns = `id, ts_utc, project_root, kind, text, source_turn_id, importance, is_pinned, is_deleted, tags_json`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner, extra ...interface{}) (model.Memory, error) {
	var m model.Memory
	var ts, kind string
	var projectRoot, sourceTurn, tagsJSON sql.NullString

	dest := []interface{}{
		&m.ID, &ts, &projectRoot, &kind, &m.Text, &sourceTurn,
		&m.Importance, &m.Pinned, &m.Deleted, &tagsJSON,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return m, err
	}

	m.Timestamp = parseTS(ts)
	m.Kind = model.Kind(kind)
	if projectRoot.Valid {
		root := projectRoot.String
		m.ProjectRoot = &root
	}
	if sourceTurn.Valid {
		m.SourceTurnID = sourceTurn.String
	}
	if tagsJSON.Valid {
		json.Unmarshal([]byte(tagsJSON.String), &m.Tags)
	}
	return m, nil
}

func encodeTags(tags []string) *string {
	if tags == nil {
		return nil
	}
	b, _ := json.Marshal(tags)
	s := string(b)
	return &s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
