package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (creating if needed) the history database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, storeError(err, "create history directory")
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storeError(err, "open sqlite database")
	}
	// a single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, storeError(err, "initialize schema")
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invocations (
		id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		plugin TEXT,
		success INTEGER NOT NULL,
		kind TEXT,
		message TEXT,
		error TEXT,
		args TEXT,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_invocations_command ON invocations(command);
	CREATE INDEX IF NOT EXISTS idx_invocations_started ON invocations(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds an invocation to the store.
func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	var argsJSON []byte
	if len(e.Args) > 0 {
		var err error
		argsJSON, err = json.Marshal(e.Args)
		if err != nil {
			return storeError(err, "marshal args")
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations (id, command, plugin, success, kind, message, error, args, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Command, e.Plugin, e.Success, e.Kind, e.Message, e.Error, string(argsJSON),
		e.StartedAt.UnixNano(), e.DurationMS,
	)
	if err != nil {
		return storeError(err, "insert invocation")
	}
	return nil
}

// List retrieves the most recent invocations, optionally for one command.
func (s *SQLiteStore) List(ctx context.Context, q Query) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := `SELECT id, command, plugin, success, kind, message, error, args, started_at, duration_ms FROM invocations`
	args := []any{}
	if q.Command != "" {
		query += ` WHERE command = ?`
		args = append(args, q.Command)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError(err, "query invocations")
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e                             Entry
			plugin, kind, msg, errS, args sql.NullString
			started                       int64
		)
		if err := rows.Scan(&e.ID, &e.Command, &plugin, &e.Success, &kind, &msg, &errS, &args, &started, &e.DurationMS); err != nil {
			return nil, storeError(err, "scan invocation")
		}
		e.Plugin, e.Kind, e.Message, e.Error = plugin.String, kind.String, msg.String, errS.String
		e.StartedAt = time.Unix(0, started)
		if args.String != "" {
			if err := json.Unmarshal([]byte(args.String), &e.Args); err != nil {
				return nil, storeError(err, "unmarshal args")
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, "iterate rows")
	}
	return entries, nil
}

// Close closes the database connection. Closing twice is a no-op.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
