// Package history keeps the core's chat sessions and development data in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/swdunlop/messenger-go/messenger/protocol"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New(`session not found`)

// Store owns the SQLite database of the core.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the database at path, creating its directory.  An empty path opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path == `` {
		dsn = `:memory:`
	} else if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open(`sqlite`, dsn)
	if err != nil {
		return nil, err
	}
	if path == `` {
		// each connection to :memory: is a different database
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file, or an empty string for an in-memory database.
func (s *Store) Path() string { return s.path }

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Init applies pragmas and the schema.
func (s *Store) Init(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New(`nil store`)
	}
	pragmas := []string{
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA synchronous = NORMAL;`,
		`PRAGMA busy_timeout = 5000;`,
	}
	for _, stmt := range pragmas {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf(`%w while applying %q`, err, stmt)
		}
	}
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			workspace_dir TEXT NOT NULL,
			history TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);`,
		`CREATE TABLE IF NOT EXISTS devdata (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			table_name TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_devdata_table ON devdata(table_name, id);`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf(`%w while applying schema`, err)
		}
	}
	return nil
}

// List summarizes sessions, newest first.  A limit of zero lists every session after offset.
func (s *Store) List(ctx context.Context, offset, limit int) ([]protocol.SessionInfo, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, workspace_dir, created_at
		FROM sessions
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?;
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []protocol.SessionInfo{}
	for rows.Next() {
		var info protocol.SessionInfo
		var created int64
		if err := rows.Scan(&info.SessionID, &info.Title, &info.WorkspaceDirectory, &created); err != nil {
			return nil, err
		}
		info.DateCreated = strconv.FormatInt(created, 10)
		list = append(list, info)
	}
	return list, rows.Err()
}

// Load returns a session or ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (protocol.Session, error) {
	session := protocol.Session{SessionID: id}
	var history string
	err := s.db.QueryRowContext(ctx, `
		SELECT title, workspace_dir, history FROM sessions WHERE id = ?;
	`, id).Scan(&session.Title, &session.WorkspaceDirectory, &history)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return session, fmt.Errorf(`%w: %q`, ErrNotFound, id)
	case err != nil:
		return session, err
	}
	err = json.Unmarshal([]byte(history), &session.History)
	if err != nil {
		return session, fmt.Errorf(`%w while decoding session %q`, err, id)
	}
	return session, nil
}

// Save creates or replaces a session, keeping its original creation time.
func (s *Store) Save(ctx context.Context, session protocol.Session) error {
	if session.SessionID == `` {
		return errors.New(`session id is required`)
	}
	if session.History == nil {
		session.History = []protocol.ChatHistoryItem{}
	}
	history, err := json.Marshal(session.History)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions(id, title, workspace_dir, history, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			workspace_dir = excluded.workspace_dir,
			history = excluded.history,
			updated_at = excluded.updated_at;
	`, session.SessionID, session.Title, session.WorkspaceDirectory, string(history), now, now)
	return err
}

// Delete removes a session; deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?;`, id)
	return err
}

var tableName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// LogDevData appends a development data event to a named table.
func (s *Store) LogDevData(ctx context.Context, table string, data map[string]any) error {
	if !tableName.MatchString(table) {
		return fmt.Errorf(`invalid devdata table name %q`, table)
	}
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO devdata(table_name, data, created_at) VALUES (?, ?, ?);
	`, table, string(js), time.Now().UnixMilli())
	return err
}

// DevData returns the events logged to a table, oldest first.
func (s *Store) DevData(ctx context.Context, table string) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM devdata WHERE table_name = ? ORDER BY id;
	`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seq []map[string]any
	for rows.Next() {
		var js string
		if err := rows.Scan(&js); err != nil {
			return nil, err
		}
		var item map[string]any
		if err := json.Unmarshal([]byte(js), &item); err != nil {
			return nil, err
		}
		seq = append(seq, item)
	}
	return seq, rows.Err()
}

// TokensTable is the devdata table that records token usage.  Each event carries promptTokens and generatedTokens.
const TokensTable = `tokens_generated`

// TokensPerDay totals the token usage logged to TokensTable by UTC day, oldest first.
func (s *Store) TokensPerDay(ctx context.Context) ([]protocol.DailyTokens, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(created_at / 1000, 'unixepoch') AS day,
			COALESCE(SUM(json_extract(data, '$.promptTokens')), 0),
			COALESCE(SUM(json_extract(data, '$.generatedTokens')), 0)
		FROM devdata
		WHERE table_name = ?
		GROUP BY day
		ORDER BY day;
	`, TokensTable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seq := []protocol.DailyTokens{}
	for rows.Next() {
		var day protocol.DailyTokens
		if err := rows.Scan(&day.Day, &day.PromptTokens, &day.GeneratedTokens); err != nil {
			return nil, err
		}
		seq = append(seq, day)
	}
	return seq, rows.Err()
}
