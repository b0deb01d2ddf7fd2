package progress

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver for database/sql
	"github.com/pressly/goose/v3"
)

// DefaultSQLitePath is where the SQLite store lives unless configured.
const DefaultSQLitePath = "data/progress.db"

// SQLiteStore is a [Store] backed by a local SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database file at path, creates
// its parent directory, and applies migrations. An empty path uses
// DefaultSQLitePath.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultSQLitePath
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("progress: create data directory: %w", err)
		}
	}

	q := url.Values{}
	q.Set("_busy_timeout", "5000")
	q.Set("_journal_mode", "WAL")
	db, err := sql.Open("sqlite3", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("progress: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("progress: open sqlite: %w", err)
	}
	if err := migrate(ctx, db, goose.DialectSQLite3, "sqlite"); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Record implements [Store].
func (s *SQLiteStore) Record(ctx context.Context, a Attempt) (int64, error) {
	a, err := prepare(a, s.now)
	if err != nil {
		return 0, err
	}
	query, args, err := insertQuery(a, sq.Question).ToSql()
	if err != nil {
		return 0, fmt.Errorf("progress: build insert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("progress: insert attempt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("progress: insert attempt: %w", err)
	}
	return id, nil
}

// List implements [Store].
func (s *SQLiteStore) List(ctx context.Context, speakerID string) ([]Attempt, error) {
	query, args, err := listQuery(speakerID, sq.Question).ToSql()
	if err != nil {
		return nil, fmt.Errorf("progress: build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("progress: list attempts: %w", err)
	}
	defer rows.Close()

	out := make([]Attempt, 0)
	for rows.Next() {
		var r nullableRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, fmt.Errorf("progress: scan attempt: %w", err)
		}
		out = append(out, r.attempt(speakerID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("progress: list attempts: %w", err)
	}
	return out, nil
}

// Ping implements [Store].
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("progress: ping sqlite: %w", err)
	}
	return nil
}

// Close implements [Store].
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
