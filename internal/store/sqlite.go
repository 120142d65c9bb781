package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sets (
	key      TEXT    NOT NULL,
	member   TEXT    NOT NULL,
	added_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
	PRIMARY KEY (key, member)
);`

// SQLite stores sets in a single table of a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	// modernc's driver serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite store: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Members(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT member FROM sets WHERE key = ? ORDER BY added_at, rowid`, key)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", key, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", key, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLite) Add(ctx context.Context, key, member string) (bool, error) {
	if err := checkArgs(key, member); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sets (key, member) VALUES (?, ?)`, key, member)
	if err != nil {
		return false, fmt.Errorf("adding to %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLite) Remove(ctx context.Context, key, member string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sets WHERE key = ? AND member = ?`, key, member)
	if err != nil {
		return false, fmt.Errorf("removing from %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLite) Contains(ctx context.Context, key, member string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sets WHERE key = ? AND member = ?`, key, member).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", key, err)
	}
	return true, nil
}

func (s *SQLite) Close() error { return s.db.Close() }
