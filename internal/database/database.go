package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// TimeLayout is the format used for all timestamp columns. It matches
// SQLite's datetime('now') output so stored values compare correctly
// against datetime() expressions in queries.
const TimeLayout = "2006-01-02 15:04:05"

// DB wraps a SQLite database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// GetStats returns aggregate counts across all tables.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM sources", &s.TotalSources},
		{"SELECT COUNT(*) FROM sources WHERE active = 1", &s.ActiveSources},
		{"SELECT COUNT(*) FROM posts", &s.TotalPosts},
		{"SELECT COUNT(*) FROM posts WHERE analysis IS NOT NULL", &s.AnalyzedPosts},
		{"SELECT COUNT(*) FROM posts WHERE notified = 1", &s.NotifiedPosts},
		{"SELECT COUNT(*) FROM keyword_searches", &s.KeywordSearches},
	}
	for _, c := range counts {
		if err := db.conn.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}
	return s, nil
}
