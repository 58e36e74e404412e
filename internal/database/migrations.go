package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    handle TEXT UNIQUE NOT NULL,
    display_name TEXT,
    active INTEGER DEFAULT 1,
    last_polled_at TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    external_id TEXT UNIQUE NOT NULL,
    source_handle TEXT NOT NULL,
    text TEXT NOT NULL,
    summary TEXT,
    link TEXT,
    posted_at TEXT,
    ingested_at TEXT DEFAULT (datetime('now')),
    analysis TEXT,
    notified INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_posts_source_handle ON posts(source_handle);
CREATE INDEX IF NOT EXISTS idx_posts_posted_at ON posts(posted_at);
CREATE INDEX IF NOT EXISTS idx_posts_ingested_at ON posts(ingested_at);

CREATE TABLE IF NOT EXISTS keyword_searches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    keyword TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS search_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    search_id INTEGER NOT NULL REFERENCES keyword_searches(id),
    external_id TEXT NOT NULL,
    source_handle TEXT NOT NULL,
    text TEXT NOT NULL,
    summary TEXT,
    link TEXT,
    posted_at TEXT,
    found_at TEXT DEFAULT (datetime('now'))
);
`)
			return err
		},
	},
}

func latestVersion() int {
	return migrations[len(migrations)-1].Version
}
