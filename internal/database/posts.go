package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// ErrDuplicatePost is returned by InsertPost when the external_id is
// already present. The unique index is the backstop against a
// check-then-insert race; callers treat this as "not new".
var ErrDuplicatePost = errors.New("post already exists")

// InsertPost stores a new post and returns its row ID.
func (db *DB) InsertPost(externalID, sourceHandle, text string, summary *string, link string, postedAt *time.Time) (int64, error) {
	var posted *string
	if postedAt != nil {
		v := postedAt.UTC().Format(TimeLayout)
		posted = &v
	}

	result, err := db.conn.Exec(
		`INSERT INTO posts (external_id, source_handle, text, summary, link, posted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		externalID, sourceHandle, text, summary, link, posted,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, ErrDuplicatePost
		}
		return 0, err
	}
	return result.LastInsertId()
}

// PostExists reports whether a post with the given external_id is stored.
func (db *DB) PostExists(externalID string) (bool, error) {
	var n int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM posts WHERE external_id = ?", externalID,
	).Scan(&n)
	return n > 0, err
}

// GetPost returns a post by external_id, or nil if absent.
func (db *DB) GetPost(externalID string) (*Post, error) {
	row := db.conn.QueryRow(
		`SELECT id, external_id, source_handle, text, summary, link, posted_at, ingested_at, analysis, notified
		FROM posts WHERE external_id = ?`, externalID,
	)
	p, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPostByID returns a post by row ID, or nil if absent.
func (db *DB) GetPostByID(id int64) (*Post, error) {
	row := db.conn.QueryRow(
		`SELECT id, external_id, source_handle, text, summary, link, posted_at, ingested_at, analysis, notified
		FROM posts WHERE id = ?`, id,
	)
	p, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RecentPosts returns posts posted within the last N hours, newest
// first. An empty sourceHandle means no source filter.
func (db *DB) RecentPosts(hours int, sourceHandle string) ([]Post, error) {
	q := sq.Select("id", "external_id", "source_handle", "text", "summary", "link",
		"posted_at", "ingested_at", "analysis", "notified").
		From("posts").
		Where(sq.Expr("posted_at >= datetime('now', ?)", fmt.Sprintf("-%d hours", hours))).
		OrderBy("posted_at DESC")
	if sourceHandle != "" {
		q = q.Where(sq.Eq{"source_handle": sourceHandle})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPosts(rows)
}

// SetPostAnalysis persists the serialized verdict for a post.
func (db *DB) SetPostAnalysis(postID int64, analysisJSON string) error {
	_, err := db.conn.Exec("UPDATE posts SET analysis = ? WHERE id = ?", analysisJSON, postID)
	return err
}

// MarkPostNotified flips the notified flag to true. The flag is
// monotonic: there is no way to reset it.
func (db *DB) MarkPostNotified(postID int64) error {
	_, err := db.conn.Exec("UPDATE posts SET notified = 1 WHERE id = ?", postID)
	return err
}

// DeletePostsOlderThan removes posts ingested more than maxAge ago,
// regardless of analysis or notification state. Returns the count.
func (db *DB) DeletePostsOlderThan(maxAge time.Duration) (int64, error) {
	q := sq.Delete("posts").
		Where(sq.Expr("ingested_at < datetime('now', ?)",
			fmt.Sprintf("-%d minutes", int(maxAge.Minutes()))))

	query, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}

	result, err := db.conn.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanPosts(rows *sql.Rows) ([]Post, error) {
	var posts []Post
	for rows.Next() {
		var p Post
		var notified int
		if err := rows.Scan(&p.ID, &p.ExternalID, &p.SourceHandle, &p.Text, &p.Summary,
			&p.Link, &p.PostedAt, &p.IngestedAt, &p.Analysis, &notified); err != nil {
			return nil, err
		}
		p.Notified = notified != 0
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func scanPost(row *sql.Row) (*Post, error) {
	var p Post
	var notified int
	if err := row.Scan(&p.ID, &p.ExternalID, &p.SourceHandle, &p.Text, &p.Summary,
		&p.Link, &p.PostedAt, &p.IngestedAt, &p.Analysis, &notified); err != nil {
		return nil, err
	}
	p.Notified = notified != 0
	return &p, nil
}
