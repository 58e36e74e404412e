package database

import "time"

// InsertKeywordSearch records a keyword search and returns its ID.
func (db *DB) InsertKeywordSearch(keyword string) (int64, error) {
	result, err := db.conn.Exec("INSERT INTO keyword_searches (keyword) VALUES (?)", keyword)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// InsertSearchResult persists one result row for a keyword search.
func (db *DB) InsertSearchResult(searchID int64, externalID, sourceHandle, text string, summary *string, link string, postedAt *time.Time) (int64, error) {
	var posted *string
	if postedAt != nil {
		v := postedAt.UTC().Format(TimeLayout)
		posted = &v
	}

	result, err := db.conn.Exec(
		`INSERT INTO search_results (search_id, external_id, source_handle, text, summary, link, posted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		searchID, externalID, sourceHandle, text, summary, link, posted,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// SearchResults returns all persisted results for a search, newest first.
func (db *DB) SearchResults(searchID int64) ([]SearchResult, error) {
	rows, err := db.conn.Query(
		`SELECT id, search_id, external_id, source_handle, text, summary, link, posted_at, found_at
		FROM search_results WHERE search_id = ? ORDER BY posted_at DESC`, searchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.SearchID, &r.ExternalID, &r.SourceHandle, &r.Text,
			&r.Summary, &r.Link, &r.PostedAt, &r.FoundAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
