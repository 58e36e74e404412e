package database

import "database/sql"

// InsertSource adds a monitored source. It is idempotent: inserting an
// existing handle is a no-op and returns the existing row's ID.
func (db *DB) InsertSource(handle string, displayName *string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO sources (handle, display_name) VALUES (?, ?)
		ON CONFLICT(handle) DO NOTHING`,
		handle, displayName,
	)
	if err != nil {
		return 0, err
	}
	if n, _ := result.RowsAffected(); n > 0 {
		return result.LastInsertId()
	}

	var id int64
	if err := db.conn.QueryRow("SELECT id FROM sources WHERE handle = ?", handle).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetSource returns a source by handle, or nil if it does not exist.
func (db *DB) GetSource(handle string) (*Source, error) {
	row := db.conn.QueryRow(
		`SELECT id, handle, display_name, active, last_polled_at, created_at
		FROM sources WHERE handle = ?`, handle,
	)
	s, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListSources returns sources ordered by handle. With activeOnly set,
// deactivated sources are excluded.
func (db *DB) ListSources(activeOnly bool) ([]Source, error) {
	query := `SELECT id, handle, display_name, active, last_polled_at, created_at
		FROM sources`
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY handle"

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		var active int
		if err := rows.Scan(&s.ID, &s.Handle, &s.DisplayName, &active, &s.LastPolledAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Active = active != 0
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// DeactivateSource soft-deactivates a source. Sources are never
// physically deleted. Returns false if the handle is unknown.
func (db *DB) DeactivateSource(handle string) (bool, error) {
	result, err := db.conn.Exec("UPDATE sources SET active = 0 WHERE handle = ?", handle)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// TouchSourcePolled stamps last_polled_at with the current time.
func (db *DB) TouchSourcePolled(handle string) error {
	_, err := db.conn.Exec(
		"UPDATE sources SET last_polled_at = datetime('now') WHERE handle = ?", handle,
	)
	return err
}

func scanSource(row *sql.Row) (*Source, error) {
	var s Source
	var active int
	if err := row.Scan(&s.ID, &s.Handle, &s.DisplayName, &active, &s.LastPolledAt, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Active = active != 0
	return &s, nil
}
