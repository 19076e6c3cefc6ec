// Package store persists exported model snapshots in a local sqlite
// database, keyed by name. The engine treats snapshot blobs as opaque; this
// package only stores and retrieves them for the settings layer.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a named-snapshot archive backed by one sqlite file.
type Store struct {
	db *sql.DB
}

// SnapshotInfo describes one stored snapshot.
type SnapshotInfo struct {
	Name    string
	SavedAt time.Time
	Size    int
}

// Open opens (or creates) the snapshot database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots(
			name TEXT PRIMARY KEY,
			saved_at INTEGER NOT NULL,
			blob BLOB NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init snapshot store: %w", err)
	}
	return &Store{db: db}, nil
}

// Save writes a snapshot, replacing any prior one with the same name.
func (s *Store) Save(name string, blob []byte) error {
	if name == "" {
		return fmt.Errorf("save snapshot: empty name")
	}
	_, err := s.db.Exec(
		`INSERT INTO snapshots(name, saved_at, blob) VALUES(?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET saved_at = excluded.saved_at, blob = excluded.blob`,
		name, time.Now().Unix(), blob)
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", name, err)
	}
	return nil
}

// Load returns the snapshot blob stored under name.
func (s *Store) Load(name string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT blob FROM snapshots WHERE name = ?`, name).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", name, err)
	}
	return blob, nil
}

// List returns all stored snapshots, most recent first.
func (s *Store) List() ([]SnapshotInfo, error) {
	rows, err := s.db.Query(`SELECT name, saved_at, length(blob) FROM snapshots ORDER BY saved_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var ts int64
		if err := rows.Scan(&info.Name, &ts, &info.Size); err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		info.SavedAt = time.Unix(ts, 0)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes the snapshot stored under name, if any.
func (s *Store) Delete(name string) error {
	_, err := s.db.Exec(`DELETE FROM snapshots WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete snapshot %q: %w", name, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
