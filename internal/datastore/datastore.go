// Package datastore implements the durable side of the user-dictionary
// mount: a SQLite-backed path-to-blob store that survives restarts.
package datastore

import (
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Schema for the durable file store.
const schema = `
CREATE TABLE IF NOT EXISTS files (
    path        TEXT PRIMARY KEY,
    content     BLOB NOT NULL,
    digest      BLOB NOT NULL,
    updated_at  INTEGER NOT NULL
);
`

// ErrNotFound is returned when a path has no stored blob.
var ErrNotFound = errors.New("datastore: path not found")

// Entry describes one stored blob without its content.
type Entry struct {
	Path      string
	Digest    [32]byte
	Size      int64
	UpdatedAt time.Time
}

// Store is the SQLite-backed durable blob store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store at the given path and applies the
// schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Put inserts or replaces the blob stored at path.
func (s *Store) Put(path string, content []byte) error {
	digest := sha256.Sum256(content)
	_, err := s.db.Exec(
		`INSERT INTO files (path, content, digest, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   content = excluded.content,
		   digest = excluded.digest,
		   updated_at = excluded.updated_at`,
		path, content, digest[:], time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}

// Get returns the blob stored at path.
func (s *Store) Get(path string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRow(`SELECT content FROM files WHERE path = ?`, path).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return content, nil
}

// Digest returns the stored content digest for path, with ok = false
// when nothing is stored there.
func (s *Store) Digest(path string) (digest [32]byte, ok bool, err error) {
	var raw []byte
	err = s.db.QueryRow(`SELECT digest FROM files WHERE path = ?`, path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return digest, false, nil
	}
	if err != nil {
		return digest, false, fmt.Errorf("digest %s: %w", path, err)
	}
	copy(digest[:], raw)
	return digest, true, nil
}

// Delete removes the blob stored at path. Deleting an absent path is
// not an error.
func (s *Store) Delete(path string) error {
	if _, err := s.db.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// List returns the entries of every stored blob, ordered by path.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT path, digest, length(content), updated_at FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var raw []byte
		var updated int64
		if err := rows.Scan(&e.Path, &raw, &e.Size, &updated); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		copy(e.Digest[:], raw)
		e.UpdatedAt = time.Unix(0, updated)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
