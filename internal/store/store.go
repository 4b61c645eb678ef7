// Package store persists global editor state: saved widget options and the
// list of recently opened documents.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"
)

const (
	OptionsKey = "editor.options"

	cacheSize = 64
)

type Store struct {
	conn  *sql.DB
	cache *lru.Cache[string, []byte]
}

type Document struct {
	ID         int64
	Path       string
	Title      string
	ModifiedAt int64
	OpenedAt   int64
}

func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	s := &Store{conn: conn, cache: cache}
	if err := s.init(); err != nil {
		conn.Close() //nolint:errcheck
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	s.cache.Purge()
	return s.conn.Close()
}

func (s *Store) init() error {
	schema := `
		CREATE TABLE IF NOT EXISTS state (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at INTEGER DEFAULT (strftime('%s', 'now'))
		);

		CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY,
			path TEXT UNIQUE NOT NULL,
			title TEXT,
			modified_at INTEGER,
			opened_at INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_documents_opened_at ON documents(opened_at);
	`

	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Get returns the raw value for key. A missing key is not an error.
func (s *Store) Get(key string) ([]byte, bool, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, true, nil
	}

	var value []byte
	err := s.conn.QueryRow("SELECT value FROM state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	s.cache.Add(key, value)
	return value, true, nil
}

func (s *Store) Put(key string, value []byte) error {
	_, err := s.conn.Exec(`
		INSERT INTO state (key, value, updated_at)
		VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		s.cache.Remove(key)
		return err
	}
	s.cache.Add(key, value)
	return nil
}

func (s *Store) Delete(key string) error {
	s.cache.Remove(key)
	_, err := s.conn.Exec("DELETE FROM state WHERE key = ?", key)
	return err
}

// GetOptions returns the saved widget options, or nil if none were saved.
func (s *Store) GetOptions() (map[string]any, error) {
	raw, ok, err := s.Get(OptionsKey)
	if err != nil || !ok {
		return nil, err
	}
	var opts map[string]any
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode saved options: %w", err)
	}
	return opts, nil
}

func (s *Store) SaveOptions(opts map[string]any) error {
	raw, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}
	if err := s.Put(OptionsKey, raw); err != nil {
		return fmt.Errorf("failed to save options: %w", err)
	}
	return nil
}

// ResetOptions replaces the saved options with an empty set.
func (s *Store) ResetOptions() error {
	return s.SaveOptions(map[string]any{})
}

func (s *Store) GetDocument(path string) (*Document, error) {
	var doc Document
	err := s.conn.QueryRow(
		"SELECT id, path, title, modified_at, opened_at FROM documents WHERE path = ?",
		path,
	).Scan(&doc.ID, &doc.Path, &doc.Title, &doc.ModifiedAt, &doc.OpenedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) UpsertDocument(path, title string, modifiedAt, openedAt int64) (int64, error) {
	_, err := s.conn.Exec(`
		INSERT INTO documents (path, title, modified_at, opened_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title = excluded.title,
			modified_at = excluded.modified_at,
			opened_at = excluded.opened_at
	`, path, title, modifiedAt, openedAt)
	if err != nil {
		return 0, err
	}

	var docID int64
	if err := s.conn.QueryRow("SELECT id FROM documents WHERE path = ?", path).Scan(&docID); err != nil {
		return 0, err
	}
	return docID, nil
}

func (s *Store) DeleteDocument(path string) error {
	_, err := s.conn.Exec("DELETE FROM documents WHERE path = ?", path)
	return err
}

// RecentDocuments lists documents by most recent open.
func (s *Store) RecentDocuments(limit int) ([]Document, error) {
	rows, err := s.conn.Query(`
		SELECT id, path, title, modified_at, opened_at
		FROM documents
		ORDER BY opened_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Path, &d.Title, &d.ModifiedAt, &d.OpenedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
