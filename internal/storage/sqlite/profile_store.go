// Package sqlite provides a single-file profile store backed by
// modernc.org/sqlite, a pure Go SQLite implementation that needs no cgo.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	entity_id    TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	body         BLOB NOT NULL,
	saved_at     TEXT NOT NULL
)`

// Config locates the database file.
type Config struct {
	Path string
}

// ProfileStore keeps profiles in one SQLite table keyed by entity id.
type ProfileStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the database at cfg.Path.
func Open(cfg Config) (*ProfileStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite has a single writer; one connection keeps saves from
	// contending for the lock.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &ProfileStore{db: db, path: cfg.Path, now: time.Now}, nil
}

// Close closes the database connection.
func (s *ProfileStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *ProfileStore) Path() string {
	return s.path
}

// Exists reports whether a row for entityID is present.
func (s *ProfileStore) Exists(ctx context.Context, entityID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM profiles WHERE entity_id = ?`, entityID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check profile %s: %w", entityID, err)
	}
	return n > 0, nil
}

// Save inserts the profile unless the id is already stored.
func (s *ProfileStore) Save(ctx context.Context, key crawler.ProfileKey, blob []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO profiles (entity_id, display_name, body, saved_at) VALUES (?, ?, ?, ?)`,
		key.EntityID, key.DisplayName, blob, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert profile %s: %w", key.EntityID, err)
	}
	return nil
}

// Load returns the stored body for entityID.
func (s *ProfileStore) Load(ctx context.Context, entityID string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM profiles WHERE entity_id = ?`, entityID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", crawler.ErrProfileNotFound, entityID)
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", entityID, err)
	}
	return blob, nil
}

// List returns every stored key ordered by display name.
func (s *ProfileStore) List(ctx context.Context) ([]crawler.ProfileKey, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity_id, display_name FROM profiles ORDER BY display_name, entity_id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []crawler.ProfileKey
	for rows.Next() {
		var key crawler.ProfileKey
		if err := rows.Scan(&key.EntityID, &key.DisplayName); err != nil {
			return nil, fmt.Errorf("scan profile key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return keys, nil
}
