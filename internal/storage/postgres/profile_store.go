// Package postgres provides a Postgres-backed profile store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/storage"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "profiles"

// Config controls the Postgres connection pool used for profiles.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// ProfileStore keeps one row per entity id. The primary key makes Save
// first-write-wins.
type ProfileStore struct {
	pool  pool
	table string
	now   func() time.Time
}

// New connects to Postgres and returns a ProfileStore.
func New(ctx context.Context, cfg Config) (*ProfileStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*ProfileStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ProfileStore{pool: p, table: table, now: time.Now}, nil
}

// EnsureSchema creates the profile table when it does not exist.
func (s *ProfileStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	entity_id    TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	body         BYTEA NOT NULL,
	saved_at     TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *ProfileStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Exists reports whether a row for entityID is present.
func (s *ProfileStore) Exists(ctx context.Context, entityID string) (bool, error) {
	var ok bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE entity_id = $1)`, s.table)
	if err := s.pool.QueryRow(ctx, query, entityID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check profile %s: %w", entityID, err)
	}
	return ok, nil
}

// Save inserts the profile; a conflicting id leaves the stored row untouched.
func (s *ProfileStore) Save(ctx context.Context, key crawler.ProfileKey, blob []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (entity_id, display_name, body, saved_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (entity_id) DO NOTHING`, s.table)
	if _, err := s.pool.Exec(ctx, query, key.EntityID, key.DisplayName, blob, s.now().UTC()); err != nil {
		return fmt.Errorf("insert profile %s: %w", key.EntityID, err)
	}
	return nil
}

// Load returns the stored body for entityID.
func (s *ProfileStore) Load(ctx context.Context, entityID string) ([]byte, error) {
	var blob []byte
	query := fmt.Sprintf(`SELECT body FROM %s WHERE entity_id = $1`, s.table)
	if err := s.pool.QueryRow(ctx, query, entityID).Scan(&blob); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", crawler.ErrProfileNotFound, entityID)
		}
		return nil, fmt.Errorf("load profile %s: %w", entityID, err)
	}
	return blob, nil
}

// List returns every stored key ordered by display name.
func (s *ProfileStore) List(ctx context.Context) ([]crawler.ProfileKey, error) {
	query := fmt.Sprintf(`SELECT entity_id, display_name FROM %s ORDER BY display_name, entity_id`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

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
