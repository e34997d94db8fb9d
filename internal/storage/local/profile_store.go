package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/storage"
)

// ProfileStore keeps one "<type>/<id>-<display>.json" file per profile under
// a directory. A writer first creates an exclusive claim for the id, then
// publishes the file with a hard link from a synced temporary file. Readers
// never observe a partial profile, and one id never gets two files.
type ProfileStore struct {
	dir string
}

// NewProfileStore opens (creating if needed) a profile directory.
func NewProfileStore(cfg Config) (*ProfileStore, error) {
	dir, err := prepareDir(cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	return &ProfileStore{dir: dir}, nil
}

// Exists reports whether a file for the id is present.
func (s *ProfileStore) Exists(_ context.Context, entityID string) (bool, error) {
	path, err := s.find(entityID)
	if err != nil {
		return false, err
	}
	return path != "", nil
}

// Save writes blob unless a profile for the id already exists or another
// writer holds the claim for it.
func (s *ProfileStore) Save(ctx context.Context, key crawler.ProfileKey, blob []byte) error {
	name, err := storage.ProfileFileName(key)
	if err != nil {
		return err
	}
	if ok, err := s.Exists(ctx, key.EntityID); err != nil || ok {
		return err
	}
	target := s.abs(name)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}

	// TODO: expire claims left behind by a writer that died mid-save.
	claim := s.abs(storage.ClaimName(key.EntityID))
	f, err := os.OpenFile(claim, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) // #nosec G304 -- claim name is built by the codec.
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return fmt.Errorf("claim profile %s: %w", key.EntityID, err)
	}
	_ = f.Close()
	defer func() { _ = os.Remove(claim) }()

	// A writer that finished before the claim was taken has already published.
	if ok, err := s.Exists(ctx, key.EntityID); err != nil || ok {
		return err
	}

	tmp, err := writeTemp(filepath.Dir(target), bytes.NewReader(blob))
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp) }()

	if err := os.Link(tmp, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return fmt.Errorf("publish profile %s: %w", key.EntityID, err)
	}
	return nil
}

// Load reads the profile stored for the id.
func (s *ProfileStore) Load(_ context.Context, entityID string) ([]byte, error) {
	path, err := s.find(entityID)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("%w: %s", crawler.ErrProfileNotFound, entityID)
	}
	// #nosec G304 -- path comes from a glob inside the store directory.
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", entityID, err)
	}
	return blob, nil
}

// List returns the keys of every profile file, ordered by display name.
// Files at the top level and in profile type directories are listed; other
// files and directories are ignored.
func (s *ProfileStore) List(_ context.Context) ([]crawler.ProfileKey, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	var keys []crawler.ProfileKey
	for _, e := range entries {
		if !e.IsDir() {
			if key, ok := storage.ParseProfileFileName(e.Name()); ok {
				keys = append(keys, key)
			}
			continue
		}
		if !crawler.DocumentType(e.Name()).IsProfile() {
			continue
		}
		scoped, err := os.ReadDir(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("list profiles in %s: %w", e.Name(), err)
		}
		for _, f := range scoped {
			if f.IsDir() {
				continue
			}
			if key, ok := storage.ParseProfileFileName(e.Name() + "/" + f.Name()); ok {
				keys = append(keys, key)
			}
		}
	}
	storage.SortKeys(keys)
	return keys, nil
}

func (s *ProfileStore) find(entityID string) (string, error) {
	if entityID == "" {
		return "", fmt.Errorf("profile entity id is required")
	}
	matches, err := filepath.Glob(s.abs(storage.ProfilePrefix(entityID)) + "*.json")
	if err != nil {
		return "", fmt.Errorf("glob profiles: %w", err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	return matches[0], nil
}

func (s *ProfileStore) abs(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name))
}
