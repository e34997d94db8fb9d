package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/storage"
)

type profile struct {
	key  crawler.ProfileKey
	blob []byte
}

// ProfileStore is an in-memory crawler.ProfileStore.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]profile
}

// NewProfileStore creates an empty store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]profile)}
}

// Exists reports whether entityID has been saved.
func (s *ProfileStore) Exists(_ context.Context, entityID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.profiles[entityID]
	return ok, nil
}

// Save stores a copy of blob. The first save of an id wins.
func (s *ProfileStore) Save(_ context.Context, key crawler.ProfileKey, blob []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[key.EntityID]; ok {
		return nil
	}
	s.profiles[key.EntityID] = profile{key: key, blob: append([]byte(nil), blob...)}
	return nil
}

// Load returns the stored blob for entityID.
func (s *ProfileStore) Load(_ context.Context, entityID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[entityID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", crawler.ErrProfileNotFound, entityID)
	}
	return append([]byte(nil), p.blob...), nil
}

// List returns every stored key ordered by display name.
func (s *ProfileStore) List(_ context.Context) ([]crawler.ProfileKey, error) {
	s.mu.RLock()
	keys := make([]crawler.ProfileKey, 0, len(s.profiles))
	for _, p := range s.profiles {
		keys = append(keys, p.key)
	}
	s.mu.RUnlock()
	storage.SortKeys(keys)
	return keys, nil
}
