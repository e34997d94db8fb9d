package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	pstorage "github.com/JakeFAU/parlcrawl/internal/storage"
)

// ProfileStore keeps profiles as "<prefix>/<type>/<id>-<display>.json"
// objects. A writer first creates an id-only claim object under a
// does-not-exist precondition, so one id is published once even across
// processes that disagree on the display name.
type ProfileStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewProfileStore creates a GCS-backed profile store.
func NewProfileStore(client *storage.Client, cfg Config) (*ProfileStore, error) {
	if err := validate(client, cfg); err != nil {
		return nil, err
	}
	return &ProfileStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Exists reports whether an object for entityID is present.
func (s *ProfileStore) Exists(ctx context.Context, entityID string) (bool, error) {
	name, err := s.find(ctx, entityID)
	if err != nil {
		return false, err
	}
	return name != "", nil
}

// Save uploads blob unless a profile for the id already exists. A failed
// precondition means another writer got there first and is not an error.
func (s *ProfileStore) Save(ctx context.Context, key crawler.ProfileKey, blob []byte) error {
	file, err := pstorage.ProfileFileName(key)
	if err != nil {
		return err
	}
	if ok, err := s.Exists(ctx, key.EntityID); err != nil || ok {
		return err
	}

	bucket := s.client.Bucket(s.bucket)
	claim := bucket.Object(objectName(s.prefix, pstorage.ClaimName(key.EntityID)))
	won, err := s.create(ctx, claim, nil)
	if err != nil || !won {
		return wrapSave(key, err)
	}
	defer func() { _ = claim.Delete(context.WithoutCancel(ctx)) }()

	// A writer that finished before the claim was taken has already published.
	if ok, err := s.Exists(ctx, key.EntityID); err != nil || ok {
		return err
	}
	_, err = s.create(ctx, bucket.Object(objectName(s.prefix, file)), blob)
	return wrapSave(key, err)
}

// create uploads data if the object does not exist yet. won is false when
// the precondition failed.
func (s *ProfileStore) create(ctx context.Context, obj *storage.ObjectHandle, data []byte) (won bool, err error) {
	writer := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "application/json"
	if err := finish(writer, bytes.NewReader(data)); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func wrapSave(key crawler.ProfileKey, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("save profile %s: %w", key.EntityID, err)
}

// Load downloads the profile stored for entityID.
func (s *ProfileStore) Load(ctx context.Context, entityID string) ([]byte, error) {
	name, err := s.find(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: %s", crawler.ErrProfileNotFound, entityID)
	}
	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", crawler.ErrProfileNotFound, entityID)
		}
		return nil, fmt.Errorf("open profile %s: %w", entityID, err)
	}
	defer func() { _ = r.Close() }()
	blob, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", entityID, err)
	}
	return blob, nil
}

// List returns the keys of every profile object under the prefix.
func (s *ProfileStore) List(ctx context.Context) ([]crawler.ProfileKey, error) {
	var keys []crawler.ProfileKey
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.listPrefix("")})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list profiles: %w", err)
		}
		if key, ok := pstorage.ParseProfileFileName(s.relative(attrs.Name)); ok {
			keys = append(keys, key)
		}
	}
	pstorage.SortKeys(keys)
	return keys, nil
}

func (s *ProfileStore) find(ctx context.Context, entityID string) (string, error) {
	if entityID == "" {
		return "", fmt.Errorf("profile entity id is required")
	}
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.listPrefix(pstorage.ProfilePrefix(entityID))})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("find profile %s: %w", entityID, err)
		}
		if key, ok := pstorage.ParseProfileFileName(s.relative(attrs.Name)); ok && key.EntityID == entityID {
			return attrs.Name, nil
		}
	}
}

// relative strips the store prefix from an object name.
func (s *ProfileStore) relative(name string) string {
	if s.prefix == "" {
		return name
	}
	return strings.TrimPrefix(name, strings.TrimSuffix(s.prefix, "/")+"/")
}

func (s *ProfileStore) listPrefix(name string) string {
	if s.prefix == "" {
		return name
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + name
}
