package local_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/storage/local"
)

func newProfileStore(t *testing.T) (*local.ProfileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := local.NewProfileStore(local.Config{BaseDir: dir})
	require.NoError(t, err)
	return store, dir
}

func TestProfileStoreSaveAndLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, dir := newProfileStore(t)
	key := crawler.ProfileKey{EntityID: "1234", DisplayName: "Macdonald,John_A."}

	ok, err := store.Exists(ctx, "1234")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Save(ctx, key, []byte(`{"Person":{}}`)))
	_, err = os.Stat(filepath.Join(dir, "1234-Macdonald,John_A..json"))
	require.NoError(t, err)

	ok, err = store.Exists(ctx, "1234")
	require.NoError(t, err)
	require.True(t, ok)

	blob, err := store.Load(ctx, "1234")
	require.NoError(t, err)
	require.Equal(t, `{"Person":{}}`, string(blob))

	// A prefix of a stored id is a different id.
	ok, err = store.Exists(ctx, "123")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProfileStoreFirstWriteWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newProfileStore(t)

	require.NoError(t, store.Save(ctx, crawler.ProfileKey{EntityID: "doe-jane", DisplayName: "Doe, Jane"}, []byte("first")))
	require.NoError(t, store.Save(ctx, crawler.ProfileKey{EntityID: "doe-jane", DisplayName: "Jane Doe"}, []byte("second")))

	blob, err := store.Load(ctx, "doe-jane")
	require.NoError(t, err)
	require.Equal(t, "first", string(blob))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []crawler.ProfileKey{{EntityID: "doe-jane", DisplayName: "Doe, Jane"}}, keys)
}

func TestProfileStoreConcurrentSavesLeaveOneFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, dir := newProfileStore(t)
	key := crawler.ProfileKey{EntityID: "42", DisplayName: "Answer"}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Save(ctx, key, []byte("payload"))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "42-Answer.json", entries[0].Name())
}

func TestProfileStoreListIgnoresOtherFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, dir := newProfileStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("x"), 0o600))
	require.NoError(t, store.Save(ctx, crawler.ProfileKey{EntityID: "2", DisplayName: "Brown,George"}, []byte("{}")))
	require.NoError(t, store.Save(ctx, crawler.ProfileKey{EntityID: "1", DisplayName: "Abbott,John"}, []byte("{}")))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []crawler.ProfileKey{
		{EntityID: "1", DisplayName: "Abbott,John"},
		{EntityID: "2", DisplayName: "Brown,George"},
	}, keys)
}

func TestProfileStoreLoadMissing(t *testing.T) {
	t.Parallel()

	store, _ := newProfileStore(t)
	_, err := store.Load(context.Background(), "nope")
	require.True(t, errors.Is(err, crawler.ErrProfileNotFound))
}

func TestProfileStoreConcurrentDisplayNamesKeepOneFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, dir := newProfileStore(t)
	id := crawler.ProfileID(crawler.DocCAProfile, "42")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := crawler.ProfileKey{EntityID: id, DisplayName: fmt.Sprintf("Doe,Jane%d", i)}
			errs <- store.Save(ctx, key, []byte(fmt.Sprint(i)))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "ca.profile", "42-*"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "only one file per id, and no claim left behind")

	keys, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	blob, err := store.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, strings.TrimSuffix(strings.TrimPrefix(filepath.Base(matches[0]), "42-Doe,Jane"), ".json"), string(blob))
}

func TestProfileStoreKeepsProfileTypesApart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, dir := newProfileStore(t)
	member := crawler.ProfileID(crawler.DocAUParliamentarian, "00AMV")
	bio := crawler.ProfileID(crawler.DocAUBiography, "00AMV")

	require.NoError(t, store.Save(ctx, crawler.ProfileKey{EntityID: member, DisplayName: "Abbott"}, []byte("member")))
	ok, err := store.Exists(ctx, bio)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Save(ctx, crawler.ProfileKey{EntityID: bio, DisplayName: "Abbott"}, []byte("bio")))
	blob, err := store.Load(ctx, bio)
	require.NoError(t, err)
	require.Equal(t, "bio", string(blob))
	_, err = os.Stat(filepath.Join(dir, "au.biography", "00AMV-Abbott.json"))
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scratch"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch", "1-x.json"), []byte("{}"), 0o600))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []crawler.ProfileKey{
		{EntityID: member, DisplayName: "Abbott"},
		{EntityID: bio, DisplayName: "Abbott"},
	}, keys)
}
