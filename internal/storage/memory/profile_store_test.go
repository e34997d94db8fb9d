package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
)

func TestProfileStoreFirstWriteWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewProfileStore()
	key := crawler.ProfileKey{EntityID: "1234", DisplayName: "Macdonald,John"}

	require.NoError(t, store.Save(ctx, key, []byte(`{"v":1}`)))
	require.NoError(t, store.Save(ctx, key, []byte(`{"v":2}`)))

	blob, err := store.Load(ctx, "1234")
	require.NoError(t, err)
	require.Equal(t, `{"v":1}`, string(blob))

	ok, err := store.Exists(ctx, "1234")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestProfileStoreLoadMissing(t *testing.T) {
	t.Parallel()

	_, err := NewProfileStore().Load(context.Background(), "nope")
	require.True(t, errors.Is(err, crawler.ErrProfileNotFound))
}

func TestProfileStoreConcurrentSaves(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewProfileStore()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Save(ctx, crawler.ProfileKey{EntityID: "7", DisplayName: "Seven"}, []byte{byte(i)})
		}(i)
	}
	wg.Wait()

	keys, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, "Seven", keys[0].DisplayName)
}
