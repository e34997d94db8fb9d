package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	result := make(chan crawler.Request, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Enqueue(crawler.NewRequest("https://example.com/1", crawler.DocAUMembers)))
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		require.Equal(t, "https://example.com/1", got.URL)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return request")
	}
}

func TestQueueIsFIFOAndUnbounded(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	for i := 0; i < 1000; i++ {
		require.NoError(t, q.Enqueue(crawler.NewRequest("https://example.com/"+string(rune('a'+i%26)), crawler.DocAUMembers)))
	}
	require.Equal(t, 1000, q.Len())
	first, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://example.com/a", first.URL)
	second, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://example.com/b", second.URL)
}

func TestQueueCloseDrainsThenReportsClosed(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	require.NoError(t, q.Enqueue(crawler.NewRequest("https://example.com/last", crawler.DocAUMembers)))
	q.Close()
	q.Close()

	require.ErrorIs(t, q.Enqueue(crawler.NewRequest("https://example.com/late", crawler.DocAUMembers)), ErrClosed)
	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://example.com/last", got.URL)
	_, err = q.Dequeue(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestQueueCloseWakesAllWaiters(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Dequeue(context.Background())
			errs <- err
		}()
	}
	time.Sleep(10 * time.Millisecond)
	q.Close()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.True(t, errors.Is(err, ErrClosed))
	}
}

func TestQueueDequeueCanceled(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
