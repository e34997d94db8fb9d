// Package memory provides the in-process crawl frontier.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
)

// ErrClosed is returned by Enqueue after Close and by Dequeue once a closed
// queue has drained.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded FIFO of requests with context-aware operations.
// Workers enqueue children while they themselves hold a dequeued request, so
// Enqueue never blocks.
type Queue struct {
	mu     sync.Mutex
	items  []crawler.Request
	closed bool
	signal chan struct{}
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Enqueue appends a request.
func (q *Queue) Enqueue(req crawler.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, req)
	q.notify()
	return nil
}

// Dequeue pops the oldest request, blocking until one is available, the
// queue is closed and empty, or ctx ends.
func (q *Queue) Dequeue(ctx context.Context) (crawler.Request, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			req := q.items[0]
			q.items[0] = crawler.Request{}
			q.items = q.items[1:]
			if len(q.items) > 0 || q.closed {
				q.notify()
			}
			q.mu.Unlock()
			return req, nil
		}
		if q.closed {
			q.notify()
			q.mu.Unlock()
			return crawler.Request{}, ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return crawler.Request{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.signal:
		}
	}
}

// Len returns the number of queued requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops further enqueues. Queued requests can still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notify()
}

// notify wakes one waiter. Callers hold q.mu.
func (q *Queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
