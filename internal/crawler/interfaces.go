package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves the raw document for a Request. Implementations return a
// *FetchError for HTTP and transport failures.
type Fetcher interface {
	Fetch(ctx context.Context, request Request) (Document, error)
}

// ProfileStore persists per-entity documents so they are fetched at most once.
// Save must be all-or-nothing and a no-op when the id is already stored.
type ProfileStore interface {
	Exists(ctx context.Context, entityID string) (bool, error)
	Save(ctx context.Context, key ProfileKey, blob []byte) error
	Load(ctx context.Context, entityID string) ([]byte, error)
	List(ctx context.Context) ([]ProfileKey, error)
}

// Rule turns one document type into records and follow-up requests. Rules
// must not perform I/O.
type Rule interface {
	Extract(rc RunContext, doc Document) (Extraction, error)
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc func(rc RunContext, doc Document) (Extraction, error)

// Extract calls f.
func (f RuleFunc) Extract(rc RunContext, doc Document) (Extraction, error) {
	return f(rc, doc)
}

// RecordSink receives extracted records. Implementations must be safe for
// concurrent use.
type RecordSink interface {
	Accept(records ...Record)
}

// RetryPolicy decides whether and when a failed fetch is attempted again.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// RateLimiter blocks until a fetch of url may proceed.
type RateLimiter interface {
	Wait(ctx context.Context, url string) error
}

// BlobStore writes output artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes artifact notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for artifact integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
