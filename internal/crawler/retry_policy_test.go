package crawler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type scriptedFetcher struct {
	mu       sync.Mutex
	attempts int
	errs     []error
}

func (f *scriptedFetcher) Fetch(_ context.Context, req Request) (Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= len(f.errs) {
		return Document{}, f.errs[f.attempts-1]
	}
	return Document{Request: req, URL: req.URL, StatusCode: http.StatusOK, Body: []byte("ok")}, nil
}

type instantPolicy struct {
	*ExponentialRetryPolicy
}

func (instantPolicy) Backoff(int) time.Duration { return 0 }

func TestExponentialRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	req := NewRequest("https://example.com", DocAUMembers)
	p := NewExponentialRetryPolicy(3, time.Millisecond, 10*time.Millisecond)
	cases := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{"nil error", nil, 1, false},
		{"server error", NewStatusError(req, http.StatusBadGateway, nil), 1, true},
		{"too many requests", NewStatusError(req, http.StatusTooManyRequests, nil), 2, true},
		{"not found", NewStatusError(req, http.StatusNotFound, nil), 1, false},
		{"attempts exhausted", NewStatusError(req, http.StatusInternalServerError, nil), 3, false},
		{"canceled", context.Canceled, 1, false},
		{"plain error", errors.New("boom"), 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, p.ShouldRetry(tc.err, tc.attempt))
		})
	}
}

func TestExponentialRetryPolicyBackoffBounded(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5, 100*time.Millisecond, 400*time.Millisecond)
	for attempt := 1; attempt <= 5; attempt++ {
		d := p.Backoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 400*time.Millisecond)
	}
}

func TestRetryingFetcherRecoversFromTransient(t *testing.T) {
	t.Parallel()

	req := NewRequest("https://example.com/a", DocAUMembers)
	next := &scriptedFetcher{errs: []error{
		NewStatusError(req, http.StatusServiceUnavailable, nil),
		NewStatusError(req, http.StatusInternalServerError, nil),
	}}
	f := NewRetryingFetcher(next, instantPolicy{NewExponentialRetryPolicy(3, 0, 0)})

	doc, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "ok", string(doc.Body))
	require.Equal(t, 3, next.attempts)
}

func TestRetryingFetcherEscalatesAfterExhaustion(t *testing.T) {
	t.Parallel()

	req := NewRequest("https://example.com/a", DocAUMembers)
	transient := NewStatusError(req, http.StatusBadGateway, nil)
	next := &scriptedFetcher{errs: []error{transient, transient, transient, transient}}
	f := NewRetryingFetcher(next, instantPolicy{NewExponentialRetryPolicy(3, 0, 0)})

	_, err := f.Fetch(context.Background(), req)
	require.Error(t, err)
	require.True(t, IsFatalFetch(err))
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, 3, fe.Attempts)
	require.Equal(t, http.StatusBadGateway, fe.StatusCode)
	require.Equal(t, 3, next.attempts)
}

func TestRetryingFetcherDoesNotRetryFatal(t *testing.T) {
	t.Parallel()

	req := NewRequest("https://example.com/missing", DocAUMembers)
	next := &scriptedFetcher{errs: []error{NewStatusError(req, http.StatusNotFound, nil)}}
	f := NewRetryingFetcher(next, instantPolicy{NewExponentialRetryPolicy(3, 0, 0)})

	_, err := f.Fetch(context.Background(), req)
	require.True(t, IsFatalFetch(err))
	require.Equal(t, 1, next.attempts)
}
