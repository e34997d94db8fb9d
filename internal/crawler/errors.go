package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrProfileNotFound is returned by ProfileStore.Load for unknown ids.
var ErrProfileNotFound = errors.New("profile not found")

// ErrNoRule is returned when a document type has no registered rule.
var ErrNoRule = errors.New("no extraction rule for document type")

// FetchError describes a failed fetch. Transient errors may be retried;
// everything else is fatal for the request that produced it.
type FetchError struct {
	Request    Request
	StatusCode int
	Transient  bool
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s fetch error for %s: status %d: %v", kind, e.Request.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s fetch error for %s: %v", kind, e.Request.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error must not be retried.
func (e *FetchError) Fatal() bool {
	return !e.Transient
}

// Escalate converts a transient failure into a fatal one after retries ran out.
func (e *FetchError) Escalate(attempts int) *FetchError {
	out := *e
	out.Transient = false
	out.Attempts = attempts
	return &out
}

// NewStatusError classifies an HTTP status. 5xx, 408 and 429 are transient;
// other 4xx are fatal.
func NewStatusError(req Request, status int, err error) *FetchError {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	transient := status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
	return &FetchError{Request: req, StatusCode: status, Transient: transient, Err: err}
}

// IsFatalFetch reports whether err is a non-retryable FetchError.
func IsFatalFetch(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Fatal()
	}
	return false
}

// ParseWarning is a recoverable extraction problem: a malformed row or a
// missing optional field. Extraction continues with a partial record.
type ParseWarning struct {
	URL     string
	Message string
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("%s: %s", w.URL, w.Message)
}

// ScheduleError reports an invariant violation in the scheduler, such as a
// request dispatched twice. It is always fatal.
type ScheduleError struct {
	Key    string
	Reason string
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("schedule invariant violated for %s: %s", e.Key, e.Reason)
}
