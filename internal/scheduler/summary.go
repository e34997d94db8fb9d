package scheduler

import (
	"sort"
	"time"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
)

// Failure is a request that ended in a fatal error.
type Failure struct {
	URL   string
	Type  crawler.DocumentType
	Error string
}

// Summary reports what a run did.
type Summary struct {
	RunID      string
	Site       string
	StartedAt  time.Time
	FinishedAt time.Time
	Dispatched int
	Fetched    int
	FromStore  int
	// DuplicateProfiles counts profile requests skipped because the same
	// entity was already handled in this run.
	DuplicateProfiles int
	// Deduplicated counts follow-ups dropped because their key was already seen.
	Deduplicated int
	Records      map[crawler.RecordKind]int
	Failures     []Failure
	Warnings     []crawler.ParseWarning
	Canceled     bool
	// Remaining is the number of requests still queued or in flight when the
	// run stopped early.
	Remaining int
}

// HasFatal reports whether any request failed fatally.
func (s Summary) HasFatal() bool {
	return len(s.Failures) > 0
}

// TotalRecords sums Records.
func (s Summary) TotalRecords() int {
	total := 0
	for _, n := range s.Records {
		total += n
	}
	return total
}

// Kinds returns the record kinds in Records, sorted.
func (s Summary) Kinds() []crawler.RecordKind {
	kinds := make([]crawler.RecordKind, 0, len(s.Records))
	for k := range s.Records {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Status is a live snapshot of a running crawl.
type Status struct {
	Running    bool                       `json:"running"`
	RunID      string                     `json:"run_id,omitempty"`
	Site       string                     `json:"site,omitempty"`
	StartedAt  time.Time                  `json:"started_at,omitzero"`
	Pending    int                        `json:"pending"`
	Queued     int                        `json:"queued"`
	Dispatched int                        `json:"dispatched"`
	Fetched    int                        `json:"fetched"`
	FromStore  int                        `json:"from_store"`
	Records    map[crawler.RecordKind]int `json:"records"`
	Failures   int                        `json:"failures"`
	Warnings   int                        `json:"warnings"`
}
