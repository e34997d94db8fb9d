package emit

import (
	"sort"
	"sync"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
)

// Collector is a concurrency-safe crawler.RecordSink that groups records by
// kind.
type Collector struct {
	mu     sync.Mutex
	byKind map[crawler.RecordKind][]crawler.Record
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{byKind: make(map[crawler.RecordKind][]crawler.Record)}
}

// Accept stores copies of records.
func (c *Collector) Accept(records ...crawler.Record) {
	if len(records) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		c.byKind[r.Kind] = append(c.byKind[r.Kind], copyRecord(r))
	}
}

// Records returns the records collected for kind.
func (c *Collector) Records(kind crawler.RecordKind) []crawler.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]crawler.Record(nil), c.byKind[kind]...)
}

// Groups returns every collected record grouped by kind.
func (c *Collector) Groups() map[crawler.RecordKind][]crawler.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[crawler.RecordKind][]crawler.Record, len(c.byKind))
	for k, v := range c.byKind {
		out[k] = append([]crawler.Record(nil), v...)
	}
	return out
}

// Kinds returns the kinds seen so far, sorted.
func (c *Collector) Kinds() []crawler.RecordKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]crawler.RecordKind, 0, len(c.byKind))
	for k := range c.byKind {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the total number of collected records.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.byKind {
		n += len(v)
	}
	return n
}

func copyRecord(r crawler.Record) crawler.Record {
	out := crawler.NewRecord(r.Kind)
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	return out
}
