package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Parlinfo.APH.gov.au/path", "parlinfo.aph.gov.au"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()

	if fetchesTotal == nil || recordsTotal == nil || profilesTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	before := testutil.ToFloat64(fetchesTotal.WithLabelValues("metrics.test", "ok"))
	ObserveFetch("https://metrics.test/a", "ok", 10, time.Millisecond)
	if val := testutil.ToFloat64(fetchesTotal.WithLabelValues("metrics.test", "ok")); val != before+1 {
		t.Errorf("expected fetch counter to increase by 1, got %f", val-before)
	}

	ObserveRecords("speech", 3)
	if val := testutil.ToFloat64(recordsTotal.WithLabelValues("speech")); val < 3 {
		t.Errorf("expected at least 3 speech records, got %f", val)
	}
}

func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://www.parliament.nz", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}

func TestObserveCrawlCounters(t *testing.T) {
	Init()

	stored := testutil.ToFloat64(profilesTotal.WithLabelValues("store"))
	ObserveProfile("store")
	assert.Equal(t, stored+1, testutil.ToFloat64(profilesTotal.WithLabelValues("store")))

	warned := testutil.ToFloat64(parseWarningsTotal.WithLabelValues("au.bill"))
	ObserveParseWarnings("au.bill", 2)
	ObserveParseWarnings("au.bill", 0)
	assert.Equal(t, warned+2, testutil.ToFloat64(parseWarningsTotal.WithLabelValues("au.bill")))

	written := testutil.ToFloat64(artifactsTotal)
	ObserveArtifact()
	assert.Equal(t, written+1, testutil.ToFloat64(artifactsTotal))

	IncActiveWorkers()
	IncActiveWorkers()
	DecActiveWorkers()
	assert.GreaterOrEqual(t, testutil.ToFloat64(activeWorkers), float64(1))
	DecActiveWorkers()
}
