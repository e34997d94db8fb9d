package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/parlcrawl/internal/config"
	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/emit"
	pubmemory "github.com/JakeFAU/parlcrawl/internal/publisher/memory"
	"github.com/JakeFAU/parlcrawl/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("run-%d", g.n), nil
}

const nzProfileTemplate = `<html><body><div class="main"><h1>%s</h1><div class="cf">
<h2>List Member</h2>
<ul><li>Party: Green Party</li></ul>
<h2>Current Roles</h2>
<table>
  <thead><tr><td>Portfolio</td><td>Start</td><td>Finish</td></tr></thead>
  <tbody><tr><td>Whip</td><td>1/2/2020</td><td></td></tr></tbody>
</table>
</div></div></body></html>`

type nzSite struct {
	srv      *httptest.Server
	profiles atomic.Int32
	listings atomic.Int32
}

func newNZSite(t *testing.T) *nzSite {
	t.Helper()
	site := &nzSite{}
	mux := http.NewServeMux()
	mux.HandleFunc("/members", func(w http.ResponseWriter, _ *http.Request) {
		site.listings.Add(1)
		_, _ = fmt.Fprint(w, `<html><body><table>
<tr><td><a href="/mps/doe-jane/">Doe, Jane</a></td></tr>
<tr><td><a href="/mps/roe-rick/">Roe, Rick</a></td></tr>
</table></body></html>`)
	})
	mux.HandleFunc("/mps/", func(w http.ResponseWriter, r *http.Request) {
		site.profiles.Add(1)
		name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/mps/"), "/")
		_, _ = fmt.Fprintf(w, nzProfileTemplate, name)
	})
	site.srv = httptest.NewServer(mux)
	t.Cleanup(site.srv.Close)
	return site
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Store.Backend = config.BackendLocal
	cfg.Store.Dir = t.TempDir()
	cfg.Output.Backend = config.BackendMemory
	cfg.HTTP.RPS = 0
	cfg.HTTP.MaxRetries = 0
	cfg.HTTP.TimeoutSeconds = 5
	return cfg
}

func TestCrawlIsIdempotentAcrossRuns(t *testing.T) {
	t.Parallel()

	site := newNZSite(t)
	cfg := testConfig(t)
	cfg.Sites = map[string][]string{"nz-mps": {site.srv.URL + "/members"}}

	blobs := memory.NewBlobStore()
	pub := pubmemory.New()
	cfg.PubSub.Topic = "artifacts"
	a, err := Build(context.Background(), cfg, zap.NewNop(),
		WithBlobStore(blobs),
		WithPublisher(pub),
		WithIDGenerator(&seqIDs{}),
		WithClock(fixedClock{time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}),
	)
	require.NoError(t, err)
	defer a.Close()

	first, err := a.Crawl(context.Background(), "nz-mps", RunOptions{})
	require.NoError(t, err)
	assert.False(t, first.Summary.HasFatal())
	assert.Equal(t, 3, first.Summary.Fetched)
	assert.Equal(t, 2, first.Summary.Records[crawler.KindPerson])
	assert.Equal(t, 2, first.Summary.Records[crawler.KindRole])
	assert.EqualValues(t, 2, site.profiles.Load())

	keys, err := a.Profiles(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "doe-jane", keys[0].Entity())
	assert.Equal(t, crawler.DocNZProfile, keys[0].Type())

	second, err := a.Crawl(context.Background(), "nz-mps", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Summary.Fetched)
	assert.Equal(t, 2, second.Summary.FromStore)
	assert.Equal(t, 2, second.Summary.Records[crawler.KindPerson])
	assert.EqualValues(t, 2, site.profiles.Load(), "stored profiles must not be fetched again")
	assert.EqualValues(t, 2, site.listings.Load())

	obj, ok := blobs.Get("run-2/roles.csv")
	require.True(t, ok)
	assert.Contains(t, string(obj.Data), "2020-02-01")
	assert.Contains(t, blobs.Paths(), "run-1/people.csv")
	assert.Len(t, pub.Messages(), len(first.Artifacts)+len(second.Artifacts))
}

func TestCrawlUnknownSite(t *testing.T) {
	t.Parallel()

	a, err := Build(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Crawl(context.Background(), "atlantis", RunOptions{})
	require.ErrorContains(t, err, "unknown site")
}

func TestCrawlReportsFatalFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	cfg := testConfig(t)
	cfg.Sites = map[string][]string{"au-bills": {srv.URL + "/bills"}}
	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Crawl(context.Background(), "au-bills", RunOptions{})
	require.NoError(t, err)
	require.True(t, res.Summary.HasFatal())
	require.Len(t, res.Summary.Failures, 1)
	assert.Contains(t, res.Summary.Failures[0].Error, "404")
}

const caProfile = `{
  "Person": {"PersonId": 42, "LastName": "Doe", "UsedFirstName": "Jane"},
  "ParliamentaryPositionRoles": [
    {"RoleId": 7, "NameEn": "Speaker", "NameFr": "Président", "StartDate": "2015-12-03T00:00:00",
     "Classes": [{"RoleClassNameEn": "Officer"}, {"RoleClassNameEn": null}]}
  ],
  "CommitteeMemberRoles": null
}`

func TestExtractRolesFromStore(t *testing.T) {
	t.Parallel()

	store := memory.NewProfileStore()
	require.NoError(t, store.Save(context.Background(), crawler.ProfileKey{EntityID: crawler.ProfileID(crawler.DocCAProfile, "42"), DisplayName: "Doe,Jane"}, []byte(caProfile)))
	require.NoError(t, store.Save(context.Background(), crawler.ProfileKey{EntityID: crawler.ProfileID(crawler.DocAUBiography, "42"), DisplayName: "Doe"}, []byte("<html></html>")))
	blobs := memory.NewBlobStore()

	cfg := testConfig(t)
	a, err := Build(context.Background(), cfg, nil,
		WithProfileStore(store),
		WithBlobStore(blobs),
		WithIDGenerator(&seqIDs{}),
	)
	require.NoError(t, err)
	defer a.Close()

	res, err := a.ExtractRoles(context.Background(), "ParliamentaryPositionRoles")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.FromStore)
	assert.Empty(t, res.Summary.Failures, "non-Canadian profiles are not decoded")
	assert.Equal(t, 1, res.Summary.Records[crawler.KindRole])
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, "roles-ParliamentaryPositionRoles", res.Artifacts[0].Table)

	obj, ok := blobs.Get("run-1/roles-ParliamentaryPositionRoles.csv")
	require.True(t, ok)
	body := string(obj.Data)
	assert.Contains(t, body, "Speaker")
	assert.Contains(t, body, "2015-12-03")
	assert.Contains(t, body, "Officer")
	assert.NotContains(t, body, "Président")

	empty, err := a.ExtractRoles(context.Background(), "CommitteeMemberRoles")
	require.NoError(t, err)
	require.Len(t, empty.Artifacts, 1)
	obj, ok = blobs.Get("run-2/roles-CommitteeMemberRoles.csv")
	require.True(t, ok)
	assert.Equal(t, "PersonId,LastName,UsedFirstName\n", string(obj.Data))

	_, err = a.ExtractRoles(context.Background(), "")
	require.Error(t, err)
}

func TestTerms(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `[{"RefinerId": 3, "Name": "Parliament", "Options": [
  {"OptionId": 45, "DisplayNameEn": "Currently in Office"},
  {"OptionId": 2, "DisplayNameEn": "2nd Parliament"},
  {"OptionId": 1, "DisplayNameEn": "1st Parliament"}]}]`)
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(t)
	cfg.Sites = map[string][]string{"ca-parliaments": {srv.URL + "/refiners"}}
	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	options, err := a.Terms(context.Background())
	require.NoError(t, err)
	require.Len(t, options, 3)
	assert.Equal(t, "1", options[0].Term())
	assert.Equal(t, "current", options[2].Term())
}

func TestWriterUsesConfiguredFormats(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Output.Formats = []string{"json"}
	cfg.Output.Prefix = "exports"
	blobs := memory.NewBlobStore()
	a, err := Build(context.Background(), cfg, nil, WithBlobStore(blobs))
	require.NoError(t, err)
	defer a.Close()

	arts, err := a.writer().WriteAll(context.Background(), "r", []emit.Table{{Name: "bills", Kind: crawler.KindBill, Columns: []string{"permalink"}}})
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, []string{"exports/r/bills.json"}, blobs.Paths())
}
