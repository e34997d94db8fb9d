package emit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
)

func TestCollectorGroupsConcurrently(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := crawler.KindPerson
			if i%2 == 0 {
				kind = crawler.KindRole
			}
			c.Accept(rec(kind, "PersonId", "x"))
		}(i)
	}
	wg.Wait()

	require.Equal(t, 20, c.Len())
	require.Len(t, c.Records(crawler.KindRole), 10)
	require.Equal(t, []crawler.RecordKind{crawler.KindPerson, crawler.KindRole}, c.Kinds())
	require.Len(t, c.Groups()[crawler.KindPerson], 10)
}

func TestCollectorCopiesRecords(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	r := rec(crawler.KindBill, "permalink", "a")
	c.Accept(r)
	r.Set("permalink", "b")
	require.Equal(t, "a", c.Records(crawler.KindBill)[0].Get("permalink"))
}
