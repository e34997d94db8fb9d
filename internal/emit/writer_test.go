package emit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/hash/sha256"
	pubmemory "github.com/JakeFAU/parlcrawl/internal/publisher/memory"
	"github.com/JakeFAU/parlcrawl/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var writerNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func peopleTable() Table {
	return Table{
		Name:    "people",
		Kind:    crawler.KindPerson,
		Columns: []string{"Parliament", "PersonId", "LastName"},
		Rows: [][]string{
			{"1", "10", "Abbott"},
			{"2", "20", "Brown"},
			{"1", "30", "Carter"},
			{"current", "40", "Doe"},
		},
	}
}

func TestPartition(t *testing.T) {
	t.Parallel()

	perTerm, combined, ok := Partition(peopleTable())
	require.True(t, ok)

	names := make([]string, len(perTerm))
	for i, p := range perTerm {
		names[i] = p.Name
	}
	require.Equal(t, []string{"parliament-1-people", "parliament-2-people", "parliament-current-people"}, names)
	if diff := cmp.Diff([][]string{{"10", "Abbott"}, {"30", "Carter"}}, perTerm[0].Rows); diff != "" {
		t.Fatalf("term 1 rows (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"PersonId", "LastName"}, perTerm[0].Columns)

	require.Equal(t, "all_parliaments", combined.Name)
	require.Equal(t, []string{"parliament", "PersonId", "LastName"}, combined.Columns)
	require.Equal(t, []string{"1", "1", "2", "current"}, combined.Column("parliament"))

	_, _, ok = Partition(Table{Columns: []string{"PersonId"}})
	require.False(t, ok)
}

func TestWriterWritesPartitionsAndNotifies(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	pub := pubmemory.New()
	w := NewWriter(store, pub, sha256.New(), fixedClock{writerNow}, WriterConfig{
		Prefix:  "out",
		Formats: []Format{FormatCSV, FormatJSON},
		Topic:   "artifacts",
	}, nil)

	arts, err := w.WriteAll(context.Background(), "run-1", []Table{peopleTable()})
	require.NoError(t, err)
	// people + three terms + combined, each in two formats.
	require.Len(t, arts, 10)
	require.Len(t, pub.Messages(), 10)

	require.Contains(t, store.Paths(), "out/run-1/people.csv")
	require.Contains(t, store.Paths(), "out/run-1/parliaments/parliament-1-people.csv")
	require.Contains(t, store.Paths(), "out/run-1/parliaments/all_parliaments.json")

	obj, ok := store.Get("out/run-1/parliaments/parliament-1-people.csv")
	require.True(t, ok)
	require.Equal(t, "PersonId,LastName\n10,Abbott\n30,Carter\n", string(obj.Data))

	first := arts[0]
	require.Equal(t, "people", first.Table)
	require.Equal(t, FormatCSV, first.Format)
	require.Equal(t, 4, first.Rows)
	require.Equal(t, "memory://out/run-1/people.csv", first.URI)
	require.Len(t, first.SHA256, 64)
	require.Equal(t, writerNow, first.CreatedAt)

	msg := pub.Messages()[0]
	require.Equal(t, "artifacts", msg.Topic)
	payload, ok := msg.Payload.(Artifact)
	require.True(t, ok)
	require.Equal(t, first.SHA256, payload.SHA256)
	require.Equal(t, "run-1", payload.RunID)
}

func TestEncodeJSON(t *testing.T) {
	t.Parallel()

	data, err := EncodeJSON(Table{Columns: []string{"a", "b"}, Rows: [][]string{{"1", "x|y"}}})
	require.NoError(t, err)
	var got []map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, []map[string]string{{"a": "1", "b": "x|y"}}, got)
}

func TestWriterSkipsNotificationsWithoutPublisher(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	w := NewWriter(store, nil, sha256.New(), fixedClock{writerNow}, WriterConfig{Topic: "artifacts"}, nil)
	arts, err := w.WriteAll(context.Background(), "run-2", []Table{{Name: "bills", Kind: crawler.KindBill, Columns: []string{"permalink"}}})
	require.NoError(t, err)
	require.Len(t, arts, 1)
	require.Equal(t, []string{"run-2/bills.csv"}, store.Paths())
}
