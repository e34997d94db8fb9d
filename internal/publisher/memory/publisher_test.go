package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "artifacts", map[string]string{"table": "people"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "audit", "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "artifacts", msgs[0].Topic)
	require.Equal(t, "audit", msgs[1].Topic)

	msgs[0].Topic = "modified"
	require.Equal(t, "artifacts", pub.Messages()[0].Topic, "Messages must return a copy")
}

func TestPublisherReset(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "artifacts", 1)
	require.NoError(t, err)
	pub.Reset()
	require.Empty(t, pub.Messages())
	id, err := pub.Publish(context.Background(), "artifacts", 2)
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)
}

func TestPublisherRequiresTopic(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "", "payload")
	require.ErrorContains(t, err, "topic is required")
	require.Empty(t, pub.Messages())
}

func TestPublisherRecordsIDs(t *testing.T) {
	t.Parallel()

	pub := New()
	id, err := pub.Publish(context.Background(), "artifacts", "a")
	require.NoError(t, err)
	require.Equal(t, id, pub.Messages()[0].ID)
}
