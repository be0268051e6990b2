package clipvault_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clipvault/core/pkg/clipvault"
)

type recordingConsumer struct {
	mu       sync.Mutex
	newItems []clipvault.Record
}

func (c *recordingConsumer) OnNewItem(rec clipvault.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.newItems = append(c.newItems, rec)
}

func (c *recordingConsumer) OnItemUpdated(string)       {}
func (c *recordingConsumer) OnItemDeleted(string)       {}
func (c *recordingConsumer) OnThumbnailUpdated(string, string) {}
func (c *recordingConsumer) OnSettingsChanged()         {}

func (c *recordingConsumer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.newItems)
}

func TestOpenIngestAndSearch(t *testing.T) {
	ctx := context.Background()

	client, err := clipvault.Open(ctx, t.TempDir())
	require.NoError(t, err)

	defer func() { _ = client.Close() }()

	rec, err := client.Ingest(ctx, clipvault.IngestedContent{
		Type:      clipvault.TypeText,
		PlainText: "hello world",
		Payload:   []byte("hello world"),
	})
	require.NoError(t, err)
	require.NotNil(t, rec)

	page, err := client.Search(ctx, clipvault.SearchRequest{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
}

func TestSubscribeDeliversNewItem(t *testing.T) {
	ctx := context.Background()

	client, err := clipvault.Open(ctx, t.TempDir())
	require.NoError(t, err)

	defer func() { _ = client.Close() }()

	consumer := &recordingConsumer{}
	unsubscribe := client.Subscribe(consumer)
	defer unsubscribe()

	_, err = client.Ingest(ctx, clipvault.IngestedContent{
		Type:      clipvault.TypeText,
		PlainText: "another entry",
		Payload:   []byte("another entry"),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return consumer.count() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestQueryControllerServesRecent(t *testing.T) {
	ctx := context.Background()

	client, err := clipvault.Open(ctx, t.TempDir())
	require.NoError(t, err)

	defer func() { _ = client.Close() }()

	_, err = client.Ingest(ctx, clipvault.IngestedContent{
		Type:      clipvault.TypeText,
		PlainText: "controller smoke test",
		Payload:   []byte("controller smoke test"),
	})
	require.NoError(t, err)

	qc := client.NewQueryController()
	defer qc.Close()

	qc.SetQuery("")
	require.Eventually(t, func() bool {
		return len(qc.State().Items) == 1
	}, 2*time.Second, 5*time.Millisecond)
}
