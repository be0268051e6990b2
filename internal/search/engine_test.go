package search_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clipvault/core/internal/search"
	"github.com/clipvault/core/internal/store"
)

func openTestEngine(t *testing.T) (*store.Store, *search.Engine) {
	t.Helper()

	s, err := store.Open(context.Background(), t.TempDir())
	require.NoError(t, err)

	eng, err := search.Open(context.Background(), s)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = eng.Close()
		_ = s.Close()
	})

	return s, eng
}

func TestSearchEmptyQueryServesRecent(t *testing.T) {
	s, eng := openTestEngine(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "hello", Payload: []byte("hello")})
	require.NoError(t, err)

	page, err := eng.Search(ctx, search.Request{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
}

func TestSearchExactFindsRecord(t *testing.T) {
	s, eng := openTestEngine(t)
	ctx := context.Background()

	rec, err := s.Upsert(ctx, &store.Ingested{
		Type:      store.TypeText,
		PlainText: "the quick brown fox",
		Payload:   []byte("the quick brown fox"),
	})
	require.NoError(t, err)

	waitForIndex(t, eng, rec.ID.String())

	page, err := eng.Search(ctx, search.Request{Query: "quick fox", Mode: search.ModeExact, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, rec.ID, page.Items[0].ID)
}

func TestSearchFuzzyPrefilterThenRefine(t *testing.T) {
	s, eng := openTestEngine(t)
	ctx := context.Background()

	rec, err := s.Upsert(ctx, &store.Ingested{
		Type:      store.TypeText,
		PlainText: "abcdefgh",
		Payload:   []byte("abcdefgh"),
	})
	require.NoError(t, err)

	waitForIndex(t, eng, rec.ID.String())

	prefilter, err := eng.Search(ctx, search.Request{Query: "aceg", Mode: search.ModeFuzzy, Limit: 10})
	require.NoError(t, err)
	require.True(t, prefilter.IsPrefilter)
	require.Equal(t, -1, prefilter.Total)

	refined, err := eng.Search(ctx, search.Request{
		Query: "aceg", Mode: search.ModeFuzzy, Limit: 10, ForceFullFuzzy: true,
	})
	require.NoError(t, err)
	require.False(t, refined.IsPrefilter)
	require.Len(t, refined.Items, 1)
	require.Equal(t, rec.ID, refined.Items[0].ID)
}

func TestSearchFuzzyPlusRequiresAllTokens(t *testing.T) {
	s, eng := openTestEngine(t)
	ctx := context.Background()

	match, err := s.Upsert(ctx, &store.Ingested{
		Type:      store.TypeText,
		PlainText: "alpha bravo",
		Payload:   []byte("alpha bravo"),
	})
	require.NoError(t, err)

	_, err = s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "alpha only", Payload: []byte("alpha only")})
	require.NoError(t, err)

	waitForIndex(t, eng, match.ID.String())

	page, err := eng.Search(ctx, search.Request{
		Query: "alpha bravo", Mode: search.ModeFuzzyPlus, Limit: 10, ForceFullFuzzy: true,
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, match.ID, page.Items[0].ID)
}

func TestSearchRegexMode(t *testing.T) {
	s, eng := openTestEngine(t)
	ctx := context.Background()

	rec, err := s.Upsert(ctx, &store.Ingested{
		Type:      store.TypeText,
		PlainText: "order-1234",
		Payload:   []byte("order-1234"),
	})
	require.NoError(t, err)

	page, err := eng.Search(ctx, search.Request{Query: `order-\d+`, Mode: search.ModeRegex, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, rec.ID, page.Items[0].ID)
}

func TestSearchRegexInvalidPatternFails(t *testing.T) {
	_, eng := openTestEngine(t)

	_, err := eng.Search(context.Background(), search.Request{Query: "(", Mode: search.ModeRegex})
	require.Error(t, err)
}

func TestInvalidateCacheOnEmptyEngine(t *testing.T) {
	_, eng := openTestEngine(t)

	eng.InvalidateCache()

	stats := eng.Stats()
	require.Equal(t, 0, stats.FullIndexSize)
}

// waitForIndex polls Stats until the background event-watcher has put at
// least one record into the full fuzzy index (the id argument is not
// checked), since Upsert's event publication and the watcher's consumption
// happen on a separate goroutine.
func waitForIndex(t *testing.T, eng *search.Engine, _ string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)

	for time.Now().Before(deadline) {
		if eng.Stats().FullIndexSize > 0 {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("timed out waiting for background index update")
}
