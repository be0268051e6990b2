package fulltext_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clipvault/core/internal/fulltext"
	"github.com/clipvault/core/internal/store"
)

func openTestIndex(t *testing.T) (*store.Store, *fulltext.Index) {
	t.Helper()

	s, err := store.Open(context.Background(), t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s, fulltext.New(s.DB())
}

func TestBuildMatchExpressionSplitsAndQuotes(t *testing.T) {
	require.Equal(t, `"hello" AND "world"`, fulltext.BuildMatchExpression("hello world"))
	require.Equal(t, `"foo" AND "bar"`, fulltext.BuildMatchExpression("foo-bar"))
	require.Equal(t, `"inject"`, fulltext.BuildMatchExpression(`inject*":"`))
	require.Equal(t, "", fulltext.BuildMatchExpression("   "))
}

func TestSearchFindsExactMatch(t *testing.T) {
	s, idx := openTestIndex(t)
	ctx := context.Background()

	rec, err := s.Upsert(ctx, &store.Ingested{
		Type:      store.TypeText,
		PlainText: "the quick brown fox",
		Payload:   []byte("the quick brown fox"),
	})
	require.NoError(t, err)

	candidates, err := idx.Search(ctx, "quick fox", fulltext.SortRelevance, fulltext.Filters{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, rec.ID.String(), candidates[0].ID)
}

func TestSearchAppliesFilters(t *testing.T) {
	s, idx := openTestIndex(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, &store.Ingested{
		Type:        store.TypeText,
		PlainText:   "shared keyword one",
		Payload:     []byte("shared keyword one"),
		AppBundleID: "com.example.a",
	})
	require.NoError(t, err)

	matchB, err := s.Upsert(ctx, &store.Ingested{
		Type:        store.TypeText,
		PlainText:   "shared keyword two",
		Payload:     []byte("shared keyword two"),
		AppBundleID: "com.example.b",
	})
	require.NoError(t, err)

	candidates, err := idx.Search(ctx, "shared keyword", fulltext.SortRecent,
		fulltext.Filters{AppBundleID: "com.example.b"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, matchB.ID.String(), candidates[0].ID)
}

func TestLikeScanFindsSubstringFTSMisses(t *testing.T) {
	s, idx := openTestIndex(t)
	ctx := context.Background()

	rec, err := s.Upsert(ctx, &store.Ingested{
		Type:      store.TypeText,
		PlainText: "my_snake_case_identifier",
		Payload:   []byte("my_snake_case_identifier"),
	})
	require.NoError(t, err)

	candidates, err := idx.LikeScan(ctx, "snake_case", fulltext.Filters{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, rec.ID.String(), candidates[0].ID)
}

func TestLikeScanEscapesWildcards(t *testing.T) {
	s, idx := openTestIndex(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, &store.Ingested{
		Type:      store.TypeText,
		PlainText: "one hundred percent",
		Payload:   []byte("one hundred percent"),
	})
	require.NoError(t, err)

	candidates, err := idx.LikeScan(ctx, "100%", fulltext.Filters{}, 10, 0)
	require.NoError(t, err)
	require.Empty(t, candidates)
}

func TestSearchOrdersPinnedFirstUnderRelevance(t *testing.T) {
	s, idx := openTestIndex(t)
	ctx := context.Background()

	weak, err := s.Upsert(ctx, &store.Ingested{
		Type:      store.TypeText,
		PlainText: "marker text marker text marker marker marker",
		Payload:   []byte("marker text marker text marker marker marker"),
	})
	require.NoError(t, err)

	pinned, err := s.Upsert(ctx, &store.Ingested{
		Type:      store.TypeText,
		PlainText: "marker",
		Payload:   []byte("marker"),
	})
	require.NoError(t, err)
	require.NoError(t, s.SetPin(ctx, pinned.ID.String(), true))

	candidates, err := idx.Search(ctx, "marker", fulltext.SortRelevance, fulltext.Filters{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	require.Equal(t, pinned.ID.String(), candidates[0].ID)
	require.Equal(t, weak.ID.String(), candidates[1].ID)
}
