package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clipvault/core/internal/query"
	"github.com/clipvault/core/internal/search"
	"github.com/clipvault/core/internal/store"
)

const (
	twoSeconds  = 2 * time.Second
	fivemsPoll  = 5 * time.Millisecond
)

func openTestController(t *testing.T) (*store.Store, *search.Engine, *query.Controller) {
	t.Helper()

	s, err := store.Open(context.Background(), t.TempDir())
	require.NoError(t, err)

	eng, err := search.Open(context.Background(), s)
	require.NoError(t, err)

	c := query.New(eng, query.WithDebounce(0))

	t.Cleanup(func() {
		c.Close()
		_ = eng.Close()
		_ = s.Close()
	})

	return s, eng, c
}

func TestSetQueryEmptyServesRecent(t *testing.T) {
	s, _, c := openTestController(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "hello", Payload: []byte("hello")})
	require.NoError(t, err)

	c.SetQuery("")

	st := c.State()
	require.False(t, st.Loading)
	require.Len(t, st.Items, 1)
}

func TestSetQueryFuzzyAutoRefinesUnderZeroDebounce(t *testing.T) {
	s, eng, c := openTestController(t)
	ctx := context.Background()

	rec, err := s.Upsert(ctx, &store.Ingested{
		Type:      store.TypeText,
		PlainText: "abcdefgh",
		Payload:   []byte("abcdefgh"),
	})
	require.NoError(t, err)

	waitForEngineIndex(t, eng)

	c.SetMode(search.ModeFuzzy)
	c.SetQuery("aceg")

	st := c.State()
	require.False(t, st.Loading)
	require.Len(t, st.Items, 1)
	require.Equal(t, rec.ID, st.Items[0].ID)
}

func TestLoadMoreRefusedWhileLoadingOrExhausted(t *testing.T) {
	_, _, c := openTestController(t)
	ctx := context.Background()

	c.SetQuery("")

	require.NoError(t, c.LoadMore(ctx))
	require.False(t, c.State().Loading)
}

func TestSelectNextWrapsAndFallsBackToFirst(t *testing.T) {
	s, _, c := openTestController(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "one", Payload: []byte("one")})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "two", Payload: []byte("two")})
	require.NoError(t, err)

	c.SetQuery("")

	st := c.State()
	require.Len(t, st.Items, 2)

	c.SelectNext()
	require.Equal(t, st.Items[0].ID.String(), c.State().SelectedID)

	c.SelectNext()
	require.Equal(t, st.Items[1].ID.String(), c.State().SelectedID)

	c.SelectNext()
	require.Equal(t, st.Items[0].ID.String(), c.State().SelectedID)
}

func TestSelectPreviousFromEmptySelectionGoesToLast(t *testing.T) {
	s, _, c := openTestController(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "one", Payload: []byte("one")})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "two", Payload: []byte("two")})
	require.NoError(t, err)

	c.SetQuery("")

	st := c.State()
	require.Len(t, st.Items, 2)

	c.SelectPrevious()
	require.Equal(t, st.Items[1].ID.String(), c.State().SelectedID)
}

func TestSelectNextNoOpOnEmptyList(t *testing.T) {
	_, _, c := openTestController(t)

	c.SetQuery("")
	require.Empty(t, c.State().Items)

	c.SelectNext()
	require.Equal(t, "", c.State().SelectedID)
}

func TestDeletingSelectedItemMovesSelectionToNext(t *testing.T) {
	s, _, c := openTestController(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "one", Payload: []byte("one")})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "two", Payload: []byte("two")})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "three", Payload: []byte("three")})
	require.NoError(t, err)

	c.SetQuery("")

	st := c.State()
	require.Len(t, st.Items, 3)

	c.SelectNext()
	selected := st.Items[0]

	require.NoError(t, s.Delete(ctx, selected.ID.String()))

	require.Eventually(t, func() bool {
		return c.State().LoadedCount == 2
	}, twoSeconds, fivemsPoll)

	after := c.State()
	require.NotEqual(t, selected.ID.String(), after.SelectedID)
	require.Len(t, after.Items, 2)
}

func TestDeletingSelectedLastItemMovesSelectionToNewLast(t *testing.T) {
	s, _, c := openTestController(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "one", Payload: []byte("one")})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "two", Payload: []byte("two")})
	require.NoError(t, err)

	c.SetQuery("")

	st := c.State()
	require.Len(t, st.Items, 2)

	c.SelectPrevious()
	last := st.Items[len(st.Items)-1]
	require.Equal(t, last.ID.String(), c.State().SelectedID)

	require.NoError(t, s.Delete(ctx, last.ID.String()))

	require.Eventually(t, func() bool {
		return c.State().LoadedCount == 1
	}, twoSeconds, fivemsPoll)

	after := c.State()
	require.Equal(t, st.Items[0].ID.String(), after.SelectedID)
}

func TestDeletingSelectedOnlyItemClearsSelection(t *testing.T) {
	s, _, c := openTestController(t)
	ctx := context.Background()

	rec, err := s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "one", Payload: []byte("one")})
	require.NoError(t, err)

	c.SetQuery("")
	c.SelectNext()
	require.Equal(t, rec.ID.String(), c.State().SelectedID)

	require.NoError(t, s.Delete(ctx, rec.ID.String()))

	require.Eventually(t, func() bool {
		return c.State().LoadedCount == 0
	}, twoSeconds, fivemsPoll)

	require.Equal(t, "", c.State().SelectedID)
}

func waitForEngineIndex(t *testing.T, eng *search.Engine) {
	t.Helper()

	require.Eventually(t, func() bool {
		return eng.Stats().FullIndexSize > 0
	}, twoSeconds, fivemsPoll)
}
