package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/clipvault/core/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	dir := t.TempDir()

	s, err := store.Open(context.Background(), dir)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestOpenCreatesDatabaseAndContentDir(t *testing.T) {
	dir := t.TempDir()

	s, err := store.Open(context.Background(), dir)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = os.Stat(filepath.Join(dir, "clipboard.db"))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "content"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestUpsertDedupBumpsUseCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec1, err := s.Upsert(ctx, &store.Ingested{
		Type:      store.TypeText,
		PlainText: "Hello World",
		Payload:   []byte("Hello World"),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), rec1.UseCount)

	// Scenario 1 from spec: trailing CRLF/whitespace normalizes to the same hash.
	rec2, err := s.Upsert(ctx, &store.Ingested{
		Type:      store.TypeText,
		PlainText: "  Hello World  \r\n",
		Payload:   []byte("  Hello World  \r\n"),
	})
	require.NoError(t, err)

	require.Equal(t, rec1.ID, rec2.ID)
	require.Equal(t, int64(2), rec2.UseCount)

	all, err := s.FetchRecent(ctx, store.QueryOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestUpsertLargePayloadStoredExternally(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	payload := make([]byte, 600*1024)

	rec, err := s.Upsert(ctx, &store.Ingested{
		Type:      store.TypeText,
		PlainText: "big payload",
		Payload:   payload,
	})
	require.NoError(t, err)
	require.False(t, rec.IsInline())
	require.FileExists(t, rec.StorageRef)
}

func TestFetchRecentOrdersPinnedFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	oldest, err := s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "a", Payload: []byte("a")})
	require.NoError(t, err)

	newest, err := s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "b", Payload: []byte("b")})
	require.NoError(t, err)

	require.NoError(t, s.SetPin(ctx, oldest.ID.String(), true))

	page, err := s.FetchRecent(ctx, store.QueryOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, oldest.ID, page[0].ID)
	require.Equal(t, newest.ID, page[1].ID)
}

func TestSetPinAndUpdateNote(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "note me", Payload: []byte("note me")})
	require.NoError(t, err)

	require.NoError(t, s.SetPin(ctx, rec.ID.String(), true))
	require.NoError(t, s.UpdateNote(ctx, rec.ID.String(), "remember this"))

	got, err := s.FindByID(ctx, rec.ID.String())
	require.NoError(t, err)

	want := *rec
	want.IsPinned = true
	want.Note = "remember this"

	if diff := cmp.Diff(want, *got); diff != "" {
		t.Fatalf("record mismatch after pin+note update (-want +got):\n%s", diff)
	}
}

func TestDeleteRemovesRowAndExternalFile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	payload := make([]byte, 600*1024)

	rec, err := s.Upsert(ctx, &store.Ingested{Type: store.TypeFile, PlainText: "", Payload: payload})
	require.NoError(t, err)
	require.NotEmpty(t, rec.StorageRef)

	err = s.Delete(ctx, rec.ID.String())
	require.NoError(t, err)

	_, err = s.FindByID(ctx, rec.ID.String())
	require.Error(t, err)

	_, statErr := os.Stat(rec.StorageRef)
	require.True(t, os.IsNotExist(statErr))
}

func TestPinnedRecordsSurviveDeleteAllExceptPinned(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pinned, err := s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "keep", Payload: []byte("keep")})
	require.NoError(t, err)
	require.NoError(t, s.SetPin(ctx, pinned.ID.String(), true))

	_, err = s.Upsert(ctx, &store.Ingested{Type: store.TypeText, PlainText: "drop", Payload: []byte("drop")})
	require.NoError(t, err)

	n, err := s.DeleteAllExceptPinned(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	remaining, err := s.FetchRecent(ctx, store.QueryOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, pinned.ID, remaining[0].ID)
}

func TestPerformCleanupEvictsOverMaxItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Upsert(ctx, &store.Ingested{
			Type:      store.TypeText,
			PlainText: string(rune('a' + i)),
			Payload:   []byte{byte('a' + i)},
		})
		require.NoError(t, err)
	}

	err := s.PerformCleanup(ctx, store.CleanupLight, store.CleanupSettings{MaxItems: 2})
	require.NoError(t, err)

	remaining, err := s.FetchRecent(ctx, store.QueryOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, remaining, 2)
}

func TestPerformCleanupNeverEvictsPinned(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var pinnedIDs []string

	for i := 0; i < 3; i++ {
		rec, err := s.Upsert(ctx, &store.Ingested{
			Type:      store.TypeText,
			PlainText: string(rune('a' + i)),
			Payload:   []byte{byte('a' + i)},
		})
		require.NoError(t, err)
		require.NoError(t, s.SetPin(ctx, rec.ID.String(), true))
		pinnedIDs = append(pinnedIDs, rec.ID.String())
	}

	err := s.PerformCleanup(ctx, store.CleanupLight, store.CleanupSettings{MaxItems: 1})
	require.NoError(t, err)

	remaining, err := s.FetchRecent(ctx, store.QueryOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, remaining, 3)

	for _, id := range pinnedIDs {
		_, err := s.FindByID(ctx, id)
		require.NoError(t, err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
