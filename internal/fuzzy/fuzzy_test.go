package fuzzy_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clipvault/core/internal/fuzzy"
)

func TestFullIndexSearchSubsequenceMatch(t *testing.T) {
	ix := fuzzy.NewFull()
	ix.Upsert("a", "the quick brown fox")
	ix.Upsert("b", "completely unrelated text")

	matches := ix.Search("qck", 10)
	require.Len(t, matches, 1)
	require.Equal(t, "a", matches[0].RecordID)
}

func TestFullIndexDeleteRemovesFromResults(t *testing.T) {
	ix := fuzzy.NewFull()
	ix.Upsert("a", "hello world")

	ix.Delete("a")

	matches := ix.Search("hello", 10)
	require.Empty(t, matches)
}

func TestFullIndexRebuildCompactsTombstones(t *testing.T) {
	ix := fuzzy.NewFull()

	for i := 0; i < 10; i++ {
		ix.Upsert(string(rune('a'+i)), "shared text")
	}

	for i := 0; i < 8; i++ {
		ix.Delete(string(rune('a' + i)))
	}

	require.True(t, ix.NeedsRebuild())

	ix.Rebuild()

	require.False(t, ix.NeedsRebuild())
	require.Equal(t, 2, ix.Len())
}

func TestFullIndexSaveLoadRoundTrip(t *testing.T) {
	ix := fuzzy.NewFull()
	ix.Upsert("a", "persisted record")

	path := filepath.Join(t.TempDir(), "full.plist")
	require.NoError(t, ix.Save(path))

	loaded, err := fuzzy.LoadFull(path)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Len())

	matches := loaded.Search("persist", 10)
	require.Len(t, matches, 1)
	require.Equal(t, "a", matches[0].RecordID)
}

func TestShortIndexServesOneAndTwoCharQueries(t *testing.T) {
	ix := fuzzy.NewShort()
	ix.Upsert("a", "x")
	ix.Upsert("b", "xy")
	ix.Upsert("c", "unrelated")

	matches := ix.Search("x", 10)
	ids := make(map[string]bool)

	for _, m := range matches {
		ids[m.RecordID] = true
	}

	require.True(t, ids["a"])
	require.True(t, ids["b"])
	require.False(t, ids["c"])

	matches = ix.Search("xy", 10)
	require.Len(t, matches, 1)
	require.Equal(t, "b", matches[0].RecordID)
}

func TestShortIndexSaveLoadRoundTrip(t *testing.T) {
	ix := fuzzy.NewShort()
	ix.Upsert("a", "ab")

	path := filepath.Join(t.TempDir(), "short.plist")
	require.NoError(t, ix.Save(path))

	loaded, err := fuzzy.LoadShort(path)
	require.NoError(t, err)

	matches := loaded.Search("ab", 10)
	require.Len(t, matches, 1)
}

func TestLoadFullRejectsTamperedSnapshot(t *testing.T) {
	ix := fuzzy.NewFull()
	ix.Upsert("a", "some text")

	path := filepath.Join(t.TempDir(), "full.plist")
	require.NoError(t, ix.Save(path))

	require.NoError(t, os.WriteFile(path, []byte("tampered payload"), 0o600))

	_, err := fuzzy.LoadFull(path)
	require.Error(t, err)
}
