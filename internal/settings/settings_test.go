package settings_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clipvault/core/internal/eventbus"
	"github.com/clipvault/core/internal/settings"
)

func TestLoadAppliesProjectOverDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, settings.FileName), `{
		// trailing comma and comments are tolerated (JSONC)
		"max_items": 1234,
		"default_search_mode": "fuzzy",
	}`)

	cfg, sources, err := settings.Load(dir, "", nil)
	require.NoError(t, err)
	require.Equal(t, 1234, cfg.MaxItems)
	require.Equal(t, settings.SearchModeFuzzy, cfg.DefaultSearchMode)
	require.Equal(t, filepath.Join(dir, settings.FileName), sources.Project)
}

func TestLoadOverrideOutranksProjectFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, settings.FileName), `{"max_items": 1234}`)

	override := &settings.Settings{MaxItems: 9999}

	cfg, _, err := settings.Load(dir, "", override)
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.MaxItems)
}

func TestLoadRejectsInvalidSearchMode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, settings.FileName), `{"default_search_mode": "bogus"}`)

	_, _, err := settings.Load(dir, "", nil)
	require.Error(t, err)
}

func TestLoadMissingExplicitPathFails(t *testing.T) {
	dir := t.TempDir()

	_, _, err := settings.Load(dir, filepath.Join(dir, "does-not-exist.json"), nil)
	require.Error(t, err)
}

func TestStoreUpdatePublishesSettingsChanged(t *testing.T) {
	dir := t.TempDir()
	bus := eventbus.New()
	sub := bus.Subscribe()
	defer sub.Close()

	st, err := settings.Open(dir, "", nil, bus)
	require.NoError(t, err)

	next := st.Get()
	next.MaxItems = 42

	require.NoError(t, st.Update(next))
	require.Equal(t, 42, st.Get().MaxItems)

	ev := <-sub.Events()
	require.Equal(t, eventbus.SettingsChanged, ev.Kind)
}

func TestStoreUpdateRejectsInvalidSettings(t *testing.T) {
	dir := t.TempDir()

	st, err := settings.Open(dir, "", nil, eventbus.New())
	require.NoError(t, err)

	bad := st.Get()
	bad.DefaultSearchMode = "bogus"

	require.Error(t, st.Update(bad))
	require.Equal(t, settings.SearchModeExact, st.Get().DefaultSearchMode)
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}
