package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Sources records which files actually contributed to a loaded Settings,
// mirroring the teacher's ConfigSources.
type Sources struct {
	Global  string // path to global file if loaded, empty otherwise
	Project string // path to project file if loaded, empty otherwise
}

var errSettingsFileNotFound = errors.New("settings: explicit settings file not found")

// Load resolves Settings with the teacher's precedence chain (highest
// wins): defaults, then the global per-user file, then the project file (or
// an explicit path override), then the in-process override passed by the
// caller (e.g. a CLI flag or test fixture).
func Load(workDir, explicitPath string, override *Settings) (Settings, Sources, error) {
	cfg := Default()

	var sources Sources

	globalCfg, globalPath, err := loadGlobal()
	if err != nil {
		return Settings{}, Sources{}, err
	}

	sources.Global = globalPath
	cfg = merge(cfg, globalCfg)

	projectCfg, projectPath, err := loadProject(workDir, explicitPath)
	if err != nil {
		return Settings{}, Sources{}, err
	}

	sources.Project = projectPath
	cfg = merge(cfg, projectCfg)

	if override != nil {
		cfg = merge(cfg, *override)
	}

	if err := cfg.Validate(); err != nil {
		return Settings{}, Sources{}, err
	}

	return cfg, sources, nil
}

// globalPath returns $XDG_CONFIG_HOME/clipvault/settings.json, falling back
// to ~/.config/clipvault/settings.json. Returns empty if neither can be
// determined.
func globalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "clipvault", "settings.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "clipvault", "settings.json")
}

func loadGlobal() (Settings, string, error) {
	path := globalPath()
	if path == "" {
		return Settings{}, "", nil
	}

	cfg, loaded, err := loadFile(path, false)
	if err != nil {
		return Settings{}, "", err
	}

	if !loaded {
		return Settings{}, "", nil
	}

	return cfg, path, nil
}

func loadProject(workDir, explicitPath string) (Settings, string, error) {
	path := explicitPath
	mustExist := path != ""

	if path == "" {
		path = filepath.Join(workDir, FileName)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	if mustExist {
		if _, err := os.Stat(path); err != nil {
			return Settings{}, "", fmt.Errorf("%w: %s", errSettingsFileNotFound, explicitPath)
		}
	}

	cfg, loaded, err := loadFile(path, mustExist)
	if err != nil {
		return Settings{}, "", err
	}

	if !loaded {
		return Settings{}, "", nil
	}

	return cfg, path, nil
}

func loadFile(path string, mustExist bool) (Settings, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from trusted config roots
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Settings{}, false, nil
		}

		return Settings{}, false, fmt.Errorf("settings: read %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Settings{}, false, fmt.Errorf("settings: invalid JSONC in %s: %w", path, err)
	}

	var cfg Settings

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Settings{}, false, fmt.Errorf("settings: invalid JSON in %s: %w", path, err)
	}

	return cfg, true, nil
}

// merge overlays non-zero fields of overlay onto base. Zero-valued fields
// leave base untouched, matching the teacher's field-by-field mergeConfig.
func merge(base, overlay Settings) Settings {
	if overlay.MaxItems != 0 {
		base.MaxItems = overlay.MaxItems
	}

	if overlay.MaxSmallStorageMB != 0 {
		base.MaxSmallStorageMB = overlay.MaxSmallStorageMB
	}

	if overlay.MaxLargeStorageMB != 0 {
		base.MaxLargeStorageMB = overlay.MaxLargeStorageMB
	}

	base.CleanupImagesOnly = overlay.CleanupImagesOnly || base.CleanupImagesOnly
	base.SaveImages = overlay.SaveImages || base.SaveImages
	base.SaveFiles = overlay.SaveFiles || base.SaveFiles

	if overlay.DefaultSearchMode != "" {
		base.DefaultSearchMode = overlay.DefaultSearchMode
	}

	if overlay.HotkeyKeyCode != 0 {
		base.HotkeyKeyCode = overlay.HotkeyKeyCode
	}

	if overlay.HotkeyModifiers != 0 {
		base.HotkeyModifiers = overlay.HotkeyModifiers
	}

	base.ShowImageThumbnails = overlay.ShowImageThumbnails || base.ShowImageThumbnails

	if overlay.ThumbnailHeight != 0 {
		base.ThumbnailHeight = overlay.ThumbnailHeight
	}

	if overlay.ImagePreviewDelay != 0 {
		base.ImagePreviewDelay = overlay.ImagePreviewDelay
	}

	return base
}
