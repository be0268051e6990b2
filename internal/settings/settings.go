// Package settings implements SettingsStore: the single source of truth for
// the configuration options the core consumes from its collaborator (spec
// §6), loaded with the teacher's defaults-then-overlay precedence chain and
// broadcast over eventbus on every committed change.
package settings

import "errors"

// SearchMode mirrors search.Mode's string values without importing the
// search package, keeping settings a leaf dependency.
type SearchMode string

const (
	SearchModeExact     SearchMode = "exact"
	SearchModeFuzzy     SearchMode = "fuzzy"
	SearchModeFuzzyPlus SearchMode = "fuzzy_plus"
	SearchModeRegex     SearchMode = "regex"
)

// Settings enumerates the recognized configuration options from spec §6.
// snake_case json tags match the on-disk file format.
type Settings struct {
	MaxItems          int        `json:"max_items,omitempty"`           //nolint:tagliatelle
	MaxSmallStorageMB int64      `json:"max_small_storage_mb,omitempty"` //nolint:tagliatelle
	MaxLargeStorageMB int64      `json:"max_large_storage_mb,omitempty"` //nolint:tagliatelle
	CleanupImagesOnly bool       `json:"cleanup_images_only,omitempty"`  //nolint:tagliatelle
	SaveImages        bool       `json:"save_images,omitempty"`          //nolint:tagliatelle
	SaveFiles         bool       `json:"save_files,omitempty"`           //nolint:tagliatelle
	DefaultSearchMode SearchMode `json:"default_search_mode,omitempty"`  //nolint:tagliatelle

	// Opaque to the core; carried through for the UI/hotkey collaborator.
	HotkeyKeyCode   uint32 `json:"hotkey_key_code,omitempty"`   //nolint:tagliatelle
	HotkeyModifiers uint32 `json:"hotkey_modifiers,omitempty"`  //nolint:tagliatelle

	ShowImageThumbnails bool    `json:"show_image_thumbnails,omitempty"` //nolint:tagliatelle
	ThumbnailHeight     int     `json:"thumbnail_height,omitempty"`      //nolint:tagliatelle
	ImagePreviewDelay   float64 `json:"image_preview_delay,omitempty"`   //nolint:tagliatelle
}

// Default returns the built-in baseline every other source overlays.
func Default() Settings {
	return Settings{
		MaxItems:            5000,
		MaxSmallStorageMB:   200,
		MaxLargeStorageMB:   2000,
		CleanupImagesOnly:   false,
		SaveImages:          true,
		SaveFiles:           true,
		DefaultSearchMode:   SearchModeExact,
		ShowImageThumbnails: true,
		ThumbnailHeight:     64,
		ImagePreviewDelay:   0.4,
	}
}

// FileName is the default project-level settings file name, analogous to
// the teacher's ConfigFileName.
const FileName = ".clipvault.json"

var errInvalidSearchMode = errors.New("settings: invalid default_search_mode")

// Validate rejects settings that would put the core into an unrecoverable
// state (an unknown search mode, or a retention target that can never be
// satisfied).
func (s Settings) Validate() error {
	switch s.DefaultSearchMode {
	case SearchModeExact, SearchModeFuzzy, SearchModeFuzzyPlus, SearchModeRegex:
	default:
		return errInvalidSearchMode
	}

	if s.MaxItems < 0 {
		return errors.New("settings: max_items must be >= 0")
	}

	if s.MaxSmallStorageMB < 0 || s.MaxLargeStorageMB < 0 {
		return errors.New("settings: storage caps must be >= 0")
	}

	return nil
}
