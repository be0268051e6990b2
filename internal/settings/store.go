package settings

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/clipvault/core/internal/clipvaultlog"
	"github.com/clipvault/core/internal/eventbus"
)

// Store is the in-process single source of truth for Settings: it loads the
// precedence chain once at Open, holds the committed value under a mutex,
// and publishes eventbus.SettingsChanged whenever a caller commits a
// change, exactly the signal SearchEngine.InvalidateCache is wired to.
type Store struct {
	mu      sync.RWMutex
	current Settings
	sources Sources

	workDir      string
	explicitPath string

	bus *eventbus.Bus
	log zerolog.Logger
}

// Open loads Settings from workDir/explicitPath and wraps them in a Store
// that broadcasts over bus on every subsequent change. override, if
// non-nil, outranks every file source (e.g. a CLI flag or test fixture).
func Open(workDir, explicitPath string, override *Settings, bus *eventbus.Bus) (*Store, error) {
	cfg, sources, err := Load(workDir, explicitPath, override)
	if err != nil {
		return nil, err
	}

	return &Store{
		current:      cfg,
		sources:      sources,
		workDir:      workDir,
		explicitPath: explicitPath,
		bus:          bus,
		log:          clipvaultlog.WithComponent("settings"),
	}, nil
}

// Get returns the currently committed Settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current
}

// Sources returns which files contributed to the current Settings.
func (s *Store) Sources() Sources {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sources
}

// Update validates and commits newSettings, then broadcasts
// eventbus.SettingsChanged. Rejected (invalid) settings leave the prior
// value in place.
func (s *Store) Update(newSettings Settings) error {
	if err := newSettings.Validate(); err != nil {
		return fmt.Errorf("settings: update rejected: %w", err)
	}

	s.mu.Lock()
	s.current = newSettings
	s.mu.Unlock()

	s.publish()

	return nil
}

// Reload re-reads the precedence chain from disk (e.g. in response to an
// external file edit) and broadcasts eventbus.SettingsChanged if it
// succeeds. The prior value is kept on error.
func (s *Store) Reload(override *Settings) error {
	cfg, sources, err := Load(s.workDir, s.explicitPath, override)
	if err != nil {
		s.log.Warn().Err(err).Msg("settings reload failed, keeping prior value")

		return err
	}

	s.mu.Lock()
	s.current = cfg
	s.sources = sources
	s.mu.Unlock()

	s.publish()

	return nil
}

func (s *Store) publish() {
	if s.bus == nil {
		return
	}

	s.bus.Publish(eventbus.Event{Kind: eventbus.SettingsChanged})
}
