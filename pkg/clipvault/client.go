package clipvault

import (
	"context"
	"fmt"

	"github.com/clipvault/core/internal/eventbus"
	"github.com/clipvault/core/internal/query"
	"github.com/clipvault/core/internal/search"
	"github.com/clipvault/core/internal/settings"
	"github.com/clipvault/core/internal/store"
)

// Client is the assembled core: a Store, a SearchEngine kept in sync with
// it over a shared event bus, and a SettingsStore. Build one with Open.
type Client struct {
	store    *store.Store
	engine   *search.Engine
	settings *settings.Store
	bus      *eventbus.Bus
}

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	settingsPath     string
	settingsOverride *Settings
}

// WithSettingsPath points at an explicit settings file instead of the
// default project-relative one (spec §6's settings file precedence chain).
func WithSettingsPath(path string) Option {
	return func(c *openConfig) { c.settingsPath = path }
}

// WithSettingsOverride outranks every settings file source, analogous to a
// CLI flag override.
func WithSettingsOverride(s Settings) Option {
	return func(c *openConfig) { c.settingsOverride = &s }
}

// Open assembles a Client rooted at dir: the on-disk database directory
// also serves as the settings project directory.
func Open(ctx context.Context, dir string, opts ...Option) (*Client, error) {
	cfg := &openConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	bus := eventbus.New()

	st, err := store.Open(ctx, dir, store.WithEventBus(bus))
	if err != nil {
		return nil, fmt.Errorf("clipvault: open store: %w", err)
	}

	settingsStore, err := settings.Open(dir, cfg.settingsPath, cfg.settingsOverride, bus)
	if err != nil {
		_ = st.Close()

		return nil, fmt.Errorf("clipvault: open settings: %w", err)
	}

	engine, err := search.Open(ctx, st)
	if err != nil {
		_ = st.Close()

		return nil, fmt.Errorf("clipvault: open search engine: %w", err)
	}

	return &Client{store: st, engine: engine, settings: settingsStore, bus: bus}, nil
}

// Close shuts the engine and store down, persisting the fuzzy index
// snapshots (search.Engine.Close) before closing the database connection.
func (c *Client) Close() error {
	if err := c.engine.Close(); err != nil {
		return err
	}

	return c.store.Close()
}

// Ingest hands a newly observed clipboard change to the store: dedup by
// content hash, bump last_used_at on a hit, insert otherwise.
func (c *Client) Ingest(ctx context.Context, content IngestedContent) (*Record, error) {
	return c.store.Upsert(ctx, &content)
}

// SetPin pins or unpins a record.
func (c *Client) SetPin(ctx context.Context, id string, pinned bool) error {
	return c.store.SetPin(ctx, id, pinned)
}

// SetNote attaches or clears a record's note.
func (c *Client) SetNote(ctx context.Context, id, note string) error {
	return c.store.UpdateNote(ctx, id, note)
}

// Delete removes a record and its external blob, if any.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, id)
}

// PerformCleanup enforces retention limits (spec §4.1); mode selects
// whether an orphan blob sweep and WAL checkpoint also run.
func (c *Client) PerformCleanup(ctx context.Context, mode store.CleanupMode) error {
	s := c.settings.Get()

	return c.store.PerformCleanup(ctx, mode, store.CleanupSettings{
		MaxItems:          s.MaxItems,
		MaxSmallStorageMB: s.MaxSmallStorageMB,
		MaxLargeStorageMB: s.MaxLargeStorageMB,
		ImagesOnly:        s.CleanupImagesOnly,
	})
}

// Search runs one search request against the engine.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchPage, error) {
	return c.engine.Search(ctx, req)
}

// NewQueryController builds a QueryController bound to this Client's
// engine. Each UI surface (a window, a panel) should own its own
// controller; they share the same underlying index and cache.
func (c *Client) NewQueryController(opts ...query.Option) *query.Controller {
	return query.New(c.engine, opts...)
}

// Settings returns the settings store so callers can read or commit
// configuration changes.
func (c *Client) Settings() *settings.Store {
	return c.settings
}

// Subscribe registers consumer against the core's event stream and returns
// an unsubscribe function. Events are delivered on a dedicated goroutine in
// publish order; consumer methods should return quickly.
func (c *Client) Subscribe(consumer ResultConsumer) func() {
	sub := c.bus.Subscribe()

	go func() {
		for ev := range sub.Events() {
			c.dispatch(consumer, ev)
		}
	}()

	return sub.Close
}

func (c *Client) dispatch(consumer ResultConsumer, ev eventbus.Event) {
	switch ev.Kind {
	case eventbus.NewItem:
		rec, err := c.store.FindByID(context.Background(), ev.RecordID)
		if err == nil {
			consumer.OnNewItem(*rec)
		}
	case eventbus.ItemUpdated:
		consumer.OnItemUpdated(ev.RecordID)
	case eventbus.ItemDeleted:
		consumer.OnItemDeleted(ev.RecordID)
	case eventbus.ThumbnailUpdated:
		consumer.OnThumbnailUpdated(ev.RecordID, ev.Path)
	case eventbus.SettingsChanged:
		consumer.OnSettingsChanged()
	}
}
