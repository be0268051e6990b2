// Package query implements QueryController: the reactive, debounced,
// versioned state machine that sits between a UI-thread caller and
// SearchEngine.
package query

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipvault/core/internal/clipvaultlog"
	"github.com/clipvault/core/internal/eventbus"
	"github.com/clipvault/core/internal/search"
	"github.com/clipvault/core/internal/store"
)

// defaultDebounce is the production debounce window (spec §4.5: "150ms for
// typing"). Tests use WithDebounce(0) for synchronous, immediate search.
const defaultDebounce = 150 * time.Millisecond

// pageSize is the page length each committed search and each loadMore
// increment requests.
const pageSize = 50

// State is QueryController's full observable snapshot (spec §4.5's
// `items, query, mode, sort, loading, selected_id, loaded_count,
// total_count, can_load_more`).
type State struct {
	Items       []store.Record
	Query       string
	Mode        search.Mode
	Sort        search.Sort
	Loading     bool
	SelectedID  string
	LoadedCount int
	TotalCount  int
	CanLoadMore bool
}

// Option configures Controller construction.
type Option func(*Controller)

// WithDebounce overrides the typing debounce window; pass 0 for test mode.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// Controller is QueryController: a single cooperative owner of State that
// issues debounced, versioned searches against a search.Engine. Its
// exported methods are meant to be called from one logical thread (the UI
// thread); internally it still guards State with a mutex because search
// results land from a background goroutine and must check their version
// before writing back.
type Controller struct {
	mu       sync.Mutex
	engine   *search.Engine
	debounce time.Duration
	timer    *time.Timer
	version  uint64
	log      zerolog.Logger

	appFilter  string
	typeFilter string

	state State

	sub *eventbus.Subscription
}

// New builds a Controller bound to engine. It subscribes to engine's event
// bus so a deletion of the currently selected item retargets the selection
// (spec §8) even between searches.
func New(engine *search.Engine, opts ...Option) *Controller {
	c := &Controller{
		engine:   engine,
		debounce: defaultDebounce,
		log:      clipvaultlog.WithComponent("query"),
		state:    State{Mode: search.ModeExact, Sort: search.SortRecent},
		sub:      engine.Bus().Subscribe(),
	}

	for _, opt := range opts {
		opt(c)
	}

	go c.watchEvents()

	return c
}

// watchEvents retargets the selection when the currently selected item is
// deleted elsewhere (e.g. another window, or this one's own Delete call).
func (c *Controller) watchEvents() {
	for ev := range c.sub.Events() {
		if ev.Kind == eventbus.ItemDeleted {
			c.handleItemDeleted(ev.RecordID)
		}
	}
}

// handleItemDeleted drops id from the current page, if present, and — per
// spec §8 — moves the selection to the item that took its place, falls back
// to the new last item if it deleted the last one, or clears the selection
// if the list becomes empty. Deletions of items not on the current page, or
// not currently selected, only trim the page.
func (c *Controller) handleItemDeleted(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := indexOfSelected(c.state.Items, id)
	if idx == -1 {
		return
	}

	wasSelected := c.state.SelectedID == id

	items := make([]store.Record, 0, len(c.state.Items)-1)
	items = append(items, c.state.Items[:idx]...)
	items = append(items, c.state.Items[idx+1:]...)
	c.state.Items = items

	if c.state.LoadedCount > 0 {
		c.state.LoadedCount--
	}

	if !wasSelected {
		return
	}

	switch {
	case len(items) == 0:
		c.state.SelectedID = ""
	case idx < len(items):
		c.state.SelectedID = items[idx].ID.String()
	default:
		c.state.SelectedID = items[len(items)-1].ID.String()
	}
}

// State returns a snapshot of the current observable state. Items is a
// fresh slice header over the same backing array Controller holds; callers
// must not mutate it.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Close stops any pending debounce timer and unsubscribes from the event
// bus.
func (c *Controller) Close() {
	c.mu.Lock()

	if c.timer != nil {
		c.timer.Stop()
	}

	c.mu.Unlock()

	c.sub.Close()
}

// SetQuery updates the query text and (re)schedules a debounced search; any
// SetQuery call during the debounce window resets the timer (spec §4.5).
func (c *Controller) SetQuery(query string) {
	c.mu.Lock()

	c.state.Query = query
	c.state.Loading = true

	if c.timer != nil {
		c.timer.Stop()
	}

	debounce := c.debounce

	c.mu.Unlock()

	if debounce <= 0 {
		c.runSearch(context.Background(), false)

		return
	}

	c.mu.Lock()
	c.timer = time.AfterFunc(debounce, func() { c.runSearch(context.Background(), false) })
	c.mu.Unlock()
}

// SetMode changes the search mode and re-runs the search immediately (not
// subject to the typing debounce).
func (c *Controller) SetMode(mode search.Mode) {
	c.mu.Lock()
	c.state.Mode = mode
	c.state.Loading = true
	c.mu.Unlock()

	c.runSearch(context.Background(), false)
}

// SetSort changes result ordering and re-runs the search immediately.
func (c *Controller) SetSort(sort search.Sort) {
	c.mu.Lock()
	c.state.Sort = sort
	c.state.Loading = true
	c.mu.Unlock()

	c.runSearch(context.Background(), false)
}

// SetFilters changes the app/type filters and re-runs the search
// immediately.
func (c *Controller) SetFilters(appFilter, typeFilter string) {
	c.mu.Lock()
	c.appFilter = appFilter
	c.typeFilter = typeFilter
	c.state.Loading = true
	c.mu.Unlock()

	c.runSearch(context.Background(), false)
}

// runSearch executes one committed search under a freshly bumped version,
// and — when the result is a prefilter page — immediately issues the
// force_full_fuzzy follow-up (spec §4.5 step 3) under the same version.
func (c *Controller) runSearch(ctx context.Context, forceFullFuzzy bool) {
	c.mu.Lock()
	c.version++
	v := c.version
	req := c.buildRequestLocked(0, pageSize, forceFullFuzzy)
	c.mu.Unlock()

	page, err := c.engine.Search(ctx, req)

	c.mu.Lock()

	if v != c.version {
		c.mu.Unlock()

		return
	}

	if err != nil {
		c.state.Loading = false
		c.mu.Unlock()
		c.log.Warn().Err(err).Str("query", req.Query).Msg("search failed")

		return
	}

	c.commitPageLocked(page)

	refine := page.IsPrefilter
	c.mu.Unlock()

	if refine {
		c.runSearch(ctx, true)
	}
}

// LoadMore fetches the next page; a fuzzy-mode load always re-issues a
// force_full_fuzzy request across the full [0, loaded+page) range rather
// than asking for just the next slice, so the appended items share the
// same authoritative ordering as what's already shown (spec §4.5).
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()

	if c.state.Loading || !c.state.CanLoadMore {
		c.mu.Unlock()

		return nil
	}

	c.state.Loading = true
	v := c.version

	forceFull := c.state.Mode == search.ModeFuzzy || c.state.Mode == search.ModeFuzzyPlus
	limit := c.state.LoadedCount + pageSize
	req := c.buildRequestLocked(0, limit, forceFull)

	c.mu.Unlock()

	page, err := c.engine.Search(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if v != c.version {
		return nil
	}

	if err != nil {
		c.state.Loading = false

		return err
	}

	c.commitPageLocked(page)

	return nil
}

func (c *Controller) buildRequestLocked(offset, limit int, forceFullFuzzy bool) search.Request {
	return search.Request{
		Query:          c.state.Query,
		Mode:           c.state.Mode,
		Sort:           c.state.Sort,
		AppFilter:      c.appFilter,
		TypeFilter:     c.typeFilter,
		ForceFullFuzzy: forceFullFuzzy,
		Limit:          limit,
		Offset:         offset,
	}
}

func (c *Controller) commitPageLocked(page *search.Page) {
	c.state.Items = page.Items
	c.state.LoadedCount = len(page.Items)
	c.state.TotalCount = page.Total
	c.state.CanLoadMore = page.Total < 0 || c.state.LoadedCount < page.Total

	if !page.IsPrefilter {
		c.state.Loading = false
	}
}
