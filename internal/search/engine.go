// Package search implements the SearchEngine orchestrator: tiered query
// execution across the FTS and fuzzy indices, a small TTL cache fronting the
// hot empty-query path, and incremental index maintenance driven by Store's
// event bus.
package search

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipvault/core/internal/clipvaultlog"
	"github.com/clipvault/core/internal/clipvaulterrors"
	"github.com/clipvault/core/internal/eventbus"
	"github.com/clipvault/core/internal/fulltext"
	"github.com/clipvault/core/internal/fuzzy"
	"github.com/clipvault/core/internal/store"
)

// Mode selects which tier a Request is executed against.
type Mode string

const (
	ModeExact     Mode = "exact"
	ModeFuzzy     Mode = "fuzzy"
	ModeFuzzyPlus Mode = "fuzzy_plus"
	ModeRegex     Mode = "regex"
)

// Sort selects result ordering.
type Sort string

const (
	SortRecent    Sort = "recent"
	SortRelevance Sort = "relevance"
)

// Request mirrors spec §3's query request shape.
type Request struct {
	Query          string
	Mode           Mode
	Sort           Sort
	AppFilter      string
	TypeFilter     string
	ForceFullFuzzy bool
	Limit          int
	Offset         int
}

// Page is one page of search results. Total is -1 for a prefilter page
// (spec §4.4's progressive search state machine), meaning the caller should
// expect a follow-up authoritative page under the same search_version.
type Page struct {
	Items       []store.Record
	Total       int
	IsPrefilter bool
}

// searchDeadline bounds every Search call (spec §4.4: "every search runs
// under a 5s deadline").
const searchDeadline = 5 * time.Second

// indexBuildPageSize bounds each FetchRecent page while bulk-loading the
// fuzzy indices from Store on a cold start (no valid snapshot).
const indexBuildPageSize = 1000

// recentCacheTTL/recentCacheCap and countCacheTTL/countCacheCap configure
// the two caches spec §4.4 names explicitly. Only recentCache is used by
// Search; countCache is created and cleared with it but never filled or
// read, so FTS totals are not cached.
const (
	recentCacheTTL = 30 * time.Second
	recentCacheCap = 2000
	countCacheTTL  = 30 * time.Second
	countCacheCap  = 512
)

// Engine is the SearchEngine: it owns the FullTextIndex and both fuzzy
// tiers, keeps them current via Store's event bus, and answers Search
// requests against whichever tier the request's Mode selects.
type Engine struct {
	st    *store.Store
	fts   *fulltext.Index
	full  *fuzzy.FullIndex
	short *fuzzy.ShortIndex

	recentCache *ttlCache[string, []store.Record]
	countCache  *ttlCache[string, int]

	sub *eventbus.Subscription
	log zerolog.Logger

	closed   atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

// Open builds a SearchEngine over st: it loads cached fuzzy snapshots from
// st.DBDir() when present and valid, otherwise bulk-builds both indices from
// Store's full corpus, then starts a background goroutine that keeps the
// fuzzy indices in sync with Store's event bus.
func Open(ctx context.Context, st *store.Store) (*Engine, error) {
	full, err := loadOrBuildFull(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("search: open: %w", err)
	}

	short, err := loadOrBuildShort(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("search: open: %w", err)
	}

	eng := &Engine{
		st:          st,
		fts:         fulltext.New(st.DB()),
		full:        full,
		short:       short,
		recentCache: newTTLCache[string, []store.Record](recentCacheTTL, recentCacheCap),
		countCache:  newTTLCache[string, int](countCacheTTL, countCacheCap),
		sub:         st.Bus().Subscribe(),
		log:         clipvaultlog.WithComponent("search"),
		done:        make(chan struct{}),
	}

	go eng.watchEvents()

	return eng, nil
}

func loadOrBuildFull(ctx context.Context, st *store.Store) (*fuzzy.FullIndex, error) {
	if ix, err := fuzzy.LoadFull(fuzzy.FullSnapshotPath(st.DBDir())); err == nil {
		return ix, nil
	}

	return buildFullFromStore(ctx, st)
}

func loadOrBuildShort(ctx context.Context, st *store.Store) (*fuzzy.ShortIndex, error) {
	if ix, err := fuzzy.LoadShort(fuzzy.ShortSnapshotPath(st.DBDir())); err == nil {
		return ix, nil
	}

	return buildShortFromStore(ctx, st)
}

func buildFullFromStore(ctx context.Context, st *store.Store) (*fuzzy.FullIndex, error) {
	ix := fuzzy.NewFull()

	err := scanAllRecords(ctx, st, func(rec store.Record) {
		ix.Upsert(rec.ID.String(), indexableText(rec))
	})
	if err != nil {
		return nil, err
	}

	return ix, nil
}

func buildShortFromStore(ctx context.Context, st *store.Store) (*fuzzy.ShortIndex, error) {
	ix := fuzzy.NewShort()

	err := scanAllRecords(ctx, st, func(rec store.Record) {
		ix.Upsert(rec.ID.String(), indexableText(rec))
	})
	if err != nil {
		return nil, err
	}

	return ix, nil
}

func scanAllRecords(ctx context.Context, st *store.Store, fn func(store.Record)) error {
	offset := 0

	for {
		page, err := st.FetchRecent(ctx, store.QueryOptions{Limit: indexBuildPageSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("scan records: %w", err)
		}

		for _, rec := range page {
			fn(rec)
		}

		if len(page) < indexBuildPageSize {
			return nil
		}

		offset += indexBuildPageSize
	}
}

func indexableText(rec store.Record) string {
	if rec.Note == "" {
		return rec.PlainText
	}

	return rec.PlainText + " " + rec.Note
}

// Bus exposes Store's event bus so other components (QueryController) can
// subscribe to the same mutation stream without going through Store
// directly.
func (e *Engine) Bus() *eventbus.Bus {
	return e.st.Bus()
}

// Close stops the event-watching goroutine and persists both fuzzy indices
// to disk so the next Open skips the bulk rebuild.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.stopOnce.Do(func() {
		e.sub.Close()
		<-e.done
	})

	if err := e.full.Save(fuzzy.FullSnapshotPath(e.st.DBDir())); err != nil {
		e.log.Warn().Err(err).Msg("save full fuzzy snapshot")
	}

	if err := e.short.Save(fuzzy.ShortSnapshotPath(e.st.DBDir())); err != nil {
		e.log.Warn().Err(err).Msg("save short fuzzy snapshot")
	}

	return nil
}

// InvalidateCache drops both TTL caches, used when configuration affecting
// search results changes (spec §4.4's invalidate_cache()).
func (e *Engine) InvalidateCache() {
	e.recentCache.clear()
	e.countCache.clear()
}

// Stats exposes debug introspection spec §4.4 asks for: index sizes and
// whether either fuzzy tier is due a background rebuild.
type Stats struct {
	FullIndexSize     int
	ShortIndexSize    int
	FullNeedsRebuild  bool
	ShortNeedsRebuild bool
	KnownDataVersion  uint64
}

func (e *Engine) Stats() Stats {
	return Stats{
		FullIndexSize:     e.full.Len(),
		ShortIndexSize:    e.short.Len(),
		FullNeedsRebuild:  e.full.NeedsRebuild(),
		ShortNeedsRebuild: e.short.NeedsRebuild(),
		KnownDataVersion:  e.st.DataVersion(),
	}
}

func (e *Engine) watchEvents() {
	defer close(e.done)

	for ev := range e.sub.Events() {
		switch ev.Kind {
		case eventbus.ItemDeleted:
			e.full.Delete(ev.RecordID)
			e.short.Delete(ev.RecordID)
		case eventbus.NewItem, eventbus.ItemUpdated:
			e.reindexRecord(ev.RecordID)
		}

		if ev.Kind != eventbus.ThumbnailUpdated {
			e.InvalidateCache()
		}

		if e.full.NeedsRebuild() {
			e.full.Rebuild()
		}

		if e.short.NeedsRebuild() {
			e.short.Rebuild()
		}
	}
}

func (e *Engine) reindexRecord(id string) {
	rec, err := e.st.FindByID(context.Background(), id)
	if err != nil {
		// Deleted between the event firing and this handler running; the
		// matching ItemDeleted event (if any) will clean it up instead.
		return
	}

	text := indexableText(*rec)
	e.full.Upsert(id, text)
	e.short.Upsert(id, text)
}

// Search runs request under a bounded deadline and returns one result page.
func (e *Engine) Search(ctx context.Context, req Request) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, searchDeadline)
	defer cancel()

	if strings.TrimSpace(req.Query) == "" {
		return e.searchRecent(ctx, req)
	}

	switch req.Mode {
	case ModeRegex:
		return e.searchRegex(ctx, req)
	case ModeFuzzy:
		return e.searchFuzzy(ctx, req, e.full)
	case ModeFuzzyPlus:
		return e.searchFuzzyPlus(ctx, req)
	case ModeExact, "":
		return e.searchExact(ctx, req)
	default:
		return nil, clipvaulterrors.NewSearchError(clipvaulterrors.KindInvalidQuery,
			fmt.Errorf("unknown search mode %q", req.Mode))
	}
}

func (e *Engine) searchRecent(ctx context.Context, req Request) (*Page, error) {
	key := fmt.Sprintf("%s|%s|%d|%d", req.AppFilter, req.TypeFilter, req.Limit, req.Offset)

	if cached, ok := e.recentCache.get(key, time.Now()); ok {
		return &Page{Items: cached, Total: len(cached)}, nil
	}

	items, err := withBusyRetry(ctx, func() ([]store.Record, error) {
		return e.st.FetchRecent(ctx, store.QueryOptions{
			Limit:      req.Limit,
			Offset:     req.Offset,
			AppFilter:  req.AppFilter,
			TypeFilter: store.RecordType(req.TypeFilter),
		})
	})
	if err != nil {
		return nil, translateStoreErr(err)
	}

	e.recentCache.set(key, items, time.Now())

	return &Page{Items: items, Total: len(items)}, nil
}

func (e *Engine) searchExact(ctx context.Context, req Request) (*Page, error) {
	sortMode := toFulltextSort(req.Sort)
	filters := fulltext.Filters{AppBundleID: req.AppFilter, Type: req.TypeFilter}

	candidates, err := e.fts.Search(ctx, req.Query, sortMode, filters, req.Limit, req.Offset)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	if len(candidates) == 0 {
		candidates, err = e.fts.LikeScan(ctx, req.Query, filters, req.Limit, req.Offset)
		if err != nil {
			return nil, translateStoreErr(err)
		}
	}

	if len(candidates) == 0 {
		return e.searchFuzzy(ctx, req, e.full)
	}

	return e.hydrate(ctx, candidates, req)
}

func (e *Engine) searchFuzzy(ctx context.Context, req Request, full *fuzzy.FullIndex) (*Page, error) {
	// The first fuzzy request for a given query comes in without
	// ForceFullFuzzy (spec §4.4's Idle -> Prefilter transition): answer
	// from the cheap, unscored candidate set so typing stays responsive,
	// and mark the page as a prefilter so QueryController knows to issue a
	// force_full_fuzzy follow-up.
	if !req.ForceFullFuzzy && req.Offset == 0 {
		return e.searchFuzzyPrefilter(ctx, req)
	}

	tier := e.chooseFuzzyTier(req.Query)

	var matches []fuzzy.Match
	if tier == tierShort {
		matches = e.short.Search(req.Query, req.Offset+req.Limit+1)
	} else {
		matches = full.Search(req.Query, req.Offset+req.Limit+1)
	}

	candidates := toCandidates(matches)
	page := applyOffsetLimit(candidates, req.Offset, req.Limit)

	return e.hydrate(ctx, page, req)
}

func (e *Engine) searchFuzzyPrefilter(ctx context.Context, req Request) (*Page, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	var ids []string
	if e.chooseFuzzyTier(req.Query) == tierShort {
		ids = e.short.CandidateIDs(req.Query, limit)
	} else {
		ids = e.full.CandidateIDs(req.Query, limit)
	}

	records, err := withBusyRetry(ctx, func() ([]store.Record, error) {
		return e.st.FindByIDs(ctx, ids)
	})
	if err != nil {
		return nil, translateStoreErr(err)
	}

	sortRecords(records, req.Sort, nil)

	return &Page{Items: records, Total: -1, IsPrefilter: true}, nil
}

type fuzzyTier int

const (
	tierFull fuzzyTier = iota
	tierShort
)

// chooseFuzzyTier routes 1-2 rune queries to ShortIndex, where FullIndex's
// single-character postings degrade to near-whole-corpus candidate sets.
func (e *Engine) chooseFuzzyTier(query string) fuzzyTier {
	if len([]rune(strings.TrimSpace(query))) <= 2 {
		return tierShort
	}

	return tierFull
}

// searchFuzzyPlus implements the whitespace-tokenized fuzzy variant: every
// token must subsequence-match the record text; the record's score is the
// sum of its tokens' scores, rewarding records that satisfy more/stronger
// tokens over a single loose match.
func (e *Engine) searchFuzzyPlus(ctx context.Context, req Request) (*Page, error) {
	tokens := strings.Fields(req.Query)
	if len(tokens) == 0 {
		return nil, clipvaulterrors.ErrInvalidQuery
	}

	scores := make(map[string]float64)

	for i, tok := range tokens {
		matches := e.full.Search(tok, 0)

		hit := make(map[string]float64, len(matches))
		for _, m := range matches {
			hit[m.RecordID] = m.Score
		}

		if i == 0 {
			for id, sc := range hit {
				scores[id] = sc
			}

			continue
		}

		for id := range scores {
			add, ok := hit[id]
			if !ok {
				delete(scores, id)

				continue
			}

			scores[id] += add
		}
	}

	matches := make([]fuzzy.Match, 0, len(scores))
	for id, sc := range scores {
		matches = append(matches, fuzzy.Match{RecordID: id, Score: sc})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	candidates := toCandidates(matches)
	page := applyOffsetLimit(candidates, req.Offset, req.Limit)

	return e.hydrate(ctx, page, req)
}

// regexScanLimit bounds how many records a regex search inspects; regex
// queries have no index to narrow against, so this keeps a pathological
// regex on a very large corpus inside the 5s deadline instead of hanging.
const regexScanLimit = 20000

func (e *Engine) searchRegex(ctx context.Context, req Request) (*Page, error) {
	re, err := regexp.Compile(req.Query)
	if err != nil {
		return nil, clipvaulterrors.NewSearchError(clipvaulterrors.KindInvalidQuery, err)
	}

	var matched []store.Record

	err = scanAllRecords(ctx, e.st, func(rec store.Record) {
		if len(matched) >= regexScanLimit {
			return
		}

		if ctx.Err() != nil {
			return
		}

		if re.MatchString(rec.PlainText) || re.MatchString(rec.Note) {
			matched = append(matched, rec)
		}
	})
	if err != nil {
		return nil, translateStoreErr(err)
	}

	if err := ctx.Err(); err != nil {
		return nil, translateCtxErr(err)
	}

	sortRecords(matched, req.Sort, nil)

	start, end := pageBounds(len(matched), req.Offset, req.Limit)

	return &Page{Items: matched[start:end], Total: len(matched)}, nil
}

func toFulltextSort(s Sort) fulltext.Sort {
	if s == SortRelevance {
		return fulltext.SortRelevance
	}

	return fulltext.SortRecent
}

func toCandidates(matches []fuzzy.Match) []fulltext.Candidate {
	out := make([]fulltext.Candidate, len(matches))
	for i, m := range matches {
		out[i] = fulltext.Candidate{ID: m.RecordID, Score: m.Score}
	}

	return out
}

func applyOffsetLimit(candidates []fulltext.Candidate, offset, limit int) []fulltext.Candidate {
	start, end := pageBounds(len(candidates), offset, limit)

	return candidates[start:end]
}

func pageBounds(total, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}

	if offset > total {
		offset = total
	}

	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return offset, end
}

// hydrate batch-fetches records for candidates in one query (spec §4.3:
// "avoid N+1"), then restores the candidates' score/pin ordering.
func (e *Engine) hydrate(ctx context.Context, candidates []fulltext.Candidate, req Request) (*Page, error) {
	ids := make([]string, len(candidates))
	scoreByID := make(map[string]float64, len(candidates))

	for i, c := range candidates {
		ids[i] = c.ID
		scoreByID[c.ID] = c.Score
	}

	records, err := withBusyRetry(ctx, func() ([]store.Record, error) {
		return e.st.FindByIDs(ctx, ids)
	})
	if err != nil {
		return nil, translateStoreErr(err)
	}

	sortRecords(records, req.Sort, scoreByID)

	return &Page{Items: records, Total: len(records)}, nil
}

// sortRecords applies spec §4.3's pin-class ordering: pinned records always
// precede unpinned ones, and within a pin class sort=relevance orders by
// score then last_used_at, sort=recent orders by last_used_at alone.
func sortRecords(records []store.Record, s Sort, scoreByID map[string]float64) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]

		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}

		if s == SortRelevance && scoreByID != nil {
			sa, sb := scoreByID[a.ID.String()], scoreByID[b.ID.String()]
			if sa != sb {
				return sa > sb
			}
		}

		if !a.LastUsedAt.Equal(b.LastUsedAt) {
			return a.LastUsedAt.After(b.LastUsedAt)
		}

		return a.ID.String() < b.ID.String()
	})
}

func translateCtxErr(err error) error {
	if err == context.DeadlineExceeded {
		return clipvaulterrors.NewSearchError(clipvaulterrors.KindTimeout, err)
	}

	return clipvaulterrors.NewSearchError(clipvaulterrors.KindCancelled, err)
}

func translateStoreErr(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case err == context.DeadlineExceeded:
		return clipvaulterrors.NewSearchError(clipvaulterrors.KindTimeout, err)
	case err == context.Canceled:
		return clipvaulterrors.NewSearchError(clipvaulterrors.KindCancelled, err)
	default:
		return clipvaulterrors.NewSearchError(clipvaulterrors.KindExternalIO, err)
	}
}
