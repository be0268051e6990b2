package clipvault

import (
	"github.com/clipvault/core/internal/query"
	"github.com/clipvault/core/internal/search"
	"github.com/clipvault/core/internal/settings"
	"github.com/clipvault/core/internal/store"
)

// QueryController is the reactive, debounced, versioned state machine a UI
// surface drives (spec §4.5).
type QueryController = query.Controller

// QueryControllerOption configures NewQueryController.
type QueryControllerOption = query.Option

// WithQueryDebounce overrides the typing debounce window on a
// QueryController; pass 0 for test/scripted use.
var WithQueryDebounce = query.WithDebounce

// Record is one stored clipboard history entry.
type Record = store.Record

// RecordType enumerates the clipboard content kinds a Record can hold.
type RecordType = store.RecordType

const (
	TypeText  = store.TypeText
	TypeRTF   = store.TypeRTF
	TypeHTML  = store.TypeHTML
	TypeImage = store.TypeImage
	TypeFile  = store.TypeFile
)

// IngestedContent is what a clipboard-polling collaborator hands the core
// for a newly observed clipboard change. It is the out-of-module boundary
// type spec.md §6 calls for so the core compiles and tests standalone.
type IngestedContent = store.Ingested

// Settings is the configuration surface the core consumes (spec §6).
type Settings = settings.Settings

// SearchMode and SearchSort re-export the engine's request vocabulary so
// callers never need to import internal/search directly.
type SearchMode = search.Mode

const (
	SearchModeExact     = search.ModeExact
	SearchModeFuzzy     = search.ModeFuzzy
	SearchModeFuzzyPlus = search.ModeFuzzyPlus
	SearchModeRegex     = search.ModeRegex
)

type SearchSort = search.Sort

const (
	SortRecent    = search.SortRecent
	SortRelevance = search.SortRelevance
)

// SearchRequest and SearchPage re-export the engine's search contract.
type SearchRequest = search.Request

type SearchPage = search.Page

// ResultConsumer is the UI-side collaborator boundary: a push-based sink for
// the event stream spec §6 defines. Implementations should return quickly;
// Subscribe delivers events on a dedicated goroutine, one at a time, in
// publish order.
type ResultConsumer interface {
	OnNewItem(rec Record)
	OnItemUpdated(id string)
	OnItemDeleted(id string)
	OnThumbnailUpdated(id, path string)
	OnSettingsChanged()
}
