package fuzzy

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// ShortIndex is tuned for 1-2 character queries, where FullIndex's
// single-character postings are nearly useless: a 1-character query's
// posting list is most of the corpus. Instead it posts every 1- and
// 2-rune window of each record's text, so a short query goes straight to a
// small candidate list via an exact key lookup instead of an intersection.
type ShortIndex struct {
	base     *baseIndex
	postings map[string][]int32
}

// NewShort returns an empty ShortIndex.
func NewShort() *ShortIndex {
	return &ShortIndex{base: newBaseIndex(), postings: make(map[string][]int32)}
}

// Upsert indexes (or reindexes) text under id.
func (ix *ShortIndex) Upsert(id, text string) {
	ix.base.mu.Lock()
	defer ix.base.mu.Unlock()

	idx, oldText, _ := ix.base.upsertSlot(id, text)
	if oldText != "" {
		ix.retractWindows(idx, oldText)
	}

	ix.postWindows(idx, text)
}

// Delete tombstones id's slot and retracts its windows. No-op if id isn't
// indexed.
func (ix *ShortIndex) Delete(id string) {
	ix.base.mu.Lock()
	defer ix.base.mu.Unlock()

	idx, text, ok := ix.base.deleteSlot(id)
	if !ok {
		return
	}

	ix.retractWindows(idx, text)
}

// windows returns every distinct 1- and 2-rune lowercase substring of s.
func windows(s string) []string {
	runes := []rune(strings.ToLower(s))
	seen := make(map[string]bool)

	var keys []string

	for i := range runes {
		one := string(runes[i : i+1])
		if !seen[one] {
			seen[one] = true

			keys = append(keys, one)
		}

		if i+2 <= len(runes) {
			two := string(runes[i : i+2])
			if !seen[two] {
				seen[two] = true

				keys = append(keys, two)
			}
		}
	}

	return keys
}

func (ix *ShortIndex) postWindows(idx int32, text string) {
	for _, k := range windows(text) {
		ix.postings[k] = append(ix.postings[k], idx)
	}
}

func (ix *ShortIndex) retractWindows(idx int32, text string) {
	for _, k := range windows(text) {
		ix.postings[k] = removeFromPosting(ix.postings[k], idx)
	}
}

// Search looks up query's 1-2 rune key directly; queries longer than two
// runes are truncated to their first two, since ShortIndex only exists to
// serve the short-query case (SearchEngine routes longer queries to
// FullIndex instead).
func (ix *ShortIndex) Search(query string, limit int) []Match {
	ix.base.mu.RLock()
	defer ix.base.mu.RUnlock()

	key := strings.ToLower(query)
	if n := utf8.RuneCountInString(key); n > 2 {
		r := []rune(key)
		key = string(r[:2])
	}

	if key == "" {
		return nil
	}

	candidates := ix.postings[key]

	matches := make([]Match, 0, len(candidates))

	for _, idx := range candidates {
		slot := ix.base.slots[idx]
		if slot.Tombstoned {
			continue
		}

		score, ok := matchScore(slot.Text, query)
		if !ok {
			continue
		}

		matches = append(matches, Match{RecordID: slot.RecordID, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	return matches
}

// CandidateIDs returns up to limit (0 = unlimited) non-tombstoned record ids
// keyed by query's 1-2 rune window, unscored (the cheap prefilter half of
// spec §4.4's Prefilter/Refining split).
func (ix *ShortIndex) CandidateIDs(query string, limit int) []string {
	ix.base.mu.RLock()
	defer ix.base.mu.RUnlock()

	key := strings.ToLower(query)
	if n := utf8.RuneCountInString(key); n > 2 {
		r := []rune(key)
		key = string(r[:2])
	}

	ids := make([]string, 0, len(ix.postings[key]))

	for _, idx := range ix.postings[key] {
		slot := ix.base.slots[idx]
		if slot.Tombstoned {
			continue
		}

		ids = append(ids, slot.RecordID)

		if limit > 0 && len(ids) >= limit {
			break
		}
	}

	return ids
}

// NeedsRebuild reports whether the tombstone ratio has crossed the
// background-rebuild threshold.
func (ix *ShortIndex) NeedsRebuild() bool {
	ix.base.mu.RLock()
	defer ix.base.mu.RUnlock()

	return ix.base.tombstoneRatio() > rebuildTombstoneRatio
}

// Rebuild compacts tombstoned slots out and repopulates postings from
// scratch against the surviving slots.
func (ix *ShortIndex) Rebuild() {
	ix.base.mu.Lock()
	defer ix.base.mu.Unlock()

	survivors := ix.base.compact()

	ix.postings = make(map[string][]int32)
	for i, s := range survivors {
		ix.postWindows(int32(i), s.Text)
	}
}

// Save persists the index to path using the atomic-write + checksum
// discipline described in snapshot.go.
func (ix *ShortIndex) Save(path string) error {
	ix.base.mu.RLock()
	defer ix.base.mu.RUnlock()

	return saveSnapshot(path, ix.base.slots)
}

// LoadShort restores a ShortIndex previously written by Save.
func LoadShort(path string) (*ShortIndex, error) {
	slots, err := loadSnapshot(path)
	if err != nil {
		return nil, err
	}

	ix := NewShort()
	ix.base.loadSlots(slots)

	for i, s := range slots {
		if !s.Tombstoned {
			ix.postWindows(int32(i), s.Text)
		}
	}

	return ix, nil
}

// Len reports the number of live (non-tombstoned) records.
func (ix *ShortIndex) Len() int {
	ix.base.mu.RLock()
	defer ix.base.mu.RUnlock()

	return len(ix.base.slots) - ix.base.tombstones
}
