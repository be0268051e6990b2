package fuzzy

import "sort"

// rebuildTombstoneRatio triggers a background Rebuild once tombstoned slots
// reach this fraction of the index (spec §4.3: "tombstone-ratio-triggered
// background rebuild"), bounding how much dead weight postings carry between
// compactions.
const rebuildTombstoneRatio = 0.3

// FullIndex is the character-posting inverted index over the entire corpus:
// every indexed record contributes one posting per distinct character it
// contains, and Search intersects the query's character postings before
// scoring candidates by subsequence match.
type FullIndex struct {
	base     *baseIndex
	postings map[int][]int32
}

// NewFull returns an empty FullIndex.
func NewFull() *FullIndex {
	return &FullIndex{base: newBaseIndex(), postings: make(map[int][]int32)}
}

// Upsert indexes (or reindexes) text under id.
func (ix *FullIndex) Upsert(id, text string) {
	ix.base.mu.Lock()
	defer ix.base.mu.Unlock()

	idx, oldText, _ := ix.base.upsertSlot(id, text)
	if oldText != "" {
		ix.retractPostings(idx, oldText)
	}

	ix.postText(idx, text)
}

// Delete tombstones id's slot and retracts its postings. No-op if id isn't
// indexed.
func (ix *FullIndex) Delete(id string) {
	ix.base.mu.Lock()
	defer ix.base.mu.Unlock()

	idx, text, ok := ix.base.deleteSlot(id)
	if !ok {
		return
	}

	ix.retractPostings(idx, text)
}

func (ix *FullIndex) postText(idx int32, text string) {
	for _, b := range distinctBuckets(text) {
		ix.postings[b] = append(ix.postings[b], idx)
	}
}

func (ix *FullIndex) retractPostings(idx int32, text string) {
	for _, b := range distinctBuckets(text) {
		ix.postings[b] = removeFromPosting(ix.postings[b], idx)
	}
}

// candidates intersects the posting lists for query's distinct characters,
// starting from the shortest list to minimize work. Returns nil if query has
// no indexable characters (pure punctuation/whitespace, or scripts outside
// ASCII/CJK).
func (ix *FullIndex) candidates(query string) map[int32]bool {
	buckets := distinctBuckets(query)
	if len(buckets) == 0 {
		return nil
	}

	sort.Slice(buckets, func(i, j int) bool {
		return len(ix.postings[buckets[i]]) < len(ix.postings[buckets[j]])
	})

	result := make(map[int32]bool, len(ix.postings[buckets[0]]))
	for _, s := range ix.postings[buckets[0]] {
		result[s] = true
	}

	for _, b := range buckets[1:] {
		if len(result) == 0 {
			break
		}

		next := make(map[int32]bool, len(result))

		for _, s := range ix.postings[b] {
			if result[s] {
				next[s] = true
			}
		}

		result = next
	}

	return result
}

// Search returns matches ordered by descending score, capped at limit (0 =
// unlimited).
func (ix *FullIndex) Search(query string, limit int) []Match {
	ix.base.mu.RLock()
	defer ix.base.mu.RUnlock()

	cands := ix.candidates(query)

	matches := make([]Match, 0, len(cands))

	for idx := range cands {
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
// whose text contains every distinct character in query, without verifying
// subsequence order or scoring. It is the cheap half of the prefilter/refine
// split (spec §4.4's Prefilter state): fast enough to answer on every
// keystroke, at the cost of occasionally including a record whose
// characters match out of order. Search does the authoritative, scored and
// order-verified pass.
func (ix *FullIndex) CandidateIDs(query string, limit int) []string {
	ix.base.mu.RLock()
	defer ix.base.mu.RUnlock()

	cands := ix.candidates(query)

	ids := make([]string, 0, len(cands))

	for idx := range cands {
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
func (ix *FullIndex) NeedsRebuild() bool {
	ix.base.mu.RLock()
	defer ix.base.mu.RUnlock()

	return ix.base.tombstoneRatio() > rebuildTombstoneRatio
}

// Rebuild compacts tombstoned slots out and repopulates postings from
// scratch against the surviving slots.
func (ix *FullIndex) Rebuild() {
	ix.base.mu.Lock()
	defer ix.base.mu.Unlock()

	survivors := ix.base.compact()

	ix.postings = make(map[int][]int32)
	for i, s := range survivors {
		ix.postText(int32(i), s.Text)
	}
}

// Save persists the index to path using the atomic-write + checksum
// discipline described in snapshot.go.
func (ix *FullIndex) Save(path string) error {
	ix.base.mu.RLock()
	defer ix.base.mu.RUnlock()

	return saveSnapshot(path, ix.base.slots)
}

// LoadFull restores a FullIndex previously written by Save.
func LoadFull(path string) (*FullIndex, error) {
	slots, err := loadSnapshot(path)
	if err != nil {
		return nil, err
	}

	ix := NewFull()
	ix.base.loadSlots(slots)

	for i, s := range slots {
		if !s.Tombstoned {
			ix.postText(int32(i), s.Text)
		}
	}

	return ix, nil
}

// Len reports the number of live (non-tombstoned) records, used by
// SearchEngine to decide whether the fuzzy tier is worth consulting.
func (ix *FullIndex) Len() int {
	ix.base.mu.RLock()
	defer ix.base.mu.RUnlock()

	return len(ix.base.slots) - ix.base.tombstones
}
