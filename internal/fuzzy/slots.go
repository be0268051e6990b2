package fuzzy

import "sync"

// baseIndex owns slot storage, the free list and the record-id -> slot-index
// map shared by FullIndex and ShortIndex; the two differ only in how they
// index Text for candidate lookup.
type baseIndex struct {
	mu         sync.RWMutex
	slots      []Slot
	free       []int32
	byID       map[string]int32
	tombstones int
}

func newBaseIndex() *baseIndex {
	return &baseIndex{byID: make(map[string]int32)}
}

// upsertSlot inserts or overwrites the slot for id, reusing a tombstoned slot
// from the free list when one is available. Returns the slot index, the
// previous text (empty on insert) and whether this was a new record. Caller
// must hold mu.
func (b *baseIndex) upsertSlot(id, text string) (idx int32, oldText string, isNew bool) {
	if existing, ok := b.byID[id]; ok {
		oldText = b.slots[existing].Text
		b.slots[existing].Text = text
		b.slots[existing].Tombstoned = false

		return existing, oldText, false
	}

	if n := len(b.free); n > 0 {
		idx = b.free[n-1]
		b.free = b.free[:n-1]
		b.slots[idx] = Slot{RecordID: id, Text: text}
	} else {
		idx = int32(len(b.slots))
		b.slots = append(b.slots, Slot{RecordID: id, Text: text})
	}

	b.byID[id] = idx

	return idx, "", true
}

// deleteSlot tombstones the slot for id, returning its former text so the
// caller can retract postings. Caller must hold mu.
func (b *baseIndex) deleteSlot(id string) (idx int32, text string, ok bool) {
	idx, ok = b.byID[id]
	if !ok {
		return 0, "", false
	}

	text = b.slots[idx].Text
	b.slots[idx] = Slot{Tombstoned: true}
	b.free = append(b.free, idx)
	b.tombstones++

	delete(b.byID, id)

	return idx, text, true
}

func (b *baseIndex) tombstoneRatio() float64 {
	if len(b.slots) == 0 {
		return 0
	}

	return float64(b.tombstones) / float64(len(b.slots))
}

// compact drops tombstoned slots and renumbers the survivors, returning the
// new slot list. Caller must hold mu and is responsible for rebuilding
// postings against the returned slots afterward.
func (b *baseIndex) compact() []Slot {
	survivors := make([]Slot, 0, len(b.slots)-b.tombstones)
	newByID := make(map[string]int32, len(survivors))

	for _, s := range b.slots {
		if s.Tombstoned {
			continue
		}

		newByID[s.RecordID] = int32(len(survivors))
		survivors = append(survivors, s)
	}

	b.slots = survivors
	b.byID = newByID
	b.free = nil
	b.tombstones = 0

	return survivors
}

// loadSlots replaces the index's slots wholesale (used after LoadFull /
// LoadShort deserializes a snapshot). Caller rebuilds postings afterward.
func (b *baseIndex) loadSlots(slots []Slot) {
	b.slots = slots
	b.byID = make(map[string]int32, len(slots))
	b.free = nil
	b.tombstones = 0

	for i, s := range slots {
		if s.Tombstoned {
			b.free = append(b.free, int32(i))
			b.tombstones++

			continue
		}

		b.byID[s.RecordID] = int32(i)
	}
}
