package query

import "github.com/clipvault/core/internal/store"

// SelectNext moves the selection to the next item in the flat list, wrapping
// from the last item back to the first. A no-op on an empty list. If the
// current selection no longer appears in the list (e.g. its record was
// deleted), selection falls back to the first item.
func (c *Controller) SelectNext() {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := c.state.Items
	if len(items) == 0 {
		return
	}

	idx := indexOfSelected(items, c.state.SelectedID)
	if idx == -1 {
		c.state.SelectedID = items[0].ID.String()

		return
	}

	c.state.SelectedID = items[(idx+1)%len(items)].ID.String()
}

// SelectPrevious moves the selection to the previous item, wrapping from the
// first item back to the last. A no-op on an empty list. If the current
// selection no longer appears in the list, selection falls back to the last
// item.
func (c *Controller) SelectPrevious() {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := c.state.Items
	if len(items) == 0 {
		return
	}

	idx := indexOfSelected(items, c.state.SelectedID)
	if idx == -1 {
		c.state.SelectedID = items[len(items)-1].ID.String()

		return
	}

	c.state.SelectedID = items[(idx-1+len(items))%len(items)].ID.String()
}

func indexOfSelected(items []store.Record, selectedID string) int {
	for i, it := range items {
		if it.ID.String() == selectedID {
			return i
		}
	}

	return -1
}
