package tuple

import "fmt"

// Table is a per-query, fixed-size array of Slots reserved at plan Init time.
// Per spec.md §4.3, the table is never grown after planning: growth would
// invalidate pointers already handed to executing plan nodes. Reserve must
// therefore be called exactly once, with the total CountSlots() of the plan
// tree.
type Table struct {
	arena *Arena
	slots []*Slot
	used  int
}

// NewTable creates an empty table attributed to arena a.
func NewTable(a *Arena) *Table {
	return &Table{arena: a}
}

// Reserve allocates n slots up front. Calling Reserve twice on the same
// table is a programming error (mirrors the single fixed-size allocation the
// original made at plan init) and panics rather than silently reallocating,
// since a silent reallocation is exactly the pointer-invalidation bug
// spec.md §4.3 warns about.
func (t *Table) Reserve(n int) {
	if t.slots != nil {
		panic("tuple.Table: Reserve called more than once")
	}
	t.slots = make([]*Slot, n)
	for i := range t.slots {
		t.slots[i] = NewSlot(nil, t.arena)
	}
}

// Alloc hands out the next unused reserved slot, optionally bound to desc.
// It panics if the table's capacity (set by Reserve) is exhausted, which
// indicates a plan node under-counted its CountSlots contribution.
func (t *Table) Alloc(desc *Descriptor) *Slot {
	if t.used >= len(t.slots) {
		panic(fmt.Sprintf("tuple.Table: capacity %d exhausted", len(t.slots)))
	}
	s := t.slots[t.used]
	s.SetDescriptor(desc)
	t.used++
	return s
}

// Len returns the number of slots reserved.
func (t *Table) Len() int { return len(t.slots) }

// ClearAll clears every allocated slot, called at EState teardown.
func (t *Table) ClearAll() {
	for _, s := range t.slots[:t.used] {
		s.Clear()
	}
}
