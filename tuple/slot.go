package tuple

// Row is one tuple's column values in attribute order. Nil at index i means
// attribute i is SQL NULL, mirroring the Go convention used throughout the
// teacher's row/iterator contracts (a typed nil is never stored: callers
// store an explicit nil interface{}).
type Row []interface{}

// Clone returns a deep-enough copy of r: a fresh backing array, though the
// element values themselves are not copied (they are treated as immutable
// once produced, matching datum semantics).
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	cp := make(Row, len(r))
	copy(cp, r)
	return cp
}

// HeapTuple is a materialized tuple plus the arena it was allocated in.
// Slot.Store compares this Arena against the slot's own arena to decide
// whether a copy is required (spec.md §3 invariant).
type HeapTuple struct {
	Values Row
	Arena  *Arena
	gen    int
}

// NewHeapTuple builds a tuple attributed to arena a.
func NewHeapTuple(values Row, a *Arena) *HeapTuple {
	return &HeapTuple{Values: values, Arena: a, gen: a.Generation()}
}

// stale reports whether the tuple's originating arena has been Reset since
// the tuple was built.
func (t *HeapTuple) stale() bool {
	return t != nil && t.Arena != nil && t.Arena.Generation() != t.gen
}

// Slot holds at most one tuple plus its descriptor, per spec.md §3. The
// zero Slot is usable; Init binds it to an arena and descriptor.
type Slot struct {
	desc       *Descriptor
	arena      *Arena
	tuple      *HeapTuple
	shouldFree bool
	virtual    bool
}

// NewSlot creates a standalone slot (not part of a TupleTable) bound to the
// given descriptor and owning arena.
func NewSlot(desc *Descriptor, a *Arena) *Slot {
	return &Slot{desc: desc, arena: a}
}

// Descriptor returns the slot's bound tuple descriptor.
func (s *Slot) Descriptor() *Descriptor { return s.desc }

// SetDescriptor rebinds the slot to describe a different (but
// shape-compatible) relation, used when a scan switches target relation
// mid-plan (e.g. Append over heterogeneous partitions).
func (s *Slot) SetDescriptor(d *Descriptor) { s.desc = d }

// IsEmpty reports whether the slot currently holds no tuple.
func (s *Slot) IsEmpty() bool { return s.tuple == nil }

// Store binds t into the slot. If t's originating arena differs from the
// slot's own arena, or the source arena has been reset since t was produced,
// the slot makes and owns a fresh copy (spec.md §3 invariant); otherwise it
// borrows t without taking ownership.
func (s *Slot) Store(t *HeapTuple) {
	s.Clear()
	if t == nil {
		return
	}
	if t.Arena != s.arena || t.stale() {
		cp := make(Row, len(t.Values))
		copy(cp, t.Values)
		s.tuple = NewHeapTuple(cp, s.arena)
		s.shouldFree = true
		return
	}
	s.tuple = t
	s.shouldFree = false
}

// StoreVirtual builds a tuple directly from values already owned by the
// slot's arena (e.g. a projection result) and stores it without a copy,
// mirroring ExecStoreVirtualTuple's cheaper path (SPEC_FULL.md supplemented
// feature #1).
func (s *Slot) StoreVirtual(values Row) {
	s.Clear()
	s.tuple = NewHeapTuple(values, s.arena)
	s.shouldFree = true
	s.virtual = true
}

// Tuple returns the currently stored tuple's values, or nil if empty.
func (s *Slot) Tuple() Row {
	if s.tuple == nil {
		return nil
	}
	return s.tuple.Values
}

// Virtual reports whether the current tuple was stored via StoreVirtual.
func (s *Slot) Virtual() bool { return s.virtual }

// ShouldFree reports whether clearing the slot must release the tuple's
// memory, i.e. the slot is the sole owner.
func (s *Slot) ShouldFree() bool { return s.shouldFree }

// Clear empties the slot. Testable property 1 (spec.md §8): after Clear, no
// memory is reachable from the slot, and if ShouldFree was true the tuple is
// "freed" (here: dropped) exactly once.
func (s *Slot) Clear() {
	s.tuple = nil
	s.shouldFree = false
	s.virtual = false
}
