package tuple

// Arena stands in for a memory context: a scope that owns a batch of
// allocations and can be reset/destroyed as a unit. Go's GC makes manual
// allocation unnecessary, but the *lifetime* discipline spec.md's data model
// depends on (slots comparing their tuple's originating arena against their
// own, per-tuple contexts reset between rows, hashCxt/batchCxt reset between
// hash-join passes) still needs an explicit identity to compare against, so
// Arena is a reference-typed token rather than an allocator.
type Arena struct {
	name    string
	parent  *Arena
	resets  int
	destroy bool
}

// NewArena creates a root arena, e.g. one EState's per-query arena.
func NewArena(name string) *Arena {
	return &Arena{name: name}
}

// Child creates a nested arena (e.g. a per-tuple arena under a per-node
// arena) whose Reset does not affect the parent.
func (a *Arena) Child(name string) *Arena {
	return &Arena{name: name, parent: a}
}

// Reset invalidates every allocation attributed to this arena without
// affecting the parent. Callers that hold a tuple whose Arena has been Reset
// since the tuple was produced must treat the tuple as stale; Slot enforces
// this by copying out of foreign arenas (see Slot.Store).
func (a *Arena) Reset() {
	if a == nil {
		return
	}
	a.resets++
}

// Generation returns a token that changes every time Reset is called,
// letting a Slot detect that the arena it copied its tuple from has since
// been recycled.
func (a *Arena) Generation() int {
	if a == nil {
		return 0
	}
	return a.resets
}

// Destroy marks the arena permanently dead; used at node End() so any
// lingering reference is diagnosable.
func (a *Arena) Destroy() {
	if a == nil {
		return
	}
	a.destroy = true
}

func (a *Arena) String() string {
	if a == nil {
		return "<nil arena>"
	}
	return a.name
}
