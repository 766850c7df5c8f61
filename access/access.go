// Package access implements the Index Access Facade of spec.md §2/§4
// (component C3): a uniform begin/rescan/getnext/end/markpos/restrpos/
// insert/delete protocol over pluggable access methods, replacing the
// original's function-pointer-table dispatch with a Go interface plus a
// dynamic registry (spec.md §9 redesign note).
package access

import (
	"sync"

	"github.com/weaverdb/weaverdb-sub001/errs"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// ItemPointer identifies one heap tuple's physical location: a block number
// and an offset within that block, matching the (block, offset) pair
// spec.md's glossary and §4.5 describe.
type ItemPointer struct {
	Block  uint32
	Offset uint16
}

// ScanKey is one access-method search predicate: an attribute number, a
// comparison strategy, and a comparand. The specific strategy numbers are
// access-method defined; this facade only needs to pass them through
// opaquely to Method.Begin/Rescan.
type ScanKey struct {
	Attno    int
	Strategy int
	Operand  interface{}
}

// Direction is the scan direction.
type Direction int

const (
	Forward Direction = iota
	Backward
	NoMovement
)

// Method is the uniform facade over a pluggable index or heap access
// method, per spec.md component C3.
type Method interface {
	// Name identifies the access method (e.g. "btree", "heap", "hash").
	Name() string
	// Begin opens a scan over relOID using keys, returning an opaque handle.
	Begin(relOID uint32, keys []ScanKey, dir Direction) (Scan, error)
	// Insert adds a new entry referencing tid.
	Insert(relOID uint32, values tuple.Row, tid ItemPointer) error
	// Delete removes the entry referencing tid.
	Delete(relOID uint32, tid ItemPointer) error
}

// Scan is one open access-method scan.
type Scan interface {
	// GetNext returns the next matching ItemPointer, or ok=false at EOF.
	GetNext() (tid ItemPointer, ok bool, err error)
	// Rescan restarts the scan with new keys (and optionally a new
	// direction), reusing the open handle — spec.md §4.3 ExecProcNode calls
	// ReScan on chgParam rather than reopening the scan.
	Rescan(keys []ScanKey, dir Direction) error
	// MarkPos/RestrPos save and restore a scan position. MergeJoinNode does
	// not use them; it buffers each run of equal inner keys instead.
	MarkPos() (Mark, error)
	RestrPos(Mark) error
	// End releases the scan's resources (page locks, cursor state).
	End() error
}

// Mark is an opaque saved scan position.
type Mark interface{}

// Registry maps access-method names to their Method implementation,
// replacing the original's per-relation function-pointer table with an
// explicit, inspectable registry (spec.md §9).
type Registry struct {
	mu      sync.RWMutex
	methods map[string]Method
}

func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]Method)}
}

// Register adds or replaces the Method for a given access-method name.
func (r *Registry) Register(m Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[m.Name()] = m
}

// Lookup finds a registered Method by name.
func (r *Registry) Lookup(name string) (Method, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.methods[name]
	if !ok {
		return nil, errs.Internal.New("unknown access method %q", name)
	}
	return m, nil
}
