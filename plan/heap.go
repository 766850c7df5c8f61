package plan

import (
	"github.com/weaverdb/weaverdb-sub001/access"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// Heap is the page/buffer-manager facade this package needs: walk a
// relation's tuples in physical order, or fetch one by ItemPointer under a
// snapshot. The real page/buffer manager is out of scope (spec.md §1); this
// is the pinned contract the executor requires of it.
type Heap interface {
	// Walk returns a cursor over every live tuple of relOID in heap order.
	Walk(relOID uint32) HeapCursor
	// Fetch returns the tuple at tid if it is visible under snap, per
	// spec.md §4.5 step 4 ("dropping tuples that fail visibility").
	Fetch(relOID uint32, tid access.ItemPointer, snap Snapshot) (tuple.Row, bool, error)
}

// HeapCursor walks a relation's tuples in physical (block, offset) order.
type HeapCursor interface {
	Next() (tid access.ItemPointer, row tuple.Row, ok bool, err error)
	Close() error
}

// MemHeap is an in-memory Heap used by SeqScan/IndexScan/DelegatedScan
// tests and by embedding hosts without a real storage engine.
type MemHeap struct {
	rows map[uint32][]memHeapRow
}

type memHeapRow struct {
	tid     access.ItemPointer
	row     tuple.Row
	xmin    uint64
	xmax    uint64
	deleted bool
}

func NewMemHeap() *MemHeap {
	return &MemHeap{rows: make(map[uint32][]memHeapRow)}
}

// Insert appends a row visible from xmin onward (xmax 0 means never
// deleted).
func (h *MemHeap) Insert(relOID uint32, tid access.ItemPointer, row tuple.Row, xmin uint64) {
	h.rows[relOID] = append(h.rows[relOID], memHeapRow{tid: tid, row: row, xmin: xmin})
}

func (h *MemHeap) Walk(relOID uint32) HeapCursor {
	rows := h.rows[relOID]
	return &memHeapCursor{rows: rows}
}

func (h *MemHeap) Fetch(relOID uint32, tid access.ItemPointer, snap Snapshot) (tuple.Row, bool, error) {
	for _, r := range h.rows[relOID] {
		if r.tid == tid {
			if snap != nil && !snap.Visible(r.xmin, r.xmax) {
				return nil, false, nil
			}
			return r.row, true, nil
		}
	}
	return nil, false, nil
}

type memHeapCursor struct {
	rows []memHeapRow
	pos  int
}

func (c *memHeapCursor) Next() (access.ItemPointer, tuple.Row, bool, error) {
	if c.pos >= len(c.rows) {
		return access.ItemPointer{}, nil, false, nil
	}
	r := c.rows[c.pos]
	c.pos++
	return r.tid, r.row, true, nil
}

func (c *memHeapCursor) Close() error { return nil }

// AlwaysVisible is a Snapshot that accepts every tuple, useful for tests and
// for scans that must not filter by visibility.
type AlwaysVisible struct{}

func (AlwaysVisible) Visible(xmin, xmax uint64) bool { return true }
