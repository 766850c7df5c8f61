package delegate

import (
	"github.com/weaverdb/weaverdb-sub001/access"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// FetchFn fetches and visibility-checks the heap row at tid, returning
// ok=false if it fails visibility under whatever snapshot the caller
// closed over. Callers in the plan package bind relOID and the snapshot
// when constructing this from their own Heap/Snapshot types, so this
// package never needs to name either (avoiding an import cycle with plan).
type FetchFn func(tid access.ItemPointer) (row tuple.Row, visible bool, err error)

// Consumer wraps a Handle with DelegatedGetTuple semantics: it pulls
// pointers one at a time and fetches/visibility-checks the referenced heap
// tuple, dropping any that fail visibility, per spec.md §4.5 step 4. It
// satisfies plan.TupleSource.
type Consumer struct {
	handle *Handle
	fetch  FetchFn
}

func NewConsumer(handle *Handle, fetch FetchFn) *Consumer {
	return &Consumer{handle: handle, fetch: fetch}
}

// Next returns the next heap row that is both delegated and visible. Only
// tuples passing visibility propagate upward (spec.md §4.5).
func (c *Consumer) Next() (access.ItemPointer, tuple.Row, bool, error) {
	for {
		tid, ok, err := c.handle.Next()
		if err != nil {
			return access.ItemPointer{}, nil, false, err
		}
		if !ok {
			return access.ItemPointer{}, nil, false, nil
		}
		row, visible, err := c.fetch(tid)
		if err != nil {
			return access.ItemPointer{}, nil, false, err
		}
		if !visible {
			continue
		}
		return tid, row, true, nil
	}
}

// Close signals and joins the producer, per spec.md §4.5's DelegatedScanEnd.
func (c *Consumer) Close() error {
	return c.handle.End()
}
