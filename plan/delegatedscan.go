package plan

import (
	"github.com/weaverdb/weaverdb-sub001/access"
	"github.com/weaverdb/weaverdb-sub001/delegate"
	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// DelegatedSeqScanNode is SeqScanNode's split-thread counterpart: a
// producer goroutine walks the heap independently and hands batches of
// ItemPointers to this node's consumer, per spec.md §4.5. Per Testable
// Property 4, its output multiset is identical to SeqScanNode's, modulo
// order.
type DelegatedSeqScanNode struct {
	base
	RTIndex int
	RelOID  uint32
	Heap    Heap
	Snap    Snapshot
	Qual    []expr.Expr
	Proj    expr.TargetList
	Desc    *tuple.Descriptor
	// SortByBlock enables the producer's block-number pre-sort; spec.md §4.5
	// restricts this to non-ordered scans (direction == NoMovement).
	SortByBlock bool

	scanSlot *tuple.Slot
	ectx     *expr.Context
	consumer *delegate.Consumer
}

func NewDelegatedSeqScan(rtIndex int, relOID uint32, heap Heap, snap Snapshot, desc *tuple.Descriptor, qual []expr.Expr, proj expr.TargetList, sortByBlock bool) *DelegatedSeqScanNode {
	return &DelegatedSeqScanNode{RTIndex: rtIndex, RelOID: relOID, Heap: heap, Snap: snap, Desc: desc, Qual: qual, Proj: proj, SortByBlock: sortByBlock}
}

func (n *DelegatedSeqScanNode) CountSlots() int { return 1 }

// cursorSource adapts a HeapCursor (which yields tid+row together) to
// delegate.Source (which yields just the tid); the row is re-fetched by the
// consumer under the executor's own snapshot, matching the original's
// producer-holds-no-pin invariant.
type cursorSource struct{ cursor HeapCursor }

func (s cursorSource) Next() (access.ItemPointer, bool, error) {
	tid, _, ok, err := s.cursor.Next()
	return tid, ok, err
}

func (n *DelegatedSeqScanNode) Init(es *EState) error {
	n.es = es
	n.scanSlot = es.TupleTable.Alloc(n.Desc)
	n.ectx = es.NewExprContext()
	return n.open()
}

func (n *DelegatedSeqScanNode) open() error {
	cursor := n.Heap.Walk(n.RelOID)
	handle := delegate.Start(cursorSource{cursor}, n.SortByBlock)
	n.consumer = delegate.NewConsumer(handle, func(tid access.ItemPointer) (tuple.Row, bool, error) {
		return n.Heap.Fetch(n.RelOID, tid, n.Snap)
	})
	return nil
}

// delegatedSource adapts delegate.Consumer (tid, row, ok, err) to
// plan.TupleSource, which is the same shape.
type delegatedSource struct{ c *delegate.Consumer }

func (s delegatedSource) Next() (access.ItemPointer, tuple.Row, bool, error) { return s.c.Next() }
func (s delegatedSource) Close() error                                      { return s.c.Close() }

func (n *DelegatedSeqScanNode) Exec() (tuple.Row, error) {
	return execScan(n.es, n.RTIndex, n.scanSlot, n.ectx, delegatedSource{n.consumer}, &Projector{Qual: n.Qual, Proj: n.Proj})
}

func (n *DelegatedSeqScanNode) End() error {
	if n.consumer != nil {
		return n.consumer.Close()
	}
	return nil
}

func (n *DelegatedSeqScanNode) ReScan() error {
	if n.consumer != nil {
		_ = n.consumer.Close()
	}
	return n.open()
}

// DelegatedIndexScanNode is IndexScanNode's split-thread counterpart: the
// producer walks a single index scan keyset (disjuncts are not supported
// across the delegate boundary; callers needing OR-of-AND delegation should
// wrap several DelegatedIndexScanNodes in an AppendNode, which concatenates
// its children and does not remove a tuple that more than one returns).
type DelegatedIndexScanNode struct {
	base
	RTIndex     int
	RelOID      uint32
	Heap        Heap
	Method      access.Method
	Keys        []access.ScanKey
	Dir         access.Direction
	Snap        Snapshot
	Qual        []expr.Expr
	Proj        expr.TargetList
	Desc        *tuple.Descriptor
	SortByBlock bool

	scanSlot *tuple.Slot
	ectx     *expr.Context
	scan     access.Scan
	consumer *delegate.Consumer
}

func NewDelegatedIndexScan(rtIndex int, relOID uint32, heap Heap, method access.Method, keys []access.ScanKey, dir access.Direction, snap Snapshot, desc *tuple.Descriptor, qual []expr.Expr, proj expr.TargetList, sortByBlock bool) *DelegatedIndexScanNode {
	return &DelegatedIndexScanNode{RTIndex: rtIndex, RelOID: relOID, Heap: heap, Method: method, Keys: keys, Dir: dir, Snap: snap, Desc: desc, Qual: qual, Proj: proj, SortByBlock: sortByBlock}
}

func (n *DelegatedIndexScanNode) CountSlots() int { return 1 }

func (n *DelegatedIndexScanNode) Init(es *EState) error {
	n.es = es
	n.scanSlot = es.TupleTable.Alloc(n.Desc)
	n.ectx = es.NewExprContext()
	return n.open()
}

func (n *DelegatedIndexScanNode) open() error {
	scan, err := n.Method.Begin(n.RelOID, n.Keys, n.Dir)
	if err != nil {
		return err
	}
	n.scan = scan
	handle := delegate.Start(delegate.ScanSource{Scan: scan}, n.SortByBlock)
	n.consumer = delegate.NewConsumer(handle, func(tid access.ItemPointer) (tuple.Row, bool, error) {
		return n.Heap.Fetch(n.RelOID, tid, n.Snap)
	})
	return nil
}

func (n *DelegatedIndexScanNode) Exec() (tuple.Row, error) {
	return execScan(n.es, n.RTIndex, n.scanSlot, n.ectx, delegatedSource{n.consumer}, &Projector{Qual: n.Qual, Proj: n.Proj})
}

func (n *DelegatedIndexScanNode) End() error {
	var firstErr error
	if n.consumer != nil {
		if err := n.consumer.Close(); err != nil {
			firstErr = err
		}
	}
	if n.scan != nil {
		if err := n.scan.End(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (n *DelegatedIndexScanNode) ReScan() error {
	if err := n.End(); err != nil {
		return err
	}
	return n.open()
}
