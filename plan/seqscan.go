package plan

import (
	"io"

	"github.com/weaverdb/weaverdb-sub001/access"
	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// SeqScanNode walks a relation's tuples in physical order, testing Qual and
// projecting Proj, per spec.md §4.4.
type SeqScanNode struct {
	base
	RTIndex int
	RelOID  uint32
	Heap    Heap
	Qual    []expr.Expr
	Proj    expr.TargetList
	Desc    *tuple.Descriptor

	scanSlot *tuple.Slot
	ectx     *expr.Context
	cursor   HeapCursor
}

func NewSeqScan(rtIndex int, relOID uint32, heap Heap, desc *tuple.Descriptor, qual []expr.Expr, proj expr.TargetList) *SeqScanNode {
	return &SeqScanNode{RTIndex: rtIndex, RelOID: relOID, Heap: heap, Desc: desc, Qual: qual, Proj: proj}
}

func (n *SeqScanNode) CountSlots() int { return 1 }

func (n *SeqScanNode) Init(es *EState) error {
	n.es = es
	n.scanSlot = es.TupleTable.Alloc(n.Desc)
	n.ectx = es.NewExprContext()
	n.cursor = n.Heap.Walk(n.RelOID)
	return nil
}

type heapCursorSource struct {
	cursor HeapCursor
}

func (s heapCursorSource) Next() (access.ItemPointer, tuple.Row, bool, error) {
	return s.cursor.Next()
}
func (s heapCursorSource) Close() error { return s.cursor.Close() }

func (n *SeqScanNode) Exec() (tuple.Row, error) {
	return execScan(n.es, n.RTIndex, n.scanSlot, n.ectx, heapCursorSource{n.cursor}, &Projector{Qual: n.Qual, Proj: n.Proj})
}

func (n *SeqScanNode) End() error {
	if n.cursor != nil {
		return n.cursor.Close()
	}
	return nil
}

func (n *SeqScanNode) ReScan() error {
	if n.cursor != nil {
		_ = n.cursor.Close()
	}
	n.cursor = n.Heap.Walk(n.RelOID)
	return nil
}

// IndexScanNode supports OR-of-AND qualifications by iterating a list of
// index descriptors (Disjuncts); the item pointer of every reported tuple
// is kept in a seen set, and a tuple an earlier disjunct already reported
// is skipped, so a tuple that matches more than one is reported once, per
// spec.md §4.4 and Testable Property 3.
type IndexScanNode struct {
	base
	RTIndex   int
	RelOID    uint32
	Heap      Heap
	Method    access.Method
	Disjuncts [][]access.ScanKey
	Dir       access.Direction
	Qual      []expr.Expr
	Proj      expr.TargetList
	Desc      *tuple.Descriptor
	Snap      Snapshot

	scanSlot  *tuple.Slot
	ectx      *expr.Context
	scans     []access.Scan
	di        int // which disjunct we're currently draining
	seen      map[access.ItemPointer]bool
}

func NewIndexScan(rtIndex int, relOID uint32, heap Heap, method access.Method, disjuncts [][]access.ScanKey, dir access.Direction, snap Snapshot, desc *tuple.Descriptor, qual []expr.Expr, proj expr.TargetList) *IndexScanNode {
	return &IndexScanNode{
		RTIndex: rtIndex, RelOID: relOID, Heap: heap, Method: method,
		Disjuncts: disjuncts, Dir: dir, Qual: qual, Proj: proj, Desc: desc, Snap: snap,
	}
}

func (n *IndexScanNode) CountSlots() int { return 1 }

func (n *IndexScanNode) Init(es *EState) error {
	n.es = es
	n.scanSlot = es.TupleTable.Alloc(n.Desc)
	n.ectx = es.NewExprContext()
	n.seen = make(map[access.ItemPointer]bool)
	return n.openScans()
}

func (n *IndexScanNode) openScans() error {
	n.scans = make([]access.Scan, len(n.Disjuncts))
	for i, keys := range n.Disjuncts {
		s, err := n.Method.Begin(n.RelOID, keys, n.Dir)
		if err != nil {
			return err
		}
		n.scans[i] = s
	}
	n.di = 0
	return nil
}

func (n *IndexScanNode) nextCandidate() (access.ItemPointer, bool, error) {
	for n.di < len(n.scans) {
		tid, ok, err := n.scans[n.di].GetNext()
		if err != nil {
			return access.ItemPointer{}, false, err
		}
		if !ok {
			n.di++
			continue
		}
		if n.seen[tid] {
			continue // dedup: already reported via an earlier disjunct
		}
		n.seen[tid] = true
		return tid, true, nil
	}
	return access.ItemPointer{}, false, nil
}

func (n *IndexScanNode) Exec() (tuple.Row, error) {
	if repl, ok := n.es.PlanQual[n.RTIndex]; ok {
		n.es.PlanQual[n.RTIndex] = nil
		if repl == nil {
			return nil, io.EOF
		}
		n.scanSlot.StoreVirtual(repl)
		return projectOrPass(n.ectx, n.scanSlot, &Projector{Qual: n.Qual, Proj: n.Proj})
	}

	for {
		tid, ok, err := n.nextCandidate()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, io.EOF
		}
		row, visible, err := n.Heap.Fetch(n.RelOID, tid, n.Snap)
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		n.scanSlot.StoreVirtual(row)
		n.ectx.Scan = n.scanSlot
		n.ectx.ResetPerTuple()

		passed, err := expr.EvalQual(n.ectx, n.Qual, false)
		if err != nil {
			return nil, err
		}
		if !passed {
			continue
		}
		return projectOrPass(n.ectx, n.scanSlot, &Projector{Qual: n.Qual, Proj: n.Proj})
	}
}

func (n *IndexScanNode) End() error {
	var firstErr error
	for _, s := range n.scans {
		if s == nil {
			continue
		}
		if err := s.End(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (n *IndexScanNode) ReScan() error {
	if err := n.End(); err != nil {
		return err
	}
	n.seen = make(map[access.ItemPointer]bool)
	return n.openScans()
}
