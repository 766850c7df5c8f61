package plan

import (
	"io"

	"github.com/weaverdb/weaverdb-sub001/access"
	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// TidScanNode fetches rows directly by a known, already-resolved list of
// ItemPointers (e.g. WHERE ctid = '(0,1)' or a self-join on ctid), bypassing
// any index or sequential walk, per spec.md C5.
type TidScanNode struct {
	base
	RTIndex int
	RelOID  uint32
	Heap    Heap
	Snap    Snapshot
	TIDs    []access.ItemPointer
	Qual    []expr.Expr
	Proj    expr.TargetList
	Desc    *tuple.Descriptor

	scanSlot *tuple.Slot
	ectx     *expr.Context
	pos      int
}

func NewTidScan(rtIndex int, relOID uint32, heap Heap, snap Snapshot, tids []access.ItemPointer, desc *tuple.Descriptor, qual []expr.Expr, proj expr.TargetList) *TidScanNode {
	return &TidScanNode{RTIndex: rtIndex, RelOID: relOID, Heap: heap, Snap: snap, TIDs: tids, Desc: desc, Qual: qual, Proj: proj}
}

func (n *TidScanNode) CountSlots() int { return 1 }

func (n *TidScanNode) Init(es *EState) error {
	n.es = es
	n.scanSlot = es.TupleTable.Alloc(n.Desc)
	n.ectx = es.NewExprContext()
	return nil
}

func (n *TidScanNode) Exec() (tuple.Row, error) {
	if repl, ok := n.es.PlanQual[n.RTIndex]; ok {
		n.es.PlanQual[n.RTIndex] = nil
		if repl == nil {
			return nil, io.EOF
		}
		n.scanSlot.StoreVirtual(repl)
		return projectOrPass(n.ectx, n.scanSlot, &Projector{Qual: n.Qual, Proj: n.Proj})
	}

	for n.pos < len(n.TIDs) {
		tid := n.TIDs[n.pos]
		n.pos++
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
	return nil, io.EOF
}

func (n *TidScanNode) End() error { return nil }

func (n *TidScanNode) ReScan() error {
	n.pos = 0
	return nil
}
