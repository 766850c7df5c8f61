package plan

import (
	"io"

	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// HashNode builds a HashTable from its single child, per spec.md §4.7. It
// has no output of its own; HashJoinNode drives it via Build.
type HashNode struct {
	base
	Child Node
	KeyFn HashKeyFn

	TotalBuckets, NBuckets, NBatch int
	TmpDir                         string

	table *HashTable
	built bool
}

func NewHash(child Node, keyFn HashKeyFn, totalBuckets, nBuckets, nBatch int, tmpDir string) *HashNode {
	return &HashNode{base: base{children: []Node{child}}, Child: child, KeyFn: keyFn,
		TotalBuckets: totalBuckets, NBuckets: nBuckets, NBatch: nBatch, TmpDir: tmpDir}
}

func (n *HashNode) CountSlots() int { return 0 }

func (n *HashNode) Init(es *EState) error {
	n.es = es
	return nil
}

// Build drains Child into a fresh HashTable, replacing any previous one.
func (n *HashNode) Build() (*HashTable, error) {
	if n.table != nil {
		_ = n.table.Close()
	}
	ht, err := NewHashTable(n.TmpDir, n.TotalBuckets, n.NBuckets, n.NBatch, n.KeyFn)
	if err != nil {
		return nil, err
	}
	for {
		row, err := ExecProcNode(n.Child, n.es)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := ht.Insert(row); err != nil {
			return nil, err
		}
	}
	n.table = ht
	n.built = true
	return ht, nil
}

// Exec satisfies Node but a HashNode is never pulled directly; HashJoinNode
// calls Build instead.
func (n *HashNode) Exec() (tuple.Row, error) { return nil, io.EOF }

func (n *HashNode) End() error {
	if n.table != nil {
		return n.table.Close()
	}
	return nil
}

func (n *HashNode) ReScan() error {
	n.built = false
	return n.Child.ReScan()
}

// HashJoinNode probes a HashNode's table with rows pulled from Outer. Init
// builds the inner hash table (buckets below nBuckets resident, the rest
// spilled by batch); once the outer side is exhausted it replays any spilled batches
// by rebuilding an in-memory table per batch and re-streaming the matching
// probe-side spill file, per spec.md §4.7 and SUPPLEMENTED FEATURES #3.
type HashJoinNode struct {
	base
	Outer    Node
	Hash     *HashNode
	OuterKey HashKeyFn
	Qual     []expr.Expr
	Proj     expr.TargetList
	TmpDir   string

	ectx *expr.Context

	table        *HashTable
	probeMatches []tuple.Row
	probePos     int
	curOuter     tuple.Row

	probeSpill []*tempfileHandle
	batch      int
	phase      int // 0 = draining Outer directly, 1 = replaying spilled batches
	rebuilt    *HashTable
	rebuiltRows []tuple.Row
	rebuiltPos  int
}

func NewHashJoin(outer Node, h *HashNode, outerKey HashKeyFn, qual []expr.Expr, proj expr.TargetList, tmpDir string) *HashJoinNode {
	return &HashJoinNode{base: base{children: []Node{outer, h}}, Outer: outer, Hash: h, OuterKey: outerKey, Qual: qual, Proj: proj, TmpDir: tmpDir}
}

func (n *HashJoinNode) CountSlots() int { return 0 }

func (n *HashJoinNode) Init(es *EState) error {
	n.es = es
	n.ectx = es.NewExprContext()
	ht, err := n.Hash.Build()
	if err != nil {
		return err
	}
	n.table = ht
	if ht.nBatch > 0 {
		n.probeSpill = make([]*tempfileHandle, ht.nBatch)
	}
	return nil
}

// spillProbe writes an outer-side row that fell in a spilled batch, for a
// later replay pass against that batch's rebuilt table.
func (n *HashJoinNode) spillProbe(batch int, row tuple.Row) error {
	h := n.probeSpill[batch]
	if h == nil {
		f, err := newTempfileHandle(n.TmpDir)
		if err != nil {
			return err
		}
		h = f
		n.probeSpill[batch] = h
	}
	return h.write(row)
}

func (n *HashJoinNode) Exec() (tuple.Row, error) {
	for {
		if n.probePos < len(n.probeMatches) {
			row := n.probeMatches[n.probePos]
			n.probePos++
			joined, ok, err := n.emit(n.curOuter, row)
			if err != nil {
				return nil, err
			}
			if ok {
				return joined, nil
			}
			continue
		}

		switch n.phase {
		case 0:
			row, err := ExecProcNode(n.Outer, n.es)
			if err == io.EOF {
				n.phase = 1
				// -1 so case 1's leading n.batch++ lands on batch 0 first;
				// batch numbers from bucket%nbatch legitimately include 0
				// for spilled tuples (0 is not reserved for the resident
				// set, which is instead everything with bucket < nBuckets).
				n.batch = -1
				continue
			}
			if err != nil {
				return nil, err
			}
			key := n.OuterKey(row)
			bucket, batch := n.table.BucketAndBatch(key)
			if bucket >= n.table.nBuckets {
				if n.table.nBatch > 0 {
					if err := n.spillProbe(batch, row); err != nil {
						return nil, err
					}
				}
				continue
			}
			n.curOuter = row
			n.probeMatches = n.table.Probe(key)
			n.probePos = 0
			continue

		case 1:
			if n.rebuiltPos < len(n.rebuiltRows) {
				n.curOuter = n.rebuiltRows[n.rebuiltPos]
				n.rebuiltPos++
				key := n.OuterKey(n.curOuter)
				n.probeMatches = n.rebuilt.Probe(key)
				n.probePos = 0
				continue
			}
			n.batch++
			if n.batch >= n.table.nBatch {
				return nil, io.EOF
			}
			rebuilt, err := n.table.RebuildFromBatch(n.batch)
			if err != nil {
				return nil, err
			}
			n.rebuilt = rebuilt
			n.rebuiltRows = nil
			n.rebuiltPos = 0
			if h := n.probeSpill[n.batch]; h != nil {
				rows, err := h.readAll()
				if err != nil {
					return nil, err
				}
				n.rebuiltRows = rows
			}
			continue
		}
	}
}

func (n *HashJoinNode) emit(outer, inner tuple.Row) (tuple.Row, bool, error) {
	outerSlot := tuple.NewSlot(nil, n.es.Arena)
	outerSlot.StoreVirtual(outer)
	innerSlot := tuple.NewSlot(nil, n.es.Arena)
	innerSlot.StoreVirtual(inner)
	n.ectx.Outer = outerSlot
	n.ectx.Inner = innerSlot
	n.ectx.ResetPerTuple()

	ok, err := expr.EvalQual(n.ectx, n.Qual, false)
	if err != nil || !ok {
		return nil, false, err
	}
	if n.Proj == nil {
		return append(append(tuple.Row{}, outer...), inner...), true, nil
	}
	out, _, err := expr.ExecTargetList(n.ectx, n.Proj)
	return tuple.Row(out), true, err
}

func (n *HashJoinNode) End() error {
	var firstErr error
	if n.table != nil {
		if err := n.table.Close(); err != nil {
			firstErr = err
		}
	}
	for _, h := range n.probeSpill {
		if h == nil {
			continue
		}
		if err := h.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (n *HashJoinNode) ReScan() error {
	n.probeMatches = nil
	n.probePos = 0
	n.phase = 0
	n.batch = 0
	n.rebuiltRows = nil
	n.rebuiltPos = 0
	if err := n.Outer.ReScan(); err != nil {
		return err
	}
	if err := n.Hash.ReScan(); err != nil {
		return err
	}
	for _, h := range n.probeSpill {
		if h != nil {
			_ = h.close()
		}
	}
	n.probeSpill = nil
	ht, err := n.Hash.Build()
	if err != nil {
		return err
	}
	n.table = ht
	if ht.nBatch > 0 {
		n.probeSpill = make([]*tempfileHandle, ht.nBatch)
	}
	return nil
}
