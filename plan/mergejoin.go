package plan

import (
	"io"

	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// Compare orders two join-key tuples: negative if a<b, 0 if equal, positive
// if a>b. Both MergeJoinNode and GroupNode take one of these, resolved from
// the grouping/join columns' b-tree opclass by the caller (out of scope:
// catalog lookup), per spec.md §4.7.
type Compare func(a, b tuple.Row) int

// MergeJoinNode assumes both children are pre-sorted on the join keys and
// merges them in lockstep, using MarkPos/RestrPos-style backup via buffered
// re-reads of the inner side to handle duplicate keys on either side.
type MergeJoinNode struct {
	base
	Outer, Inner Node
	OuterKey     func(tuple.Row) tuple.Row
	InnerKey     func(tuple.Row) tuple.Row
	Cmp          Compare
	Qual         []expr.Expr
	Proj         expr.TargetList

	ectx *expr.Context

	outerRow   tuple.Row
	outerDone  bool
	innerBatch []tuple.Row
	innerPos   int
	started    bool

	pendingInner tuple.Row // inner row already read past the current run
}

func NewMergeJoin(outer, inner Node, outerKey, innerKey func(tuple.Row) tuple.Row, cmp Compare, qual []expr.Expr, proj expr.TargetList) *MergeJoinNode {
	return &MergeJoinNode{
		base: base{children: []Node{outer, inner}}, Outer: outer, Inner: inner,
		OuterKey: outerKey, InnerKey: innerKey, Cmp: cmp, Qual: qual, Proj: proj,
	}
}

func (n *MergeJoinNode) CountSlots() int { return 0 }

func (n *MergeJoinNode) Init(es *EState) error {
	n.es = es
	n.ectx = es.NewExprContext()
	return nil
}

func (n *MergeJoinNode) advanceOuter() error {
	row, err := ExecProcNode(n.Outer, n.es)
	if err == io.EOF {
		n.outerDone = true
		return nil
	}
	if err != nil {
		return err
	}
	n.outerRow = row
	return nil
}

// fillInnerBatch collects every inner row sharing the same key as the
// current inner cursor position (a run of duplicates), buffering them so
// they can be replayed against each matching outer row with the same key.
func (n *MergeJoinNode) fillInnerBatch(key tuple.Row, pending tuple.Row) ([]tuple.Row, tuple.Row, error) {
	batch := []tuple.Row{pending}
	for {
		row, err := ExecProcNode(n.Inner, n.es)
		if err == io.EOF {
			return batch, nil, nil
		}
		if err != nil {
			return nil, nil, err
		}
		if n.Cmp(n.InnerKey(row), key) != 0 {
			return batch, row, nil
		}
		batch = append(batch, row)
	}
}

func (n *MergeJoinNode) Exec() (tuple.Row, error) {
	if !n.started {
		n.started = true
		if err := n.advanceOuter(); err != nil {
			return nil, err
		}
	}

	for {
		if n.innerPos < len(n.innerBatch) {
			row := n.innerBatch[n.innerPos]
			n.innerPos++
			joined, ok, err := n.emit(n.outerRow, row)
			if err != nil {
				return nil, err
			}
			if ok {
				return joined, nil
			}
			continue
		}

		if len(n.innerBatch) > 0 {
			if err := n.advanceOuter(); err != nil {
				return nil, err
			}
			if !n.outerDone && n.Cmp(n.OuterKey(n.outerRow), n.InnerKey(n.innerBatch[0])) == 0 {
				n.innerPos = 0
				continue
			}
			n.innerBatch = nil
		}

		if n.outerDone {
			return nil, io.EOF
		}

		innerRow := n.pendingInner
		n.pendingInner = nil
		var err error
		if innerRow == nil {
			innerRow, err = ExecProcNode(n.Inner, n.es)
		}
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}

		cmp := n.Cmp(n.OuterKey(n.outerRow), n.InnerKey(innerRow))
		for cmp > 0 {
			innerRow, err = ExecProcNode(n.Inner, n.es)
			if err == io.EOF {
				return nil, io.EOF
			}
			if err != nil {
				return nil, err
			}
			cmp = n.Cmp(n.OuterKey(n.outerRow), n.InnerKey(innerRow))
		}
		for cmp < 0 {
			if err := n.advanceOuter(); err != nil {
				return nil, err
			}
			if n.outerDone {
				return nil, io.EOF
			}
			cmp = n.Cmp(n.OuterKey(n.outerRow), n.InnerKey(innerRow))
		}
		if cmp > 0 {
			n.pendingInner = innerRow
			continue
		}

		batch, pending, err := n.fillInnerBatch(n.InnerKey(innerRow), innerRow)
		if err != nil {
			return nil, err
		}
		n.pendingInner = pending
		n.innerBatch = batch
		n.innerPos = 0
	}
}

func (n *MergeJoinNode) emit(outer, inner tuple.Row) (tuple.Row, bool, error) {
	innerSlot := tuple.NewSlot(nil, n.es.Arena)
	innerSlot.StoreVirtual(inner)
	outerSlot := tuple.NewSlot(nil, n.es.Arena)
	outerSlot.StoreVirtual(outer)
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

func (n *MergeJoinNode) End() error { return nil }

func (n *MergeJoinNode) ReScan() error {
	n.started = false
	n.outerDone = false
	n.innerBatch = nil
	n.innerPos = 0
	n.pendingInner = nil
	if err := n.Outer.ReScan(); err != nil {
		return err
	}
	return n.Inner.ReScan()
}
