package plan

import (
	"io"

	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// NestLoopNode evaluates Outer once per tuple, rescanning Inner for each
// (with a fresh ReScan so a correlated inner plan sees updated parameters),
// testing Qual against the paired (outer, inner) tuple and projecting Proj.
type NestLoopNode struct {
	base
	Outer, Inner Node
	Qual         []expr.Expr
	Proj         expr.TargetList

	ectx        *expr.Context
	outerSlot   *tuple.Slot
	haveOuter   bool
	innerOpened bool
}

func NewNestLoop(outer, inner Node, qual []expr.Expr, proj expr.TargetList) *NestLoopNode {
	return &NestLoopNode{base: base{children: []Node{outer, inner}}, Outer: outer, Inner: inner, Qual: qual, Proj: proj}
}

func (n *NestLoopNode) CountSlots() int { return 1 }

func (n *NestLoopNode) Init(es *EState) error {
	n.es = es
	n.ectx = es.NewExprContext()
	n.outerSlot = es.TupleTable.Alloc(nil)
	return nil
}

func (n *NestLoopNode) fetchOuter() (bool, error) {
	row, err := ExecProcNode(n.Outer, n.es)
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	n.outerSlot.StoreVirtual(row)
	n.ectx.Outer = n.outerSlot
	if err := n.Inner.ReScan(); err != nil {
		return false, err
	}
	return true, nil
}

func (n *NestLoopNode) Exec() (tuple.Row, error) {
	if !n.haveOuter {
		ok, err := n.fetchOuter()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, io.EOF
		}
		n.haveOuter = true
	}

	for {
		innerRow, err := ExecProcNode(n.Inner, n.es)
		if err == io.EOF {
			ok, err := n.fetchOuter()
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, io.EOF
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		innerSlot := tuple.NewSlot(nil, n.es.Arena)
		innerSlot.StoreVirtual(innerRow)
		n.ectx.Inner = innerSlot
		n.ectx.ResetPerTuple()

		passed, err := expr.EvalQual(n.ectx, n.Qual, false)
		if err != nil {
			return nil, err
		}
		if !passed {
			continue
		}
		if n.Proj == nil {
			return append(append(tuple.Row{}, n.outerSlot.Tuple()...), innerRow...), nil
		}
		out, _, err := expr.ExecTargetList(n.ectx, n.Proj)
		return tuple.Row(out), err
	}
}

func (n *NestLoopNode) End() error { return nil }

func (n *NestLoopNode) ReScan() error {
	n.haveOuter = false
	return n.Outer.ReScan()
}
