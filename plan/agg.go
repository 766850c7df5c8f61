package plan

import (
	"io"

	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// AggSpec describes one running aggregate: Init produces the zero state,
// Trans folds one input row into the state, Final converts the
// accumulated state into the output value.
type AggSpec struct {
	Init  func() interface{}
	Trans func(state interface{}, row tuple.Row) (interface{}, error)
	Final func(state interface{}) (interface{}, error)
}

// AggNode computes AggSpecs over runs produced by Group (ModeAllWithBoundary),
// resetting state at each group boundary and emitting one row per group
// through Proj, which reads the finalized values via expr.Aggref against
// ctx.AggValues, per spec.md §4.7.
type AggNode struct {
	base
	Group *GroupNode
	Specs []AggSpec
	Proj  expr.TargetList

	ectx    *expr.Context
	states  []interface{}
	haveRun bool
	pendingRow tuple.Row
	done    bool
}

func NewAgg(group *GroupNode, specs []AggSpec, proj expr.TargetList) *AggNode {
	return &AggNode{base: base{children: []Node{group}}, Group: group, Specs: specs, Proj: proj}
}

func (n *AggNode) CountSlots() int { return 0 }

func (n *AggNode) Init(es *EState) error {
	n.es = es
	n.ectx = es.NewExprContext()
	n.resetStates()
	return nil
}

func (n *AggNode) resetStates() {
	n.states = make([]interface{}, len(n.Specs))
	for i, s := range n.Specs {
		if s.Init != nil {
			n.states[i] = s.Init()
		}
	}
}

func (n *AggNode) finalizeRow() (tuple.Row, error) {
	values := make([]interface{}, len(n.Specs))
	nulls := make([]bool, len(n.Specs))
	for i, s := range n.Specs {
		v, err := s.Final(n.states[i])
		if err != nil {
			return nil, err
		}
		values[i] = v
		nulls[i] = v == nil
	}
	if n.pendingRow != nil {
		groupSlot := tuple.NewSlot(nil, n.es.Arena)
		groupSlot.StoreVirtual(n.pendingRow)
		n.ectx.Scan = groupSlot
	}
	n.ectx.ResetPerTuple()
	n.ectx.AggValues = values
	n.ectx.AggNulls = nulls
	out, _, err := expr.ExecTargetList(n.ectx, n.Proj)
	return tuple.Row(out), err
}

func (n *AggNode) applyRow(row tuple.Row) error {
	for i, s := range n.Specs {
		v, err := s.Trans(n.states[i], row)
		if err != nil {
			return err
		}
		n.states[i] = v
	}
	return nil
}

func (n *AggNode) Exec() (tuple.Row, error) {
	if n.done {
		return nil, io.EOF
	}
	for {
		b, err := n.Group.ExecBoundary()
		if err == io.EOF {
			if !n.haveRun {
				n.done = true
				return nil, io.EOF
			}
			n.done = true
			return n.finalizeRow()
		}
		if err != nil {
			return nil, err
		}
		if b.NewGroup && n.haveRun {
			out, err := n.finalizeRow()
			if err != nil {
				return nil, err
			}
			n.resetStates()
			n.pendingRow = b.Row
			if err := n.applyRow(b.Row); err != nil {
				return nil, err
			}
			return out, nil
		}
		if b.NewGroup {
			n.haveRun = true
			n.pendingRow = b.Row
		}
		if err := n.applyRow(b.Row); err != nil {
			return nil, err
		}
	}
}

func (n *AggNode) End() error { return nil }

func (n *AggNode) ReScan() error {
	n.done = false
	n.haveRun = false
	n.pendingRow = nil
	n.resetStates()
	return n.Group.ReScan()
}
