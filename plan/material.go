package plan

import (
	"io"

	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// MaterialNode collects its child's output into an in-memory row slice on
// first Exec, then replays from that copy on every subsequent Exec and on
// ReScan (without re-driving the child), per spec.md §4.7. No temp relation
// or snapshot is involved: the replay returns the buffered rows as they are.
type MaterialNode struct {
	base
	Child Node

	rows     []tuple.Row
	materialized bool
	pos      int
}

func NewMaterial(child Node) *MaterialNode {
	return &MaterialNode{base: base{children: []Node{child}}, Child: child}
}

func (n *MaterialNode) CountSlots() int { return 0 }

func (n *MaterialNode) Init(es *EState) error {
	n.es = es
	return nil
}

func (n *MaterialNode) materialize() error {
	n.rows = n.rows[:0]
	for {
		row, err := ExecProcNode(n.Child, n.es)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		n.rows = append(n.rows, row)
	}
	n.materialized = true
	n.pos = 0
	return nil
}

func (n *MaterialNode) Exec() (tuple.Row, error) {
	if !n.materialized {
		if err := n.materialize(); err != nil {
			return nil, err
		}
	}
	if n.pos >= len(n.rows) {
		return nil, io.EOF
	}
	row := n.rows[n.pos]
	n.pos++
	return row, nil
}

func (n *MaterialNode) End() error { return nil }

// ReScan replays the already-materialized rows from the start without
// re-driving Child, per spec.md §4.7's description of Material's purpose:
// letting an expensive subplan (e.g. the inner of a nested loop) be scanned
// repeatedly at the cost of one pass.
func (n *MaterialNode) ReScan() error {
	if !n.materialized {
		return n.Child.ReScan()
	}
	n.pos = 0
	return nil
}

// Rematerialize forces a fresh pull from Child, discarding any previously
// materialized rows; used when the child's parameters have actually changed
// (ChgParam), as opposed to a plain ReScan replay.
func (n *MaterialNode) Rematerialize() error {
	n.materialized = false
	if err := n.Child.ReScan(); err != nil {
		return err
	}
	return n.materialize()
}
