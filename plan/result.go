package plan

import (
	"io"

	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// ResultNode projects a target list with no underlying scan (e.g. `SELECT
// 1+1`), optionally gated by a one-time qual (a constant-folded "resconstantqual").
// It emits exactly one row unless Qual evaluates false, then io.EOF.
type ResultNode struct {
	base
	Proj    expr.TargetList
	Qual    []expr.Expr
	Desc    *tuple.Descriptor

	ectx *expr.Context
	done bool
}

func NewResult(desc *tuple.Descriptor, qual []expr.Expr, proj expr.TargetList) *ResultNode {
	return &ResultNode{Desc: desc, Qual: qual, Proj: proj}
}

func (n *ResultNode) CountSlots() int { return 0 }

func (n *ResultNode) Init(es *EState) error {
	n.es = es
	n.ectx = es.NewExprContext()
	return nil
}

func (n *ResultNode) Exec() (tuple.Row, error) {
	if n.done {
		return nil, io.EOF
	}
	n.done = true

	if len(n.Qual) > 0 {
		ok, err := expr.EvalQual(n.ectx, n.Qual, false)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, io.EOF
		}
	}
	out, _, err := expr.ExecTargetList(n.ectx, n.Proj)
	return tuple.Row(out), err
}

func (n *ResultNode) End() error { return nil }

func (n *ResultNode) ReScan() error {
	n.done = false
	return nil
}

// AppendNode concatenates the output of each child plan in order, used for
// UNION ALL and partitioned-table scans.
type AppendNode struct {
	base
	cur int
}

func NewAppend(children ...Node) *AppendNode {
	return &AppendNode{base: base{children: children}}
}

func (n *AppendNode) CountSlots() int { return 0 }

func (n *AppendNode) Init(es *EState) error {
	n.es = es
	return nil
}

func (n *AppendNode) Exec() (tuple.Row, error) {
	for n.cur < len(n.children) {
		row, err := ExecProcNode(n.children[n.cur], n.es)
		if err == io.EOF {
			n.cur++
			continue
		}
		if err != nil {
			return nil, err
		}
		return row, nil
	}
	return nil, io.EOF
}

func (n *AppendNode) End() error { return nil }

func (n *AppendNode) ReScan() error {
	n.cur = 0
	for _, c := range n.children {
		if err := c.ReScan(); err != nil {
			return err
		}
	}
	return nil
}
