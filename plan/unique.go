package plan

import (
	"io"

	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// UniqueNode assumes Child's output is already sorted on Key and drops
// consecutive duplicates (SELECT DISTINCT over a sorted input), per
// spec.md §4.7.
type UniqueNode struct {
	base
	Child Node
	Key   func(tuple.Row) tuple.Row
	Cmp   Compare

	haveLast bool
	lastKey  tuple.Row
}

func NewUnique(child Node, key func(tuple.Row) tuple.Row, cmp Compare) *UniqueNode {
	return &UniqueNode{base: base{children: []Node{child}}, Child: child, Key: key, Cmp: cmp}
}

func (n *UniqueNode) CountSlots() int { return 0 }

func (n *UniqueNode) Init(es *EState) error {
	n.es = es
	return nil
}

func (n *UniqueNode) Exec() (tuple.Row, error) {
	for {
		row, err := ExecProcNode(n.Child, n.es)
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		key := n.Key(row)
		if n.haveLast && n.Cmp(key, n.lastKey) == 0 {
			continue
		}
		n.haveLast = true
		n.lastKey = key
		return row, nil
	}
}

func (n *UniqueNode) End() error { return nil }

func (n *UniqueNode) ReScan() error {
	n.haveLast = false
	return n.Child.ReScan()
}
