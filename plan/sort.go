package plan

import (
	"io"
	"sort"

	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// SortNode materializes its child's entire output, orders it by Cmp, and
// replays it in order. Real external-sort spill-to-tempfile (as the
// original's tuplesort.c does once WorkMem is exceeded) is out of scope for
// this in-memory reference implementation; MaxRows bounds how many rows it
// will buffer before returning an error, so callers needing true external
// sort wire their own spilling Node in front of this one.
type SortNode struct {
	base
	Child Node
	Cmp   Compare
	Desc  bool
	MaxRows int

	rows   []tuple.Row
	sorted bool
	pos    int
}

func NewSort(child Node, cmp Compare, desc bool, maxRows int) *SortNode {
	return &SortNode{base: base{children: []Node{child}}, Child: child, Cmp: cmp, Desc: desc, MaxRows: maxRows}
}

func (n *SortNode) CountSlots() int { return 0 }

func (n *SortNode) Init(es *EState) error {
	n.es = es
	return nil
}

func (n *SortNode) load() error {
	n.rows = n.rows[:0]
	for {
		row, err := ExecProcNode(n.Child, n.es)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if n.MaxRows > 0 && len(n.rows) >= n.MaxRows {
			return errRowLimitExceeded
		}
		n.rows = append(n.rows, row)
	}
	less := func(i, j int) bool {
		c := n.Cmp(n.rows[i], n.rows[j])
		if n.Desc {
			return c > 0
		}
		return c < 0
	}
	sort.SliceStable(n.rows, less)
	n.sorted = true
	n.pos = 0
	return nil
}

func (n *SortNode) Exec() (tuple.Row, error) {
	if !n.sorted {
		if err := n.load(); err != nil {
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

func (n *SortNode) End() error { return nil }

func (n *SortNode) ReScan() error {
	n.sorted = false
	return n.Child.ReScan()
}
