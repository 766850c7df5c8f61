package plan

import (
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// Node is implemented by every plan node tag, per spec.md §4.3: Init is
// called bottom-up once before execution; Exec is pulled repeatedly;
// ReScan propagates a parameter change down the subtree; End releases
// resources; CountSlots reports how many TupleTable slots this node (not
// including children) needs, used to size the table before Init runs.
type Node interface {
	// Init binds the node to its shared EState, allocating any slots it
	// needs from es.TupleTable (which must already be Reserve'd). Init is
	// called bottom-up across the plan tree as returned by Children().
	Init(es *EState) error
	// Exec pulls the next output tuple, or returns io.EOF when exhausted.
	Exec() (tuple.Row, error)
	// End releases the node's resources (open scans, spill files, etc).
	End() error
	// ReScan rebinds the node for a fresh pass. It takes no arguments.
	ReScan() error
	// CountSlots returns how many TupleTable slots this node allocates.
	CountSlots() int
	// Children returns the node's plan-tree children, for generic
	// tree walks (Init propagation, Explain printing, chgParam fan-out).
	Children() []Node
	// ChgParam reports whether an external parameter this node depends on
	// has changed since the last Exec pass, per spec.md §4.3: ExecProcNode
	// calls ReScan when true.
	ChgParam() bool
	// ClearChgParam resets the chgParam flag after ReScan has run.
	ClearChgParam()
	// SetChgParam marks this node alone as needing a ReScan; ancestors are
	// not marked.
	SetChgParam()
}

// base implements the ChgParam bookkeeping and Children storage shared by
// every concrete node, matching the teacher's convention of small embeddable
// base structs (c.f. sql/plan's UnaryNode/BinaryNode helpers).
type base struct {
	children []Node
	chgParam bool
	es       *EState
}

func (b *base) Children() []Node      { return b.children }
func (b *base) ChgParam() bool        { return b.chgParam }
func (b *base) ClearChgParam()        { b.chgParam = false }
func (b *base) SetChgParam()          { b.chgParam = true }
func (b *base) EState() *EState       { return b.es }

// ExecProcNode is the canonical pull described in spec.md §4.3: check
// cancellation, propagate a pending parameter change via ReScan, then Exec.
func ExecProcNode(n Node, es *EState) (tuple.Row, error) {
	if err := es.CheckForCancel(); err != nil {
		return nil, err
	}
	if n.ChgParam() {
		if err := n.ReScan(); err != nil {
			return nil, err
		}
		n.ClearChgParam()
	}
	return n.Exec()
}

// InitTree reserves the TupleTable sized to the tree's total CountSlots,
// then initializes the whole plan rooted at n bottom-up, per spec.md §4.3
// ("the table is NEVER grown after planning"). InitTree is the single entry
// point a caller (session.Connection or spi.Frame) uses to prepare a plan
// for execution.
func InitTree(n Node, es *EState) error {
	total := countSlotsTree(n)
	es.TupleTable.Reserve(total)
	return initTree(n, es)
}

func countSlotsTree(n Node) int {
	total := n.CountSlots()
	for _, c := range n.Children() {
		total += countSlotsTree(c)
	}
	return total
}

func initTree(n Node, es *EState) error {
	for _, c := range n.Children() {
		if err := initTree(c, es); err != nil {
			return err
		}
	}
	return n.Init(es)
}

// EndTree tears down the whole plan tree bottom-up, collecting (but not
// stopping on) per-node End errors, since every node must release its
// pins/files regardless of a sibling's failure.
func EndTree(n Node) error {
	var firstErr error
	for _, c := range n.Children() {
		if err := EndTree(c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := n.End(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
