package plan

import (
	"io"

	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// GroupMode names GroupNode's two reporting behaviors, per SUPPLEMENTED
// FEATURES #4 (nodeGroup.c's dual reporting mode). GroupNode records it in
// Mode but does not read it: Exec always reports ModeFinalGroup and
// ExecBoundary always reports ModeAllWithBoundary.
type GroupMode int

const (
	// ModeFinalGroup emits exactly one representative row per group (the
	// first row of each run), matching the original's MODE_FINALGROUP.
	ModeFinalGroup GroupMode = iota
	// ModeAllWithBoundary emits every input row, tagging the first row of
	// each new group so a downstream Agg node knows when to finalize and
	// reset its running aggregate state.
	ModeAllWithBoundary
)

// GroupBoundary pairs a row with whether it is the first row of its group,
// returned by GroupNode.ExecBoundary in ModeAllWithBoundary.
type GroupBoundary struct {
	Row      tuple.Row
	NewGroup bool
}

// GroupNode assumes Child's output is already sorted on the grouping
// columns and partitions it into runs using Cmp, per spec.md §4.7. It keeps
// a one-row lookahead buffer so it can detect a group boundary before
// deciding what to return.
type GroupNode struct {
	base
	Child Node
	Key   func(tuple.Row) tuple.Row
	Cmp   Compare
	Mode  GroupMode

	next     tuple.Row
	nextKey  tuple.Row
	haveNext bool
	eof      bool
	started  bool
	lastKey  tuple.Row
}

func NewGroup(child Node, key func(tuple.Row) tuple.Row, cmp Compare, mode GroupMode) *GroupNode {
	return &GroupNode{base: base{children: []Node{child}}, Child: child, Key: key, Cmp: cmp, Mode: mode}
}

func (n *GroupNode) CountSlots() int { return 0 }

func (n *GroupNode) Init(es *EState) error {
	n.es = es
	return nil
}

func (n *GroupNode) advance() error {
	row, err := ExecProcNode(n.Child, n.es)
	if err == io.EOF {
		n.haveNext = false
		n.eof = true
		return nil
	}
	if err != nil {
		return err
	}
	n.next = row
	n.nextKey = n.Key(row)
	n.haveNext = true
	return nil
}

func (n *GroupNode) ensureStarted() error {
	if n.started {
		return nil
	}
	n.started = true
	return n.advance()
}

// Exec implements ModeFinalGroup: exactly one row per group, regardless of
// which GroupMode the node was constructed with (ModeAllWithBoundary
// callers should use ExecBoundary instead).
func (n *GroupNode) Exec() (tuple.Row, error) {
	if err := n.ensureStarted(); err != nil {
		return nil, err
	}
	if !n.haveNext {
		return nil, io.EOF
	}
	result := n.next
	groupKey := n.nextKey
	for {
		if err := n.advance(); err != nil {
			return nil, err
		}
		if !n.haveNext || n.Cmp(n.nextKey, groupKey) != 0 {
			break
		}
	}
	return result, nil
}

// ExecBoundary returns every input row, tagging NewGroup for the first row
// of each run (per SUPPLEMENTED FEATURES #4's all-rows-plus-boundary mode).
func (n *GroupNode) ExecBoundary() (*GroupBoundary, error) {
	if err := n.ensureStarted(); err != nil {
		return nil, err
	}
	if !n.haveNext {
		return nil, io.EOF
	}
	row := n.next
	key := n.nextKey
	newGroup := n.lastKey == nil || n.Cmp(key, n.lastKey) != 0
	n.lastKey = key
	if err := n.advance(); err != nil {
		return nil, err
	}
	return &GroupBoundary{Row: row, NewGroup: newGroup}, nil
}

func (n *GroupNode) End() error { return nil }

func (n *GroupNode) ReScan() error {
	n.started = false
	n.haveNext = false
	n.eof = false
	n.lastKey = nil
	return n.Child.ReScan()
}
