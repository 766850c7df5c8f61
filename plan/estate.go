// Package plan implements the executor pipeline of spec.md §4.3/§4.4/§4.7
// (component C5): a pull-based tree of plan nodes, each with
// Init/Exec/End/ReScan/CountSlots, dispatched by ExecProcNode, sharing one
// EState per top-level query.
package plan

import (
	"io"

	"github.com/weaverdb/weaverdb-sub001/errs"
	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// Snapshot is the visibility cut a scan evaluates tuples against. It is
// opaque to this package; access methods and the session package are the
// only things that interpret it.
type Snapshot interface {
	// Visible reports whether the tuple at tid, with the given xmin/xmax
	// transaction ids, is visible under this snapshot. The concrete xid
	// type is left to the storage layer (out of scope per spec.md §1); this
	// package only needs a yes/no decision per candidate tuple.
	Visible(xmin, xmax uint64) bool
}

// EState is the per-top-level-query root described in spec.md §3: shared
// direction, range table, parameter lists, snapshot, tuple table, and
// bookkeeping counters.
type EState struct {
	Dir Direction

	RangeTable []RangeTableEntry
	Snapshot   Snapshot

	TupleTable *tuple.Table
	Arena      *tuple.Arena

	Params     *expr.ParamList
	ExecParams []expr.ExecParam

	ProcessedCount int64
	LastOID        uint64
	nextNodeID     int

	// PlanQual holds the EPQ replacement tuple for a given range-table
	// index, installed when a concurrent UPDATE/DELETE needs to re-check a
	// row against a newer version (spec.md §4.4 PlanQual bypass, glossary
	// "PlanQual (EPQ)").
	PlanQual map[int]tuple.Row

	// Cancelled is polled by CheckForCancel at every ExecProcNode entry and
	// other checkpoints (spec.md §5). It is set by the owning
	// session.Connection on Cancel(); this package only reads it.
	Cancelled func() bool
}

// Direction mirrors access.Direction without importing the access package,
// since EState is used by nodes that don't all need the index facade.
type Direction int

const (
	Forward Direction = iota
	Backward
	NoMovement
)

// RangeTableEntry is one relation reference, indexed 1-based by plan nodes
// (spec.md glossary "Range table").
type RangeTableEntry struct {
	RelOID uint32
	Name   string
	Desc   *tuple.Descriptor
}

// NewEState creates an EState with n PARAM_EXEC slots.
func NewEState(arena *tuple.Arena, execParams int) *EState {
	return &EState{
		Arena:      arena,
		TupleTable: tuple.NewTable(arena),
		ExecParams: make([]expr.ExecParam, execParams),
		PlanQual:   make(map[int]tuple.Row),
		Cancelled:  func() bool { return false },
	}
}

func (es *EState) nextID() int {
	es.nextNodeID++
	return es.nextNodeID
}

// CheckForCancel is polled at every ExecProcNode entry (spec.md §5). It
// returns an *errs.Error of kind Cancelled if the owning connection has
// requested cancellation.
func (es *EState) CheckForCancel() error {
	if es.Cancelled != nil && es.Cancelled() {
		return errs.Cancelled.New()
	}
	return nil
}

// NewExprContext builds an expr.Context sharing this EState's parameter
// lists and a fresh per-tuple arena child, for use by one plan node.
func (es *EState) NewExprContext() *expr.Context {
	ctx := expr.NewContext(es.Arena.Child("per-tuple"), len(es.ExecParams))
	ctx.Params = es.Params
	ctx.ExecParams = es.ExecParams
	return ctx
}

// RowIter is the pull-based row source every plan node Exec ultimately
// implements, matching spec.md Testable Property 2's "repeated Exec until
// null" contract. io.EOF signals exhaustion, following the teacher's
// sql.RowIter (Next(ctx) (Row, error)) convention.
type RowIter interface {
	Next() (tuple.Row, error)
	Close() error
}

var errEOF = io.EOF

// errRowLimitExceeded is returned by SortNode (and any other node with a
// buffering cap) when its MaxRows bound is hit before the child is
// exhausted.
var errRowLimitExceeded = errs.Internal.New("row buffer limit exceeded")
