// Package spi implements the Server Programming Interface of spec.md §4.9
// (component C7): a stack of nested sub-executor frames that a function or
// trigger body opens to run its own queries without disturbing the caller's
// in-flight executor state, grounded directly on
// mtpgsql/src/backend/executor/spi.c.
//
// Each Stack is bound to one session.Connection (the host transaction) and
// shares its transaction id, snapshot, and cancellation flag; a Frame owns
// its own procedure/execution arenas, saved plans, and open cursors, all torn
// down together by Finish (or forcibly, by ForceTeardown, at transaction
// end).
package spi

import (
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/weaverdb/weaverdb-sub001/errs"
	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/plan"
	"github.com/weaverdb/weaverdb-sub001/session"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// DefaultMaxNestingDepth bounds SPI recursion where the original has no hard
// limit (it grows _SPI_stack by realloc indefinitely); an unbounded native
// stack of nested Go calls risks a real stack overflow instead, so this core
// enforces a practical bound (SUPPLEMENTED FEATURES #6, an Open Question
// resolution: no bound was named in the distilled spec).
const DefaultMaxNestingDepth = 64

// SavedPlan is a planned statement kept across Frame boundaries by SavePlan,
// grounded on _SPI_plan / SPI_saveplan.
type SavedPlan struct {
	Text       string
	ParamTypes []uint32
	result     session.PlanResult
}

// Cursor is one open SPI cursor, grounded on spi.c's Portal-backed
// cursor_open/fetch/move/close surface. ScanSnapshot is captured at
// CursorOpen and reused by every Fetch/Move, per spec.md §4.9: "A scan
// command id is saved at cursor open and restored at each fetch so all
// fetches see the same snapshot of command visibility as the cursor
// declaration."
type Cursor struct {
	Name         string
	node         plan.Node
	es           *plan.EState
	ScanSnapshot plan.Snapshot
	done         bool
}

// Frame is one SPI_connect/SPI_finish nesting level: its own procedure and
// execution arenas (reset together on Finish), saved plans, and open
// cursors, grounded on _SPI_connection.
type Frame struct {
	id        int
	stack     *Stack
	ProcArena *tuple.Arena
	ExecArena *tuple.Arena

	cursors map[string]*Cursor

	LastOID   uint64
	Processed int64
}

// Stack is the per-connection SPI nesting stack, grounded on spi.c's
// InternalSPIInfo (_SPI_stack / _SPI_connected / _SPI_curid).
type Stack struct {
	mu    sync.Mutex
	conn  *session.Connection
	owner session.OwnerToken

	frames   []*Frame
	hidden   []int // depths pushed by Push, restored by Pop
	maxDepth int
	nextID   int
}

// NewStack binds a new SPI stack to conn, authenticated by tok (conn's
// current transaction owner). maxDepth <= 0 uses DefaultMaxNestingDepth.
func NewStack(conn *session.Connection, tok session.OwnerToken, maxDepth int) *Stack {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxNestingDepth
	}
	return &Stack{conn: conn, owner: tok, maxDepth: maxDepth}
}

// Connect pushes a new Frame, grounded on SPI_connect's
// _SPI_connected++/_SPI_stack realloc.
func (s *Stack) Connect() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) >= s.maxDepth {
		return nil, errs.Internal.New(fmt.Sprintf("spi: nesting depth %d exceeded", s.maxDepth))
	}
	s.nextID++
	f := &Frame{
		id:        s.nextID,
		stack:     s,
		ProcArena: tuple.NewArena(fmt.Sprintf("spi-proc-%d", s.nextID)),
		ExecArena: tuple.NewArena(fmt.Sprintf("spi-exec-%d", s.nextID)),
		cursors:   make(map[string]*Cursor),
	}
	s.frames = append(s.frames, f)
	return f, nil
}

// Finish tears down f and any frame still open above it, grounded on
// SPI_finish's _SPI_connected--/_SPI_curid--. Callers are expected to Finish
// in LIFO order (as the original requires); tearing down everything above f
// keeps a skipped Finish from leaking a dangling frame instead of corrupting
// the stack.
func (s *Stack) Finish(f *Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(f)
	if idx < 0 {
		return errs.ContextValid.New("spi: frame not connected")
	}
	var result *multierror.Error
	for i := len(s.frames) - 1; i >= idx; i-- {
		if err := s.frames[i].teardown(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.frames = s.frames[:idx]
	return result.ErrorOrNil()
}

func (s *Stack) indexOf(f *Frame) int {
	for i, fr := range s.frames {
		if fr == f {
			return i
		}
	}
	return -1
}

// Push hides the current frame from Current without tearing it down,
// grounded on SPI_push: used before calling into code that might itself
// Connect and must not see this frame as its caller.
func (s *Stack) Push() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden = append(s.hidden, len(s.frames))
}

// Pop restores visibility hidden by the matching Push, grounded on SPI_pop.
func (s *Stack) Pop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.hidden) > 0 {
		s.hidden = s.hidden[:len(s.hidden)-1]
	}
}

// Current returns the innermost visible frame, or nil if none is connected
// or the top frame is currently hidden by Push.
func (s *Stack) Current() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.hidden) > 0 || len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// Depth reports how many frames are currently connected.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// ForceTeardown tears down every open frame regardless of LIFO discipline,
// grounded on spi.c's end-of-transaction reset (AtEOXact_SPI): "SPI state is
// forcibly reset at transaction commit or abort" (spec.md §4.9). Called by
// the owning session.Connection from Commit/Rollback.
func (s *Stack) ForceTeardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result *multierror.Error
	for i := len(s.frames) - 1; i >= 0; i-- {
		if err := s.frames[i].teardown(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.frames = nil
	s.hidden = nil
	return result.ErrorOrNil()
}

func (f *Frame) teardown() error {
	var result *multierror.Error
	for name, c := range f.cursors {
		if c.node != nil {
			if err := plan.EndTree(c.node); err != nil {
				result = multierror.Append(result, fmt.Errorf("cursor %s: %w", name, err))
			}
		}
	}
	f.cursors = nil
	f.ProcArena.Destroy()
	f.ExecArena.Destroy()
	return result.ErrorOrNil()
}

func (f *Frame) newEState(paramCount int) *plan.EState {
	es := plan.NewEState(f.ExecArena.Child("spi-query"), paramCount)
	es.Snapshot = f.stack.conn.CurrentSnapshot()
	es.Cancelled = f.stack.conn.CheckCancelled
	return es
}

func (f *Frame) plan(sql string, paramTypes []uint32) (session.PlanResult, error) {
	planner := f.stack.conn.Planner()
	return planner.Plan(sql, paramTypes)
}

// Exec plans and fully drains sql in one call, grounded on SPI_exec, which
// takes raw text (no saved plan) and runs it to completion. tcount caps the
// number of rows processed (0 means unbounded), mirroring SPI_exec's tcount
// argument.
func (f *Frame) Exec(sql string, tcount int) ([]tuple.Row, error) {
	res, err := f.plan(sql, nil)
	if err != nil {
		return nil, err
	}
	return f.run(res, nil, tcount)
}

// Prepare plans sql without running it, grounded on SPI_prepare.
func (f *Frame) Prepare(sql string, paramTypes []uint32) (*SavedPlan, error) {
	res, err := f.plan(sql, paramTypes)
	if err != nil {
		return nil, err
	}
	return &SavedPlan{Text: sql, ParamTypes: paramTypes, result: res}, nil
}

// Execp runs a previously Prepared plan with bound parameter values,
// grounded on SPI_execp/SPI_execute_plan.
func (f *Frame) Execp(sp *SavedPlan, values []interface{}, tcount int) ([]tuple.Row, error) {
	params := &expr.ParamList{Positional: make([]expr.BoundParam, len(values))}
	for i, v := range values {
		var typeOID uint32
		if i < len(sp.ParamTypes) {
			typeOID = sp.ParamTypes[i]
		}
		params.Positional[i] = expr.BoundParam{Type: typeOID, Value: v, IsNull: v == nil}
	}
	return f.run(sp.result, params, tcount)
}

func (f *Frame) run(res session.PlanResult, params *expr.ParamList, tcount int) ([]tuple.Row, error) {
	paramCount := 0
	if params != nil {
		paramCount = len(params.Positional)
	}
	es := f.newEState(paramCount)
	es.Params = params
	if err := plan.InitTree(res.Node, es); err != nil {
		return nil, err
	}
	defer plan.EndTree(res.Node)
	// A SavedPlan's Node may already have been driven to completion by an
	// earlier Exec/Execp call on the same *SavedPlan (the whole point of
	// SPI_saveplan); ReScan forces a fresh pass regardless, grounded on
	// ExecutorRewind's re-entry into an already-built PlanState.
	if err := res.Node.ReScan(); err != nil {
		return nil, err
	}

	var rows []tuple.Row
	for tcount <= 0 || len(rows) < tcount {
		row, err := plan.ExecProcNode(res.Node, es)
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
		f.Processed++
	}
	return rows, nil
}

// SavePlan marks sp as surviving this Frame's teardown, grounded on
// SPI_saveplan. The original physically moves the plan's allocations into a
// longer-lived memory context so it survives SPI_finish; this core's
// SavedPlan carries no arena-scoped state of its own (its session.PlanResult
// was already built by the external Planner), so SavePlan is the identity:
// callers are free to keep using sp after Finish without re-Preparing.
func (f *Frame) SavePlan(sp *SavedPlan) *SavedPlan { return sp }

// FreePlan discards a saved plan, grounded on SPI_freeplan. Go's GC reclaims
// sp once the caller drops its reference; FreePlan exists so callers ported
// from the original's explicit free-then-NULL discipline have somewhere to
// put that call.
func (f *Frame) FreePlan(sp *SavedPlan) {}

// CursorOpen plans sql, runs it to the point of producing rows, and
// registers it under name for CursorFetch/CursorMove/CursorClose, grounded
// on SPI_cursor_open.
func (f *Frame) CursorOpen(name string, sql string, paramTypes []uint32, values []interface{}) (*Cursor, error) {
	res, err := f.plan(sql, paramTypes)
	if err != nil {
		return nil, err
	}
	params := &expr.ParamList{Positional: make([]expr.BoundParam, len(values))}
	for i, v := range values {
		var typeOID uint32
		if i < len(paramTypes) {
			typeOID = paramTypes[i]
		}
		params.Positional[i] = expr.BoundParam{Type: typeOID, Value: v, IsNull: v == nil}
	}

	es := f.newEState(len(values))
	es.Params = params
	if err := plan.InitTree(res.Node, es); err != nil {
		return nil, err
	}
	c := &Cursor{Name: name, node: res.Node, es: es, ScanSnapshot: es.Snapshot}
	f.cursors[name] = c
	return c, nil
}

// CursorFetch pulls up to count rows (count <= 0 means one row, matching
// SPI_cursor_fetch's default), restoring the cursor's saved scan snapshot
// before each pull so every fetch sees the visibility the cursor was opened
// under, per spec.md §4.9.
func (f *Frame) CursorFetch(c *Cursor, count int) ([]tuple.Row, error) {
	return f.cursorPull(c, count, true)
}

// CursorMove advances the cursor count rows without returning them,
// grounded on SPI_cursor_move.
func (f *Frame) CursorMove(c *Cursor, count int) error {
	_, err := f.cursorPull(c, count, false)
	return err
}

func (f *Frame) cursorPull(c *Cursor, count int, collect bool) ([]tuple.Row, error) {
	if count < 0 {
		// Reverse fetch/move over a plan this core can't safely replay
		// backward (spec.md §9 Open Question: "cursor move/fetch in
		// reverse direction... implementations should either reject or
		// require a top-of-plan Material/Sort"). This core rejects
		// uniformly rather than exposing a partial backward-seek surface
		// on plan.Node that nothing else needs.
		return nil, errs.Internal.New("cursor is not scrollable")
	}
	if count == 0 {
		count = 1
	}
	c.es.Snapshot = c.ScanSnapshot
	var rows []tuple.Row
	for i := 0; i < count; i++ {
		if c.done {
			break
		}
		row, err := plan.ExecProcNode(c.node, c.es)
		if err == io.EOF {
			c.done = true
			break
		}
		if err != nil {
			return rows, err
		}
		if collect {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// CursorClose releases a cursor's resources, grounded on SPI_cursor_close.
func (f *Frame) CursorClose(name string) error {
	c, ok := f.cursors[name]
	if !ok {
		return errs.ContextValid.New("spi: no such cursor " + name)
	}
	delete(f.cursors, name)
	return plan.EndTree(c.node)
}
