// Package expr implements the expression evaluator of spec.md §4.6
// (component C2): a recursive Eval over a small Expr node algebra, evaluated
// against a per-plan-node ExprContext.
package expr

import (
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// ParamList holds positional and named external parameters bound to a
// prepared plan (spec.md §3 "Expression Context").
type ParamList struct {
	Positional []BoundParam
	Named      map[string]BoundParam
}

// BoundParam is one bound external parameter's current value.
type BoundParam struct {
	Type   uint32
	Value  interface{}
	IsNull bool
}

// Get returns a positional parameter (1-based, matching $1/$2 convention).
func (p *ParamList) Get(i int) (BoundParam, bool) {
	if p == nil || i < 1 || i > len(p.Positional) {
		return BoundParam{}, false
	}
	return p.Positional[i-1], true
}

// GetNamed returns a named parameter.
func (p *ParamList) GetNamed(name string) (BoundParam, bool) {
	if p == nil || p.Named == nil {
		return BoundParam{}, false
	}
	v, ok := p.Named[name]
	return v, ok
}

// ExecParam holds an executor-internal PARAM_EXEC slot: the memoized result
// of a correlated SubPlan, set by the owning SubPlanExpr before its parent
// scan resumes.
type ExecParam struct {
	Value  interface{}
	IsNull bool
	Set    bool
}

// Context is the per-plan-node evaluation environment of spec.md §3
// "Expression Context": the tuple slots currently in scope, the parameter
// lists, the aggregate accumulator vectors, and a per-tuple arena.
type Context struct {
	Inner *tuple.Slot
	Outer *tuple.Slot
	Scan  *tuple.Slot

	Params     *ParamList
	ExecParams []ExecParam

	AggValues []interface{}
	AggNulls  []bool

	RelationOID uint32
	Arena       *tuple.Arena

	// SubPlanEval, when set, lets a SubPlanExpr re-enter the executor to run
	// a correlated subquery; it is a hook rather than a direct call to avoid
	// an import cycle between expr and plan. Nothing in this module sets it.
	SubPlanEval func(ctx *Context, planID int, correlated []interface{}) (interface{}, bool, error)
}

// NewContext creates an evaluation context with n PARAM_EXEC slots.
func NewContext(arena *tuple.Arena, execParams int) *Context {
	return &Context{
		ExecParams: make([]ExecParam, execParams),
		Arena:      arena,
	}
}

// ResetPerTuple resets the per-tuple arena, invalidating any values computed
// during the previous tuple's evaluation (mirrors ResetExprContext between
// ExecScan iterations).
func (c *Context) ResetPerTuple() {
	c.Arena.Reset()
}
