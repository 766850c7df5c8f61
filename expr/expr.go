package expr

import (
	"github.com/weaverdb/weaverdb-sub001/errs"
)

// Expr is the common interface implemented by every expression node.
// Eval returns (value, isDone, err): isDone is true when a scalar
// expression terminates and false while a set-returning function still has
// rows to emit, per spec.md §4.6.
type Expr interface {
	Eval(ctx *Context) (value interface{}, isDone bool, err error)
	String() string
}

// Var references an attribute of one of the scan/inner/outer tuples in
// scope.
type Var struct {
	// Which selects which of ctx.Scan/Inner/Outer this Var reads from.
	Which  VarSource
	Attno  int
	Name   string
}

type VarSource int

const (
	VarScan VarSource = iota
	VarInner
	VarOuter
)

func (v *Var) String() string { return v.Name }

func (v *Var) Eval(ctx *Context) (interface{}, bool, error) {
	row := v.sourceRow(ctx)
	if row == nil {
		return nil, true, errs.Internal.New("var eval: source slot is empty")
	}
	if v.Attno < 0 || v.Attno >= len(row) {
		return nil, true, errs.NoSuchAttribute.New(v.Attno)
	}
	return row[v.Attno], true, nil
}

func (v *Var) sourceRow(ctx *Context) []interface{} {
	switch v.Which {
	case VarInner:
		if ctx.Inner == nil {
			return nil
		}
		return ctx.Inner.Tuple()
	case VarOuter:
		if ctx.Outer == nil {
			return nil
		}
		return ctx.Outer.Tuple()
	default:
		if ctx.Scan == nil {
			return nil
		}
		return ctx.Scan.Tuple()
	}
}

// Const is a literal value.
type Const struct {
	Value   interface{}
	IsNull  bool
	TypeOID uint32
}

func (c *Const) String() string {
	if c.IsNull {
		return "NULL"
	}
	return "const"
}

func (c *Const) Eval(ctx *Context) (interface{}, bool, error) {
	if c.IsNull {
		return nil, true, nil
	}
	return c.Value, true, nil
}

// Param reads an external bind parameter, positional or named.
type Param struct {
	Index int    // 1-based; 0 means use Name
	Name  string
}

func (p *Param) String() string {
	if p.Name != "" {
		return ":" + p.Name
	}
	return "$param"
}

func (p *Param) Eval(ctx *Context) (interface{}, bool, error) {
	var bound BoundParam
	if p.Name != "" {
		v, ok := ctx.Params.GetNamed(p.Name)
		if !ok {
			return nil, true, errs.ArgumentOutOfRange.New(p.Name, 0)
		}
		bound = v
	} else {
		v, ok := ctx.Params.Get(p.Index)
		if !ok {
			return nil, true, errs.ArgumentOutOfRange.New(p.Index, len(ctx.Params.Positional))
		}
		bound = v
	}
	if bound.IsNull {
		return nil, true, nil
	}
	return bound.Value, true, nil
}

// ExecParamRef reads an executor-internal PARAM_EXEC slot (a memoized
// correlated SubPlan result).
type ExecParamRef struct {
	Slot int
}

func (e *ExecParamRef) String() string { return "$exec_param" }

func (e *ExecParamRef) Eval(ctx *Context) (interface{}, bool, error) {
	if e.Slot < 0 || e.Slot >= len(ctx.ExecParams) {
		return nil, true, errs.ArgumentOutOfRange.New(e.Slot, len(ctx.ExecParams))
	}
	p := ctx.ExecParams[e.Slot]
	if !p.Set {
		return nil, true, errs.Internal.New("PARAM_EXEC slot %d read before SubPlan evaluation", e.Slot)
	}
	if p.IsNull {
		return nil, true, nil
	}
	return p.Value, true, nil
}

// RelabelType wraps a sub-expression to change its reported type without
// changing its evaluated value (a no-op cast, e.g. varchar -> text).
type RelabelType struct {
	Arg     Expr
	TypeOID uint32
}

func (r *RelabelType) String() string { return "relabel(" + r.Arg.String() + ")" }

func (r *RelabelType) Eval(ctx *Context) (interface{}, bool, error) {
	return r.Arg.Eval(ctx)
}
