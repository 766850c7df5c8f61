package expr

import (
	"github.com/weaverdb/weaverdb-sub001/errs"
)

// Language identifies which call convention a function uses, per spec.md
// §4.6.
type Language int

const (
	LangNative  Language = iota // native Go function, called via NativeFunc descriptor
	LangSQL                     // SQL-language function body, re-enters via SubPlanEval/SPI
	LangExternal                // out-of-scope VM bridge (e.g. the Java boundary)
)

// NativeFunc is a function-manager descriptor for a LangNative call: a
// type-tagged argument array in, one value out. isDone is false while the
// function still has rows to emit (a set-returning function).
type NativeFunc func(args []interface{}) (value interface{}, isDone bool, err error)

// ExternalFunction is the call boundary spec.md §4.6 requires be preserved
// for Java-language functions without being implemented (an explicit Open
// Question per SPEC_FULL.md). It is never invoked by this package; it exists
// so a host can register one without this package knowing anything about
// the target VM.
type ExternalFunction interface {
	Invoke(args []interface{}) (value interface{}, isDone bool, err error)
}

// FuncCall evaluates a function call, routing on Lang as spec.md §4.6
// describes. Args are evaluated via EvalArgs (SPEC_FULL.md supplemented
// feature #2): left to right into a fixed array, with isDone only
// meaningful for the last argument.
type FuncCall struct {
	Name     string
	Lang     Language
	Args     []Expr
	Native   NativeFunc
	External ExternalFunction
}

func (f *FuncCall) String() string { return f.Name + "(...)" }

// EvalArgs evaluates args left to right, matching mtpgsql's
// ExecEvalFuncArgs: every argument but the last must terminate (isDone
// true); only the last argument's isDone is returned, since only a
// set-returning function may legitimately appear as the final argument of a
// target list.
func EvalArgs(ctx *Context, args []Expr) ([]interface{}, bool, error) {
	values := make([]interface{}, len(args))
	lastDone := true
	for i, a := range args {
		v, done, err := a.Eval(ctx)
		if err != nil {
			return nil, true, err
		}
		if i < len(args)-1 && !done {
			return nil, true, errs.Internal.New("set-returning expression not allowed except as final argument")
		}
		values[i] = v
		lastDone = done
	}
	return values, lastDone, nil
}

func (f *FuncCall) Eval(ctx *Context) (interface{}, bool, error) {
	args, done, err := EvalArgs(ctx, f.Args)
	if err != nil {
		return nil, true, err
	}

	switch f.Lang {
	case LangNative:
		if f.Native == nil {
			return nil, true, errs.Internal.New("function %s has no native descriptor", f.Name)
		}
		v, fdone, err := f.Native(args)
		// a set-returning function argument not finishing takes precedence;
		// otherwise the function's own isDone governs.
		if !done {
			return v, false, err
		}
		return v, fdone, err
	case LangSQL:
		if ctx.SubPlanEval == nil {
			return nil, true, errs.Internal.New("SQL-language function %s requires SPI re-entry, none configured", f.Name)
		}
		v, sdone, err := ctx.SubPlanEval(ctx, -1, args)
		return v, sdone, err
	case LangExternal:
		if f.External == nil {
			return nil, true, errs.Internal.New("external-language function %s: out of scope, implementation must provide a bridge", f.Name)
		}
		v, edone, err := f.External.Invoke(args)
		return v, edone, err
	default:
		return nil, true, errs.Internal.New("unknown function language for %s", f.Name)
	}
}

// Oper is a binary/unary SQL operator (e.g. "+", "="), implemented as a thin
// FuncCall wrapper so operator dispatch reuses the same language-routing and
// argument-evaluation code.
type Oper struct {
	*FuncCall
	Symbol string
}

func NewOper(symbol string, native NativeFunc, args ...Expr) *Oper {
	return &Oper{
		FuncCall: &FuncCall{Name: symbol, Lang: LangNative, Native: native, Args: args},
		Symbol:   symbol,
	}
}

func (o *Oper) String() string { return o.Symbol }
