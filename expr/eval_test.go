package expr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weaverdb/weaverdb-sub001/tuple"
)

func scanCtx(row tuple.Row) *Context {
	a := tuple.NewArena("t")
	slot := tuple.NewSlot(nil, a)
	slot.StoreVirtual(row)
	return &Context{Scan: slot, Arena: a, Params: &ParamList{}}
}

func TestVarEval(t *testing.T) {
	ctx := scanCtx(tuple.Row{10, "hi"})
	v := &Var{Which: VarScan, Attno: 1}
	val, done, err := v.Eval(ctx)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, "hi", val)
}

func TestVarOutOfRange(t *testing.T) {
	ctx := scanCtx(tuple.Row{1})
	v := &Var{Which: VarScan, Attno: 5}
	_, _, err := v.Eval(ctx)
	require.Error(t, err)
}

func TestConstNull(t *testing.T) {
	ctx := scanCtx(nil)
	c := &Const{IsNull: true}
	v, done, err := c.Eval(ctx)
	require.NoError(t, err)
	require.True(t, done)
	require.Nil(t, v)
}

func TestBoolAndShortCircuitsFalse(t *testing.T) {
	ctx := scanCtx(nil)
	b := &BoolExpr{Op: BoolAnd, Args: []Expr{
		&Const{Value: false},
		&Const{IsNull: true}, // would matter if reached
	}}
	v, _, err := b.Eval(ctx)
	require.NoError(t, err)
	require.Equal(t, false, v)
}

func TestBoolOrNullThenTrueIsTrue(t *testing.T) {
	ctx := scanCtx(nil)
	b := &BoolExpr{Op: BoolOr, Args: []Expr{
		&Const{IsNull: true},
		&Const{Value: true},
	}}
	v, _, err := b.Eval(ctx)
	require.NoError(t, err)
	require.Equal(t, true, v)
}

func TestBoolAndNullNoFalseIsNull(t *testing.T) {
	ctx := scanCtx(nil)
	b := &BoolExpr{Op: BoolAnd, Args: []Expr{
		&Const{Value: true},
		&Const{IsNull: true},
	}}
	v, _, err := b.Eval(ctx)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestEvalQualResultForNull(t *testing.T) {
	ctx := scanCtx(nil)
	quals := []Expr{&Const{IsNull: true}}

	ok, err := EvalQual(ctx, quals, false) // WHERE context
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = EvalQual(ctx, quals, true) // constraint context
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCaseExprFirstMatch(t *testing.T) {
	ctx := scanCtx(nil)
	c := &CaseExpr{
		Whens: []CaseWhen{
			{Cond: &Const{Value: false}, Result: &Const{Value: "a"}},
			{Cond: &Const{Value: true}, Result: &Const{Value: "b"}},
		},
		Default: &Const{Value: "c"},
	}
	v, _, err := c.Eval(ctx)
	require.NoError(t, err)
	require.Equal(t, "b", v)
}

func TestCaseExprDefault(t *testing.T) {
	ctx := scanCtx(nil)
	c := &CaseExpr{
		Whens:   []CaseWhen{{Cond: &Const{Value: false}, Result: &Const{Value: "a"}}},
		Default: &Const{Value: "c"},
	}
	v, _, err := c.Eval(ctx)
	require.NoError(t, err)
	require.Equal(t, "c", v)
}

func TestFuncCallNative(t *testing.T) {
	ctx := scanCtx(nil)
	f := &FuncCall{
		Name: "add",
		Lang: LangNative,
		Args: []Expr{&Const{Value: 1}, &Const{Value: 2}},
		Native: func(args []interface{}) (interface{}, bool, error) {
			return args[0].(int) + args[1].(int), true, nil
		},
	}
	v, done, err := f.Eval(ctx)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, 3, v)
}

func TestExecTargetListSetReturning(t *testing.T) {
	ctx := scanCtx(nil)
	values := []int{10, 20, 30}
	i := 0
	srf := NewIter(&FuncCall{
		Name: "srf",
		Lang: LangNative,
		Native: func(args []interface{}) (interface{}, bool, error) {
			if i >= len(values) {
				return nil, true, nil
			}
			v := values[i]
			i++
			return v, i >= len(values), nil
		},
	})

	tl := TargetList{{Expr: srf, Resno: 1}}

	var got []interface{}
	for {
		row, done, err := ExecTargetList(ctx, tl)
		require.NoError(t, err)
		got = append(got, row[0])
		if done {
			break
		}
	}
	require.Equal(t, []interface{}{10, 20, 30}, got)
}

func TestAggrefReadsSlot(t *testing.T) {
	ctx := scanCtx(nil)
	ctx.AggValues = []interface{}{42}
	ctx.AggNulls = []bool{false}
	a := &Aggref{Slot: 0}
	v, _, err := a.Eval(ctx)
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestParamPositional(t *testing.T) {
	ctx := scanCtx(nil)
	ctx.Params = &ParamList{Positional: []BoundParam{{Value: "bound"}}}
	p := &Param{Index: 1}
	v, _, err := p.Eval(ctx)
	require.NoError(t, err)
	require.Equal(t, "bound", v)
}
