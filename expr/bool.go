package expr

// BoolOp is And, Or, or Not — the three-valued boolean connectives of
// spec.md §4.6.
type BoolOp int

const (
	BoolAnd BoolOp = iota
	BoolOr
	BoolNot
)

// BoolExpr implements AND/OR/NOT with SQL three-valued logic: a null
// operand is remembered, but the definitive answer (true for OR, false for
// AND) still short-circuits ahead of it.
type BoolExpr struct {
	Op   BoolOp
	Args []Expr
}

func (b *BoolExpr) String() string {
	switch b.Op {
	case BoolAnd:
		return "AND(...)"
	case BoolOr:
		return "OR(...)"
	default:
		return "NOT(...)"
	}
}

func (b *BoolExpr) Eval(ctx *Context) (interface{}, bool, error) {
	if b.Op == BoolNot {
		v, _, err := b.Args[0].Eval(ctx)
		if err != nil {
			return nil, true, err
		}
		if v == nil {
			return nil, true, nil
		}
		return !v.(bool), true, nil
	}

	sawNull := false
	for _, arg := range b.Args {
		v, _, err := arg.Eval(ctx)
		if err != nil {
			return nil, true, err
		}
		if v == nil {
			sawNull = true
			continue
		}
		bv := v.(bool)
		if b.Op == BoolOr && bv {
			return true, true, nil
		}
		if b.Op == BoolAnd && !bv {
			return false, true, nil
		}
	}
	if sawNull {
		return nil, true, nil
	}
	// OR with no true operand and no null -> false; AND with no false and no
	// null -> true.
	return b.Op == BoolAnd, true, nil
}

// EvalQual folds a qual list with AND semantics and applies resultForNull,
// per spec.md §4.6 ExecQual: false for WHERE-context quals, true for
// constraint checks.
func EvalQual(ctx *Context, quals []Expr, resultForNull bool) (bool, error) {
	for _, q := range quals {
		v, _, err := q.Eval(ctx)
		if err != nil {
			return false, err
		}
		if v == nil {
			if !resultForNull {
				return false, nil
			}
			continue
		}
		if !v.(bool) {
			return false, nil
		}
	}
	return true, nil
}
