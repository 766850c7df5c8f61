package expr

// CaseWhen is one WHEN/THEN arm of a CaseExpr.
type CaseWhen struct {
	Cond   Expr
	Result Expr
}

// CaseExpr implements CASE WHEN ... THEN ... ELSE ... END, evaluating each
// arm's condition in order and returning the first match's result, falling
// back to Default (nil means NULL).
type CaseExpr struct {
	Whens   []CaseWhen
	Default Expr
}

func (c *CaseExpr) String() string { return "CASE...END" }

func (c *CaseExpr) Eval(ctx *Context) (interface{}, bool, error) {
	for _, w := range c.Whens {
		v, _, err := w.Cond.Eval(ctx)
		if err != nil {
			return nil, true, err
		}
		if v == nil {
			continue
		}
		if v.(bool) {
			return w.Result.Eval(ctx)
		}
	}
	if c.Default == nil {
		return nil, true, nil
	}
	return c.Default.Eval(ctx)
}
