package expr

// Aggref references one slot of the current plan node's aggregate value
// vector (ctx.AggValues/AggNulls), populated by the Agg plan node before
// each output row is projected.
type Aggref struct {
	Slot int
	Name string
}

func (a *Aggref) String() string { return a.Name }

func (a *Aggref) Eval(ctx *Context) (interface{}, bool, error) {
	if a.Slot < 0 || a.Slot >= len(ctx.AggValues) {
		return nil, true, nil
	}
	if ctx.AggNulls != nil && a.Slot < len(ctx.AggNulls) && ctx.AggNulls[a.Slot] {
		return nil, true, nil
	}
	return ctx.AggValues[a.Slot], true, nil
}

// SubPlanExpr evaluates a correlated or uncorrelated subplan, re-entering
// the executor through ctx.SubPlanEval (NULL when that hook is nil). PlanID
// identifies which sub-plan of the owning node to run; Correlated holds the
// parameter expressions whose current values parameterize that subplan
// (passed through ctx's PARAM_EXEC slots by the caller before Eval runs).
type SubPlanExpr struct {
	PlanID     int
	Correlated []Expr
	Name       string
}

func (s *SubPlanExpr) String() string {
	if s.Name != "" {
		return s.Name
	}
	return "SubPlan"
}

func (s *SubPlanExpr) Eval(ctx *Context) (interface{}, bool, error) {
	if ctx.SubPlanEval == nil {
		return nil, true, nil
	}
	args := make([]interface{}, len(s.Correlated))
	for i, c := range s.Correlated {
		v, _, err := c.Eval(ctx)
		if err != nil {
			return nil, true, err
		}
		args[i] = v
	}
	return ctx.SubPlanEval(ctx, s.PlanID, args)
}

// ArrayRef supports both element read (Upper set, Lower nil) and slice read
// (both set) of an array-valued sub-expression, per spec.md §4.6. Bounds
// are checked by the Slicer (arrayval's Value.Slice rejects a slice that
// reaches outside the array rather than clipping it); ArrayRef only drives
// evaluation.
type ArrayRef struct {
	Array Expr
	Lower Expr // nil => element access, not slice
	Upper Expr
	// Assign, when non-nil, is evaluated and assigned into the indicated
	// position of a *copy* of the array value, which is returned: array
	// assignment never mutates the input datum (spec.md §4.6).
	Assign Expr
}

func (a *ArrayRef) String() string { return "ArrayRef" }

// Slicer abstracts the subset of arrayval.Value's API ArrayRef needs,
// avoiding an import cycle between expr and arrayval (arrayval depends on
// nothing here, but keeping the dependency one-directional via an interface
// documents the boundary explicitly).
type Slicer interface {
	Element(idx []int) (interface{}, error)
	Slice(lower, upper []int) (interface{}, error)
	WithElement(idx []int, v interface{}) (interface{}, error)
}

func (a *ArrayRef) Eval(ctx *Context) (interface{}, bool, error) {
	av, _, err := a.Array.Eval(ctx)
	if err != nil {
		return nil, true, err
	}
	if av == nil {
		return nil, true, nil
	}
	s, ok := av.(Slicer)
	if !ok {
		return nil, true, nil
	}

	var upperIdx []int
	if a.Upper != nil {
		v, _, err := a.Upper.Eval(ctx)
		if err != nil {
			return nil, true, err
		}
		upperIdx = toIndexSlice(v)
	}

	if a.Assign != nil {
		v, _, err := a.Assign.Eval(ctx)
		if err != nil {
			return nil, true, err
		}
		newVal, err := s.WithElement(upperIdx, v)
		return newVal, true, err
	}

	if a.Lower != nil {
		lv, _, err := a.Lower.Eval(ctx)
		if err != nil {
			return nil, true, err
		}
		res, err := s.Slice(toIndexSlice(lv), upperIdx)
		return res, true, err
	}

	res, err := s.Element(upperIdx)
	return res, true, err
}

func toIndexSlice(v interface{}) []int {
	switch t := v.(type) {
	case []int:
		return t
	case int:
		return []int{t}
	case int32:
		return []int{int(t)}
	case int64:
		return []int{int(t)}
	default:
		return nil
	}
}
