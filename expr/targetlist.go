package expr

// TargetEntry pairs a result expression with its output position and an
// optional "junk" flag (a column carried through for internal use — e.g.
// ctid for UPDATE/DELETE — that is not projected to the client).
type TargetEntry struct {
	Expr   Expr
	Resno  int
	Junk   bool
	Name   string
}

// TargetList is an ordered projection list.
type TargetList []TargetEntry

// Iter wraps a set-returning Expr, remembering whether iteration has
// started and whether Inner has reported done; once done, Eval returns NULL
// with done == true until Reset rearms it.
type Iter struct {
	Inner   Expr
	started bool
	done    bool
}

func NewIter(inner Expr) *Iter { return &Iter{Inner: inner} }

func (it *Iter) String() string { return "Iter(" + it.Inner.String() + ")" }

func (it *Iter) Eval(ctx *Context) (interface{}, bool, error) {
	if it.done {
		return nil, true, nil
	}
	it.started = true
	v, done, err := it.Inner.Eval(ctx)
	it.done = done
	return v, done, err
}

// Reset rearms the iterator for the next outer input tuple.
func (it *Iter) Reset() {
	it.started = false
	it.done = false
}

// ExecTargetList evaluates tl against ctx once, producing one output Row.
// If the target list contains a set-returning expression (wrapped in an
// Iter) that is not yet exhausted, the returned isDone is false and the
// caller must invoke ExecTargetList again against the same ctx to obtain
// the next row of output, per spec.md §4.6: "ExecTargetList uses this to
// loop across set-returning function outputs in target lists."
func ExecTargetList(ctx *Context, tl TargetList) (values []interface{}, isDone bool, err error) {
	out := make([]interface{}, len(tl))
	isDone = true
	for i, te := range tl {
		v, done, err := te.Expr.Eval(ctx)
		if err != nil {
			return nil, true, err
		}
		out[i] = v
		if !done {
			isDone = false
		}
	}
	return out, isDone, nil
}
