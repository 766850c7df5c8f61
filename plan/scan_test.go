package plan

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weaverdb/weaverdb-sub001/access"
	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

func intGT(args []interface{}) (interface{}, bool, error) {
	return args[0].(int64) > args[1].(int64), true, nil
}

func drain(t *testing.T, n Node, es *EState) []tuple.Row {
	t.Helper()
	var rows []tuple.Row
	for {
		row, err := ExecProcNode(n, es)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
	return rows
}

func newTestEState() *EState {
	return NewEState(tuple.NewArena("test"), 0)
}

func TestSeqScanFiltersAndProjects(t *testing.T) {
	heap := NewMemHeap()
	heap.Insert(1, access.ItemPointer{Block: 0, Offset: 1}, tuple.Row{int64(1), "a"}, 1)
	heap.Insert(1, access.ItemPointer{Block: 0, Offset: 2}, tuple.Row{int64(5), "b"}, 1)
	heap.Insert(1, access.ItemPointer{Block: 0, Offset: 3}, tuple.Row{int64(9), "c"}, 1)

	qual := []expr.Expr{expr.NewOper(">", intGT, &expr.Var{Attno: 0}, &expr.Const{Value: int64(3)})}
	proj := expr.TargetList{{Expr: &expr.Var{Attno: 1}, Resno: 1}}

	n := NewSeqScan(1, 1, heap, nil, qual, proj)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	rows := drain(t, n, es)
	require.Equal(t, []tuple.Row{{"b"}, {"c"}}, rows)
	require.NoError(t, EndTree(n))
}

func TestIndexScanOrOfAndDedup(t *testing.T) {
	heap := NewMemHeap()
	tid1 := access.ItemPointer{Block: 0, Offset: 1}
	tid2 := access.ItemPointer{Block: 0, Offset: 2}
	heap.Insert(1, tid1, tuple.Row{int64(1), int64(10)}, 1)
	heap.Insert(1, tid2, tuple.Row{int64(2), int64(20)}, 1)

	mm := access.NewMemMethod("btree")
	require.NoError(t, mm.Insert(1, tuple.Row{int64(1)}, tid1))
	require.NoError(t, mm.Insert(1, tuple.Row{int64(2)}, tid2))

	// Two disjuncts that both match tid1: the dedup "seen" map must ensure
	// it's only reported once (Testable Property 3).
	disjuncts := [][]access.ScanKey{
		{{Attno: 0, Operand: int64(1)}},
		{{Attno: 0, Operand: int64(1)}},
	}
	n := NewIndexScan(1, 1, heap, mm, disjuncts, access.Forward, AlwaysVisible{}, nil, nil, nil)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	rows := drain(t, n, es)
	require.Len(t, rows, 1)
	require.Equal(t, tuple.Row{int64(1), int64(10)}, rows[0])
	require.NoError(t, EndTree(n))
}

func TestSeqScanPlanQualReplacementConsumedOnceThenEOF(t *testing.T) {
	heap := NewMemHeap()
	heap.Insert(1, access.ItemPointer{Block: 0, Offset: 1}, tuple.Row{int64(1), "a"}, 1)
	heap.Insert(1, access.ItemPointer{Block: 0, Offset: 2}, tuple.Row{int64(2), "b"}, 1)

	proj := expr.TargetList{{Expr: &expr.Var{Attno: 1}, Resno: 1}}
	n := NewSeqScan(1, 1, heap, nil, nil, proj)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))

	es.PlanQual[1] = tuple.Row{int64(99), "repl"}

	row, err := ExecProcNode(n, es)
	require.NoError(t, err)
	require.Equal(t, tuple.Row{"repl"}, row)

	// The replacement is consumed once; a second pull must hit EOF rather
	// than falling through to the real heap scan (EPQ re-check must not
	// surface extra rows beyond the single substituted one).
	_, err = ExecProcNode(n, es)
	require.Equal(t, io.EOF, err)

	_, err = ExecProcNode(n, es)
	require.Equal(t, io.EOF, err)

	require.NoError(t, EndTree(n))
}

func TestIndexScanPlanQualReplacementConsumedOnceThenEOF(t *testing.T) {
	heap := NewMemHeap()
	tid1 := access.ItemPointer{Block: 0, Offset: 1}
	heap.Insert(1, tid1, tuple.Row{int64(1), int64(10)}, 1)

	mm := access.NewMemMethod("btree")
	require.NoError(t, mm.Insert(1, tuple.Row{int64(1)}, tid1))

	disjuncts := [][]access.ScanKey{{{Attno: 0, Operand: int64(1)}}}
	n := NewIndexScan(1, 1, heap, mm, disjuncts, access.Forward, AlwaysVisible{}, nil, nil, nil)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))

	es.PlanQual[1] = tuple.Row{int64(1), int64(99)}

	row, err := ExecProcNode(n, es)
	require.NoError(t, err)
	require.Equal(t, tuple.Row{int64(1), int64(99)}, row)

	_, err = ExecProcNode(n, es)
	require.Equal(t, io.EOF, err)

	require.NoError(t, EndTree(n))
}

func TestResultNodeSingleRow(t *testing.T) {
	proj := expr.TargetList{{Expr: &expr.Const{Value: int64(2)}, Resno: 1}}
	n := NewResult(nil, nil, proj)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	rows := drain(t, n, es)
	require.Equal(t, []tuple.Row{{int64(2)}}, rows)
}

func TestAppendConcatenatesChildren(t *testing.T) {
	a := NewResult(nil, nil, expr.TargetList{{Expr: &expr.Const{Value: int64(1)}}})
	b := NewResult(nil, nil, expr.TargetList{{Expr: &expr.Const{Value: int64(2)}}})
	n := NewAppend(a, b)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	rows := drain(t, n, es)
	require.Equal(t, []tuple.Row{{int64(1)}, {int64(2)}}, rows)
}
