package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weaverdb/weaverdb-sub001/access"
	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

func intEq(args []interface{}) (interface{}, bool, error) {
	return args[0].(int64) == args[1].(int64), true, nil
}

func newSeqScanOver(relOID uint32, rows []tuple.Row) *SeqScanNode {
	heap := NewMemHeap()
	for i, r := range rows {
		heap.Insert(relOID, access.ItemPointer{Block: 0, Offset: uint16(i + 1)}, r, 1)
	}
	return NewSeqScan(1, relOID, heap, nil, nil, nil)
}

func TestNestLoopJoin(t *testing.T) {
	outer := newSeqScanOver(1, []tuple.Row{{int64(1)}, {int64(2)}})
	inner := newSeqScanOver(2, []tuple.Row{{int64(1), "x"}, {int64(2), "y"}, {int64(2), "z"}})

	qual := []expr.Expr{expr.NewOper("=", intEq, &expr.Var{Which: expr.VarOuter, Attno: 0}, &expr.Var{Which: expr.VarInner, Attno: 0})}
	n := NewNestLoop(outer, inner, qual, nil)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	rows := drain(t, n, es)
	require.Equal(t, []tuple.Row{
		{int64(1), int64(1), "x"},
		{int64(2), int64(2), "y"},
		{int64(2), int64(2), "z"},
	}, rows)
}

func TestMergeJoinDuplicateKeys(t *testing.T) {
	outer := newSeqScanOver(1, []tuple.Row{{int64(1)}, {int64(2)}})
	inner := newSeqScanOver(2, []tuple.Row{{int64(1), "a"}, {int64(2), "b"}, {int64(2), "c"}})

	key0 := func(r tuple.Row) tuple.Row { return tuple.Row{r[0]} }
	cmp := func(a, b tuple.Row) int {
		av, bv := a[0].(int64), b[0].(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	}
	n := NewMergeJoin(outer, inner, key0, key0, cmp, nil, nil)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	rows := drain(t, n, es)
	require.Equal(t, []tuple.Row{
		{int64(1), int64(1), "a"},
		{int64(2), int64(2), "b"},
		{int64(2), int64(2), "c"},
	}, rows)
}

func hashKeyCol0(r tuple.Row) []byte {
	v := r[0].(int64)
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func TestHashJoinBasic(t *testing.T) {
	outer := newSeqScanOver(1, []tuple.Row{{int64(1)}, {int64(2)}, {int64(3)}})
	build := newSeqScanOver(2, []tuple.Row{{int64(2), "y"}, {int64(3), "z"}})

	hashNode := NewHash(build, hashKeyCol0, 8, 8, 0, t.TempDir())
	qual := []expr.Expr{expr.NewOper("=", intEq, &expr.Var{Which: expr.VarOuter, Attno: 0}, &expr.Var{Which: expr.VarInner, Attno: 0})}
	n := NewHashJoin(outer, hashNode, hashKeyCol0, qual, nil, t.TempDir())

	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	rows := drain(t, n, es)
	require.ElementsMatch(t, []tuple.Row{
		{int64(2), int64(2), "y"},
		{int64(3), int64(3), "z"},
	}, rows)
	require.NoError(t, EndTree(n))
}

func TestHashJoinWithSpilledBatches(t *testing.T) {
	var outerRows, buildRows []tuple.Row
	for i := int64(0); i < 40; i++ {
		outerRows = append(outerRows, tuple.Row{i})
		buildRows = append(buildRows, tuple.Row{i, i * 10})
	}
	outer := newSeqScanOver(1, outerRows)
	build := newSeqScanOver(2, buildRows)

	// Force most buckets to spill: totalBuckets large, nBuckets tiny, nBatch>0.
	hashNode := NewHash(build, hashKeyCol0, 16, 2, 4, t.TempDir())
	qual := []expr.Expr{expr.NewOper("=", intEq, &expr.Var{Which: expr.VarOuter, Attno: 0}, &expr.Var{Which: expr.VarInner, Attno: 0})}
	n := NewHashJoin(outer, hashNode, hashKeyCol0, qual, nil, t.TempDir())

	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	rows := drain(t, n, es)
	require.Len(t, rows, 40)
	require.NoError(t, EndTree(n))
}
