package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

func groupedRows() []tuple.Row {
	return []tuple.Row{
		{int64(1), int64(10)},
		{int64(1), int64(20)},
		{int64(2), int64(5)},
		{int64(3), int64(1)},
		{int64(3), int64(2)},
		{int64(3), int64(3)},
	}
}

func keyCol0(r tuple.Row) tuple.Row { return tuple.Row{r[0]} }

func TestGroupFinalModeOneRowPerGroup(t *testing.T) {
	child := newSeqScanOver(1, groupedRows())
	n := NewGroup(child, keyCol0, intCmp, ModeFinalGroup)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	rows := drain(t, n, es)
	require.Equal(t, []tuple.Row{
		{int64(1), int64(10)},
		{int64(2), int64(5)},
		{int64(3), int64(1)},
	}, rows)
}

func TestGroupBoundaryModeTagsFirstRowOfEachGroup(t *testing.T) {
	child := newSeqScanOver(1, groupedRows())
	n := NewGroup(child, keyCol0, intCmp, ModeAllWithBoundary)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))

	var boundaries []bool
	for {
		b, err := n.ExecBoundary()
		if err != nil {
			break
		}
		boundaries = append(boundaries, b.NewGroup)
	}
	require.Equal(t, []bool{true, false, true, true, false, false}, boundaries)
}

func sumSpec() AggSpec {
	return AggSpec{
		Init: func() interface{} { return int64(0) },
		Trans: func(state interface{}, row tuple.Row) (interface{}, error) {
			return state.(int64) + row[1].(int64), nil
		},
		Final: func(state interface{}) (interface{}, error) { return state, nil },
	}
}

func TestAggSumPerGroup(t *testing.T) {
	child := newSeqScanOver(1, groupedRows())
	group := NewGroup(child, keyCol0, intCmp, ModeAllWithBoundary)
	proj := expr.TargetList{
		{Expr: &expr.Var{Attno: 0}, Resno: 1},
		{Expr: &expr.Aggref{Slot: 0}, Resno: 2},
	}
	n := NewAgg(group, []AggSpec{sumSpec()}, proj)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	rows := drain(t, n, es)
	require.Equal(t, []tuple.Row{
		{int64(1), int64(30)},
		{int64(2), int64(5)},
		{int64(3), int64(6)},
	}, rows)
}
