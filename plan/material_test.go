package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weaverdb/weaverdb-sub001/tuple"
)

func TestMaterialReplaysWithoutRedrivingChild(t *testing.T) {
	child := newSeqScanOver(1, []tuple.Row{{int64(1)}, {int64(2)}})
	n := NewMaterial(child)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))

	first := drain(t, n, es)
	require.Equal(t, []tuple.Row{{int64(1)}, {int64(2)}}, first)

	require.NoError(t, n.ReScan())
	second := drain(t, n, es)
	require.Equal(t, first, second, "replay must reproduce the materialized rows without re-scanning the child")
}

func intCmp(a, b tuple.Row) int {
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

func TestSortOrdersRows(t *testing.T) {
	child := newSeqScanOver(1, []tuple.Row{{int64(3)}, {int64(1)}, {int64(2)}})
	n := NewSort(child, intCmp, false, 0)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	rows := drain(t, n, es)
	require.Equal(t, []tuple.Row{{int64(1)}, {int64(2)}, {int64(3)}}, rows)
}

func TestSortDescending(t *testing.T) {
	child := newSeqScanOver(1, []tuple.Row{{int64(1)}, {int64(3)}, {int64(2)}})
	n := NewSort(child, intCmp, true, 0)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	rows := drain(t, n, es)
	require.Equal(t, []tuple.Row{{int64(3)}, {int64(2)}, {int64(1)}}, rows)
}

func TestSortMaxRowsExceeded(t *testing.T) {
	child := newSeqScanOver(1, []tuple.Row{{int64(1)}, {int64(2)}, {int64(3)}})
	n := NewSort(child, intCmp, false, 2)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	_, err := n.Exec()
	require.Error(t, err)
}

func TestUniqueDropsConsecutiveDuplicates(t *testing.T) {
	child := newSeqScanOver(1, []tuple.Row{{int64(1)}, {int64(1)}, {int64(2)}, {int64(2)}, {int64(2)}, {int64(3)}})
	key := func(r tuple.Row) tuple.Row { return tuple.Row{r[0]} }
	n := NewUnique(child, key, intCmp)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	rows := drain(t, n, es)
	require.Equal(t, []tuple.Row{{int64(1)}, {int64(2)}, {int64(3)}}, rows)
}
