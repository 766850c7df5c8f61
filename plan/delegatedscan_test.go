package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weaverdb/weaverdb-sub001/access"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

func TestDelegatedSeqScanMatchesDirectScan(t *testing.T) {
	heap := NewMemHeap()
	heap.Insert(1, access.ItemPointer{Offset: 1}, tuple.Row{int64(1)}, 1)
	heap.Insert(1, access.ItemPointer{Offset: 2}, tuple.Row{int64(2)}, 1)
	heap.Insert(1, access.ItemPointer{Offset: 3}, tuple.Row{int64(3)}, 1)

	n := NewDelegatedSeqScan(1, 1, heap, AlwaysVisible{}, nil, nil, nil, true)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	rows := drain(t, n, es)
	require.ElementsMatch(t, []tuple.Row{{int64(1)}, {int64(2)}, {int64(3)}}, rows)
	require.NoError(t, EndTree(n))
}

func TestDelegatedIndexScanMatchesDirectScan(t *testing.T) {
	heap := NewMemHeap()
	tid1 := access.ItemPointer{Offset: 1}
	tid2 := access.ItemPointer{Offset: 2}
	heap.Insert(1, tid1, tuple.Row{int64(7)}, 1)
	heap.Insert(1, tid2, tuple.Row{int64(8)}, 1)

	mm := access.NewMemMethod("btree")
	require.NoError(t, mm.Insert(1, tuple.Row{int64(7)}, tid1))
	require.NoError(t, mm.Insert(1, tuple.Row{int64(8)}, tid2))

	n := NewDelegatedIndexScan(1, 1, heap, mm, nil, access.Forward, AlwaysVisible{}, nil, nil, nil, false)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	rows := drain(t, n, es)
	require.ElementsMatch(t, []tuple.Row{{int64(7)}, {int64(8)}}, rows)
	require.NoError(t, EndTree(n))
}
