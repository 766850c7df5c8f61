package plan

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weaverdb/weaverdb-sub001/access"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

func TestTidScanFetchesOnlyNamedPointers(t *testing.T) {
	heap := NewMemHeap()
	tid1 := access.ItemPointer{Block: 0, Offset: 1}
	tid2 := access.ItemPointer{Block: 0, Offset: 2}
	tid3 := access.ItemPointer{Block: 0, Offset: 3}
	heap.Insert(1, tid1, tuple.Row{int64(1)}, 1)
	heap.Insert(1, tid2, tuple.Row{int64(2)}, 1)
	heap.Insert(1, tid3, tuple.Row{int64(3)}, 1)

	n := NewTidScan(1, 1, heap, AlwaysVisible{}, []access.ItemPointer{tid3, tid1}, nil, nil, nil)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))
	rows := drain(t, n, es)
	require.Equal(t, []tuple.Row{{int64(3)}, {int64(1)}}, rows)
}

func TestTidScanPlanQualReplacementConsumedOnceThenEOF(t *testing.T) {
	heap := NewMemHeap()
	tid1 := access.ItemPointer{Block: 0, Offset: 1}
	tid2 := access.ItemPointer{Block: 0, Offset: 2}
	heap.Insert(1, tid1, tuple.Row{int64(1)}, 1)
	heap.Insert(1, tid2, tuple.Row{int64(2)}, 1)

	n := NewTidScan(1, 1, heap, AlwaysVisible{}, []access.ItemPointer{tid1, tid2}, nil, nil, nil)
	es := newTestEState()
	require.NoError(t, InitTree(n, es))

	es.PlanQual[1] = tuple.Row{int64(99)}

	row, err := ExecProcNode(n, es)
	require.NoError(t, err)
	require.Equal(t, tuple.Row{int64(99)}, row)

	// The substituted row must not be followed by the node's own named
	// pointers — a second pull has to hit EOF, not resume fetching tid2.
	_, err = ExecProcNode(n, es)
	require.Equal(t, io.EOF, err)
}
