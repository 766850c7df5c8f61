package delegate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weaverdb/weaverdb-sub001/access"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

type sliceSource struct {
	tids []access.ItemPointer
	pos  int
}

func (s *sliceSource) Next() (access.ItemPointer, bool, error) {
	if s.pos >= len(s.tids) {
		return access.ItemPointer{}, false, nil
	}
	tid := s.tids[s.pos]
	s.pos++
	return tid, true, nil
}

func TestProducerConsumerDeliversEveryPointer(t *testing.T) {
	var want []access.ItemPointer
	for i := uint16(0); i < 200; i++ {
		want = append(want, access.ItemPointer{Block: 0, Offset: i})
	}
	h := Start(&sliceSource{tids: want}, false)

	var got []access.ItemPointer
	for {
		tid, ok, err := h.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, tid)
	}
	require.Equal(t, want, got)
	require.NoError(t, h.End())
}

func TestProducerSortsByBlockWhenRequested(t *testing.T) {
	unsorted := []access.ItemPointer{
		{Block: 3, Offset: 0}, {Block: 1, Offset: 0}, {Block: 2, Offset: 0},
	}
	h := Start(&sliceSource{tids: unsorted}, true)

	var got []access.ItemPointer
	for {
		tid, ok, err := h.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, tid)
	}
	require.Equal(t, []access.ItemPointer{{Block: 1}, {Block: 2}, {Block: 3}}, got)
	require.NoError(t, h.End())
}

func TestEndJoinsProducerEvenMidScan(t *testing.T) {
	var many []access.ItemPointer
	for i := uint16(0); i < 10000; i++ {
		many = append(many, access.ItemPointer{Offset: i})
	}
	h := Start(&sliceSource{tids: many}, false)
	_, _, err := h.Next()
	require.NoError(t, err)
	require.NoError(t, h.End(), "End must join the producer goroutine even though it hasn't drained its source")
}

func TestConsumerDropsInvisibleTuples(t *testing.T) {
	tids := []access.ItemPointer{{Offset: 1}, {Offset: 2}, {Offset: 3}}
	h := Start(&sliceSource{tids: tids}, false)
	c := NewConsumer(h, func(tid access.ItemPointer) (tuple.Row, bool, error) {
		return tuple.Row{tid.Offset}, tid.Offset != 2, nil
	})

	var got []uint16
	for {
		_, row, ok, err := c.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, row[0].(uint16))
	}
	require.Equal(t, []uint16{1, 3}, got)
	require.NoError(t, c.Close())
}
