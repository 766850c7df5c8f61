package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weaverdb/weaverdb-sub001/errs"
)

type recordingBinding struct {
	typeOID uint32
	value   interface{}
	isNull  bool
	calls   int
}

func (b *recordingBinding) Transfer(typeOID uint32, value interface{}, isNull bool) error {
	b.typeOID = typeOID
	b.value = value
	b.isNull = isNull
	b.calls++
	return nil
}

func TestOutputLinkTransfersOnFetch(t *testing.T) {
	c := newTestConnection()
	tok, err := c.Begin()
	require.NoError(t, err)
	require.NoError(t, c.Parse(tok, "SELECT 1"))

	bind := &recordingBinding{}
	require.NoError(t, c.OutputLink(tok, 1, bind))
	require.NoError(t, c.Exec(tok))

	row, eod, err := c.Fetch(tok)
	require.NoError(t, err)
	require.False(t, eod)
	require.Equal(t, 1, bind.calls)
	require.Equal(t, row[0], bind.value)
	require.Equal(t, uint32(23), bind.typeOID)
	require.False(t, bind.isNull)
}

func TestOutputLinkRejectsOutOfRangePosition(t *testing.T) {
	c := newTestConnection()
	tok, err := c.Begin()
	require.NoError(t, err)
	require.NoError(t, c.Parse(tok, "SELECT 1"))

	err = c.OutputLink(tok, 0, &recordingBinding{})
	require.Error(t, err)
	require.True(t, errs.ArgumentOutOfRange.Is(err))

	err = c.OutputLink(tok, maxOutputArgs+1, &recordingBinding{})
	require.Error(t, err)
	require.True(t, errs.ArgumentOutOfRange.Is(err))
}

func TestBindGrowsPositionalSlice(t *testing.T) {
	c := newTestConnection()
	tok, err := c.Begin()
	require.NoError(t, err)
	require.NoError(t, c.Parse(tok, "SELECT 1"))

	require.NoError(t, c.Bind(tok, 2, 23, int64(42), false))
	require.Len(t, c.stmt.params.Positional, 2)
	require.Equal(t, int64(42), c.stmt.params.Positional[1].Value)
	require.False(t, c.stmt.params.Positional[1].IsNull)
}

func TestBindWithoutParseFails(t *testing.T) {
	c := newTestConnection()
	tok, err := c.Begin()
	require.NoError(t, err)
	err = c.Bind(tok, 1, 23, nil, true)
	require.Error(t, err)
}

func TestPrepareIsIdempotent(t *testing.T) {
	c := newTestConnection()
	tok, err := c.Begin()
	require.NoError(t, err)
	require.NoError(t, c.Parse(tok, "SELECT 1"))
	require.NoError(t, c.Prepare(tok))
	es1 := c.stmt.es
	require.NoError(t, c.Prepare(tok))
	require.Same(t, es1, c.stmt.es)
}

func TestNonSelectExecDrainsAndReachesEoDImmediately(t *testing.T) {
	c := newTestConnection()
	tok, err := c.Begin()
	require.NoError(t, err)
	require.NoError(t, c.Parse(tok, "INSERT"))
	require.NoError(t, c.Exec(tok))
	require.True(t, c.stmt.done)

	_, eod, err := c.Fetch(tok)
	require.NoError(t, err)
	require.True(t, eod)
}

func TestStreamExecRunsEachStatementToCompletion(t *testing.T) {
	c := newTestConnection()
	tok, err := c.Begin()
	require.NoError(t, err)
	require.NoError(t, c.StreamExec(tok, []string{"SELECT 1", "SELECT 1"}))
	require.Equal(t, StageEoD, c.stage)
}

func TestStreamExecStopsOnFirstError(t *testing.T) {
	c := newTestConnection()
	tok, err := c.Begin()
	require.NoError(t, err)
	err = c.StreamExec(tok, []string{"SELECT 1", "ERR"})
	require.Error(t, err)
}

func TestCancelledDuringParseFailsWithCancelled(t *testing.T) {
	c := newTestConnection()
	tok, err := c.Begin()
	require.NoError(t, err)
	c.Cancel()
	err = c.Parse(tok, "SELECT 1")
	require.Error(t, err)
	require.True(t, errs.Cancelled.Is(err))
}
