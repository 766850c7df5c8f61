package spi

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weaverdb/weaverdb-sub001/errs"
	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/plan"
	"github.com/weaverdb/weaverdb-sub001/session"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

type fakeSnapshot struct{}

func (fakeSnapshot) Visible(xmin, xmax uint64) bool { return true }

type fakeTxnManager struct {
	mu     sync.Mutex
	nextID uint64
}

func (f *fakeTxnManager) Begin() (uint64, plan.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID, fakeSnapshot{}, nil
}
func (f *fakeTxnManager) Commit(txid uint64, mode session.CommitMode) error   { return nil }
func (f *fakeTxnManager) Rollback(txid uint64) error                         { return nil }
func (f *fakeTxnManager) NextCommandID(txid uint64) (uint64, error)          { return 1, nil }
func (f *fakeTxnManager) Snapshot(txid uint64) (plan.Snapshot, error)        { return fakeSnapshot{}, nil }
func (f *fakeTxnManager) CloneForSub(parentTxid uint64) (uint64, plan.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID, fakeSnapshot{}, nil
}

// fakePlanner returns a one-row Result node for any sql other than "ERR",
// echoing back its single bound parameter (if any) as the output column so
// Execp/CursorOpen param plumbing is exercised end to end.
type fakePlanner struct{}

func (fakePlanner) Plan(sql string, paramTypes []uint32) (session.PlanResult, error) {
	if sql == "ERR" {
		return session.PlanResult{}, errs.Internal.New("plan failed")
	}
	var proj expr.TargetList
	if len(paramTypes) > 0 {
		proj = expr.TargetList{{Expr: &expr.Param{Index: 1}, Resno: 1}}
	} else {
		proj = expr.TargetList{{Expr: &expr.Const{Value: int64(1)}, Resno: 1}}
	}
	node := plan.NewResult(nil, nil, proj)
	return session.PlanResult{Node: node, Command: session.CmdSelect}, nil
}

func newTestStack(t *testing.T) *Stack {
	t.Helper()
	conn, err := session.Create("db", "u", session.Options{
		Planner: fakePlanner{},
		Txn:     &fakeTxnManager{},
	})
	require.NoError(t, err)
	tok, err := conn.Begin()
	require.NoError(t, err)
	return NewStack(conn, tok, 0)
}

func TestConnectFinishBasic(t *testing.T) {
	s := newTestStack(t)
	require.Equal(t, 0, s.Depth())

	f, err := s.Connect()
	require.NoError(t, err)
	require.Equal(t, 1, s.Depth())
	require.Same(t, f, s.Current())

	require.NoError(t, s.Finish(f))
	require.Equal(t, 0, s.Depth())
	require.Nil(t, s.Current())
}

func TestConnectRespectsMaxNestingDepth(t *testing.T) {
	conn, err := session.Create("db", "u", session.Options{Planner: fakePlanner{}, Txn: &fakeTxnManager{}})
	require.NoError(t, err)
	tok, err := conn.Begin()
	require.NoError(t, err)
	s := NewStack(conn, tok, 2)

	_, err = s.Connect()
	require.NoError(t, err)
	_, err = s.Connect()
	require.NoError(t, err)
	_, err = s.Connect()
	require.Error(t, err)
	require.True(t, errs.Internal.Is(err))
}

func TestPushPopHidesCurrentFrame(t *testing.T) {
	s := newTestStack(t)
	f, err := s.Connect()
	require.NoError(t, err)
	require.Same(t, f, s.Current())

	s.Push()
	require.Nil(t, s.Current())
	s.Pop()
	require.Same(t, f, s.Current())
}

func TestExecDrainsToCompletion(t *testing.T) {
	s := newTestStack(t)
	f, err := s.Connect()
	require.NoError(t, err)

	rows, err := f.Exec("SELECT 1", 0)
	require.NoError(t, err)
	require.Equal(t, []tuple.Row{{int64(1)}}, rows)
	require.EqualValues(t, 1, f.Processed)
}

func TestExecPropagatesPlanError(t *testing.T) {
	s := newTestStack(t)
	f, err := s.Connect()
	require.NoError(t, err)
	_, err = f.Exec("ERR", 0)
	require.Error(t, err)
}

func TestPrepareAndExecp(t *testing.T) {
	s := newTestStack(t)
	f, err := s.Connect()
	require.NoError(t, err)

	sp, err := f.Prepare("SELECT $1", []uint32{23})
	require.NoError(t, err)

	rows, err := f.Execp(sp, []interface{}{int64(42)}, 0)
	require.NoError(t, err)
	require.Equal(t, []tuple.Row{{int64(42)}}, rows)
}

func TestSavePlanIsIdentityAndSurvivesFinish(t *testing.T) {
	s := newTestStack(t)
	f, err := s.Connect()
	require.NoError(t, err)
	sp, err := f.Prepare("SELECT 1", nil)
	require.NoError(t, err)
	saved := f.SavePlan(sp)
	require.Same(t, sp, saved)
	require.NoError(t, s.Finish(f))

	f2, err := s.Connect()
	require.NoError(t, err)
	rows, err := f2.Execp(saved, nil, 0)
	require.NoError(t, err)
	require.Equal(t, []tuple.Row{{int64(1)}}, rows)
}

func TestCursorOpenFetchMoveClose(t *testing.T) {
	s := newTestStack(t)
	f, err := s.Connect()
	require.NoError(t, err)

	c, err := f.CursorOpen("c1", "SELECT 1", nil, nil)
	require.NoError(t, err)

	rows, err := f.CursorFetch(c, 1)
	require.NoError(t, err)
	require.Equal(t, []tuple.Row{{int64(1)}}, rows)

	// The Result node emits exactly one row; a second fetch reaches EoD.
	rows, err = f.CursorFetch(c, 1)
	require.NoError(t, err)
	require.Empty(t, rows)

	require.NoError(t, f.CursorClose("c1"))
	err = f.CursorClose("c1")
	require.Error(t, err)
}

func TestCursorMoveAdvancesWithoutReturningRows(t *testing.T) {
	s := newTestStack(t)
	f, err := s.Connect()
	require.NoError(t, err)
	c, err := f.CursorOpen("c1", "SELECT 1", nil, nil)
	require.NoError(t, err)
	require.NoError(t, f.CursorMove(c, 1))
	rows, err := f.CursorFetch(c, 1)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestCursorFetchNegativeCountRejected(t *testing.T) {
	s := newTestStack(t)
	f, err := s.Connect()
	require.NoError(t, err)
	c, err := f.CursorOpen("c1", "SELECT 1", nil, nil)
	require.NoError(t, err)

	_, err = f.CursorFetch(c, -1)
	require.Error(t, err)
	require.True(t, errs.Internal.Is(err))
}

func TestCursorMoveNegativeCountRejected(t *testing.T) {
	s := newTestStack(t)
	f, err := s.Connect()
	require.NoError(t, err)
	c, err := f.CursorOpen("c1", "SELECT 1", nil, nil)
	require.NoError(t, err)

	err = f.CursorMove(c, -5)
	require.Error(t, err)
	require.True(t, errs.Internal.Is(err))
}

func TestFinishTearsDownOpenCursors(t *testing.T) {
	s := newTestStack(t)
	f, err := s.Connect()
	require.NoError(t, err)
	_, err = f.CursorOpen("c1", "SELECT 1", nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Finish(f))
}

func TestForceTeardownClosesEveryFrame(t *testing.T) {
	s := newTestStack(t)
	f1, err := s.Connect()
	require.NoError(t, err)
	f2, err := s.Connect()
	require.NoError(t, err)
	_, err = f1.CursorOpen("c1", "SELECT 1", nil, nil)
	require.NoError(t, err)
	_, err = f2.CursorOpen("c2", "SELECT 1", nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.ForceTeardown())
	require.Equal(t, 0, s.Depth())
}

func TestConnectionCommitForceTearsDownSPI(t *testing.T) {
	conn, err := session.Create("db", "u", session.Options{Planner: fakePlanner{}, Txn: &fakeTxnManager{}})
	require.NoError(t, err)
	tok, err := conn.Begin()
	require.NoError(t, err)

	s := NewStack(conn, tok, 0)
	conn.SetSPIStack(s)
	f, err := s.Connect()
	require.NoError(t, err)
	_, err = f.CursorOpen("c1", "SELECT 1", nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, s.Depth())

	require.NoError(t, conn.Commit(tok))
	require.Equal(t, 0, s.Depth())
}
