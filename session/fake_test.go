package session

import (
	"sync"

	"github.com/weaverdb/weaverdb-sub001/errs"
	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/plan"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// fakeSnapshot is an always-visible plan.Snapshot stand-in; these tests
// exercise the stage machine and ownership rules, not visibility.
type fakeSnapshot struct{ gen uint64 }

func (s fakeSnapshot) Visible(xmin, xmax uint64) bool { return true }

// fakeTxnManager is a minimal in-memory TxnManager, grounded on the same
// role access/memory.go's in-memory fakes play for the access package:
// enough behavior to drive the stage machine without a real WAL.
type fakeTxnManager struct {
	mu      sync.Mutex
	nextID  uint64
	nextCmd map[uint64]uint64
	commits map[uint64]CommitMode
	aborted map[uint64]bool
}

func newFakeTxnManager() *fakeTxnManager {
	return &fakeTxnManager{
		nextCmd: make(map[uint64]uint64),
		commits: make(map[uint64]CommitMode),
		aborted: make(map[uint64]bool),
	}
}

func (f *fakeTxnManager) Begin() (uint64, plan.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.nextCmd[id] = 0
	return id, fakeSnapshot{gen: id}, nil
}

func (f *fakeTxnManager) Commit(txid uint64, mode CommitMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits[txid] = mode
	return nil
}

func (f *fakeTxnManager) Rollback(txid uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted[txid] = true
	return nil
}

func (f *fakeTxnManager) NextCommandID(txid uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextCmd[txid]++
	return f.nextCmd[txid], nil
}

func (f *fakeTxnManager) Snapshot(txid uint64) (plan.Snapshot, error) {
	return fakeSnapshot{gen: txid}, nil
}

func (f *fakeTxnManager) CloneForSub(parentTxid uint64) (uint64, plan.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.nextCmd[id] = 0
	return id, fakeSnapshot{gen: parentTxid}, nil
}

// fakePlanner turns fixed sql strings into canned PlanResults: "SELECT" (or
// any text not equal to "ERR"/"INSERT") yields a one-row Result node tagged
// CmdSelect; "INSERT" yields a CmdInsert node; "ERR" always fails planning.
type fakePlanner struct{}

func (fakePlanner) Plan(sql string, paramTypes []uint32) (PlanResult, error) {
	if sql == "ERR" {
		return PlanResult{}, errs.Internal.New("plan failed")
	}
	desc := tuple.NewDescriptor(tuple.Attribute{Name: "c1", TypeOID: 23})
	proj := expr.TargetList{{Expr: &expr.Const{Value: int64(1)}, Resno: 1}}
	node := plan.NewResult(nil, nil, proj)
	cmd := CmdSelect
	if sql == "INSERT" {
		cmd = CmdInsert
	}
	return PlanResult{Node: node, Desc: desc, Command: cmd}, nil
}

func newTestConnection() *Connection {
	c, err := Create("testdb", "tester", Options{
		Planner: fakePlanner{},
		Txn:     newFakeTxnManager(),
		Metrics: NewMetrics(nil),
	})
	if err != nil {
		panic(err)
	}
	return c
}
