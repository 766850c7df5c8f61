// Package session implements the Connection/Session Core of spec.md §4.1/
// §4.2 (component C8): a per-thread transaction lifecycle tying one caller
// goroutine to an isolated prepared-plan pipeline, parameter bindings, a
// snapshot, and subconnection tree, grounded on
// mtpgsql/env/WeaverConnection.c.
//
// Go has no public goroutine-id API (unlike pthread_self()), so the
// original's thread-affinity check is redesigned around an explicit
// OwnerToken: Begin mints one and every call that must come from the
// transaction owner requires the caller to present it back. A mismatch (or
// a missing token on a call that needs one) fails with errs.ContextOwnership,
// exactly as the original's pthread_equal check does.
package session

import (
	"sync"
	"sync/atomic"

	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
	opentracing "github.com/opentracing/opentracing-go"

	"github.com/weaverdb/weaverdb-sub001/errs"
	"github.com/weaverdb/weaverdb-sub001/plan"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// OwnerToken identifies the goroutine that owns a connection's transaction
// at a given moment, minted by Begin (spec.md §4.1 "Thread affinity").
type OwnerToken struct{ v uint64 }

var ownerCounter uint64

func newOwnerToken() OwnerToken {
	return OwnerToken{v: atomic.AddUint64(&ownerCounter, 1)}
}

// Valid reports whether this token was ever minted (the zero OwnerToken
// never matches an owned connection).
func (t OwnerToken) Valid() bool { return t.v != 0 }

// TxnManager is the external transaction/snapshot collaborator spec.md §1
// scopes out of this core (WAL, buffer manager, catalog): Connection only
// needs this much of its contract to drive the stage machine.
type TxnManager interface {
	// Begin starts a new transaction, returning its id and starting snapshot.
	Begin() (txid uint64, snap plan.Snapshot, err error)
	// Commit durably commits txid at the given strength.
	Commit(txid uint64, mode CommitMode) error
	// Rollback aborts txid.
	Rollback(txid uint64) error
	// NextCommandID advances and returns the command counter within txid,
	// mirroring CommandCounterIncrement in WExec's per-query-tree loop.
	NextCommandID(txid uint64) (uint64, error)
	// Snapshot returns a fresh snapshot of txid's current visibility,
	// grounded on SetQuerySnapshot (called once per statement) and
	// TakeUserSnapshot (called on BeginProcedure).
	Snapshot(txid uint64) (plan.Snapshot, error)
	// CloneForSub derives a child transaction sharing the parent's database/
	// user identity and snapshot but running independently, grounded on
	// CloneParentTransaction; the child commits via CloseSubTransaction
	// (no independent durability), modeled here as a Commit/Rollback call
	// on the returned child txid.
	CloneForSub(parentTxid uint64) (childTxid uint64, snap plan.Snapshot, err error)
}

// Connection is one C8 Connection/Session: the owner of a transaction, a
// current prepared statement, and zero or more subconnections, grounded on
// struct Connection in WeaverConnection.h.
type Connection struct {
	ID           uuid.UUID
	DatabaseName string
	UserName     string

	planner Planner
	txm     TxnManager
	metrics *Metrics
	locks   *LockManager
	log     *logrus.Entry

	mu       sync.Mutex
	cond     *sync.Cond
	stage    Stage
	owner    OwnerToken
	inEngine bool

	txid uint64
	snap plan.Snapshot

	commit  commitTypeStack
	snapStk []plan.Snapshot // BeginProcedure/EndProcedure nested snapshot stack

	cancelled int32 // atomic flag CheckForCancel polls

	parent      *Connection
	isSub       bool
	childCount  int

	stmt *statement

	heldLocks map[lockKey]struct{}

	spi Teardownable
}

// Planner turns statement text into an executable plan, the "planner
// (external)" collaborator of spec.md §2's data flow; this core never
// parses SQL itself.
type Planner interface {
	Plan(sql string, paramTypes []uint32) (PlanResult, error)
}

// CommandType classifies a planned statement the way WExec's
// querytree->commandType switch does.
type CommandType int

const (
	CmdSelect CommandType = iota
	CmdInsert
	CmdUpdate
	CmdDelete
	CmdUtility
)

// PlanResult is what a Planner hands back for one statement.
type PlanResult struct {
	Node    plan.Node
	Desc    *tuple.Descriptor
	Command CommandType
}

// Options configures a Connection at Create/CreateSub time. Txn is required
// (Create fails without it); nil Metrics, Locks and Log fall back to package
// defaults (an unregistered Metrics set, a private LockManager, a standard
// logrus logger). Spans always go to opentracing's global tracer.
type Options struct {
	Planner Planner
	Txn     TxnManager
	Metrics *Metrics
	Locks   *LockManager
	Log     *logrus.Entry
}

// Create opens a new top-level Connection bound to dbName/userName, per
// spec.md §4.1. No transaction is open yet (stage StageInvalid) until Begin.
func Create(dbName, userName string, opts Options) (*Connection, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, errs.ConnectionFailed.New(err.Error())
	}
	if opts.Txn == nil {
		return nil, errs.ConnectionFailed.New("no TxnManager supplied")
	}
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("conn_id", id.String())
	locks := opts.Locks
	if locks == nil {
		locks = NewLockManager()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = defaultMetrics
	}
	c := &Connection{
		ID:           id,
		DatabaseName: dbName,
		UserName:     userName,
		planner:      opts.Planner,
		txm:          opts.Txn,
		metrics:      metrics,
		locks:        locks,
		log:          log,
		stage:        StageInvalid,
		heldLocks:    make(map[lockKey]struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	metrics.ConnectionsOpen.Inc()
	return c, nil
}

// CreateSub spawns a child subconnection cloning the parent's database/user
// identity and (once Begin runs) its transaction snapshot, per spec.md §4.1
// "Subconnections". A subconnection cannot itself spawn children.
func (c *Connection) CreateSub() (*Connection, error) {
	if c.isSub {
		return nil, errs.ConnectionFailed.New("subconnection cannot spawn children")
	}
	sub, err := Create(c.DatabaseName, c.UserName, Options{
		Planner: c.planner,
		Txn:     c.txm,
		Metrics: c.metrics,
		Locks:   c.locks,
		Log:     c.log,
	})
	if err != nil {
		return nil, err
	}
	sub.isSub = true
	sub.parent = c

	c.mu.Lock()
	c.childCount++
	c.mu.Unlock()
	return sub, nil
}

// span starts an opentracing span for a connection-level operation (Begin,
// Exec, Fetch, Commit), per spec.md's ambient "Tracing" convention; with no
// tracer registered this is opentracing.NoopTracer and costs nothing.
func (c *Connection) span(op string) opentracing.Span {
	sp := opentracing.GlobalTracer().StartSpan(op)
	sp.SetTag("conn_id", c.ID.String())
	return sp
}

// Begin starts a new transaction on this connection and records the calling
// goroutine as the transaction owner via the returned OwnerToken, per
// spec.md §4.1 "Ownership is recorded on Begin and cleared on
// Commit/Rollback."
func (c *Connection) Begin() (OwnerToken, error) {
	sp := c.span("Begin")
	defer sp.Finish()

	c.mu.Lock()
	defer c.mu.Unlock()

	var txid uint64
	var snap plan.Snapshot
	var err error
	if c.isSub && c.parent != nil {
		txid, snap, err = c.txm.CloneForSub(c.parent.txid)
	} else {
		txid, snap, err = c.txm.Begin()
	}
	if err != nil {
		return OwnerToken{}, errs.ConnectionFailed.Wrap(err, err.Error())
	}

	c.owner = newOwnerToken()
	c.txid = txid
	c.snap = snap
	c.stage = StageNew
	c.commit.reset()
	c.snapStk = nil
	c.log.WithField("txid", txid).Debug("session: transaction begun")
	return c.owner, nil
}

// checkOwner fails with ContextOwnership unless tok is the current
// transaction owner, per spec.md §4.1: "Every call other than Create,
// Cancel, CancelAndJoin, Destroy, and status getters must be made by the
// current owner."
func (c *Connection) checkOwner(tok OwnerToken) error {
	if !c.owner.Valid() || tok != c.owner {
		return errs.ContextOwnership.New()
	}
	return nil
}

// Teardownable is satisfied by *spi.Stack, kept as a narrow interface here so
// session does not import spi (spi already imports session for Connection/
// Planner/TxnManager). SetSPIStack registers the connection's SPI nesting
// stack so endTransaction can force it closed, grounded on spi.c's
// AtEOXact_SPI: "SPI state is forcibly reset at transaction commit or abort"
// (spec.md §4.9).
type Teardownable interface {
	ForceTeardown() error
}

// SetSPIStack attaches the SPI stack this connection's function/trigger
// bodies nest sub-executors on, so Commit/Rollback can force it closed.
func (c *Connection) SetSPIStack(s Teardownable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spi = s
}

// endTransaction clears ownership and stage, shared by Commit/Rollback.
func (c *Connection) endTransaction() {
	c.owner = OwnerToken{}
	c.stage = StageInvalid
	c.commit.reset()
	c.snapStk = nil
	if c.stmt != nil {
		c.stmt.close()
		c.stmt = nil
	}
	c.locks.ReleaseAll(c)
	if c.spi != nil {
		if err := c.spi.ForceTeardown(); err != nil {
			c.log.WithError(err).Debug("session: SPI force-teardown reported errors")
		}
	}
}

// Commit commits the current transaction at the connection's effective
// commit mode, per spec.md §4.2's "{New,Parsed,Exec,Fetch,EoD} --Commit-->
// Invalid" transition (legal from any non-Abort stage).
func (c *Connection) Commit(tok OwnerToken) error {
	sp := c.span("Commit")
	defer sp.Finish()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOwner(tok); err != nil {
		return err
	}
	if c.stage == StageAbort {
		return errs.ContextValid.New(c.stage.String())
	}
	mode := c.commit.effective()
	if err := c.txm.Commit(c.txid, mode); err != nil {
		return errs.ConnectionFailed.Wrap(err, err.Error())
	}
	if c.isSub && c.parent != nil {
		c.parent.subFinished()
	}
	c.endTransaction()
	return nil
}

// Rollback aborts the current transaction. Unlike Commit, Rollback is legal
// even from StageAbort, per spec.md §4.2.
func (c *Connection) Rollback(tok OwnerToken) error {
	sp := c.span("Rollback")
	defer sp.Finish()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOwner(tok); err != nil {
		return err
	}
	err := c.txm.Rollback(c.txid)
	if c.isSub && c.parent != nil {
		c.parent.subFinished()
	}
	c.endTransaction()
	if err != nil {
		return errs.ConnectionFailed.Wrap(err, err.Error())
	}
	return nil
}

// subFinished decrements the parent's child counter and wakes any Destroy
// waiting on it, grounded on WDestroyConnection's
// pthread_mutex_lock(&parent->child_lock); parent->child_count--.
func (c *Connection) subFinished() {
	c.mu.Lock()
	c.childCount--
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Destroy releases the connection. If it has outstanding subconnections, it
// waits (looping on a condition variable, guarding against spurious wake)
// until child_count reaches zero, per SUPPLEMENTED FEATURES #9 grounded on
// WDestroyConnection's join loop.
func (c *Connection) Destroy() error {
	c.mu.Lock()
	for c.childCount > 0 {
		c.cond.Wait()
	}
	stage := c.stage
	owner := c.owner
	c.mu.Unlock()

	if stage != StageInvalid {
		// best-effort: an open transaction at Destroy time rolls back rather
		// than leaking the owner's transaction slot.
		_ = c.Rollback(owner)
	}
	c.metrics.ConnectionsOpen.Dec()
	return nil
}

// Cancel sets an atomic flag that CheckForCancel (plan.EState.Cancelled)
// polls at every ExecProcNode entry, per spec.md §4.1/§5. Safe from any
// goroutine.
func (c *Connection) Cancel() {
	atomic.StoreInt32(&c.cancelled, 1)
	c.log.Debug("session: cancellation requested")
}

// CancelAndJoin cancels and additionally blocks until the owner goroutine
// has exited the engine (returned from its current Exec/Fetch call),
// per spec.md §4.1.
func (c *Connection) CancelAndJoin() {
	c.Cancel()
	c.mu.Lock()
	for c.inEngine {
		c.cond.Wait()
	}
	c.mu.Unlock()
}

func (c *Connection) checkForCancel() bool {
	return atomic.LoadInt32(&c.cancelled) != 0
}

// enterEngine/leaveEngine bracket any call that drives the executor
// (Exec/Fetch), giving CancelAndJoin a join point.
func (c *Connection) enterEngine() {
	c.mu.Lock()
	c.inEngine = true
	c.mu.Unlock()
}

func (c *Connection) leaveEngine() {
	c.mu.Lock()
	c.inEngine = false
	c.cond.Broadcast()
	c.mu.Unlock()
}

// Planner returns the connection's injected Planner, for collaborators (the
// spi package's nested executor) that need to plan statements the connection
// itself does not run, in the same stage-machine sense.
func (c *Connection) Planner() Planner { return c.planner }

// CurrentSnapshot returns the transaction's current visibility snapshot, for
// collaborators that build their own *plan.EState sharing it (spi frames,
// delegated-scan producers).
func (c *Connection) CurrentSnapshot() plan.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// CheckCancelled reports whether Cancel has been called on this connection.
// Unlike owner-only calls, cancellation is a polling check made from
// whichever goroutine is currently driving the engine (spec.md §5), so it
// takes no OwnerToken.
func (c *Connection) CheckCancelled() bool {
	return c.checkForCancel()
}

// GetTransactionId returns the current transaction id, per spec.md §4.1.
func (c *Connection) GetTransactionId(tok OwnerToken) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOwner(tok); err != nil {
		return 0, err
	}
	return c.txid, nil
}

// GetCommandId returns the next command id within the current transaction
// and advances the command counter, mirroring CommandCounterIncrement.
func (c *Connection) GetCommandId(tok OwnerToken) (uint64, error) {
	c.mu.Lock()
	txid := c.txid
	if err := c.checkOwner(tok); err != nil {
		c.mu.Unlock()
		return 0, err
	}
	c.mu.Unlock()
	return c.txm.NextCommandID(txid)
}

// BeginProcedure pushes a nested snapshot and commit-mode overlay for the
// duration of a user-defined function body, grounded on
// TakeUserSnapshot/env.h's user_type overlay (spec.md §5, §4.1).
func (c *Connection) BeginProcedure(tok OwnerToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOwner(tok); err != nil {
		return err
	}
	snap, err := c.txm.Snapshot(c.txid)
	if err != nil {
		return errs.ConnectionFailed.Wrap(err, err.Error())
	}
	c.snapStk = append(c.snapStk, c.snap)
	c.snap = snap
	c.commit.push(c.commit.effective())
	return nil
}

// EndProcedure pops the nested snapshot/commit overlay pushed by
// BeginProcedure, mirroring DropUserSnapshot/ResetTransactionCommitType.
func (c *Connection) EndProcedure(tok OwnerToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOwner(tok); err != nil {
		return err
	}
	if len(c.snapStk) == 0 {
		return errs.ContextValid.New(c.stage.String())
	}
	c.snap = c.snapStk[len(c.snapStk)-1]
	c.snapStk = c.snapStk[:len(c.snapStk)-1]
	c.commit.pop()
	return nil
}

// UserLock acquires (lockit true) or releases (lockit false) a cooperative
// application lock keyed by (group, val), per spec.md §4.1/§5, grounded on
// WUserLock.
func (c *Connection) UserLock(tok OwnerToken, group string, val int32, lockit bool) error {
	c.mu.Lock()
	err := c.checkOwner(tok)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	key := lockKey{group: group, val: val}
	if lockit {
		c.locks.Acquire(c, key)
		c.mu.Lock()
		c.heldLocks[key] = struct{}{}
		c.mu.Unlock()
		return nil
	}
	if !c.locks.Release(c, key) {
		return errs.UserLockRelease.New(group, val)
	}
	c.mu.Lock()
	delete(c.heldLocks, key)
	c.mu.Unlock()
	return nil
}
