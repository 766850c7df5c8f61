package session

import (
	"io"

	"github.com/weaverdb/weaverdb-sub001/errs"
	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/plan"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

const maxStatementLen = 8191

// maxOutputArgs mirrors WeaverConnection.h's MAX_ARGS: the original's fixed
// output/bind-argument array size.
const maxOutputArgs = 64

// OutputBinding receives one projected column value per spec.md §4.10
// "Field Transfer" (component C10). Connection.OutputLink stores bindings
// by 1-based position; package transfer's RegisteredBinding and
// OutputSlot both satisfy this interface, kept narrow here so session
// does not need to import transfer.
type OutputBinding interface {
	Transfer(typeOID uint32, value interface{}, isNull bool) error
}

// statement is one prepared/executing statement, grounded on PreparedPlan
// in WeaverConnection.h: owns the plan tree, its EState, the result
// descriptor, and the output bindings bound by OutputLink.
type statement struct {
	text    string
	result  PlanResult
	es      *plan.EState
	params  expr.ParamList
	outputs map[int]OutputBinding

	inited    bool
	done      bool // no more rows (EoD observed)
	processed int64
}

func (s *statement) close() error {
	if s == nil || !s.inited {
		return nil
	}
	return plan.EndTree(s.result.Node)
}

// Parse binds SQL text to the connection, per spec.md §4.2 "New --Parse-->
// Parsed". Planning is delegated to the injected Planner (an external
// collaborator, spec.md §1); Parse itself does not understand SQL.
func (c *Connection) Parse(tok OwnerToken, sql string) error {
	sp := c.span("Parse")
	defer sp.Finish()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOwner(tok); err != nil {
		return err
	}
	if c.stage == StageInvalid || c.stage == StageAbort {
		return errs.ContextValid.New(c.stage.String())
	}
	if len(sql) > maxStatementLen {
		return errs.StatementTooLong.New(len(sql), maxStatementLen)
	}
	if c.checkForCancel() {
		return errs.Cancelled.New()
	}

	if c.stmt != nil {
		c.stmt.close()
	}
	c.stmt = &statement{text: sql, outputs: make(map[int]OutputBinding), processed: -1}
	c.stage = StageParsed
	return nil
}

// Bind attaches a positional parameter value, per spec.md §4.1 "parameter
// binding", grounded on WBindWithIndicate.
func (c *Connection) Bind(tok OwnerToken, pos int, typeOID uint32, value interface{}, isNull bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOwner(tok); err != nil {
		return err
	}
	if c.stmt == nil || c.stage == StageAbort {
		return errs.ContextValid.New(c.stage.String())
	}
	for len(c.stmt.params.Positional) < pos {
		c.stmt.params.Positional = append(c.stmt.params.Positional, expr.BoundParam{})
	}
	c.stmt.params.Positional[pos-1] = expr.BoundParam{Type: typeOID, Value: value, IsNull: isNull}
	return nil
}

// OutputLink registers binding to receive column pos's value on each Fetch,
// per spec.md §4.10, grounded on WOutputLinkInd.
func (c *Connection) OutputLink(tok OwnerToken, pos int, binding OutputBinding) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOwner(tok); err != nil {
		return err
	}
	if c.stmt == nil || c.stage == StageAbort {
		return errs.ContextValid.New(c.stage.String())
	}
	if pos <= 0 || pos > maxOutputArgs {
		return errs.ArgumentOutOfRange.New(pos, maxOutputArgs)
	}
	c.stmt.outputs[pos] = binding
	return nil
}

// Prepare plans (if not already planned) and readies the statement for
// Exec, without running it, grounded on WPrepare/PreparePlan.
func (c *Connection) Prepare(tok OwnerToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOwner(tok); err != nil {
		return err
	}
	if c.stmt == nil || c.stage == StageAbort {
		return errs.ContextValid.New(c.stage.String())
	}
	return c.plan()
}

func (c *Connection) plan() error {
	s := c.stmt
	if s.es != nil {
		return nil
	}
	paramTypes := make([]uint32, len(s.params.Positional))
	for i, p := range s.params.Positional {
		paramTypes[i] = p.Type
	}
	res, err := c.planner.Plan(s.text, paramTypes)
	if err != nil {
		c.toAbort()
		return err
	}
	s.result = res

	es := plan.NewEState(tuple.NewArena(c.ID.String()+"-exec"), len(s.params.Positional))
	es.Snapshot = c.snap
	es.Params = &s.params
	es.Cancelled = c.checkForCancel
	s.es = es
	return nil
}

// Exec drives the planned statement, per spec.md §4.2 "Parsed --Exec-->
// Exec". Non-SELECT commands are drained to completion here (matching
// WExec's do/while ExecProcNode loop for CMD_INSERT/DELETE/UPDATE); SELECT
// leaves rows for Fetch.
func (c *Connection) Exec(tok OwnerToken) error {
	sp := c.span("Exec")
	defer sp.Finish()

	c.mu.Lock()
	if err := c.checkOwner(tok); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.checkStage(StageParsed); err != nil {
		c.mu.Unlock()
		return err
	}
	s := c.stmt
	c.mu.Unlock()

	if err := func() error {
		c.mu.Lock()
		err := c.plan()
		c.mu.Unlock()
		return err
	}(); err != nil {
		return err
	}

	// CommandCounterIncrement equivalent: each Exec sees everything committed
	// to this transaction so far, per WExec's per-query-tree loop.
	if _, err := c.txm.NextCommandID(c.txid); err != nil {
		return err
	}

	c.enterEngine()
	defer c.leaveEngine()

	if !s.inited {
		if err := plan.InitTree(s.result.Node, s.es); err != nil {
			c.mu.Lock()
			c.toAbort()
			c.mu.Unlock()
			return err
		}
		s.inited = true
	}

	if s.result.Command != CmdSelect {
		for {
			_, err := plan.ExecProcNode(s.result.Node, s.es)
			if err == io.EOF {
				break
			}
			if err != nil {
				c.mu.Lock()
				c.toAbort()
				c.mu.Unlock()
				return err
			}
			s.processed++
		}
		s.done = true
	}

	c.mu.Lock()
	c.stage = StageExec
	c.mu.Unlock()
	return nil
}

// Fetch pulls the next row (or EoD), per spec.md §4.2's Fetch states,
// projecting through any registered OutputLink bindings, grounded on
// WFetch.
func (c *Connection) Fetch(tok OwnerToken) (row tuple.Row, eod bool, err error) {
	sp := c.span("Fetch")
	defer sp.Finish()

	c.mu.Lock()
	if err := c.checkOwner(tok); err != nil {
		c.mu.Unlock()
		return nil, false, err
	}
	if c.stage == StageEoD {
		c.mu.Unlock()
		return nil, false, errs.EndOfData.New()
	}
	if err := c.checkStage(StageExec, StageFetch); err != nil {
		c.mu.Unlock()
		return nil, false, err
	}
	s := c.stmt
	c.mu.Unlock()

	if s.done {
		c.mu.Lock()
		c.stage = StageEoD
		c.mu.Unlock()
		return nil, true, nil
	}

	c.enterEngine()
	defer c.leaveEngine()

	r, err := plan.ExecProcNode(s.result.Node, s.es)
	if err == io.EOF {
		s.done = true
		c.mu.Lock()
		c.stage = StageEoD
		c.mu.Unlock()
		return nil, true, nil
	}
	if err != nil {
		c.mu.Lock()
		c.toAbort()
		c.mu.Unlock()
		return nil, false, err
	}
	s.processed++

	if err := s.transferOutputs(r); err != nil {
		c.mu.Lock()
		c.toAbort()
		c.mu.Unlock()
		return nil, false, err
	}

	c.mu.Lock()
	c.stage = StageFetch
	c.mu.Unlock()
	return r, false, nil
}

func (s *statement) transferOutputs(row tuple.Row) error {
	if len(s.outputs) == 0 {
		return nil
	}
	for pos, binding := range s.outputs {
		i := pos - 1
		if i < 0 || i >= len(row) {
			return errs.NoSuchAttribute.New(pos)
		}
		v := row[i]
		var typeOID uint32
		if s.result.Desc != nil && i < len(s.result.Desc.Attrs) {
			typeOID = s.result.Desc.Attrs[i].TypeOID
		}
		if err := binding.Transfer(typeOID, v, v == nil); err != nil {
			return err
		}
	}
	return nil
}

// StreamExec runs each statement in turn (Parse, Exec, then Fetch to EoD)
// in fire-and-forget multi-statement mode: best-effort, not atomic across
// statements (Open Question resolution in SPEC_FULL.md). It commits nothing
// itself and stops at the first error; the statements before the failing
// one have run inside the caller's open transaction, and a failure in Exec
// or Fetch leaves the connection abort-only.
func (c *Connection) StreamExec(tok OwnerToken, statements []string) error {
	for _, text := range statements {
		if err := c.Parse(tok, text); err != nil {
			return err
		}
		if err := c.Exec(tok); err != nil {
			return err
		}
		for {
			_, eod, err := c.Fetch(tok)
			if err != nil {
				return err
			}
			if eod {
				break
			}
		}
	}
	return nil
}
