package session

import "github.com/weaverdb/weaverdb-sub001/errs"

// Stage is the per-statement lifecycle state of spec.md §4.2. It is
// distinct from whether a transaction is open: a connection sits in
// StageInvalid both before its first Begin and after a Commit/Rollback.
type Stage int

const (
	StageInvalid Stage = iota
	StageNew
	StageParsed
	StageExec
	StageFetch
	StageEoD
	StageAbort
)

func (s Stage) String() string {
	switch s {
	case StageInvalid:
		return "Invalid"
	case StageNew:
		return "New"
	case StageParsed:
		return "Parsed"
	case StageExec:
		return "Exec"
	case StageFetch:
		return "Fetch"
	case StageEoD:
		return "EoD"
	case StageAbort:
		return "Abort"
	default:
		return "Unknown"
	}
}

// checkStage fails with ContextValid unless the connection's current stage
// is one of want, per spec.md §4.2's transition table (e.g. "Exec without
// prior Parse in this transaction fails ContextValid (455)").
func (c *Connection) checkStage(want ...Stage) error {
	for _, w := range want {
		if c.stage == w {
			return nil
		}
	}
	return errs.ContextValid.New(c.stage.String())
}

// toAbort moves the connection into the abort-only state, per §4.2 "Any
// error in Exec/Fetch --> Abort (connection becomes abort-only)". Once
// aborted, only Rollback is legal until the next Begin.
func (c *Connection) toAbort() {
	c.stage = StageAbort
}
