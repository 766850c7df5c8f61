package plan

import (
	"io"

	"github.com/weaverdb/weaverdb-sub001/access"
	"github.com/weaverdb/weaverdb-sub001/expr"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// TupleSource abstracts where a scan node's raw tuples come from: a heap
// relation walked directly, or (for DelegatedSeqScan/DelegatedIndexScan) a
// delegate.Consumer. Both signal exhaustion by returning ok == false with a
// nil error; execScan turns that into io.EOF.
type TupleSource interface {
	Next() (tid access.ItemPointer, row tuple.Row, ok bool, err error)
	Close() error
}

// Projector turns a raw scan tuple into the node's projected output. It is
// the scan node's ProjectionInfo, per spec.md §4.4.
type Projector struct {
	Qual []expr.Expr
	Proj expr.TargetList
}

// execScan is the reusable loop of spec.md §4.4 ExecScan: pull from src,
// bind as the scan tuple, test qual, project on match. It also implements
// the PlanQual/EPQ bypass: if es.PlanQual holds a replacement tuple for
// rtIndex, that tuple is returned once (bypassing src entirely) and then a
// null marker prevents re-return.
func execScan(es *EState, rtIndex int, scanSlot *tuple.Slot, ectx *expr.Context, src TupleSource, proj *Projector) (tuple.Row, error) {
	if repl, ok := es.PlanQual[rtIndex]; ok {
		es.PlanQual[rtIndex] = nil
		if repl == nil {
			return nil, io.EOF
		}
		scanSlot.StoreVirtual(repl)
		return projectOrPass(ectx, scanSlot, proj)
	}

	for {
		_, row, ok, err := src.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, io.EOF
		}
		scanSlot.StoreVirtual(row)
		ectx.Scan = scanSlot
		ectx.ResetPerTuple()

		ok2, err := expr.EvalQual(ectx, proj.Qual, false)
		if err != nil {
			return nil, err
		}
		if !ok2 {
			continue
		}
		return projectOrPass(ectx, scanSlot, proj)
	}
}

func projectOrPass(ectx *expr.Context, scanSlot *tuple.Slot, proj *Projector) (tuple.Row, error) {
	if proj.Proj == nil {
		return scanSlot.Tuple(), nil
	}
	out, _, err := expr.ExecTargetList(ectx, proj.Proj)
	return tuple.Row(out), err
}
