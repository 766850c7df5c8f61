// Package explain implements the plan-printing facility of spec.md §2
// (component C9): a cost-annotated recursive text dump of a plan tree,
// grounded directly on mtpgsql/src/backend/commands/explain.c's
// explain_outNode.
package explain

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/weaverdb/weaverdb-sub001/plan"
)

// Costed is implemented by a plan node that can report its planner-estimated
// cost, matching explain_outNode's "(cost=%.2f..%.2f rows=%.0f width=%d)"
// annotation. No plan.Node in this core currently implements it (the
// cost-based planner is explicitly out of scope per spec.md §1), but
// Explain supports it so a future estimating planner's nodes print their
// numbers without any change to this package.
type Costed interface {
	Cost() (startup, total float64, rows float64, width int)
}

// relOID extracts the scanned relation's OID from a scan node, matching
// explain_outNode's "on <relation>" suffix for T_SeqScan/T_IndexScan/
// T_TidScan (and their delegated variants). The core has no catalog-name
// lookup wired into plan nodes (only the OID survives planning), so the
// annotation prints the OID itself rather than a resolved name; ok is
// false for non-scan node types, which print no "on" suffix at all.
func relOID(n plan.Node) (oid uint32, ok bool) {
	switch s := n.(type) {
	case *plan.SeqScanNode:
		return s.RelOID, true
	case *plan.IndexScanNode:
		return s.RelOID, true
	case *plan.DelegatedSeqScanNode:
		return s.RelOID, true
	case *plan.DelegatedIndexScanNode:
		return s.RelOID, true
	case *plan.TidScanNode:
		return s.RelOID, true
	default:
		return 0, false
	}
}

// scanMethod extracts the access method name from an index scan node,
// matching explain_outNode's "Index Scan using <method> on <relation>"
// phrasing.
func scanMethod(n plan.Node) (name string, ok bool) {
	switch s := n.(type) {
	case *plan.IndexScanNode:
		return s.Method.Name(), true
	case *plan.DelegatedIndexScanNode:
		return s.Method.Name(), true
	default:
		return "", false
	}
}

// Text renders root and its whole subtree as an indented text block, one
// line per node; a node at depth d > 0 is prefixed by 2*(d-1) spaces and
// "  ->  ".
func Text(root plan.Node) string {
	var b strings.Builder
	writeNode(&b, root, 0)
	return b.String()
}

func writeNode(b *strings.Builder, n plan.Node, depth int) {
	if n == nil {
		b.WriteByte('\n')
		return
	}

	if depth > 0 {
		b.WriteString(strings.Repeat("  ", depth-1))
		b.WriteString("  ->  ")
	}
	b.WriteString(nodeName(n))
	if method, ok := scanMethod(n); ok {
		fmt.Fprintf(b, " using %s", method)
	}
	if oid, ok := relOID(n); ok {
		fmt.Fprintf(b, " on relation %d", oid)
	}
	if c, ok := n.(Costed); ok {
		startup, total, rows, width := c.Cost()
		fmt.Fprintf(b, "  (cost=%.2f..%.2f rows=%.0f width=%d)", startup, total, rows, width)
	}
	b.WriteByte('\n')

	for _, child := range n.Children() {
		writeNode(b, child, depth+1)
	}
}

// nodeName resolves the label explain_outNode's pname switch would print.
// The explicit cases match the original's node-tag switch one for one;
// reflect.TypeOf is a fallback for node types the switch doesn't recognize
// (e.g. a future extension) rather than a hard failure, trimming the
// "Node" suffix the teacher's types all carry.
func nodeName(n plan.Node) string {
	switch n.(type) {
	case *plan.ResultNode:
		return "Result"
	case *plan.AppendNode:
		return "Append"
	case *plan.NestLoopNode:
		return "Nested Loop"
	case *plan.MergeJoinNode:
		return "Merge Join"
	case *plan.HashJoinNode:
		return "Hash Join"
	case *plan.HashNode:
		return "Hash"
	case *plan.SeqScanNode:
		return "Seq Scan"
	case *plan.DelegatedSeqScanNode:
		return "Delegated Seq Scan"
	case *plan.IndexScanNode:
		return "Index Scan"
	case *plan.DelegatedIndexScanNode:
		return "Delegated Index Scan"
	case *plan.TidScanNode:
		return "Tid Scan"
	case *plan.MaterialNode:
		return "Materialize"
	case *plan.SortNode:
		return "Sort"
	case *plan.GroupNode:
		return "Group"
	case *plan.AggNode:
		return "Aggregate"
	case *plan.UniqueNode:
		return "Unique"
	default:
		t := reflect.TypeOf(n)
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		return strings.TrimSuffix(t.Name(), "Node")
	}
}
