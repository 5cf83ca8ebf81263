package rel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/puzuwe/rquery/expr"
)

// ColumnNames returns the ordered output columns of a tree.
func ColumnNames(n Node) []string { return n.Schema() }

// TablesUsed returns the names of every table the tree scans, sorted
// and deduplicated.
func TablesUsed(n Node) []string {
	seen := map[string]bool{}
	var walk func(Node)
	walk = func(n Node) {
		if t, ok := n.(*Table); ok {
			seen[t.TableName()] = true
		}
		for _, in := range n.Inputs() {
			walk(in)
		}
	}
	walk(n)
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Format renders the tree as indented text, one operator per line,
// children below their parent. The output is deterministic and meant
// for humans and tests, not for parsing.
func Format(n Node) string {
	var b strings.Builder
	formatNode(&b, n, 0)
	return b.String()
}

func formatNode(b *strings.Builder, n Node, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	b.WriteString(describe(n))
	b.WriteString("\n")
	for _, in := range n.Inputs() {
		formatNode(b, in, depth+1)
	}
}

func describe(n Node) string {
	switch n := n.(type) {
	case *Table:
		return fmt.Sprintf("table %s %v", n.TableName(), n.Schema())
	case *Extend:
		parts := make([]string, 0, len(n.assignments))
		for _, a := range n.assignments {
			parts = append(parts, fmt.Sprintf("%s := %s", a.Target, a.Expr.String()))
		}
		s := "extend " + strings.Join(parts, ", ")
		if n.Windowed() {
			s += fmt.Sprintf(" window(partition %v order %s)", n.partitionBy, formatKeys(n.windowOrder))
		}
		return s
	case *Project:
		parts := make([]string, 0, len(n.aggregates))
		for _, a := range n.aggregates {
			parts = append(parts, fmt.Sprintf("%s := %s", a.Target, a.Expr.String()))
		}
		return fmt.Sprintf("project group %v: %s", n.groupBy, strings.Join(parts, ", "))
	case *NaturalJoin:
		return fmt.Sprintf("natural_join %s on %v", n.joinType, n.keys)
	case *ThetaJoin:
		return fmt.Sprintf("theta_join %s on %s", n.joinType, n.predicate.String())
	case *SelectRows:
		return "select_rows " + n.predicate.String()
	case *SelectColumns:
		return fmt.Sprintf("select_columns %v", n.columns)
	case *RenameColumns:
		pairs := make([]string, 0, len(n.mapping))
		for _, c := range n.input.Schema() {
			if next, ok := n.mapping[c]; ok {
				pairs = append(pairs, c+" -> "+next)
			}
		}
		return "rename_columns " + strings.Join(pairs, ", ")
	case *OrderBy:
		s := "order_by " + formatKeys(n.keys)
		if limit, ok := n.Limit(); ok {
			s += fmt.Sprintf(" limit %d", limit)
		}
		return s
	case *RawStatement:
		return fmt.Sprintf("raw_statement produces %v: %s", n.produces, expr.Expr(n.template).String())
	case *ExternalTransform:
		return fmt.Sprintf("external_transform %s produces %v", n.transform.TransformName(), n.produces)
	default:
		return fmt.Sprintf("%T", n)
	}
}

func formatKeys(keys []SortKey) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if k.Descending {
			parts = append(parts, k.Column+" DESC")
		} else {
			parts = append(parts, k.Column)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
