// Package narrow prunes unused columns from an operator tree. The
// pass walks backward from the root's needed columns, shrinks every
// operator to what its consumers actually read, and materializes each
// table leaf's needed set as an explicit column selection directly
// above the scan. Running the pass on its own output changes nothing.
package narrow

import (
	"sort"

	"github.com/puzuwe/rquery/expr"
	"github.com/puzuwe/rquery/rel"
)

type colSet map[string]bool

func setOf(cols []string) colSet {
	s := make(colSet, len(cols))
	for _, c := range cols {
		s[c] = true
	}
	return s
}

func (s colSet) clone() colSet {
	out := make(colSet, len(s))
	for c := range s {
		out[c] = true
	}
	return out
}

func (s colSet) addAll(cols []string) {
	for _, c := range cols {
		s[c] = true
	}
}

// ordered returns the members of s that occur in order, keeping
// order's sequence.
func ordered(order []string, s colSet) []string {
	var out []string
	for _, c := range order {
		if s[c] {
			out = append(out, c)
		}
	}
	return out
}

// Narrow rewrites the tree so only needed columns flow through it.
// keep names the columns required at the root; nil keeps the full
// root schema. Every table leaf in the result carries an explicit
// SelectColumns of exactly the columns the tree reads from it, unless
// it already needs the whole table.
func Narrow(n rel.Node, keep []string) (rel.Node, error) {
	schema := n.Schema()
	needed := setOf(schema)
	if keep != nil {
		needed = make(colSet, len(keep))
		for _, c := range keep {
			found := false
			for _, s := range schema {
				if s == c {
					found = true
					break
				}
			}
			if !found {
				return nil, &rel.SchemaError{Op: "narrow", Column: c, Message: "unknown column"}
			}
			needed[c] = true
		}
	}
	return rewrite(n, needed)
}

// ColumnsUsed reports which columns the tree reads from each table,
// as table name to sorted column names. A table scanned twice
// contributes the union of both uses.
func ColumnsUsed(n rel.Node) map[string][]string {
	acc := map[string]colSet{}
	collect(n, setOf(n.Schema()), acc)
	out := make(map[string][]string, len(acc))
	for name, cols := range acc {
		sorted := make([]string, 0, len(cols))
		for c := range cols {
			sorted = append(sorted, c)
		}
		sort.Strings(sorted)
		out[name] = sorted
	}
	return out
}

// inputNeeds computes, for each input of n, the columns that input
// must supply so n can produce the needed columns. The slice aligns
// with n.Inputs().
func inputNeeds(n rel.Node, needed colSet) []colSet {
	switch n := n.(type) {
	case *rel.Table:
		return nil
	case *rel.Extend:
		keep := assignmentClosure(n.Assignments(), needed)
		in := setOf(n.Input().Schema())
		need := colSet{}
		for c := range keep {
			if in[c] {
				need[c] = true
			}
		}
		need.addAll(n.PartitionBy())
		for _, k := range n.WindowOrder() {
			need[k.Column] = true
		}
		return []colSet{need}
	case *rel.Project:
		need := setOf(n.GroupBy())
		for _, a := range n.Aggregates() {
			if needed[a.Target] {
				need.addAll(expr.Vars(a.Expr))
			}
		}
		return []colSet{need}
	case *rel.NaturalJoin:
		keys := n.Keys()
		left := colSet{}
		for _, c := range n.Left().Schema() {
			if needed[c] {
				left[c] = true
			}
		}
		left.addAll(keys)
		right := colSet{}
		for _, c := range n.Right().Schema() {
			if needed[c] {
				right[c] = true
			}
		}
		right.addAll(keys)
		return []colSet{left, right}
	case *rel.ThetaJoin:
		want := needed.clone()
		want.addAll(expr.Vars(n.Predicate()))
		left := colSet{}
		for _, c := range n.Left().Schema() {
			if want[c] {
				left[c] = true
			}
		}
		right := colSet{}
		for _, c := range n.Right().Schema() {
			if want[c] {
				right[c] = true
			}
		}
		return []colSet{left, right}
	case *rel.SelectRows:
		need := needed.clone()
		need.addAll(expr.Vars(n.Predicate()))
		return []colSet{need}
	case *rel.SelectColumns:
		return []colSet{needed.clone()}
	case *rel.RenameColumns:
		inverse := map[string]string{}
		for old, next := range n.Mapping() {
			inverse[next] = old
		}
		need := colSet{}
		for c := range needed {
			if old, ok := inverse[c]; ok {
				need[old] = true
			} else {
				need[c] = true
			}
		}
		return []colSet{need}
	case *rel.OrderBy:
		need := needed.clone()
		for _, k := range n.Keys() {
			need[k.Column] = true
		}
		return []colSet{need}
	case *rel.RawStatement:
		return []colSet{setOf(n.UsesLocally())}
	case *rel.ExternalTransform:
		return []colSet{setOf(n.UsesLocally())}
	}
	return nil
}

// assignmentClosure expands needed with every column the needed
// assignments read, transitively through targets assigned in the same
// batch.
func assignmentClosure(assignments []expr.Assignment, needed colSet) colSet {
	keep := needed.clone()
	for changed := true; changed; {
		changed = false
		for _, a := range assignments {
			if !keep[a.Target] {
				continue
			}
			for _, v := range expr.Vars(a.Expr) {
				if !keep[v] {
					keep[v] = true
					changed = true
				}
			}
		}
	}
	return keep
}

func collect(n rel.Node, needed colSet, acc map[string]colSet) {
	if t, ok := n.(*rel.Table); ok {
		name := t.TableName()
		if acc[name] == nil {
			acc[name] = colSet{}
		}
		if len(needed) == 0 {
			needed = setOf(t.Schema())
		}
		for c := range needed {
			acc[name][c] = true
		}
		return
	}
	needs := inputNeeds(n, needed)
	for i, in := range n.Inputs() {
		collect(in, needs[i], acc)
	}
}

func rewrite(n rel.Node, needed colSet) (rel.Node, error) {
	// An empty needed set means nothing downstream reads this branch
	// (a join side kept only for its rows). The scan still has to
	// produce something, so the branch keeps its full schema rather
	// than an arbitrary single-column projection.
	if len(needed) == 0 {
		needed = setOf(n.Schema())
	}
	needs := inputNeeds(n, needed)

	switch n := n.(type) {
	case *rel.Table:
		cols := ordered(n.Schema(), needed)
		if len(cols) == len(n.Schema()) {
			return n, nil
		}
		return rel.NewSelectColumns(n, cols)

	case *rel.Extend:
		keep := assignmentClosure(n.Assignments(), needed)
		var kept []expr.Assignment
		for _, a := range n.Assignments() {
			if keep[a.Target] {
				kept = append(kept, a)
			}
		}
		input, err := rewrite(n.Input(), needs[0])
		if err != nil {
			return nil, err
		}
		if len(kept) == 0 {
			return input, nil
		}
		if n.Windowed() {
			return rel.NewExtendWindowed(input, kept, n.PartitionBy(), n.WindowOrder())
		}
		return rel.NewExtend(input, kept)

	case *rel.Project:
		var kept []expr.Assignment
		for _, a := range n.Aggregates() {
			if needed[a.Target] {
				kept = append(kept, a)
			}
		}
		input, err := rewrite(n.Input(), needs[0])
		if err != nil {
			return nil, err
		}
		return rel.NewProject(input, n.GroupBy(), kept)

	case *rel.NaturalJoin:
		left, err := rewrite(n.Left(), needs[0])
		if err != nil {
			return nil, err
		}
		right, err := rewrite(n.Right(), needs[1])
		if err != nil {
			return nil, err
		}
		return rel.NewNaturalJoin(left, right, n.JoinType())

	case *rel.ThetaJoin:
		left, err := rewrite(n.Left(), needs[0])
		if err != nil {
			return nil, err
		}
		right, err := rewrite(n.Right(), needs[1])
		if err != nil {
			return nil, err
		}
		return rel.NewThetaJoin(left, right, n.Predicate(), n.JoinType())

	case *rel.SelectRows:
		input, err := rewrite(n.Input(), needs[0])
		if err != nil {
			return nil, err
		}
		return rel.NewSelectRows(input, n.Predicate())

	case *rel.SelectColumns:
		cols := ordered(n.Schema(), needed)
		// A selection sitting on a scan is the leaf projection itself;
		// recursing would stack a second one under it.
		if t, ok := n.Input().(*rel.Table); ok {
			if len(cols) == len(t.Schema()) {
				same := true
				for i, c := range t.Schema() {
					if cols[i] != c {
						same = false
						break
					}
				}
				if same {
					return t, nil
				}
			}
			return rel.NewSelectColumns(t, cols)
		}
		input, err := rewrite(n.Input(), needs[0])
		if err != nil {
			return nil, err
		}
		return rel.NewSelectColumns(input, cols)

	case *rel.RenameColumns:
		input, err := rewrite(n.Input(), needs[0])
		if err != nil {
			return nil, err
		}
		restricted := map[string]string{}
		for old, next := range n.Mapping() {
			if needed[next] {
				restricted[old] = next
			}
		}
		if len(restricted) == 0 {
			return input, nil
		}
		return rel.NewRenameColumns(input, restricted)

	case *rel.OrderBy:
		input, err := rewrite(n.Input(), needs[0])
		if err != nil {
			return nil, err
		}
		limit, _ := n.Limit()
		return rel.NewOrderByLimit(input, n.Keys(), limit)

	case *rel.RawStatement:
		input, err := rewrite(n.Input(), needs[0])
		if err != nil {
			return nil, err
		}
		return rel.NewRawStatement(input, n.UsesLocally(), n.Produces(), n.Template())

	case *rel.ExternalTransform:
		input, err := rewrite(n.Input(), needs[0])
		if err != nil {
			return nil, err
		}
		return rel.NewExternalTransform(input, n.UsesLocally(), n.Produces(), n.Transform())
	}
	return n, nil
}
