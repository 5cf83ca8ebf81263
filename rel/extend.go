package rel

import "github.com/puzuwe/rquery/expr"

// Extend adds derived columns to its input. Each assignment may read
// input columns or the targets of other assignments in the same
// batch; the partitioner later splits interdependent batches into
// nested stages. Targets that collide with input columns replace
// them in place, targets that are new append to the schema.
type Extend struct {
	input       Node
	assignments []expr.Assignment
	partitionBy []string
	windowOrder []SortKey
	schema      []string
}

// NewExtend builds a plain (non-windowed) extend.
func NewExtend(input Node, assignments []expr.Assignment) (*Extend, error) {
	return NewExtendWindowed(input, assignments, nil, nil)
}

// NewExtendWindowed builds an extend whose assignments are evaluated
// per window, partitioned by partitionBy and ordered by windowOrder.
// Both may be empty; an extend is windowed when either is set.
func NewExtendWindowed(input Node, assignments []expr.Assignment, partitionBy []string, windowOrder []SortKey) (*Extend, error) {
	if len(assignments) == 0 {
		return nil, &SchemaError{Op: "extend", Message: "extend requires at least one assignment"}
	}
	in := input.Schema()

	targets := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if a.Target == "" {
			return nil, &SchemaError{Op: "extend", Message: "assignment target must not be empty"}
		}
		targets = append(targets, a.Target)
	}
	for _, a := range assignments {
		for _, v := range expr.Vars(a.Expr) {
			if !containsString(in, v) && !containsString(targets, v) {
				return nil, &SchemaError{Op: "extend", Column: v, Message: "unknown column"}
			}
		}
	}
	if dup, ok := checkUnique(partitionBy); ok {
		return nil, &SchemaError{Op: "extend", Column: dup, Message: "duplicate partition column"}
	}
	for _, c := range partitionBy {
		if !containsString(in, c) {
			return nil, &SchemaError{Op: "extend", Column: c, Message: "unknown partition column"}
		}
	}
	for _, k := range windowOrder {
		if !containsString(in, k.Column) {
			return nil, &SchemaError{Op: "extend", Column: k.Column, Message: "unknown window order column"}
		}
	}

	schema := copyStrings(in)
	for _, t := range targets {
		if !containsString(schema, t) {
			schema = append(schema, t)
		}
	}

	return &Extend{
		input:       input,
		assignments: append([]expr.Assignment(nil), assignments...),
		partitionBy: copyStrings(partitionBy),
		windowOrder: append([]SortKey(nil), windowOrder...),
		schema:      schema,
	}, nil
}

// Input returns the child node.
func (e *Extend) Input() Node { return e.input }

// Assignments returns a copy of the assignment batch in order.
func (e *Extend) Assignments() []expr.Assignment {
	return append([]expr.Assignment(nil), e.assignments...)
}

// PartitionBy returns the window partition columns.
func (e *Extend) PartitionBy() []string { return copyStrings(e.partitionBy) }

// WindowOrder returns the window ordering keys.
func (e *Extend) WindowOrder() []SortKey {
	return append([]SortKey(nil), e.windowOrder...)
}

// Windowed reports whether the extend carries a window clause.
func (e *Extend) Windowed() bool {
	return len(e.partitionBy) > 0 || len(e.windowOrder) > 0
}

func (e *Extend) Schema() []string { return copyStrings(e.schema) }
func (e *Extend) Inputs() []Node   { return []Node{e.input} }

func (e *Extend) UsesLocally() []string {
	in := e.input.Schema()
	var used []string
	seen := map[string]bool{}
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			used = append(used, c)
		}
	}
	for _, a := range e.assignments {
		for _, v := range expr.Vars(a.Expr) {
			if containsString(in, v) {
				add(v)
			}
		}
	}
	for _, c := range e.partitionBy {
		add(c)
	}
	for _, k := range e.windowOrder {
		add(k.Column)
	}
	return used
}

func (*Extend) relNode() {}
