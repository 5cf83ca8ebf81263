package rel

import "github.com/puzuwe/rquery/expr"

// Project aggregates its input per group. The output schema is the
// group columns followed by the aggregate targets. An empty groupBy
// aggregates the whole input into one row; empty aggregates make the
// projection a distinct over the group columns.
type Project struct {
	input      Node
	groupBy    []string
	aggregates []expr.Assignment
	schema     []string
}

// NewProject builds a grouped aggregation.
func NewProject(input Node, groupBy []string, aggregates []expr.Assignment) (*Project, error) {
	if len(groupBy) == 0 && len(aggregates) == 0 {
		return nil, &SchemaError{Op: "project", Message: "project requires group columns or aggregates"}
	}
	in := input.Schema()

	if dup, ok := checkUnique(groupBy); ok {
		return nil, &SchemaError{Op: "project", Column: dup, Message: "duplicate group column"}
	}
	for _, c := range groupBy {
		if !containsString(in, c) {
			return nil, &SchemaError{Op: "project", Column: c, Message: "unknown group column"}
		}
	}

	schema := copyStrings(groupBy)
	for _, a := range aggregates {
		if a.Target == "" {
			return nil, &SchemaError{Op: "project", Message: "aggregate target must not be empty"}
		}
		if containsString(schema, a.Target) {
			return nil, &SchemaError{Op: "project", Column: a.Target, Message: "duplicate output column"}
		}
		for _, v := range expr.Vars(a.Expr) {
			if !containsString(in, v) {
				return nil, &SchemaError{Op: "project", Column: v, Message: "unknown column"}
			}
		}
		schema = append(schema, a.Target)
	}

	return &Project{
		input:      input,
		groupBy:    copyStrings(groupBy),
		aggregates: append([]expr.Assignment(nil), aggregates...),
		schema:     schema,
	}, nil
}

// Input returns the child node.
func (p *Project) Input() Node { return p.input }

// GroupBy returns the group columns in order.
func (p *Project) GroupBy() []string { return copyStrings(p.groupBy) }

// Aggregates returns a copy of the aggregate assignments in order.
func (p *Project) Aggregates() []expr.Assignment {
	return append([]expr.Assignment(nil), p.aggregates...)
}

func (p *Project) Schema() []string { return copyStrings(p.schema) }
func (p *Project) Inputs() []Node   { return []Node{p.input} }

func (p *Project) UsesLocally() []string {
	var used []string
	seen := map[string]bool{}
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			used = append(used, c)
		}
	}
	for _, c := range p.groupBy {
		add(c)
	}
	for _, a := range p.aggregates {
		for _, v := range expr.Vars(a.Expr) {
			add(v)
		}
	}
	return used
}

func (*Project) relNode() {}
