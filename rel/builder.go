package rel

import "github.com/puzuwe/rquery/expr"

// Builder chains operator constructors fluently. The first
// construction error sticks; later calls become no-ops and Build
// returns it, so pipelines read top to bottom without per-step error
// plumbing.
type Builder struct {
	node Node
	err  error
}

// From starts a pipeline at a table scan.
func From(desc *TableDescription) *Builder {
	return &Builder{node: NewTable(desc)}
}

// FromNode starts a pipeline at an existing subtree.
func FromNode(n Node) *Builder {
	return &Builder{node: n}
}

// Build returns the assembled tree or the first error encountered.
func (b *Builder) Build() (Node, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.node, nil
}

// Node returns the tree built so far, ignoring any pending error.
// Prefer Build.
func (b *Builder) Node() Node { return b.node }

func (b *Builder) apply(n Node, err error) *Builder {
	if b.err != nil {
		return b
	}
	if err != nil {
		return &Builder{err: err}
	}
	return &Builder{node: n}
}

// Extend appends derived-column assignments.
func (b *Builder) Extend(assignments ...expr.Assignment) *Builder {
	if b.err != nil {
		return b
	}
	n, err := NewExtend(b.node, assignments)
	return b.apply(n, err)
}

// ExtendWindowed appends windowed assignments.
func (b *Builder) ExtendWindowed(assignments []expr.Assignment, partitionBy []string, windowOrder []SortKey) *Builder {
	if b.err != nil {
		return b
	}
	n, err := NewExtendWindowed(b.node, assignments, partitionBy, windowOrder)
	return b.apply(n, err)
}

// Project appends a grouped aggregation.
func (b *Builder) Project(groupBy []string, aggregates ...expr.Assignment) *Builder {
	if b.err != nil {
		return b
	}
	n, err := NewProject(b.node, groupBy, aggregates)
	return b.apply(n, err)
}

// NaturalJoin joins the pipeline with another subtree on shared
// column names.
func (b *Builder) NaturalJoin(right Node, joinType JoinType) *Builder {
	if b.err != nil {
		return b
	}
	n, err := NewNaturalJoin(b.node, right, joinType)
	return b.apply(n, err)
}

// ThetaJoin joins the pipeline with another subtree on a predicate.
func (b *Builder) ThetaJoin(right Node, predicate expr.Expr, joinType JoinType) *Builder {
	if b.err != nil {
		return b
	}
	n, err := NewThetaJoin(b.node, right, predicate, joinType)
	return b.apply(n, err)
}

// SelectRows appends a row filter.
func (b *Builder) SelectRows(predicate expr.Expr) *Builder {
	if b.err != nil {
		return b
	}
	n, err := NewSelectRows(b.node, predicate)
	return b.apply(n, err)
}

// SelectColumns restricts the pipeline to the named columns.
func (b *Builder) SelectColumns(columns ...string) *Builder {
	if b.err != nil {
		return b
	}
	n, err := NewSelectColumns(b.node, columns)
	return b.apply(n, err)
}

// RenameColumns renames columns per the old-name to new-name mapping.
func (b *Builder) RenameColumns(mapping map[string]string) *Builder {
	if b.err != nil {
		return b
	}
	n, err := NewRenameColumns(b.node, mapping)
	return b.apply(n, err)
}

// OrderBy appends a sort.
func (b *Builder) OrderBy(keys ...SortKey) *Builder {
	if b.err != nil {
		return b
	}
	n, err := NewOrderBy(b.node, keys)
	return b.apply(n, err)
}

// OrderByLimit appends a sort keeping at most limit rows.
func (b *Builder) OrderByLimit(limit int, keys ...SortKey) *Builder {
	if b.err != nil {
		return b
	}
	n, err := NewOrderByLimit(b.node, keys, limit)
	return b.apply(n, err)
}

// RawStatement appends a hand-written SQL stage.
func (b *Builder) RawStatement(uses, produces []string, template expr.Fragment) *Builder {
	if b.err != nil {
		return b
	}
	n, err := NewRawStatement(b.node, uses, produces, template)
	return b.apply(n, err)
}

// ExternalTransform appends a transform boundary.
func (b *Builder) ExternalTransform(uses, produces []string, transform Transform) *Builder {
	if b.err != nil {
		return b
	}
	n, err := NewExternalTransform(b.node, uses, produces, transform)
	return b.apply(n, err)
}
