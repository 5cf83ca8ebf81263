package rel

import "github.com/puzuwe/rquery/expr"

// SelectRows filters rows by a predicate; the schema passes through
// unchanged.
type SelectRows struct {
	input     Node
	predicate expr.Expr
}

// NewSelectRows builds a row filter.
func NewSelectRows(input Node, predicate expr.Expr) (*SelectRows, error) {
	in := input.Schema()
	for _, v := range expr.Vars(predicate) {
		if !containsString(in, v) {
			return nil, &SchemaError{Op: "select_rows", Column: v, Message: "unknown column"}
		}
	}
	return &SelectRows{input: input, predicate: predicate}, nil
}

// Input returns the child node.
func (s *SelectRows) Input() Node { return s.input }

// Predicate returns the filter condition.
func (s *SelectRows) Predicate() expr.Expr { return s.predicate }

func (s *SelectRows) Schema() []string      { return s.input.Schema() }
func (s *SelectRows) Inputs() []Node        { return []Node{s.input} }
func (s *SelectRows) UsesLocally() []string { return expr.Vars(s.predicate) }
func (*SelectRows) relNode()                {}

// SelectColumns restricts the schema to the named columns, in the
// order given.
type SelectColumns struct {
	input   Node
	columns []string
}

// NewSelectColumns builds a column projection.
func NewSelectColumns(input Node, columns []string) (*SelectColumns, error) {
	if len(columns) == 0 {
		return nil, &SchemaError{Op: "select_columns", Message: "at least one column is required"}
	}
	if dup, ok := checkUnique(columns); ok {
		return nil, &SchemaError{Op: "select_columns", Column: dup, Message: "duplicate column"}
	}
	in := input.Schema()
	for _, c := range columns {
		if !containsString(in, c) {
			return nil, &SchemaError{Op: "select_columns", Column: c, Message: "unknown column"}
		}
	}
	return &SelectColumns{input: input, columns: copyStrings(columns)}, nil
}

// Input returns the child node.
func (s *SelectColumns) Input() Node { return s.input }

func (s *SelectColumns) Schema() []string      { return copyStrings(s.columns) }
func (s *SelectColumns) Inputs() []Node        { return []Node{s.input} }
func (s *SelectColumns) UsesLocally() []string { return copyStrings(s.columns) }
func (*SelectColumns) relNode()                {}

// RenameColumns renames columns per an old-name to new-name mapping;
// column order is preserved.
type RenameColumns struct {
	input   Node
	mapping map[string]string
	schema  []string
}

// NewRenameColumns builds a rename. Every mapped name must exist, and
// no new name may collide with another output column.
func NewRenameColumns(input Node, mapping map[string]string) (*RenameColumns, error) {
	if len(mapping) == 0 {
		return nil, &SchemaError{Op: "rename_columns", Message: "at least one rename is required"}
	}
	in := input.Schema()
	for old, next := range mapping {
		if !containsString(in, old) {
			return nil, &SchemaError{Op: "rename_columns", Column: old, Message: "unknown column"}
		}
		if next == "" {
			return nil, &SchemaError{Op: "rename_columns", Column: old, Message: "rename target must not be empty"}
		}
	}
	schema := make([]string, len(in))
	for i, c := range in {
		if next, ok := mapping[c]; ok {
			schema[i] = next
		} else {
			schema[i] = c
		}
	}
	if dup, ok := checkUnique(schema); ok {
		return nil, &SchemaError{Op: "rename_columns", Column: dup, Message: "duplicate output column"}
	}
	m := make(map[string]string, len(mapping))
	for old, next := range mapping {
		m[old] = next
	}
	return &RenameColumns{input: input, mapping: m, schema: schema}, nil
}

// Input returns the child node.
func (r *RenameColumns) Input() Node { return r.input }

// Mapping returns a copy of the old-name to new-name mapping.
func (r *RenameColumns) Mapping() map[string]string {
	m := make(map[string]string, len(r.mapping))
	for old, next := range r.mapping {
		m[old] = next
	}
	return m
}

func (r *RenameColumns) Schema() []string { return copyStrings(r.schema) }
func (r *RenameColumns) Inputs() []Node   { return []Node{r.input} }

func (r *RenameColumns) UsesLocally() []string {
	var used []string
	for _, c := range r.input.Schema() {
		if _, ok := r.mapping[c]; ok {
			used = append(used, c)
		}
	}
	return used
}

func (*RenameColumns) relNode() {}
