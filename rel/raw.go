package rel

import "github.com/puzuwe/rquery/expr"

// RawStatement injects a hand-written SQL select list over its input.
// The template's Var parts are rewritten with dialect quoting at
// generation time; its Raw parts pass through verbatim. The node
// declares which input columns it reads and which columns it
// produces, so column tracking stays exact across the opaque text.
type RawStatement struct {
	input    Node
	uses     []string
	produces []string
	template expr.Fragment
}

// NewRawStatement builds a raw SQL node. Every template reference
// must appear in uses, and uses must be input columns.
func NewRawStatement(input Node, uses, produces []string, template expr.Fragment) (*RawStatement, error) {
	if len(produces) == 0 {
		return nil, &SchemaError{Op: "raw_statement", Message: "at least one produced column is required"}
	}
	if dup, ok := checkUnique(uses); ok {
		return nil, &SchemaError{Op: "raw_statement", Column: dup, Message: "duplicate used column"}
	}
	if dup, ok := checkUnique(produces); ok {
		return nil, &SchemaError{Op: "raw_statement", Column: dup, Message: "duplicate produced column"}
	}
	in := input.Schema()
	for _, c := range uses {
		if !containsString(in, c) {
			return nil, &SchemaError{Op: "raw_statement", Column: c, Message: "unknown column"}
		}
	}
	for _, c := range produces {
		if c == "" {
			return nil, &SchemaError{Op: "raw_statement", Message: "produced column name must not be empty"}
		}
	}
	for _, v := range expr.Vars(template) {
		if !containsString(uses, v) {
			return nil, &SchemaError{Op: "raw_statement", Column: v, Message: "template references undeclared column"}
		}
	}
	return &RawStatement{
		input:    input,
		uses:     copyStrings(uses),
		produces: copyStrings(produces),
		template: template,
	}, nil
}

// Input returns the child node.
func (r *RawStatement) Input() Node { return r.input }

// Template returns the SQL fragment.
func (r *RawStatement) Template() expr.Fragment { return r.template }

// Produces returns the declared output columns.
func (r *RawStatement) Produces() []string { return copyStrings(r.produces) }

func (r *RawStatement) Schema() []string      { return copyStrings(r.produces) }
func (r *RawStatement) Inputs() []Node        { return []Node{r.input} }
func (r *RawStatement) UsesLocally() []string { return copyStrings(r.uses) }
func (*RawStatement) relNode()                {}

// ExternalTransform marks a point where the plan leaves SQL: the
// generator materializes the input, hands it to the named transform,
// and resumes SQL generation over the transform's declared output.
type ExternalTransform struct {
	input     Node
	uses      []string
	produces  []string
	transform Transform
}

// NewExternalTransform builds a transform boundary node.
func NewExternalTransform(input Node, uses, produces []string, transform Transform) (*ExternalTransform, error) {
	if transform == nil {
		return nil, &SchemaError{Op: "external_transform", Message: "transform must not be nil"}
	}
	if len(uses) == 0 {
		return nil, &SchemaError{Op: "external_transform", Message: "at least one used column is required"}
	}
	if len(produces) == 0 {
		return nil, &SchemaError{Op: "external_transform", Message: "at least one produced column is required"}
	}
	if dup, ok := checkUnique(uses); ok {
		return nil, &SchemaError{Op: "external_transform", Column: dup, Message: "duplicate used column"}
	}
	if dup, ok := checkUnique(produces); ok {
		return nil, &SchemaError{Op: "external_transform", Column: dup, Message: "duplicate produced column"}
	}
	in := input.Schema()
	for _, c := range uses {
		if !containsString(in, c) {
			return nil, &SchemaError{Op: "external_transform", Column: c, Message: "unknown column"}
		}
	}
	return &ExternalTransform{
		input:     input,
		uses:      copyStrings(uses),
		produces:  copyStrings(produces),
		transform: transform,
	}, nil
}

// Input returns the child node.
func (x *ExternalTransform) Input() Node { return x.input }

// Transform returns the delegated computation.
func (x *ExternalTransform) Transform() Transform { return x.transform }

// Produces returns the declared output columns.
func (x *ExternalTransform) Produces() []string { return copyStrings(x.produces) }

func (x *ExternalTransform) Schema() []string      { return copyStrings(x.produces) }
func (x *ExternalTransform) Inputs() []Node        { return []Node{x.input} }
func (x *ExternalTransform) UsesLocally() []string { return copyStrings(x.uses) }
func (*ExternalTransform) relNode()                {}
