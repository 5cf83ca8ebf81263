// Package expr models the expressions that annotate relational
// operator trees: column references, literal constants, and opaque
// SQL fragments with embedded references. Expressions are plain
// immutable values; they carry no schema knowledge of their own.
package expr

import "strings"

// Expr is a sealed expression. The concrete types are Var, Const
// and Fragment; consumers switch exhaustively on them.
type Expr interface {
	isExpr()

	// String renders the expression in a dialect-neutral form for
	// diagnostics and tree formatting. Column references appear bare.
	String() string
}

// Part is one piece of a Fragment: either a column reference that
// participates in dependency analysis (Var, Const) or raw SQL text
// that passes through untouched (Raw).
type Part interface {
	isPart()
}

// Var references a column of the operator's input by name.
type Var struct {
	Name string
}

// Const wraps a literal value.
type Const struct {
	Value Value
}

// Raw is verbatim SQL text inside a Fragment. It is never inspected,
// quoted or rewritten.
type Raw struct {
	Text string
}

// Fragment is an opaque expression assembled from parts. Only its
// Var parts participate in column tracking; Raw parts are emitted
// as written.
type Fragment struct {
	Parts []Part
}

func (Var) isExpr()      {}
func (Const) isExpr()    {}
func (Fragment) isExpr() {}

func (Var) isPart()   {}
func (Const) isPart() {}
func (Raw) isPart()   {}

func (v Var) String() string   { return v.Name }
func (c Const) String() string { return c.Value.GoString() }

func (f Fragment) String() string {
	var b strings.Builder
	for _, p := range f.Parts {
		switch p := p.(type) {
		case Var:
			b.WriteString(p.Name)
		case Const:
			b.WriteString(p.Value.GoString())
		case Raw:
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// NewFragment assembles a Fragment from parts in order.
func NewFragment(parts ...Part) Fragment {
	return Fragment{Parts: parts}
}

// Vars returns the column names an expression reads, in first-use
// order with duplicates removed.
func Vars(e Expr) []string {
	var names []string
	seen := map[string]bool{}
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	switch e := e.(type) {
	case Var:
		add(e.Name)
	case Const:
	case Fragment:
		for _, p := range e.Parts {
			if v, ok := p.(Var); ok {
				add(v.Name)
			}
		}
	}
	return names
}

// Assignment binds an expression to a target column name.
type Assignment struct {
	Target string
	Expr   Expr
}

// Assign is shorthand for building an Assignment.
func Assign(target string, e Expr) Assignment {
	return Assignment{Target: target, Expr: e}
}
