// Package rel is the operator-tree intermediate representation of the
// compiler. A tree is built bottom-up from TableDescription leaves
// through constructor functions that validate column references at
// construction time; a node that exists is a node whose schema is
// known and whose references resolve. Nodes are immutable, so a built
// subtree can appear under several parents.
package rel

// Node is one operator in a relational tree. The concrete types are
// Table, Extend, Project, NaturalJoin, ThetaJoin, SelectRows,
// SelectColumns, RenameColumns, OrderBy, RawStatement and
// ExternalTransform; compiler passes switch exhaustively on them.
type Node interface {
	relNode()

	// Schema returns the ordered, duplicate-free output columns.
	Schema() []string

	// Inputs returns the child nodes in fixed order (left, right).
	Inputs() []Node

	// UsesLocally returns the input columns this node itself reads:
	// expression references, join keys, sort keys. Pass-through
	// columns are not included.
	UsesLocally() []string
}

// Transform is something the generated plan can delegate a stage to
// when a computation cannot be expressed in SQL. The execution layer
// decides what a transform actually does; the tree only carries its
// name and declared column contract.
type Transform interface {
	TransformName() string
}

// SortKey orders by one column.
type SortKey struct {
	Column     string
	Descending bool
}
