package rel

import "github.com/puzuwe/rquery/expr"

// JoinType selects the SQL join flavor.
type JoinType string

const (
	InnerJoin JoinType = "INNER"
	LeftJoin  JoinType = "LEFT"
	RightJoin JoinType = "RIGHT"
	FullJoin  JoinType = "FULL"
)

func validJoinType(jt JoinType) bool {
	switch jt {
	case InnerJoin, LeftJoin, RightJoin, FullJoin:
		return true
	}
	return false
}

// NaturalJoin joins two inputs on every column name they share. The
// key set is the intersection of the schemas in left-schema order;
// the output schema is the left schema followed by the right-only
// columns.
type NaturalJoin struct {
	left     Node
	right    Node
	joinType JoinType
	keys     []string
	schema   []string
}

// NewNaturalJoin builds a natural join. Inputs whose schemas share no
// columns are rejected with a JoinKeyError rather than silently
// producing a cross join.
func NewNaturalJoin(left, right Node, joinType JoinType) (*NaturalJoin, error) {
	if !validJoinType(joinType) {
		return nil, &SchemaError{Op: "natural_join", Message: "invalid join type", Node: string(joinType)}
	}
	ls, rs := left.Schema(), right.Schema()
	keys := intersect(ls, rs)
	if len(keys) == 0 {
		return nil, &JoinKeyError{LeftColumns: ls, RightColumns: rs}
	}
	schema := append(copyStrings(ls), subtract(rs, keys)...)
	return &NaturalJoin{
		left:     left,
		right:    right,
		joinType: joinType,
		keys:     keys,
		schema:   schema,
	}, nil
}

// Left returns the left input.
func (j *NaturalJoin) Left() Node { return j.left }

// Right returns the right input.
func (j *NaturalJoin) Right() Node { return j.right }

// JoinType returns the join flavor.
func (j *NaturalJoin) JoinType() JoinType { return j.joinType }

// Keys returns the shared key columns in left-schema order.
func (j *NaturalJoin) Keys() []string { return copyStrings(j.keys) }

func (j *NaturalJoin) Schema() []string      { return copyStrings(j.schema) }
func (j *NaturalJoin) Inputs() []Node        { return []Node{j.left, j.right} }
func (j *NaturalJoin) UsesLocally() []string { return copyStrings(j.keys) }
func (*NaturalJoin) relNode()                {}

// ThetaJoin joins two inputs on an explicit predicate. The input
// schemas must be disjoint so every predicate reference resolves to
// exactly one side.
type ThetaJoin struct {
	left      Node
	right     Node
	joinType  JoinType
	predicate expr.Expr
	schema    []string
}

// NewThetaJoin builds a predicate join.
func NewThetaJoin(left, right Node, predicate expr.Expr, joinType JoinType) (*ThetaJoin, error) {
	if !validJoinType(joinType) {
		return nil, &SchemaError{Op: "theta_join", Message: "invalid join type", Node: string(joinType)}
	}
	ls, rs := left.Schema(), right.Schema()
	if shared := intersect(ls, rs); len(shared) > 0 {
		return nil, &SchemaError{Op: "theta_join", Column: shared[0], Message: "column appears on both sides"}
	}
	schema := append(copyStrings(ls), rs...)
	for _, v := range expr.Vars(predicate) {
		if !containsString(schema, v) {
			return nil, &SchemaError{Op: "theta_join", Column: v, Message: "unknown column"}
		}
	}
	return &ThetaJoin{
		left:      left,
		right:     right,
		joinType:  joinType,
		predicate: predicate,
		schema:    schema,
	}, nil
}

// Left returns the left input.
func (j *ThetaJoin) Left() Node { return j.left }

// Right returns the right input.
func (j *ThetaJoin) Right() Node { return j.right }

// JoinType returns the join flavor.
func (j *ThetaJoin) JoinType() JoinType { return j.joinType }

// Predicate returns the join condition.
func (j *ThetaJoin) Predicate() expr.Expr { return j.predicate }

func (j *ThetaJoin) Schema() []string      { return copyStrings(j.schema) }
func (j *ThetaJoin) Inputs() []Node        { return []Node{j.left, j.right} }
func (j *ThetaJoin) UsesLocally() []string { return expr.Vars(j.predicate) }
func (*ThetaJoin) relNode()                {}
