package rel

import (
	"errors"
	"fmt"
	"strings"
)

// SchemaError reports a column-level validation failure during node
// construction: an unknown column reference, a duplicate output
// column, or an invalid column name.
type SchemaError struct {
	Op      string // operator being built ("extend", "natural_join", ...)
	Column  string // offending column, if one column is at fault
	Node    string // description of the node or table involved
	Message string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Column != "" {
		fmt.Fprintf(&b, " %q", e.Column)
	}
	if e.Node != "" {
		fmt.Fprintf(&b, " (node %s)", e.Node)
	}
	return b.String()
}

// JoinKeyError reports a natural join whose input schemas share no
// column names.
type JoinKeyError struct {
	LeftColumns  []string
	RightColumns []string
}

func (e *JoinKeyError) Error() string {
	return fmt.Sprintf("natural_join: no shared columns between %v and %v",
		e.LeftColumns, e.RightColumns)
}

// IsSchemaError reports whether err is (or wraps) a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsJoinKeyError reports whether err is (or wraps) a JoinKeyError.
func IsJoinKeyError(err error) bool {
	var je *JoinKeyError
	return errors.As(err, &je)
}
