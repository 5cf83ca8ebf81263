package sqlgen

import (
	"errors"
	"fmt"

	"github.com/puzuwe/rquery/rel"
)

// UnsupportedError reports a tree that needs a capability the target
// dialect lacks. Generation never degrades silently; callers choose a
// capable dialect or restructure the tree.
type UnsupportedError struct {
	Dialect    string
	Capability string
	Node       string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("dialect %q does not support %s (required by %s)",
		e.Dialect, e.Capability, e.Node)
}

// IsUnsupportedError reports whether err is (or wraps) an
// UnsupportedError.
func IsUnsupportedError(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}

// Step is one element of a generated plan, either a SQL statement or
// a delegated transform. The concrete types are SQLStep and
// TransformStep.
type Step interface {
	isStep()
}

// SQLStep is a SELECT to run. When Table is non-empty the result must
// be materialized under that staging name for later steps; an empty
// Table marks the final query whose rows are the plan's result.
// Staging names are deterministic placeholders; the execution layer
// maps them to physical names.
type SQLStep struct {
	Table   string
	Columns []string
	SQL     string
}

// TransformStep hands the Incoming staging table to a transform that
// must produce the Outgoing staging table with the listed columns.
type TransformStep struct {
	Incoming  string
	Outgoing  string
	Columns   []string
	Transform rel.Transform
}

func (SQLStep) isStep()       {}
func (TransformStep) isStep() {}
