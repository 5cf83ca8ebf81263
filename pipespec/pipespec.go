// Package pipespec loads declarative pipeline definitions written in
// CUE and compiles them into operator trees. A definition declares
// its tables and a chain of steps; expressions inside steps are plain
// SQL text whose identifiers are resolved against the step's input
// schema.
package pipespec

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/puzuwe/rquery/expr"
	"github.com/puzuwe/rquery/rel"
)

// Pipeline is a compiled definition: the declared tables and the
// operator tree rooted at the last step.
type Pipeline struct {
	Tables map[string]*rel.TableDescription
	Root   rel.Node

	// Output optionally restricts the result columns.
	Output []string
}

// CompileError represents a definition error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads and compiles a pipeline definition.
func LoadFile(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline definition: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	return Compile(v)
}

// Compile turns a CUE value of the pipeline-definition shape into a
// Pipeline.
func Compile(v cue.Value) (*Pipeline, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tables, err := compileTables(v)
	if err != nil {
		return nil, err
	}

	pv := v.LookupPath(cue.ParsePath("pipeline"))
	if !pv.Exists() {
		return nil, &CompileError{Field: "pipeline", Message: "pipeline is required", Pos: v.Pos()}
	}

	fromVal := pv.LookupPath(cue.ParsePath("from"))
	if !fromVal.Exists() {
		return nil, &CompileError{Field: "pipeline.from", Message: "from is required", Pos: pv.Pos()}
	}
	from, err := fromVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	desc, ok := tables[from]
	if !ok {
		return nil, &CompileError{
			Field:   "pipeline.from",
			Message: fmt.Sprintf("unknown table %q", from),
			Pos:     fromVal.Pos(),
		}
	}

	node := rel.Node(rel.NewTable(desc))

	stepsVal := pv.LookupPath(cue.ParsePath("steps"))
	if stepsVal.Exists() {
		iter, err := stepsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			node, err = compileStep(iter.Value(), node, tables, i)
			if err != nil {
				return nil, err
			}
		}
	}

	p := &Pipeline{Tables: tables, Root: node}

	outVal := pv.LookupPath(cue.ParsePath("output"))
	if outVal.Exists() {
		p.Output, err = stringList(outVal, "pipeline.output")
		if err != nil {
			return nil, err
		}
	}

	return p, nil
}

func compileTables(v cue.Value) (map[string]*rel.TableDescription, error) {
	tv := v.LookupPath(cue.ParsePath("tables"))
	if !tv.Exists() {
		return nil, &CompileError{Field: "tables", Message: "tables are required", Pos: v.Pos()}
	}
	iter, err := tv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	tables := map[string]*rel.TableDescription{}
	for iter.Next() {
		name := iter.Label()
		cols, err := stringList(iter.Value().LookupPath(cue.ParsePath("columns")),
			fmt.Sprintf("tables.%s.columns", name))
		if err != nil {
			return nil, err
		}
		desc, err := rel.NewTableDescription(name, cols)
		if err != nil {
			return nil, &CompileError{
				Field:   "tables." + name,
				Message: err.Error(),
				Pos:     iter.Value().Pos(),
			}
		}
		tables[name] = desc
	}
	if len(tables) == 0 {
		return nil, &CompileError{Field: "tables", Message: "at least one table is required", Pos: tv.Pos()}
	}
	return tables, nil
}

// compileStep dispatches on the single operator key of a step struct.
func compileStep(v cue.Value, input rel.Node, tables map[string]*rel.TableDescription, index int) (rel.Node, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	field := fmt.Sprintf("pipeline.steps[%d]", index)

	var label string
	var body cue.Value
	count := 0
	for iter.Next() {
		label = iter.Label()
		body = iter.Value()
		count++
	}
	if count != 1 {
		return nil, &CompileError{
			Field:   field,
			Message: "step must have exactly one operator",
			Pos:     v.Pos(),
		}
	}

	var node rel.Node
	switch label {
	case "extend":
		node, err = compileExtend(body, input, field)
	case "project":
		node, err = compileProject(body, input, field)
	case "select_rows":
		node, err = compileSelectRows(body, input)
	case "select_columns":
		var cols []string
		cols, err = stringList(body, field+".select_columns")
		if err == nil {
			node, err = rel.NewSelectColumns(input, cols)
		}
	case "rename":
		node, err = compileRename(body, input)
	case "order_by":
		node, err = compileOrderBy(body, input, field)
	case "natural_join":
		node, err = compileNaturalJoin(body, input, tables, field)
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unknown operator %q", label),
			Pos:     v.Pos(),
		}
	}
	if err != nil {
		if _, ok := err.(*CompileError); ok {
			return nil, err
		}
		return nil, &CompileError{Field: field + "." + label, Message: err.Error(), Pos: body.Pos()}
	}
	return node, nil
}

func compileExtend(v cue.Value, input rel.Node, field string) (rel.Node, error) {
	assignments, err := assignmentList(v.LookupPath(cue.ParsePath("set")), input.Schema(), field+".extend.set")
	if err != nil {
		return nil, err
	}

	var partitionBy []string
	if pv := v.LookupPath(cue.ParsePath("partition_by")); pv.Exists() {
		partitionBy, err = stringList(pv, field+".extend.partition_by")
		if err != nil {
			return nil, err
		}
	}
	var windowOrder []rel.SortKey
	if ov := v.LookupPath(cue.ParsePath("order_by")); ov.Exists() {
		cols, err := stringList(ov, field+".extend.order_by")
		if err != nil {
			return nil, err
		}
		windowOrder = sortKeys(cols)
	}

	return rel.NewExtendWindowed(input, assignments, partitionBy, windowOrder)
}

func compileProject(v cue.Value, input rel.Node, field string) (rel.Node, error) {
	var groupBy []string
	var err error
	if gv := v.LookupPath(cue.ParsePath("group_by")); gv.Exists() {
		groupBy, err = stringList(gv, field+".project.group_by")
		if err != nil {
			return nil, err
		}
	}
	var aggregates []expr.Assignment
	if av := v.LookupPath(cue.ParsePath("aggregates")); av.Exists() {
		aggregates, err = assignmentList(av, input.Schema(), field+".project.aggregates")
		if err != nil {
			return nil, err
		}
	}
	return rel.NewProject(input, groupBy, aggregates)
}

func compileSelectRows(v cue.Value, input rel.Node) (rel.Node, error) {
	where, err := v.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return rel.NewSelectRows(input, ParseExpr(where, input.Schema()))
}

func compileRename(v cue.Value, input rel.Node) (rel.Node, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	mapping := map[string]string{}
	for iter.Next() {
		next, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		mapping[iter.Label()] = next
	}
	return rel.NewRenameColumns(input, mapping)
}

func compileOrderBy(v cue.Value, input rel.Node, field string) (rel.Node, error) {
	cols, err := stringList(v.LookupPath(cue.ParsePath("columns")), field+".order_by.columns")
	if err != nil {
		return nil, err
	}
	limit := 0
	if lv := v.LookupPath(cue.ParsePath("limit")); lv.Exists() {
		l, err := lv.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		limit = int(l)
	}
	return rel.NewOrderByLimit(input, sortKeys(cols), limit)
}

func compileNaturalJoin(v cue.Value, input rel.Node, tables map[string]*rel.TableDescription, field string) (rel.Node, error) {
	name, err := v.LookupPath(cue.ParsePath("table")).String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	desc, ok := tables[name]
	if !ok {
		return nil, &CompileError{
			Field:   field + ".natural_join.table",
			Message: fmt.Sprintf("unknown table %q", name),
			Pos:     v.Pos(),
		}
	}
	joinType := rel.InnerJoin
	if tv := v.LookupPath(cue.ParsePath("type")); tv.Exists() {
		s, err := tv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		joinType = rel.JoinType(strings.ToUpper(s))
	}
	return rel.NewNaturalJoin(input, rel.NewTable(desc), joinType)
}

// assignmentList parses a list of {col, expr} pairs. A list keeps the
// batch order that grouping depends on.
func assignmentList(v cue.Value, schema []string, field string) ([]expr.Assignment, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: field, Message: "assignments are required", Pos: v.Pos()}
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	// Collect pairs first: an assignment may reference targets
	// appearing later in the batch.
	type pair struct{ col, text string }
	var pairs []pair
	for iter.Next() {
		item := iter.Value()
		col, err := item.LookupPath(cue.ParsePath("col")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		text, err := item.LookupPath(cue.ParsePath("expr")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		pairs = append(pairs, pair{col, text})
	}

	available := append([]string(nil), schema...)
	for _, p := range pairs {
		available = append(available, p.col)
	}
	assignments := make([]expr.Assignment, 0, len(pairs))
	for _, p := range pairs {
		assignments = append(assignments, expr.Assign(p.col, ParseExpr(p.text, available)))
	}
	return assignments, nil
}

// sortKeys maps column names to sort keys; a "-" prefix means
// descending.
func sortKeys(cols []string) []rel.SortKey {
	keys := make([]rel.SortKey, len(cols))
	for i, c := range cols {
		if strings.HasPrefix(c, "-") {
			keys[i] = rel.SortKey{Column: strings.TrimPrefix(c, "-"), Descending: true}
		} else {
			keys[i] = rel.SortKey{Column: c}
		}
	}
	return keys
}

func stringList(v cue.Value, field string) ([]string, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: field, Message: "list is required", Pos: v.Pos()}
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// ParseExpr tokenizes SQL expression text into an expression whose
// identifiers matching available columns become tracked references;
// everything else (operators, literals, function names) passes
// through as raw text. Quoted string literals are never treated as
// identifiers.
func ParseExpr(text string, available []string) expr.Expr {
	cols := make(map[string]bool, len(available))
	for _, c := range available {
		cols[c] = true
	}

	var parts []expr.Part
	var raw strings.Builder
	flush := func() {
		if raw.Len() > 0 {
			parts = append(parts, expr.Raw{Text: raw.String()})
			raw.Reset()
		}
	}

	runes := []rune(text)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '\'':
			// string literal, including '' escapes
			raw.WriteRune(r)
			i++
			for i < len(runes) {
				raw.WriteRune(runes[i])
				if runes[i] == '\'' {
					i++
					if i < len(runes) && runes[i] == '\'' {
						raw.WriteRune(runes[i])
						i++
						continue
					}
					break
				}
				i++
			}
		case isIdentStart(r):
			j := i + 1
			for j < len(runes) && isIdentPart(runes[j]) {
				j++
			}
			word := string(runes[i:j])
			if cols[word] {
				flush()
				parts = append(parts, expr.Var{Name: word})
			} else {
				raw.WriteString(word)
			}
			i = j
		default:
			raw.WriteRune(r)
			i++
		}
	}
	flush()

	if len(parts) == 1 {
		if v, ok := parts[0].(expr.Var); ok {
			return v
		}
	}
	return expr.NewFragment(parts...)
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
