package sqlgen

import (
	"fmt"
	"strings"

	"github.com/puzuwe/rquery/expr"
	"github.com/puzuwe/rquery/narrow"
	"github.com/puzuwe/rquery/partition"
	"github.com/puzuwe/rquery/rel"
)

// Options tune generation.
type Options struct {
	// OutputColumns restricts and orders the final result columns.
	// Nil keeps the tree's full schema.
	OutputColumns []string

	// OutputLimit caps the final result rows. Zero means unlimited.
	OutputLimit int

	// SourceLimit caps the rows read from every table scan, for
	// previewing a pipeline against big tables. Zero means unlimited.
	SourceLimit int
}

// Generate compiles a tree into an ordered plan for the dialect. The
// tree is column-narrowed first, so generated statements only touch
// columns the result needs. All but the last step stage intermediate
// results under deterministic placeholder names; the last step is
// always a SQLStep with an empty Table whose rows are the result.
func Generate(n rel.Node, d Dialect, opts Options) ([]Step, error) {
	narrowed, err := narrow.Narrow(n, opts.OutputColumns)
	if err != nil {
		return nil, err
	}
	if opts.OutputColumns != nil && !equalStrings(narrowed.Schema(), opts.OutputColumns) {
		narrowed, err = rel.NewSelectColumns(narrowed, opts.OutputColumns)
		if err != nil {
			return nil, err
		}
	}

	g := &generator{dialect: d, opts: opts}
	sql, err := g.render(narrowed)
	if err != nil {
		return nil, err
	}
	schema := narrowed.Schema()
	if opts.OutputLimit > 0 {
		sql = fmt.Sprintf("SELECT %s FROM ( %s ) %s LIMIT %d",
			g.columnList(schema), sql, g.alias(), opts.OutputLimit)
	}
	g.steps = append(g.steps, SQLStep{Columns: schema, SQL: sql})
	return g.steps, nil
}

type generator struct {
	dialect Dialect
	opts    Options
	steps   []Step
	aliasN  int
	stageN  int
}

func (g *generator) alias() string {
	g.aliasN++
	return fmt.Sprintf("sq_%d", g.aliasN)
}

func (g *generator) stage() string {
	g.stageN++
	return fmt.Sprintf("rquery_stage_%d", g.stageN)
}

func (g *generator) columnList(cols []string) string {
	items := make([]string, len(cols))
	for i, c := range cols {
		items[i] = g.dialect.QuoteIdent(c)
	}
	return strings.Join(items, ", ")
}

func (g *generator) sortList(keys []rel.SortKey) string {
	items := make([]string, len(keys))
	for i, k := range keys {
		items[i] = g.dialect.QuoteIdent(k.Column)
		if k.Descending {
			items[i] += " DESC"
		}
	}
	return strings.Join(items, ", ")
}

func (g *generator) renderExpr(e expr.Expr, resolve func(string) string) string {
	switch e := e.(type) {
	case expr.Var:
		return resolve(e.Name)
	case expr.Const:
		return g.dialect.RenderValue(e.Value)
	case expr.Fragment:
		var b strings.Builder
		for _, p := range e.Parts {
			switch p := p.(type) {
			case expr.Var:
				b.WriteString(resolve(p.Name))
			case expr.Const:
				b.WriteString(g.dialect.RenderValue(p.Value))
			case expr.Raw:
				b.WriteString(p.Text)
			}
		}
		return b.String()
	}
	return ""
}

// from renders a node as a FROM operand. Bare table scans inline as
// the quoted name; anything else nests as an aliased subquery.
func (g *generator) from(n rel.Node) (string, error) {
	if t, ok := n.(*rel.Table); ok && g.opts.SourceLimit == 0 {
		return g.dialect.QuoteIdent(t.TableName()), nil
	}
	inner, err := g.render(n)
	if err != nil {
		return "", err
	}
	return "( " + inner + " ) " + g.alias(), nil
}

// joinOperand is like from but always aliased, so join sides can be
// referenced by qualified name.
func (g *generator) joinOperand(n rel.Node) (alias, operand string, err error) {
	alias = g.alias()
	if t, ok := n.(*rel.Table); ok && g.opts.SourceLimit == 0 {
		return alias, g.dialect.QuoteIdent(t.TableName()) + " " + alias, nil
	}
	inner, err := g.render(n)
	if err != nil {
		return "", "", err
	}
	return alias, "( " + inner + " ) " + alias, nil
}

func (g *generator) render(n rel.Node) (string, error) {
	q := g.dialect.QuoteIdent
	switch n := n.(type) {
	case *rel.Table:
		sql := "SELECT " + g.columnList(n.Schema()) + " FROM " + q(n.TableName())
		if g.opts.SourceLimit > 0 {
			sql += fmt.Sprintf(" LIMIT %d", g.opts.SourceLimit)
		}
		return sql, nil

	case *rel.SelectColumns:
		from, err := g.from(n.Input())
		if err != nil {
			return "", err
		}
		return "SELECT " + g.columnList(n.Schema()) + " FROM " + from, nil

	case *rel.SelectRows:
		from, err := g.from(n.Input())
		if err != nil {
			return "", err
		}
		return "SELECT " + g.columnList(n.Schema()) + " FROM " + from +
			" WHERE " + g.renderExpr(n.Predicate(), q), nil

	case *rel.Extend:
		return g.renderExtend(n)

	case *rel.Project:
		from, err := g.from(n.Input())
		if err != nil {
			return "", err
		}
		items := make([]string, 0, len(n.Schema()))
		for _, c := range n.GroupBy() {
			items = append(items, q(c))
		}
		for _, a := range n.Aggregates() {
			items = append(items, g.renderExpr(a.Expr, q)+" AS "+q(a.Target))
		}
		sql := "SELECT " + strings.Join(items, ", ") + " FROM " + from
		if gb := n.GroupBy(); len(gb) > 0 {
			sql += " GROUP BY " + g.columnList(gb)
		}
		return sql, nil

	case *rel.NaturalJoin:
		return g.renderNaturalJoin(n)

	case *rel.ThetaJoin:
		return g.renderThetaJoin(n)

	case *rel.RenameColumns:
		from, err := g.from(n.Input())
		if err != nil {
			return "", err
		}
		mapping := n.Mapping()
		items := make([]string, 0, len(n.Schema()))
		for _, c := range n.Input().Schema() {
			if next, ok := mapping[c]; ok {
				items = append(items, q(c)+" AS "+q(next))
			} else {
				items = append(items, q(c))
			}
		}
		return "SELECT " + strings.Join(items, ", ") + " FROM " + from, nil

	case *rel.OrderBy:
		from, err := g.from(n.Input())
		if err != nil {
			return "", err
		}
		sql := "SELECT " + g.columnList(n.Schema()) + " FROM " + from +
			" ORDER BY " + g.sortList(n.Keys())
		if limit, ok := n.Limit(); ok {
			sql += fmt.Sprintf(" LIMIT %d", limit)
		}
		return sql, nil

	case *rel.RawStatement:
		from, err := g.from(n.Input())
		if err != nil {
			return "", err
		}
		return "SELECT " + g.renderExpr(n.Template(), q) + " FROM " + from, nil

	case *rel.ExternalTransform:
		return g.renderExternalTransform(n)
	}
	return "", fmt.Errorf("sqlgen: unhandled node %T", n)
}

// renderExtend emits one nested SELECT per partition group, then a
// reordering SELECT if the staged column order drifted from the
// node's schema.
func (g *generator) renderExtend(n *rel.Extend) (string, error) {
	if n.Windowed() && !g.dialect.SupportsWindowFunctions {
		return "", &UnsupportedError{
			Dialect:    g.dialect.Name,
			Capability: "window functions",
			Node:       "extend",
		}
	}
	groups, err := partition.Groups(n.Input().Schema(), n.Assignments())
	if err != nil {
		return "", err
	}

	q := g.dialect.QuoteIdent
	over := g.overClause(n)
	from, err := g.from(n.Input())
	if err != nil {
		return "", err
	}

	schema := n.Input().Schema()
	var sql string
	for gi, group := range groups {
		if gi > 0 {
			from = "( " + sql + " ) " + g.alias()
		}
		rendered := map[string]string{}
		var added []string
		for _, a := range group {
			rendered[a.Target] = g.renderExpr(a.Expr, q) + over
			if !containsString(schema, a.Target) {
				added = append(added, a.Target)
			}
		}
		items := make([]string, 0, len(schema)+len(added))
		for _, c := range schema {
			if r, ok := rendered[c]; ok {
				items = append(items, r+" AS "+q(c))
			} else {
				items = append(items, q(c))
			}
		}
		for _, c := range added {
			items = append(items, rendered[c]+" AS "+q(c))
		}
		schema = append(append([]string(nil), schema...), added...)
		sql = "SELECT " + strings.Join(items, ", ") + " FROM " + from
	}

	if !equalStrings(schema, n.Schema()) {
		sql = "SELECT " + g.columnList(n.Schema()) + " FROM ( " + sql + " ) " + g.alias()
	}
	return sql, nil
}

func (g *generator) overClause(n *rel.Extend) string {
	if !n.Windowed() {
		return ""
	}
	var parts []string
	if pb := n.PartitionBy(); len(pb) > 0 {
		parts = append(parts, "PARTITION BY "+g.columnList(pb))
	}
	if keys := n.WindowOrder(); len(keys) > 0 {
		parts = append(parts, "ORDER BY "+g.sortList(keys))
	}
	return " OVER (" + strings.Join(parts, " ") + ")"
}

func (g *generator) renderNaturalJoin(n *rel.NaturalJoin) (string, error) {
	q := g.dialect.QuoteIdent
	la, left, err := g.joinOperand(n.Left())
	if err != nil {
		return "", err
	}
	ra, right, err := g.joinOperand(n.Right())
	if err != nil {
		return "", err
	}

	keys := n.Keys()
	conds := make([]string, len(keys))
	for i, k := range keys {
		conds[i] = la + "." + q(k) + " = " + ra + "." + q(k)
	}

	ls := n.Left().Schema()
	items := make([]string, 0, len(n.Schema()))
	for _, c := range n.Schema() {
		switch {
		case containsString(keys, c):
			switch n.JoinType() {
			case rel.RightJoin:
				items = append(items, ra+"."+q(c))
			case rel.FullJoin:
				items = append(items, "COALESCE("+la+"."+q(c)+", "+ra+"."+q(c)+") AS "+q(c))
			default:
				items = append(items, la+"."+q(c))
			}
		case containsString(ls, c):
			items = append(items, la+"."+q(c))
		default:
			items = append(items, ra+"."+q(c))
		}
	}

	return "SELECT " + strings.Join(items, ", ") + " FROM " + left +
		" " + string(n.JoinType()) + " JOIN " + right +
		" ON " + strings.Join(conds, " AND "), nil
}

func (g *generator) renderThetaJoin(n *rel.ThetaJoin) (string, error) {
	q := g.dialect.QuoteIdent
	la, left, err := g.joinOperand(n.Left())
	if err != nil {
		return "", err
	}
	ra, right, err := g.joinOperand(n.Right())
	if err != nil {
		return "", err
	}

	ls := map[string]bool{}
	for _, c := range n.Left().Schema() {
		ls[c] = true
	}
	resolve := func(name string) string {
		if ls[name] {
			return la + "." + q(name)
		}
		return ra + "." + q(name)
	}

	items := make([]string, 0, len(n.Schema()))
	for _, c := range n.Schema() {
		items = append(items, resolve(c))
	}

	return "SELECT " + strings.Join(items, ", ") + " FROM " + left +
		" " + string(n.JoinType()) + " JOIN " + right +
		" ON " + g.renderExpr(n.Predicate(), resolve), nil
}

// renderExternalTransform materializes the input under a staging
// placeholder, records the transform hand-off, and resumes SQL over
// the transform's declared output.
func (g *generator) renderExternalTransform(n *rel.ExternalTransform) (string, error) {
	if !g.dialect.SupportsTempTables {
		return "", &UnsupportedError{
			Dialect:    g.dialect.Name,
			Capability: "temp tables",
			Node:       "external_transform",
		}
	}
	inner, err := g.render(n.Input())
	if err != nil {
		return "", err
	}
	incoming := g.stage()
	outgoing := g.stage()
	g.steps = append(g.steps, SQLStep{
		Table:   incoming,
		Columns: n.Input().Schema(),
		SQL:     inner,
	})
	g.steps = append(g.steps, TransformStep{
		Incoming:  incoming,
		Outgoing:  outgoing,
		Columns:   n.Produces(),
		Transform: n.Transform(),
	})
	return "SELECT " + g.columnList(n.Produces()) + " FROM " + g.dialect.QuoteIdent(outgoing), nil
}

func containsString(s []string, name string) bool {
	for _, c := range s {
		if c == name {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
