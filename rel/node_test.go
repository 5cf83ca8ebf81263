package rel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/puzuwe/rquery/expr"
)

func mustTable(t *testing.T, name string, columns ...string) *Table {
	t.Helper()
	desc, err := NewTableDescription(name, columns)
	require.NoError(t, err)
	return NewTable(desc)
}

func TestNewTableDescription(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		columns []string
		wantErr string
	}{
		{"valid", "d", []string{"a", "b"}, ""},
		{"empty name", "", []string{"a"}, "table name must not be empty"},
		{"no columns", "d", nil, "at least one column"},
		{"blank column", "d", []string{"a", ""}, "column name must not be empty"},
		{"duplicate column", "d", []string{"a", "a"}, `duplicate column "a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := NewTableDescription(tt.table, tt.columns)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.columns, desc.Columns())
				return
			}
			require.Error(t, err)
			assert.True(t, IsSchemaError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTableSchemaIsCopied(t *testing.T) {
	tab := mustTable(t, "d", "a", "b")
	s := tab.Schema()
	s[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, tab.Schema())
}

func TestExtendSchema(t *testing.T) {
	tab := mustTable(t, "d", "a", "b")

	t.Run("new target appends", func(t *testing.T) {
		e, err := NewExtend(tab, []expr.Assignment{
			expr.Assign("c", expr.NewFragment(expr.Var{Name: "a"}, expr.Raw{Text: " + 1"})),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, e.Schema())
	})

	t.Run("existing target replaces in place", func(t *testing.T) {
		e, err := NewExtend(tab, []expr.Assignment{
			expr.Assign("a", expr.NewFragment(expr.Var{Name: "b"}, expr.Raw{Text: " * 2"})),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, e.Schema())
	})

	t.Run("target of same batch is readable", func(t *testing.T) {
		e, err := NewExtend(tab, []expr.Assignment{
			expr.Assign("x", expr.NewFragment(expr.Var{Name: "a"}, expr.Raw{Text: " + 1"})),
			expr.Assign("y", expr.NewFragment(expr.Var{Name: "x"}, expr.Raw{Text: " + 1"})),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "x", "y"}, e.Schema())
	})

	t.Run("unknown column rejected", func(t *testing.T) {
		_, err := NewExtend(tab, []expr.Assignment{
			expr.Assign("c", expr.Var{Name: "nope"}),
		})
		require.Error(t, err)
		var se *SchemaError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "nope", se.Column)
		assert.Equal(t, "extend", se.Op)
	})

	t.Run("unknown partition column rejected", func(t *testing.T) {
		_, err := NewExtendWindowed(tab,
			[]expr.Assignment{expr.Assign("r", expr.NewFragment(expr.Raw{Text: "row_number()"}))},
			[]string{"missing"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown partition column")
	})
}

func TestExtendUsesLocally(t *testing.T) {
	tab := mustTable(t, "d", "a", "b", "g")
	e, err := NewExtendWindowed(tab,
		[]expr.Assignment{
			expr.Assign("x", expr.NewFragment(expr.Var{Name: "a"}, expr.Raw{Text: " + 1"})),
			expr.Assign("y", expr.NewFragment(expr.Var{Name: "x"}, expr.Raw{Text: " + 1"})),
		},
		[]string{"g"},
		[]SortKey{{Column: "b", Descending: true}},
	)
	require.NoError(t, err)
	// x is a batch target, not an input column.
	assert.Equal(t, []string{"a", "g", "b"}, e.UsesLocally())
}

func TestProject(t *testing.T) {
	tab := mustTable(t, "d", "g", "v")

	p, err := NewProject(tab, []string{"g"}, []expr.Assignment{
		expr.Assign("total", expr.NewFragment(expr.Raw{Text: "sum("}, expr.Var{Name: "v"}, expr.Raw{Text: ")"})),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"g", "total"}, p.Schema())
	assert.Equal(t, []string{"g", "v"}, p.UsesLocally())

	_, err = NewProject(tab, []string{"g"}, []expr.Assignment{
		expr.Assign("g", expr.NewFragment(expr.Raw{Text: "count(1)"})),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate output column "g"`)

	_, err = NewProject(tab, nil, nil)
	require.Error(t, err)

	// Whole-input aggregate: empty group is allowed.
	p, err = NewProject(tab, nil, []expr.Assignment{
		expr.Assign("n", expr.NewFragment(expr.Raw{Text: "count(1)"})),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, p.Schema())
}

func TestNaturalJoin(t *testing.T) {
	left := mustTable(t, "l", "id", "a")
	right := mustTable(t, "r", "id", "b")

	j, err := NewNaturalJoin(left, right, InnerJoin)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, j.Keys())
	assert.Equal(t, []string{"id", "a", "b"}, j.Schema())
	assert.Equal(t, []string{"id"}, j.UsesLocally())

	disjoint := mustTable(t, "x", "c", "d")
	_, err = NewNaturalJoin(left, disjoint, InnerJoin)
	require.Error(t, err)
	var je *JoinKeyError
	require.True(t, errors.As(err, &je))
	assert.Equal(t, []string{"id", "a"}, je.LeftColumns)
	assert.Equal(t, []string{"c", "d"}, je.RightColumns)
}

func TestThetaJoin(t *testing.T) {
	left := mustTable(t, "l", "id", "a")
	right := mustTable(t, "r", "rid", "b")

	pred := expr.NewFragment(expr.Var{Name: "id"}, expr.Raw{Text: " = "}, expr.Var{Name: "rid"})
	j, err := NewThetaJoin(left, right, pred, LeftJoin)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "a", "rid", "b"}, j.Schema())
	assert.Equal(t, []string{"id", "rid"}, j.UsesLocally())

	overlapping := mustTable(t, "o", "id", "c")
	_, err = NewThetaJoin(left, overlapping, pred, InnerJoin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column appears on both sides")
}

func TestSelectRows(t *testing.T) {
	tab := mustTable(t, "d", "a", "b")
	s, err := NewSelectRows(tab, expr.NewFragment(expr.Var{Name: "a"}, expr.Raw{Text: " > 0"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.Schema())
	assert.Equal(t, []string{"a"}, s.UsesLocally())

	_, err = NewSelectRows(tab, expr.Var{Name: "missing"})
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
}

func TestSelectColumns(t *testing.T) {
	tab := mustTable(t, "d", "a", "b", "c")
	s, err := NewSelectColumns(tab, []string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, s.Schema())

	_, err = NewSelectColumns(tab, []string{"a", "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nope"`)

	_, err = NewSelectColumns(tab, []string{"a", "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate column")
}

func TestRenameColumns(t *testing.T) {
	tab := mustTable(t, "d", "a", "b")
	r, err := NewRenameColumns(tab, map[string]string{"a": "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "b"}, r.Schema())
	assert.Equal(t, []string{"a"}, r.UsesLocally())

	_, err = NewRenameColumns(tab, map[string]string{"missing": "x"})
	require.Error(t, err)

	_, err = NewRenameColumns(tab, map[string]string{"a": "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate output column")
}

func TestOrderBy(t *testing.T) {
	tab := mustTable(t, "d", "a", "b")

	o, err := NewOrderByLimit(tab, []SortKey{{Column: "a", Descending: true}}, 5)
	require.NoError(t, err)
	limit, ok := o.Limit()
	assert.True(t, ok)
	assert.Equal(t, 5, limit)
	assert.Equal(t, []string{"a", "b"}, o.Schema())

	o, err = NewOrderBy(tab, []SortKey{{Column: "b"}})
	require.NoError(t, err)
	_, ok = o.Limit()
	assert.False(t, ok)

	_, err = NewOrderBy(tab, nil)
	require.Error(t, err)

	_, err = NewOrderBy(tab, []SortKey{{Column: "missing"}})
	require.Error(t, err)
}

func TestRawStatement(t *testing.T) {
	tab := mustTable(t, "d", "a", "b")
	tmpl := expr.NewFragment(expr.Raw{Text: "sum("}, expr.Var{Name: "a"}, expr.Raw{Text: ") AS total"})

	r, err := NewRawStatement(tab, []string{"a"}, []string{"total"}, tmpl)
	require.NoError(t, err)
	assert.Equal(t, []string{"total"}, r.Schema())
	assert.Equal(t, []string{"a"}, r.UsesLocally())

	_, err = NewRawStatement(tab, nil, []string{"total"}, tmpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared column")
}

type fakeTransform struct{ name string }

func (f fakeTransform) TransformName() string { return f.name }

func TestExternalTransform(t *testing.T) {
	tab := mustTable(t, "d", "a", "b")

	x, err := NewExternalTransform(tab, []string{"a", "b"}, []string{"score"}, fakeTransform{name: "scorer"})
	require.NoError(t, err)
	assert.Equal(t, []string{"score"}, x.Schema())
	assert.Equal(t, []string{"a", "b"}, x.UsesLocally())
	assert.Equal(t, "scorer", x.Transform().TransformName())

	_, err = NewExternalTransform(tab, []string{"missing"}, []string{"score"}, fakeTransform{name: "scorer"})
	require.Error(t, err)
}

func TestSharedSubtree(t *testing.T) {
	tab := mustTable(t, "d", "a", "b")
	base, err := NewSelectRows(tab, expr.NewFragment(expr.Var{Name: "a"}, expr.Raw{Text: " > 0"}))
	require.NoError(t, err)

	left, err := NewExtend(base, []expr.Assignment{expr.Assign("x", expr.Var{Name: "a"})})
	require.NoError(t, err)
	right, err := NewRenameColumns(base, map[string]string{"a": "c", "b": "e"})
	require.NoError(t, err)

	// Building two parents over one subtree must not disturb either view.
	assert.Equal(t, []string{"a", "b", "x"}, left.Schema())
	assert.Equal(t, []string{"c", "e"}, right.Schema())
	assert.Equal(t, []string{"a", "b"}, base.Schema())
}

func TestTablesUsed(t *testing.T) {
	a := mustTable(t, "orders", "id", "amount")
	b := mustTable(t, "customers", "id", "name")
	j, err := NewNaturalJoin(a, b, InnerJoin)
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "orders"}, TablesUsed(j))
}

func TestFormat(t *testing.T) {
	tab := mustTable(t, "d", "a", "b")
	s, err := NewSelectRows(tab, expr.NewFragment(expr.Var{Name: "a"}, expr.Raw{Text: " > 0"}))
	require.NoError(t, err)
	o, err := NewOrderByLimit(s, []SortKey{{Column: "b", Descending: true}}, 3)
	require.NoError(t, err)

	want := "order_by [b DESC] limit 3\n" +
		"  select_rows a > 0\n" +
		"    table d [a b]\n"
	assert.Equal(t, want, Format(o))
}
