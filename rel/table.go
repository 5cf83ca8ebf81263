package rel

// TableDescription declares a named table and the ordered set of
// columns the compiler may reference on it. Descriptions are the only
// leaves an operator tree can stand on; nothing here touches a live
// database.
type TableDescription struct {
	name    string
	columns []string
}

// NewTableDescription validates and builds a table description.
// The name must be non-empty and the columns non-empty, non-blank
// and unique.
func NewTableDescription(name string, columns []string) (*TableDescription, error) {
	if name == "" {
		return nil, &SchemaError{Op: "table", Message: "table name must not be empty"}
	}
	if len(columns) == 0 {
		return nil, &SchemaError{Op: "table", Node: name, Message: "table must declare at least one column"}
	}
	for _, c := range columns {
		if c == "" {
			return nil, &SchemaError{Op: "table", Node: name, Message: "column name must not be empty"}
		}
	}
	if dup, ok := checkUnique(columns); ok {
		return nil, &SchemaError{Op: "table", Column: dup, Node: name, Message: "duplicate column"}
	}
	return &TableDescription{name: name, columns: copyStrings(columns)}, nil
}

// Name returns the table name.
func (d *TableDescription) Name() string { return d.name }

// Columns returns a copy of the declared column order.
func (d *TableDescription) Columns() []string { return copyStrings(d.columns) }

// Table is the leaf node scanning a described table.
type Table struct {
	desc *TableDescription
}

// NewTable wraps a description as a scan leaf. Multiple trees may
// share one description; nodes never mutate it.
func NewTable(desc *TableDescription) *Table {
	return &Table{desc: desc}
}

// TableName returns the underlying table's name.
func (t *Table) TableName() string { return t.desc.name }

// Description returns the table description this leaf scans.
func (t *Table) Description() *TableDescription { return t.desc }

func (t *Table) Schema() []string      { return copyStrings(t.desc.columns) }
func (t *Table) Inputs() []Node        { return nil }
func (t *Table) UsesLocally() []string { return nil }
func (*Table) relNode()                {}
