package rel

// OrderBy sorts its input by one or more keys, optionally capping the
// row count. The schema passes through unchanged.
type OrderBy struct {
	input Node
	keys  []SortKey
	limit int // 0 means no limit
}

// NewOrderBy builds a sort without a row limit.
func NewOrderBy(input Node, keys []SortKey) (*OrderBy, error) {
	return NewOrderByLimit(input, keys, 0)
}

// NewOrderByLimit builds a sort keeping at most limit rows. A limit
// of zero means unlimited.
func NewOrderByLimit(input Node, keys []SortKey, limit int) (*OrderBy, error) {
	if len(keys) == 0 {
		return nil, &SchemaError{Op: "order_by", Message: "at least one sort key is required"}
	}
	if limit < 0 {
		return nil, &SchemaError{Op: "order_by", Message: "limit must not be negative"}
	}
	in := input.Schema()
	for _, k := range keys {
		if !containsString(in, k.Column) {
			return nil, &SchemaError{Op: "order_by", Column: k.Column, Message: "unknown column"}
		}
	}
	return &OrderBy{input: input, keys: append([]SortKey(nil), keys...), limit: limit}, nil
}

// Input returns the child node.
func (o *OrderBy) Input() Node { return o.input }

// Keys returns the sort keys in order.
func (o *OrderBy) Keys() []SortKey { return append([]SortKey(nil), o.keys...) }

// Limit returns the row cap and whether one is set.
func (o *OrderBy) Limit() (int, bool) { return o.limit, o.limit > 0 }

func (o *OrderBy) Schema() []string { return o.input.Schema() }
func (o *OrderBy) Inputs() []Node   { return []Node{o.input} }

func (o *OrderBy) UsesLocally() []string {
	var used []string
	seen := map[string]bool{}
	for _, k := range o.keys {
		if !seen[k.Column] {
			seen[k.Column] = true
			used = append(used, k.Column)
		}
	}
	return used
}

func (*OrderBy) relNode() {}
