package expr

import "strconv"

// Value is a literal constant carried by a Const expression.
// The concrete types form a closed set so rendering code can
// switch exhaustively without a default clause doing real work.
type Value interface {
	isValue()

	// GoString returns a dialect-neutral rendering used by Format
	// and error messages. SQL rendering lives with the dialect.
	GoString() string
}

// String is a text literal.
type String string

// Int is a 64-bit integer literal.
type Int int64

// Float is a 64-bit floating-point literal.
type Float float64

// Bool is a boolean literal.
type Bool bool

// Null is the SQL NULL literal.
type Null struct{}

func (String) isValue() {}
func (Int) isValue()    {}
func (Float) isValue()  {}
func (Bool) isValue()   {}
func (Null) isValue()   {}

func (v String) GoString() string { return strconv.Quote(string(v)) }
func (v Int) GoString() string    { return strconv.FormatInt(int64(v), 10) }
func (v Float) GoString() string  { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v Bool) GoString() string   { return strconv.FormatBool(bool(v)) }
func (Null) GoString() string     { return "NULL" }
