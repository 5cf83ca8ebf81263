// Package sqlgen turns an operator tree into ordered SQL statements
// for a concrete dialect. Generation is pure text assembly: the same
// tree, dialect and options always produce byte-identical output.
package sqlgen

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/puzuwe/rquery/expr"
)

// Dialect describes the SQL flavor statements are generated for.
// Capability flags are checked strictly: a tree that needs a missing
// capability fails with an UnsupportedError instead of degrading.
type Dialect struct {
	Name string

	// IdentQuote wraps identifiers; embedded quotes are doubled.
	IdentQuote rune

	TrueLiteral  string
	FalseLiteral string

	SupportsWindowFunctions bool
	SupportsTempTables      bool
}

// SQLite returns the sqlite dialect.
func SQLite() Dialect {
	return Dialect{
		Name:                    "sqlite",
		IdentQuote:              '"',
		TrueLiteral:             "1",
		FalseLiteral:            "0",
		SupportsWindowFunctions: true,
		SupportsTempTables:      true,
	}
}

// Postgres returns the PostgreSQL dialect.
func Postgres() Dialect {
	return Dialect{
		Name:                    "postgres",
		IdentQuote:              '"',
		TrueLiteral:             "TRUE",
		FalseLiteral:            "FALSE",
		SupportsWindowFunctions: true,
		SupportsTempTables:      true,
	}
}

// QuoteIdent quotes an identifier for the dialect. Names are NFC
// normalized first so visually identical identifiers render to
// identical bytes.
func (d Dialect) QuoteIdent(name string) string {
	name = norm.NFC.String(name)
	q := string(d.IdentQuote)
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// RenderValue renders a literal for the dialect.
func (d Dialect) RenderValue(v expr.Value) string {
	switch v := v.(type) {
	case expr.String:
		return "'" + strings.ReplaceAll(string(v), "'", "''") + "'"
	case expr.Int:
		return strconv.FormatInt(int64(v), 10)
	case expr.Float:
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	case expr.Bool:
		if v {
			return d.TrueLiteral
		}
		return d.FalseLiteral
	case expr.Null:
		return "NULL"
	}
	return "NULL"
}
