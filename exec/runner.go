// Package exec runs generated plans against a live database. It is
// the execution collaborator the compiler hands its steps to; the
// compiler packages themselves never touch a connection.
package exec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/puzuwe/rquery/rel"
	"github.com/puzuwe/rquery/sqlgen"
)

// Result holds the rows of a completed plan.
type Result struct {
	Columns []string
	Rows    [][]any
}

// TableTransform is a transform the runner can invoke: it reads the
// incoming staging table and must create and fill the outgoing one.
type TableTransform interface {
	rel.Transform
	Apply(ctx context.Context, db *sql.DB, incoming, outgoing string) error
}

// Runner executes step plans. Staging placeholders from the generator
// are mapped to uuid-suffixed temp tables so concurrent runs on one
// database never collide; the tables are dropped when the run ends.
type Runner struct {
	db        *sql.DB
	freshName func(base string) string
}

// NewRunner wraps an open database.
func NewRunner(db *sql.DB) *Runner {
	return &Runner{
		db: db,
		freshName: func(base string) string {
			suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
			return base + "_" + suffix
		},
	}
}

// Open opens (or creates) a sqlite database at path. Use ":memory:"
// for a throwaway database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	// Single connection: temp tables are per-connection in sqlite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return db, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Run executes the plan and returns the final query's rows. Staging
// steps materialize into temp tables; transform steps are delegated
// to their TableTransform. The final step must be a result query.
func (r *Runner) Run(ctx context.Context, steps []sqlgen.Step) (result *Result, err error) {
	physical := map[string]string{}
	var created []string
	defer func() {
		for i := len(created) - 1; i >= 0; i-- {
			r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(created[i]))
		}
	}()

	for i, step := range steps {
		switch s := step.(type) {
		case sqlgen.SQLStep:
			q := substitute(s.SQL, physical)
			if s.Table == "" {
				if i != len(steps)-1 {
					return nil, errors.New("exec: result query before end of plan")
				}
				return r.query(ctx, q)
			}
			name := r.freshName(s.Table)
			physical[s.Table] = name
			stmt := "CREATE TEMP TABLE " + quoteIdent(name) + " AS " + q
			if _, err := r.db.ExecContext(ctx, stmt); err != nil {
				return nil, fmt.Errorf("exec: stage %s: %w", s.Table, err)
			}
			created = append(created, name)

		case sqlgen.TransformStep:
			incoming, ok := physical[s.Incoming]
			if !ok {
				return nil, fmt.Errorf("exec: transform input %s was never staged", s.Incoming)
			}
			tf, ok := s.Transform.(TableTransform)
			if !ok {
				return nil, fmt.Errorf("exec: transform %q cannot run against a database", s.Transform.TransformName())
			}
			outgoing := r.freshName(s.Outgoing)
			physical[s.Outgoing] = outgoing
			if err := tf.Apply(ctx, r.db, incoming, outgoing); err != nil {
				return nil, fmt.Errorf("exec: transform %q: %w", s.Transform.TransformName(), err)
			}
			created = append(created, outgoing)
		}
	}
	return nil, errors.New("exec: plan has no result step")
}

// substitute maps quoted staging placeholders to their physical
// names. Placeholders only ever appear as quoted identifiers.
func substitute(sqlText string, physical map[string]string) string {
	for placeholder, name := range physical {
		sqlText = strings.ReplaceAll(sqlText, quoteIdent(placeholder), quoteIdent(name))
	}
	return sqlText
}

func (r *Runner) query(ctx context.Context, q string) (*Result, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("exec: result query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := &Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
