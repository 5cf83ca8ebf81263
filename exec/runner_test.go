package exec

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/puzuwe/rquery/expr"
	"github.com/puzuwe/rquery/rel"
	"github.com/puzuwe/rquery/sqlgen"
)

// The default driver build leaves out the C math functions, so the
// end-to-end database registers exp as a Go function per connection.
func init() {
	sql.Register("sqlite3_math", &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("exp", math.Exp, true)
		},
	})
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func openMathDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3_math", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	// Temp tables are per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db
}

const surveySeed = `
tables:
  - name: d
    columns: [subjectID, surveyCategory, assessmentTotal]
    rows:
      - [1, "withdrawal behavior", 5]
      - [1, "positive re-framing", 2]
      - [2, "withdrawal behavior", 3]
      - [2, "positive re-framing", 4]
`

// bestCategoryPipeline computes per-subject softmax probabilities
// over exp(assessmentTotal * 0.237) and keeps the top category per
// subject.
func bestCategoryPipeline(t *testing.T) rel.Node {
	t.Helper()
	desc, err := rel.NewTableDescription("d", []string{"subjectID", "surveyCategory", "assessmentTotal"})
	require.NoError(t, err)

	n, err := rel.From(desc).
		Extend(expr.Assign("probability", expr.NewFragment(
			expr.Raw{Text: "exp("}, expr.Var{Name: "assessmentTotal"}, expr.Raw{Text: " * 0.237)"}))).
		ExtendWindowed([]expr.Assignment{
			expr.Assign("total", expr.NewFragment(
				expr.Raw{Text: "sum("}, expr.Var{Name: "probability"}, expr.Raw{Text: ")"})),
		}, []string{"subjectID"}, nil).
		Extend(expr.Assign("probability", expr.NewFragment(
			expr.Var{Name: "probability"}, expr.Raw{Text: " / "}, expr.Var{Name: "total"}))).
		ExtendWindowed([]expr.Assignment{
			expr.Assign("row_rank", expr.NewFragment(expr.Raw{Text: "row_number()"})),
		}, []string{"subjectID"}, []rel.SortKey{{Column: "probability", Descending: true}}).
		SelectRows(expr.NewFragment(expr.Var{Name: "row_rank"}, expr.Raw{Text: " = 1"})).
		SelectColumns("subjectID", "surveyCategory", "probability").
		RenameColumns(map[string]string{"surveyCategory": "diagnosis"}).
		OrderBy(rel.SortKey{Column: "subjectID"}).
		Build()
	require.NoError(t, err)
	return n
}

func softmax(winner, loser float64) float64 {
	w := math.Exp(winner * 0.237)
	return w / (w + math.Exp(loser*0.237))
}

func TestRunnerEndToEnd(t *testing.T) {
	ctx := context.Background()
	db := openMathDB(t)
	runner := NewRunner(db)

	seed, err := LoadSeed(strings.NewReader(surveySeed))
	require.NoError(t, err)
	require.NoError(t, runner.Seed(ctx, seed))

	steps, err := sqlgen.Generate(bestCategoryPipeline(t), sqlgen.SQLite(), sqlgen.Options{})
	require.NoError(t, err)

	result, err := runner.Run(ctx, steps)
	require.NoError(t, err)

	assert.Equal(t, []string{"subjectID", "diagnosis", "probability"}, result.Columns)
	require.Len(t, result.Rows, 2)

	assert.Equal(t, int64(1), result.Rows[0][0])
	assert.Equal(t, "withdrawal behavior", result.Rows[0][1])
	assert.InDelta(t, softmax(5, 2), result.Rows[0][2].(float64), 1e-9)

	assert.Equal(t, int64(2), result.Rows[1][0])
	assert.Equal(t, "positive re-framing", result.Rows[1][1])
	assert.InDelta(t, softmax(4, 3), result.Rows[1][2].(float64), 1e-9)
}

// doubler rewrites amounts through a staging table, standing in for a
// computation SQL cannot express.
type doubler struct{}

func (doubler) TransformName() string { return "doubler" }

func (doubler) Apply(ctx context.Context, db *sql.DB, incoming, outgoing string) error {
	stmt := "CREATE TEMP TABLE " + quoteIdent(outgoing) +
		` AS SELECT "id", "amount" * 2 AS "amount" FROM ` + quoteIdent(incoming)
	_, err := db.ExecContext(ctx, stmt)
	return err
}

func TestRunnerExternalTransform(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	runner := NewRunner(db)

	seed, err := LoadSeed(strings.NewReader(`
tables:
  - name: payments
    columns: [id, amount]
    rows:
      - [1, 10]
      - [2, 25]
`))
	require.NoError(t, err)
	require.NoError(t, runner.Seed(ctx, seed))

	desc, err := rel.NewTableDescription("payments", []string{"id", "amount"})
	require.NoError(t, err)
	tree, err := rel.From(desc).
		ExternalTransform([]string{"id", "amount"}, []string{"id", "amount"}, doubler{}).
		OrderBy(rel.SortKey{Column: "id"}).
		Build()
	require.NoError(t, err)

	steps, err := sqlgen.Generate(tree, sqlgen.SQLite(), sqlgen.Options{})
	require.NoError(t, err)
	require.Len(t, steps, 3)

	result, err := runner.Run(ctx, steps)
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, int64(20), result.Rows[0][1])
	assert.Equal(t, int64(50), result.Rows[1][1])
}

func TestRunnerDropsStagingTables(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	runner := NewRunner(db)

	seed, err := LoadSeed(strings.NewReader(`
tables:
  - name: payments
    columns: [id, amount]
    rows:
      - [1, 10]
`))
	require.NoError(t, err)
	require.NoError(t, runner.Seed(ctx, seed))

	desc, err := rel.NewTableDescription("payments", []string{"id", "amount"})
	require.NoError(t, err)
	tree, err := rel.From(desc).
		ExternalTransform([]string{"id", "amount"}, []string{"id", "amount"}, doubler{}).
		Build()
	require.NoError(t, err)

	steps, err := sqlgen.Generate(tree, sqlgen.SQLite(), sqlgen.Options{})
	require.NoError(t, err)
	_, err = runner.Run(ctx, steps)
	require.NoError(t, err)

	var count int
	err = db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_temp_master WHERE name LIKE 'rquery_stage_%'`).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count, "staging tables should be dropped after the run")
}

type notRunnable struct{}

func (notRunnable) TransformName() string { return "opaque" }

func TestRunnerRejectsNonTableTransform(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	runner := NewRunner(db)

	seed, err := LoadSeed(strings.NewReader(`
tables:
  - name: payments
    columns: [id, amount]
    rows:
      - [1, 10]
`))
	require.NoError(t, err)
	require.NoError(t, runner.Seed(ctx, seed))

	desc, err := rel.NewTableDescription("payments", []string{"id", "amount"})
	require.NoError(t, err)
	tree, err := rel.From(desc).
		ExternalTransform([]string{"id"}, []string{"id"}, notRunnable{}).
		Build()
	require.NoError(t, err)

	steps, err := sqlgen.Generate(tree, sqlgen.SQLite(), sqlgen.Options{})
	require.NoError(t, err)
	_, err = runner.Run(ctx, steps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot run against a database")
}
