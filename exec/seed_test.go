package exec

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeedRejectsUnknownFields(t *testing.T) {
	_, err := LoadSeed(strings.NewReader(`
tables:
  - name: d
    columns: [a]
    rowz:
      - [1]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rowz")
}

func TestLoadSeedRejectsRaggedRows(t *testing.T) {
	_, err := LoadSeed(strings.NewReader(`
tables:
  - name: d
    columns: [a, b]
    rows:
      - [1]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0 has 1 values, want 2")
}

func TestLoadSeedRejectsMissingName(t *testing.T) {
	_, err := LoadSeed(strings.NewReader(`
tables:
  - columns: [a]
    rows: []
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no name")
}

func TestSeedCreatesAndFills(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	runner := NewRunner(db)

	seed, err := LoadSeed(strings.NewReader(`
tables:
  - name: d
    columns: [a, b]
    rows:
      - [1, "x"]
      - [2, "y"]
`))
	require.NoError(t, err)
	require.NoError(t, runner.Seed(ctx, seed))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM "d"`).Scan(&n))
	assert.Equal(t, 2, n)
}
