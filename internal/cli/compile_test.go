package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/puzuwe/rquery/internal/testutil"
)

const ordersDefinition = `
tables: {
	orders:    {columns: ["customer_id", "amount"]}
	customers: {columns: ["customer_id", "name"]}
}

pipeline: {
	from: "orders"
	steps: [
		{natural_join: {table: "customers", type: "left"}},
		{project: {group_by: ["name"], aggregates: [{col: "total", expr: "sum(amount)"}]}},
		{order_by: {columns: ["-total"], limit: 2}},
	]
	output: ["name", "total"]
}
`

func TestCompileText(t *testing.T) {
	path := testutil.WriteFixture(t, "pipeline.cue", ordersDefinition)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 1 step(s) for sqlite")
	assert.Contains(t, output, "LEFT JOIN")
	assert.Contains(t, output, "Result columns: name, total")
}

func TestCompileJSON(t *testing.T) {
	path := testutil.WriteFixture(t, "pipeline.cue", ordersDefinition)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "--dialect", "postgres"})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "postgres", data["dialect"])
	steps, ok := data["steps"].([]any)
	require.True(t, ok)
	require.Len(t, steps, 1)
}

func TestCompileOutputToFile(t *testing.T) {
	path := testutil.WriteFixture(t, "pipeline.cue", ordersDefinition)
	outputFile := filepath.Join(t.TempDir(), "query.sql")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "--output", outputFile})

	err := cmd.Execute()
	require.NoError(t, err)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SELECT")
	assert.Contains(t, string(data), "LIMIT 2")
}

func TestCompileUnknownDialect(t *testing.T) {
	path := testutil.WriteFixture(t, "pipeline.cue", ordersDefinition)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "--dialect", "oracle"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E002")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "oracle")
}

func TestCompileMissingFile(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.cue")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E001")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileBadDefinition(t *testing.T) {
	path := testutil.WriteFixture(t, "pipeline.cue", `
tables: {d: {columns: ["a"]}}
pipeline: {
	from: "d"
	steps: [{select_columns: ["missing"]}]
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E001")
	assert.Contains(t, buf.String(), "missing")
}
