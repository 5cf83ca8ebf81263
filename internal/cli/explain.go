package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/puzuwe/rquery/narrow"
	"github.com/puzuwe/rquery/pipespec"
	"github.com/puzuwe/rquery/rel"
)

// ExplainResult describes a pipeline without compiling it to SQL.
type ExplainResult struct {
	Plan        string              `json:"plan"`
	Columns     []string            `json:"columns"`
	Tables      []string            `json:"tables"`
	ColumnsUsed map[string][]string `json:"columns_used"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "explain <pipeline.cue>",
		Short:         "Show the operator tree of a pipeline definition",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runExplain(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	pipeline, err := pipespec.LoadFile(path)
	if err != nil {
		return commandError(formatter, ErrCodeDefinition, err.Error())
	}

	result := &ExplainResult{
		Plan:        rel.Format(pipeline.Root),
		Columns:     rel.ColumnNames(pipeline.Root),
		Tables:      rel.TablesUsed(pipeline.Root),
		ColumnsUsed: narrow.ColumnsUsed(pipeline.Root),
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprint(formatter.Writer, result.Plan)
	fmt.Fprintf(formatter.Writer, "\nColumns: %s\n", strings.Join(result.Columns, ", "))
	fmt.Fprintf(formatter.Writer, "Tables:  %s\n", strings.Join(result.Tables, ", "))
	for _, tbl := range sortedKeys(result.ColumnsUsed) {
		fmt.Fprintf(formatter.Writer, "  %s uses %s\n", tbl, strings.Join(result.ColumnsUsed[tbl], ", "))
	}
	return nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
