package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/puzuwe/rquery/narrow"
	"github.com/puzuwe/rquery/pipespec"
)

// TableUsage lists the columns a pipeline actually reads from a table.
type TableUsage struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
}

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables <pipeline.cue>",
		Short: "List the tables and columns a pipeline reads",
		Long: `List every table the pipeline scans and the subset of its declared
columns the pipeline actually uses. Useful for checking that a source
view or extract carries enough columns before running.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runTables(opts *RootOptions, path string, cmd *cobra.Command) error {
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

	used := narrow.ColumnsUsed(pipeline.Root)
	usage := make([]TableUsage, 0, len(used))
	for _, tbl := range sortedKeys(used) {
		usage = append(usage, TableUsage{Table: tbl, Columns: used[tbl]})
	}

	if formatter.Format == "json" {
		return formatter.Success(usage)
	}

	for _, u := range usage {
		fmt.Fprintf(formatter.Writer, "%s: %s\n", u.Table, strings.Join(u.Columns, ", "))
	}
	return nil
}
