package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/puzuwe/rquery/exec"
	"github.com/puzuwe/rquery/pipespec"
	"github.com/puzuwe/rquery/sqlgen"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Dialect     string
	Database    string
	Seed        string
	OutputLimit int
	SourceLimit int
}

// RunResult holds the rows produced by an executed pipeline.
type RunResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Count   int      `json:"count"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <pipeline.cue>",
		Short: "Compile a pipeline and execute it against sqlite",
		Long: `Compile a pipeline definition and run the generated statements
against a sqlite database. With --seed the tables are created and
filled from a YAML document first; with no --db the run happens
against an in-memory database.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", ":memory:", "sqlite database path")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "YAML seed data to load before running")
	cmd.Flags().IntVar(&opts.OutputLimit, "limit", 0, "cap result rows (0 = unlimited)")
	cmd.Flags().IntVar(&opts.SourceLimit, "source-limit", 0, "cap rows read per table (0 = unlimited)")

	return cmd
}

func runRun(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := cmd.Context()

	pipeline, err := pipespec.LoadFile(path)
	if err != nil {
		return commandError(formatter, ErrCodeDefinition, err.Error())
	}

	steps, err := sqlgen.Generate(pipeline.Root, sqlgen.SQLite(), sqlgen.Options{
		OutputColumns: pipeline.Output,
		OutputLimit:   opts.OutputLimit,
		SourceLimit:   opts.SourceLimit,
	})
	if err != nil {
		return failureError(formatter, ErrCodeGenerate, err.Error())
	}
	formatter.VerboseLog("Generated %d step(s)", len(steps))

	db, err := exec.Open(opts.Database)
	if err != nil {
		return commandError(formatter, ErrCodeExecute, err.Error())
	}
	defer db.Close()

	runner := exec.NewRunner(db)
	if opts.Seed != "" {
		seed, err := exec.LoadSeedFile(opts.Seed)
		if err != nil {
			return commandError(formatter, ErrCodeSeed, err.Error())
		}
		if err := runner.Seed(ctx, seed); err != nil {
			return commandError(formatter, ErrCodeSeed, err.Error())
		}
		formatter.VerboseLog("Seeded %d table(s) from %s", len(seed.Tables), opts.Seed)
	}

	result, err := runner.Run(ctx, steps)
	if err != nil {
		return failureError(formatter, ErrCodeExecute, err.Error())
	}

	view := &RunResult{Columns: result.Columns, Rows: result.Rows, Count: len(result.Rows)}
	if view.Rows == nil {
		view.Rows = [][]any{}
	}
	if formatter.Format == "json" {
		return formatter.Success(view)
	}

	fmt.Fprintln(formatter.Writer, strings.Join(view.Columns, "\t"))
	for _, row := range view.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(formatter.Writer, strings.Join(cells, "\t"))
	}
	fmt.Fprintf(formatter.Writer, "(%d row(s))\n", view.Count)
	return nil
}
