package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/puzuwe/rquery/pipespec"
	"github.com/puzuwe/rquery/sqlgen"
)

// Error codes for CLI responses.
const (
	ErrCodeDefinition = "E001" // pipeline definition could not be loaded/compiled
	ErrCodeGenerate   = "E002" // SQL generation failed
	ErrCodeExecute    = "E003" // execution against the database failed
	ErrCodeSeed       = "E004" // seed data could not be loaded/applied
	ErrCodeWrite      = "E005" // output file could not be written
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Dialect     string
	OutputLimit int
	SourceLimit int
	Output      string // output file path
}

// StepView is the serializable form of a generated step.
type StepView struct {
	Kind      string   `json:"kind"` // "sql" | "transform"
	Table     string   `json:"table,omitempty"`
	Columns   []string `json:"columns"`
	SQL       string   `json:"sql,omitempty"`
	Transform string   `json:"transform,omitempty"`
	Incoming  string   `json:"incoming,omitempty"`
	Outgoing  string   `json:"outgoing,omitempty"`
}

// CompileResult holds the generated plan.
type CompileResult struct {
	Dialect string     `json:"dialect"`
	Columns []string   `json:"columns"`
	Steps   []StepView `json:"steps"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <pipeline.cue>",
		Short: "Compile a pipeline definition to SQL steps",
		Long: `Compile a CUE pipeline definition into ordered SQL statements for
the chosen dialect. The statements are printed in execution order;
all but the last stage intermediate results.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dialect, "dialect", "sqlite", "target dialect (sqlite|postgres)")
	cmd.Flags().IntVar(&opts.OutputLimit, "limit", 0, "cap result rows (0 = unlimited)")
	cmd.Flags().IntVar(&opts.SourceLimit, "source-limit", 0, "cap rows read per table (0 = unlimited)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write final SQL to file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	dialect, err := dialectByName(opts.Dialect)
	if err != nil {
		return commandError(formatter, ErrCodeGenerate, err.Error())
	}

	pipeline, err := pipespec.LoadFile(path)
	if err != nil {
		return commandError(formatter, ErrCodeDefinition, err.Error())
	}
	formatter.VerboseLog("Loaded %d table(s) from %s", len(pipeline.Tables), path)

	steps, err := sqlgen.Generate(pipeline.Root, dialect, sqlgen.Options{
		OutputColumns: pipeline.Output,
		OutputLimit:   opts.OutputLimit,
		SourceLimit:   opts.SourceLimit,
	})
	if err != nil {
		return failureError(formatter, ErrCodeGenerate, err.Error())
	}

	result := &CompileResult{Dialect: dialect.Name, Steps: stepViews(steps)}
	if last, ok := steps[len(steps)-1].(sqlgen.SQLStep); ok {
		result.Columns = last.Columns
		if opts.Output != "" {
			if err := os.WriteFile(opts.Output, []byte(last.SQL+"\n"), 0o644); err != nil {
				return commandError(formatter, ErrCodeWrite, fmt.Sprintf("writing output file: %v", err))
			}
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d step(s) for %s\n\n", len(result.Steps), result.Dialect)
	for i, step := range result.Steps {
		switch step.Kind {
		case "sql":
			target := "result"
			if step.Table != "" {
				target = "stage " + step.Table
			}
			fmt.Fprintf(formatter.Writer, "-- step %d (%s)\n%s\n\n", i+1, target, step.SQL)
		case "transform":
			fmt.Fprintf(formatter.Writer, "-- step %d (transform %s: %s -> %s)\n\n",
				i+1, step.Transform, step.Incoming, step.Outgoing)
		}
	}
	fmt.Fprintf(formatter.Writer, "Result columns: %s\n", strings.Join(result.Columns, ", "))
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote final SQL to %s\n", opts.Output)
	}
	return nil
}

func stepViews(steps []sqlgen.Step) []StepView {
	views := make([]StepView, 0, len(steps))
	for _, step := range steps {
		switch s := step.(type) {
		case sqlgen.SQLStep:
			views = append(views, StepView{
				Kind:    "sql",
				Table:   s.Table,
				Columns: s.Columns,
				SQL:     s.SQL,
			})
		case sqlgen.TransformStep:
			views = append(views, StepView{
				Kind:      "transform",
				Columns:   s.Columns,
				Transform: s.Transform.TransformName(),
				Incoming:  s.Incoming,
				Outgoing:  s.Outgoing,
			})
		}
	}
	return views
}

func dialectByName(name string) (sqlgen.Dialect, error) {
	switch name {
	case "sqlite":
		return sqlgen.SQLite(), nil
	case "postgres":
		return sqlgen.Postgres(), nil
	}
	return sqlgen.Dialect{}, fmt.Errorf("unknown dialect %q: must be sqlite or postgres", name)
}

// commandError reports an error and exits with the command-error code.
func commandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message)
	return NewExitError(ExitCommandError, code+": "+message)
}

// failureError reports an error and exits with the failure code.
func failureError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message)
	return NewExitError(ExitFailure, code+": "+message)
}
