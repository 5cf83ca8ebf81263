package exec

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedTable is one table of seed data.
type SeedTable struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	Rows    [][]any  `yaml:"rows"`
}

// SeedData is a seed document: tables with literal rows, used by
// tests and the CLI run command to stand up input data.
type SeedData struct {
	Tables []SeedTable `yaml:"tables"`
}

// LoadSeed decodes a YAML seed document. Unknown fields are errors so
// typos in seed files surface immediately.
func LoadSeed(r io.Reader) (*SeedData, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var data SeedData
	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode seed data: %w", err)
	}
	for _, tbl := range data.Tables {
		if tbl.Name == "" {
			return nil, fmt.Errorf("seed table with no name")
		}
		if len(tbl.Columns) == 0 {
			return nil, fmt.Errorf("seed table %q has no columns", tbl.Name)
		}
		for i, row := range tbl.Rows {
			if len(row) != len(tbl.Columns) {
				return nil, fmt.Errorf("seed table %q row %d has %d values, want %d",
					tbl.Name, i, len(row), len(tbl.Columns))
			}
		}
	}
	return &data, nil
}

// LoadSeedFile reads a YAML seed document from disk.
func LoadSeedFile(path string) (*SeedData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return LoadSeed(f)
}

// Seed creates and fills the tables of a seed document.
func (r *Runner) Seed(ctx context.Context, data *SeedData) error {
	for _, tbl := range data.Tables {
		cols := make([]string, len(tbl.Columns))
		marks := make([]string, len(tbl.Columns))
		for i, c := range tbl.Columns {
			cols[i] = quoteIdent(c)
			marks[i] = "?"
		}
		create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
			quoteIdent(tbl.Name), strings.Join(cols, ", "))
		if _, err := r.db.ExecContext(ctx, create); err != nil {
			return fmt.Errorf("create seed table %q: %w", tbl.Name, err)
		}
		insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(tbl.Name), strings.Join(cols, ", "), strings.Join(marks, ", "))
		for _, row := range tbl.Rows {
			if _, err := r.db.ExecContext(ctx, insert, row...); err != nil {
				return fmt.Errorf("insert into seed table %q: %w", tbl.Name, err)
			}
		}
	}
	return nil
}
