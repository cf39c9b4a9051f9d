package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/slatedata/slate/internal/cli/config"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the generic tests declared in the project",
		Long: `Parse the project's schema files and print every resolved generic test
with its compiled name, macro, target, column, and tags.`,
		RunE: runList,
	}
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg := config.Current()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}
	logger := newLogger(cfg)

	tests, err := loadTests(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"NAME", "MACRO", "TARGET", "COLUMN", "TAGS"})
	for _, ct := range tests {
		b := ct.Builder
		tags, err := b.Tags()
		if err != nil {
			return fmt.Errorf("%s: %w", ct.File, err)
		}
		t.AppendRow(table.Row{
			b.CompiledName(),
			b.MacroName(),
			b.Target().TargetName(),
			b.ColumnName(),
			strings.Join(tags, ", "),
		})
	}
	t.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "%d tests\n", len(tests))
	return nil
}
