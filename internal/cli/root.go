// Package cli provides the command-line interface for slate.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/slatedata/slate/internal/cli/commands"
	"github.com/slatedata/slate/internal/cli/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "slate",
		Short: "Slate - schema test compiler for SQL models",
		Long: `Slate normalizes the generic tests declared in a project's schema files
into canonical, uniquely named test descriptors and compiles them to the
macro invocations an execution engine runs.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					fmt.Fprintf(os.Stderr, "Using config file: %s\n", configFile)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./slate.yaml)")
	rootCmd.PersistentFlags().String("schema-dir", "", "Path to schema files directory")
	rootCmd.PersistentFlags().String("macros-dir", "", "Path to macros directory")
	rootCmd.PersistentFlags().String("target-dir", "", "Path to compiled output directory")
	rootCmd.PersistentFlags().StringP("environment", "e", "", "Environment name exposed to templates")
	rootCmd.PersistentFlags().Bool("require-arguments-property", false, "Expect test arguments under a dedicated 'arguments' key")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(
		commands.NewCompileCommand(),
		commands.NewListCommand(),
	)

	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
