package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath  string
	catalogPath string
	verbose     bool
	jsonOutput  bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "typesynth",
		Short: "typesynth - type-directed function composition",
		Long: `typesynth finds chains of catalog functions that turn a value of one
semantic type into another, inserts the unit conversions the chain needs,
executes it and records how the result was derived.

Features:
  - Catalogs in a compact grammar, YAML, JSON or CUE
  - Cost-ordered search over all compositions
  - Automatic unit conversion at type boundaries
  - Formula, SPARQL, REST and builtin function kinds
  - W3C PROV provenance in Turtle, N-Triples or JSON
  - Rego policies over external calls
  - Run history in SQLite and an HTTP API`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "catalog file (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newSearchCommand())
	rootCmd.AddCommand(newExecuteCommand())
	rootCmd.AddCommand(newConvertCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(newProvenanceCommand())
	rootCmd.AddCommand(newServeCommand())

	return rootCmd
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
