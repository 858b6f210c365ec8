package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfroyo/typesynth/pkg/dsl"
	"github.com/openfroyo/typesynth/pkg/engine"
)

func newExportCommand() *cobra.Command {
	var (
		format  string
		outFile string
	)

	cmd := &cobra.Command{
		Use:   "export [catalog]",
		Short: "Convert a catalog to another form",
		Long: `Read a catalog in any supported form and write it as grammar text, YAML,
JSON, or a Graphviz DOT drawing of the function graph.`,
		Example: `  # Grammar to YAML
  typesynth export --format yaml ghg.dsl

  # Render the function graph
  typesynth export --format dot --out ghg.dot ghg.dsl && dot -Tsvg ghg.dot > ghg.svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := catalogPath
			if len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no catalog given: pass a path or use --catalog")
			}

			cat, err := dsl.Load(path)
			if err != nil {
				return err
			}

			var data []byte
			switch format {
			case dsl.FormatYAML:
				data, err = dsl.FromCatalog(cat).YAML()
			case dsl.FormatJSON:
				data, err = dsl.FromCatalog(cat).JSON()
			case dsl.FormatGrammar:
				data = []byte(dsl.Format(cat))
			case dsl.FormatDOT:
				data = []byte(engine.NewGraphBuilder().Build(cat).ToDOT(nil))
			default:
				return fmt.Errorf("unknown export format %q (want grammar, yaml, json or dot)", format)
			}
			if err != nil {
				return err
			}

			if outFile == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outFile, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outFile, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", dsl.FormatYAML, "output format: grammar, yaml, json, dot")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	return cmd
}
