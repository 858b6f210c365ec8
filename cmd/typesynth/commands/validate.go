package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/typesynth/pkg/catalog"
	"github.com/openfroyo/typesynth/pkg/dsl"
	"github.com/openfroyo/typesynth/pkg/engine"
)

// validationReport is the JSON form of validate's output.
type validationReport struct {
	Path       string          `json:"path"`
	Types      int             `json:"types"`
	Functions  int             `json:"functions"`
	Issues     []catalog.Issue `json:"issues"`
	Cycles     []string        `json:"cycles,omitempty"`
	Undeclared []string        `json:"undeclared,omitempty"`
	Valid      bool            `json:"valid"`
}

func newValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate [catalog]",
		Short: "Validate a catalog file",
		Long: `Validate a catalog file and analyse its function graph.

This command checks:
  - Syntax of the grammar, YAML, JSON or CUE form
  - CUE schema conformance for .cue catalogs
  - Field constraints (cost, confidence, units, product arity)
  - Cycles and types used but never declared`,
		Example: `  # Validate the configured catalog
  typesynth validate

  # Validate a specific file, failing on warnings too
  typesynth validate --strict ./ghg.dsl`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := catalogPath
			if len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no catalog given: pass a path or use --catalog")
			}

			log.Debug().Str("path", path).Bool("strict", strict).Msg("Validating catalog")

			cat, err := dsl.Load(path)
			if err != nil {
				return err
			}
			report := analyse(path, cat, strict)

			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := printJSON(out, report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "%s: %d types, %d functions\n", path, report.Types, report.Functions)
				for _, issue := range report.Issues {
					level := "warning"
					if issue.Fatal {
						level = "error"
					}
					fmt.Fprintf(out, "  %-7s %s\n", level, issue)
				}
				for _, c := range report.Cycles {
					fmt.Fprintf(out, "  cycle   %s\n", c)
				}
				for _, name := range report.Undeclared {
					fmt.Fprintf(out, "  note    type %s is used but not declared\n", name)
				}
				if report.Valid {
					fmt.Fprintln(out, "Catalog is valid")
				}
			}

			if !report.Valid {
				return engine.NewPermanentError("catalog is invalid", nil).
					WithCode(engine.ErrCodeValidation).
					WithSubject(path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")

	return cmd
}

// analyse validates cat and summarises its function graph.
func analyse(path string, cat *catalog.Catalog, strict bool) validationReport {
	g := engine.NewGraphBuilder().Build(cat)
	report := validationReport{
		Path:      path,
		Types:     len(cat.Types()),
		Functions: len(cat.Functions()),
		Issues:    cat.Validate(),
		Valid:     true,
	}
	for _, c := range g.Cycles {
		report.Cycles = append(report.Cycles, engine.FormatCycle(c))
	}
	for _, name := range cat.TypeNames() {
		if n := g.Nodes[name]; n != nil && !n.Declared {
			report.Undeclared = append(report.Undeclared, name)
		}
	}
	for _, issue := range report.Issues {
		if issue.Fatal || strict {
			report.Valid = false
		}
	}
	return report
}
