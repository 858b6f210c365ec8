package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/typesynth/pkg/api"
	"github.com/openfroyo/typesynth/pkg/config"
	"github.com/openfroyo/typesynth/pkg/stores"
)

// storeApp opens the configured run store, failing when it is disabled.
func storeApp(ctx context.Context) (*app, context.Context, error) {
	a, ctx, err := newApp(ctx, appNeeds{store: true})
	if err != nil {
		return nil, ctx, err
	}
	if a.store == nil {
		a.Close(ctx)
		return nil, ctx, fmt.Errorf("run store is disabled: set store.enabled or %s", config.EnvStore)
	}
	return a, ctx, nil
}

func newRunsCommand() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List stored runs or show one",
		Example: `  # Ten most recent runs
  typesynth runs --limit 10

  # One run with its steps
  typesynth runs 3f2c9a0e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := storeApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				run, err := a.store.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				steps, err := a.store.ListSteps(ctx, run.ID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(out, map[string]any{"run": run, "steps": steps})
				}
				printRun(out, run, steps)
				return nil
			}

			runs, err := a.store.ListRuns(ctx, limit, offset)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(out, runs)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSTATUS\tSOURCE\tGOAL\tOUTPUT\tCONFIDENCE")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.3f\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Status, r.Source, r.Goal, r.Output, r.Confidence)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "runs to skip")

	return cmd
}

func printRun(out io.Writer, run *stores.Run, steps []*stores.Step) {
	fmt.Fprintf(out, "Run:        %s\n", run.ID)
	fmt.Fprintf(out, "Status:     %s\n", run.Status)
	fmt.Fprintf(out, "Goal:       %s -> %s\n", run.Source, run.Goal)
	fmt.Fprintf(out, "Input:      %s\n", run.Input)
	fmt.Fprintf(out, "Output:     %s\n", run.Output)
	fmt.Fprintf(out, "Confidence: %.3f\n", run.Confidence)
	if run.Error != nil {
		fmt.Fprintf(out, "Error:      %s\n", *run.Error)
	}
	for _, s := range steps {
		marker := ""
		if s.Degraded {
			marker = " (degraded)"
		}
		fmt.Fprintf(out, "  %d. %-28s %s -> %s%s\n", s.Seq+1, s.FunctionID, s.Input, s.Output, marker)
	}
}

func newProvenanceCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "provenance <run-id>",
		Short: "Print the provenance of a stored run",
		Example: `  typesynth provenance 3f2c9a0e-... --format turtle
  typesynth provenance 3f2c9a0e-... --format ntriples > run.nt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := storeApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			doc, err := api.LoadProvenance(ctx, a.store, args[0], format)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), doc)
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "turtle", "turtle, ntriples or json")

	return cmd
}
