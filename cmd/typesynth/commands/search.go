package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openfroyo/typesynth/pkg/api"
	"github.com/openfroyo/typesynth/pkg/engine"
	"github.com/openfroyo/typesynth/pkg/synth"
)

// endpointFlags are the search flags shared by search and execute.
type endpointFlags struct {
	inputType  string
	outputType string
	maxCost    float64
	maxSteps   int
}

func (f *endpointFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.inputType, "input-type", "", "type of the supplied value when it differs from the source")
	cmd.Flags().StringVar(&f.outputType, "output-type", "", "type the result must be delivered in")
	cmd.Flags().Float64Var(&f.maxCost, "max-cost", 0, "cost ceiling (default from config)")
	cmd.Flags().IntVar(&f.maxSteps, "max-steps", 0, "maximum path length (default from config)")
}

func (f *endpointFlags) request(source, goal string) api.SearchRequest {
	return api.SearchRequest{
		Endpoints: synth.Endpoints{
			InputType:  f.inputType,
			Source:     source,
			Goal:       goal,
			OutputType: f.outputType,
		},
		MaxCost:  f.maxCost,
		MaxSteps: f.maxSteps,
	}
}

func newSearchCommand() *cobra.Command {
	var (
		flags   endpointFlags
		dotFile string
	)

	cmd := &cobra.Command{
		Use:   "search <source> <goal>",
		Short: "Find compositions between two types",
		Long: `Search the catalog for every chain of functions that turns a value of the
source type into the goal type, cheapest first. Each plan includes the unit
conversions its type boundaries need.`,
		Example: `  # All ways from a product to its CO2 total
  typesynth search --catalog ghg.dsl Product CO2

  # Input supplied in grams, budget of 5
  typesynth search --catalog ghg.dsl --input-type FuelGrams --max-cost 5 Fuel CO2

  # Draw the cheapest plan over the catalog graph
  typesynth search --catalog ghg.dsl --dot best.dot Product CO2`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd.Context(), appNeeds{catalog: true})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			plans, err := svc.Search(ctx, flags.request(args[0], args[1]))
			if err != nil {
				return err
			}

			if dotFile != "" && len(plans) > 0 {
				dot := engine.NewGraphBuilder().Build(a.catalog).ToDOT(plans[0].Functions)
				if err := os.WriteFile(dotFile, []byte(dot), 0o644); err != nil {
					return fmt.Errorf("failed to write DOT file: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, plans)
			}
			if len(plans) == 0 {
				fmt.Fprintf(out, "No composition from %s to %s\n", args[0], args[1])
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tCOST\tCONFIDENCE\tCOMPOSITION")
			for i, p := range plans {
				fmt.Fprintf(tw, "%d\t%.2f\t%.3f\t%s\n", i+1, p.Cost, p.Confidence, p.Composition())
			}
			return tw.Flush()
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&dotFile, "dot", "", "write the catalog graph with the best plan highlighted")

	return cmd
}
