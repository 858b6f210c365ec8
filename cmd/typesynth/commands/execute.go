package commands

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/typesynth/pkg/api"
	"github.com/openfroyo/typesynth/pkg/executor"
	"github.com/openfroyo/typesynth/pkg/provenance"
)

func newExecuteCommand() *cobra.Command {
	var (
		flags      endpointFlags
		params     map[string]string
		mock       bool
		live       bool
		all        bool
		showSteps  bool
		provFormat string
	)

	cmd := &cobra.Command{
		Use:   "execute <source> <goal> <input>",
		Short: "Find the cheapest composition and run it",
		Long: `Plan a composition from source to goal and execute it against the input.

The input is a number, a comma-separated list for product types, or any
other text. Runtime parameters come from the config, then --param.`,
		Example: `  # Estimate CO2 from 8.57 kg of fuel
  typesynth execute --catalog ghg.dsl Fuel CO2 8.57

  # Sum three scopes with a different emission factor
  typesynth execute --catalog ghg.dsl --param emission_factor=2.9 AllScopes Total 10,20,30

  # Run every plan and print the provenance of each
  typesynth execute --catalog ghg.dsl --all --provenance turtle Product CO2 1`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseParams(params)
			if err != nil {
				return err
			}
			if provFormat != "" {
				if _, ok := provenance.Formats[provenance.Format(provFormat)]; !ok {
					return fmt.Errorf("unknown provenance format %q", provFormat)
				}
			}

			a, ctx, err := newApp(cmd.Context(), appNeeds{catalog: true, store: true, policy: true})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			svc, err := a.service(ctx)
			if err != nil {
				return err
			}

			req := api.ExecuteRequest{
				SearchRequest: flags.request(args[0], args[1]),
				Input:         parseInput(args[2]),
				Params:        overrides,
				All:           all,
			}
			switch {
			case mock:
				req.MockMode = &mock
			case live:
				off := false
				req.MockMode = &off
			}

			executions, err := svc.Execute(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, executions)
			}
			for i, ex := range executions {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "Plan:       %s\n", ex.Plan.Composition())
				if ex.Error != "" {
					fmt.Fprintf(out, "Error:      %s\n", ex.Error)
					continue
				}
				res := ex.Result
				fmt.Fprintf(out, "Result:     %s\n", executor.FormatValue(res.Value))
				fmt.Fprintf(out, "Confidence: %.3f\n", res.Confidence)
				if res.Degraded {
					fmt.Fprintln(out, "Degraded:   yes (mock or fallback values used)")
				}
				fmt.Fprintf(out, "Run:        %s\n", res.ExecutionID)

				if showSteps {
					for _, s := range res.Steps {
						fmt.Fprintf(out, "  %d. %-28s %s -> %s (confidence %.2f)\n",
							s.Index+1, s.FunctionID, executor.FormatValue(s.Input), executor.FormatValue(s.Output), s.Confidence)
					}
				}
				if provFormat != "" {
					var buf bytes.Buffer
					if err := provenance.Encode(&buf, ex.Provenance, provenance.Format(provFormat)); err != nil {
						return err
					}
					fmt.Fprintln(out)
					fmt.Fprint(out, buf.String())
				}
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "runtime parameter override, name=value")
	cmd.Flags().BoolVar(&mock, "mock", false, "force mock mode for queries and calls")
	cmd.Flags().BoolVar(&live, "live", false, "force live queries and calls")
	cmd.Flags().BoolVar(&all, "all", false, "run every plan, not only the cheapest")
	cmd.Flags().BoolVar(&showSteps, "steps", false, "print each step")
	cmd.Flags().StringVar(&provFormat, "provenance", "", "print provenance (turtle, ntriples, json)")
	cmd.MarkFlagsMutuallyExclusive("mock", "live")

	return cmd
}

// parseParams converts --param values to numbers.
func parseParams(raw map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %q is not a number", k, v)
		}
		out[k] = f
	}
	return out, nil
}

// parseInput reads a number, a comma-separated tuple of numbers, or text.
func parseInput(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		tuple := make([]any, len(parts))
		for i, p := range parts {
			p = strings.TrimSpace(p)
			if f, err := strconv.ParseFloat(p, 64); err == nil {
				tuple[i] = f
			} else {
				tuple[i] = p
			}
		}
		return tuple
	}
	return s
}
