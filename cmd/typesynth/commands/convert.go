package commands

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openfroyo/typesynth/pkg/units"
)

func newConvertCommand() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "convert <value> <from> <to>",
		Short: "Convert a value between units",
		Long: `Convert a number between two units of the same dimension, the same way
conversions are inserted into plans. Use --list to print the unit table.`,
		Example: `  typesynth convert 1500 g kg
  typesynth convert 25 C F
  typesynth convert --list`,
		Args: func(cmd *cobra.Command, args []string) error {
			if list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(3)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if list {
				table := units.Units()
				if jsonOutput {
					return printJSON(out, table)
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "UNIT\tDIMENSION\tTO SI")
				for _, u := range table {
					fmt.Fprintf(tw, "%s\t%s\t%g\n", u.Symbol, u.Dimension, u.SIFactor)
				}
				return tw.Flush()
			}

			value, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("%q is not a number", args[0])
			}
			result, err := units.Convert(value, args[1], args[2])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(out, map[string]any{
					"value": value, "from": args[1], "to": args[2], "result": result,
				})
			}
			fmt.Fprintf(out, "%g %s = %g %s\n", value, args[1], result, args[2])
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list known units")

	return cmd
}
