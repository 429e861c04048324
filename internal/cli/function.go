package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFunctionCommand(opts *options) *cobra.Command {
	var withMetrics bool

	cmd := &cobra.Command{
		Use:   "function <name>",
		Short: "Locate a function across the platform's sources",
		Long: `Finds every definition and forward declaration of a function in the
sources of the modules this platform builds. With --metrics it also
reports fan-out, fan-in, and bounded call depth.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := opts.openSession()
			if err != nil {
				return err
			}
			name := args[0]

			locations, err := session.FindFunction(name)
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				out := map[string]any{"function": name, "locations": locations}
				if withMetrics {
					metrics, err := session.FunctionMetrics(name)
					if err != nil {
						return err
					}
					out["metrics"] = metrics
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			for _, loc := range locations {
				kind := "declaration"
				if loc.IsDefinition {
					kind = "definition"
				}
				fmt.Fprintf(w, "%s:%d  %s  [%s]  %s\n", loc.File, loc.Line, kind, loc.Module, loc.Signature)
			}
			if withMetrics {
				metrics, err := session.FunctionMetrics(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "calls made: %d (unique %d)  called by: %d  max depth: %d\n",
					metrics.CallsMade, metrics.UniqueCallees, metrics.CalledBy, metrics.MaxCallDepth)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withMetrics, "metrics", false, "Also print call-graph metrics")
	return cmd
}
