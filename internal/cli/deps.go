package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newDepsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps <module>",
		Short: "Show a module's dependencies and dependents",
		Long: `Shows the library-class dependencies of a module as resolved by the
platform, both direct and transitive, plus the modules that depend on
it. The module may be named by its descriptor path or its BASE_NAME.
Unresolved library classes are listed by class name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := opts.openSession()
			if err != nil {
				return err
			}
			report, err := session.ModuleDependencies(args[0])
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), struct {
					Module     string     `json:"module"`
					Direct     []string   `json:"direct"`
					Transitive []string   `json:"transitive"`
					Dependents []string   `json:"dependents"`
					Cycles     [][]string `json:"cycles,omitempty"`
				}{report.Module, report.Direct, report.Transitive, report.Dependents, session.Graph.Cycles})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "module: %s\n", report.Module)
			printList(w, "direct", report.Direct)
			printList(w, "transitive", report.Transitive)
			printList(w, "dependents", report.Dependents)
			for _, cycle := range session.Graph.Cycles {
				fmt.Fprintf(w, "cycle: %s\n", strings.Join(cycle, " -> "))
			}
			return nil
		},
	}
	return cmd
}

func printList(w io.Writer, label string, items []string) {
	fmt.Fprintf(w, "%s (%d):\n", label, len(items))
	for _, item := range items {
		fmt.Fprintf(w, "  %s\n", item)
	}
}
