package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTraceCommand(opts *options) *cobra.Command {
	var (
		depth  int
		cycles bool
	)

	cmd := &cobra.Command{
		Use:   "trace <function>",
		Short: "Show who calls a function, across module boundaries",
		Long: `Lists every call site of a function outside its own defining files,
attributed to the enclosing caller. With --cycles it instead reports
recursive call chains found anywhere in the platform's call graph,
bounded by --depth hops.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if depth < 1 {
				return fmt.Errorf("--depth must be at least 1")
			}
			session, err := opts.openSession()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			if cycles {
				chains := session.RecursiveChains(depth)
				if opts.jsonOutput {
					return printJSON(w, map[string]any{"chains": chains})
				}
				for _, chain := range chains {
					fmt.Fprintf(w, "%s\n", strings.Join(chain, " -> "))
				}
				fmt.Fprintf(w, "%d recursive chains\n", len(chains))
				return nil
			}

			paths, err := session.TraceCalls(args[0])
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(w, map[string]any{"function": args[0], "paths": paths})
			}
			for _, path := range paths {
				fmt.Fprintf(w, "%s -> %s  (%s:%d)\n", path.Caller, path.Callee, path.File, path.Line)
			}
			fmt.Fprintf(w, "%d call sites\n", len(paths))
			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 5, "Traversal bound for --cycles (>=1)")
	cmd.Flags().BoolVar(&cycles, "cycles", false, "Report recursive call chains instead of callers")
	return cmd
}
