package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search the platform's sources for a substring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := opts.openSession()
			if err != nil {
				return err
			}
			matches := session.SearchText(args[0])

			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{"query": args[0], "matches": matches})
			}

			w := cmd.OutOrStdout()
			for _, match := range matches {
				fmt.Fprintf(w, "%s:%d  [%s]  %s\n", match.File, match.Line, match.Module, match.Snippet)
			}
			fmt.Fprintf(w, "%d matches\n", len(matches))
			return nil
		},
	}
	return cmd
}
