package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newModulesCommand(opts *options) *cobra.Command {
	var typeFilter string

	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List the modules the platform builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := opts.openSession()
			if err != nil {
				return err
			}
			modules := session.Modules(typeFilter)

			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), modules)
			}

			w := cmd.OutOrStdout()
			for _, module := range modules {
				fmt.Fprintf(w, "%-60s %s (%s)\n", module.Path, module.Name, module.Type)
			}
			fmt.Fprintf(w, "%d modules\n", len(modules))
			return nil
		},
	}

	cmd.Flags().StringVar(&typeFilter, "type", "", "Only modules of this MODULE_TYPE")
	return cmd
}
