package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edk2nav/edk2nav/internal/cache"
)

func newCacheCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the build-context cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry count and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			stats, err := store.Stats()
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "dir: %s\n", stats.Dir)
			fmt.Fprintf(w, "entries: %d (%d bytes)\n", stats.Entries, stats.TotalBytes)
			if !stats.Oldest.IsZero() {
				fmt.Fprintf(w, "oldest: %s\nnewest: %s\n", stats.Oldest.Format("2006-01-02 15:04:05"), stats.Newest.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached build context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

func (o *options) openStore() (*cache.Store, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return cache.New(cfg.CacheDir, cfg.CacheTTL(), nil), nil
}
