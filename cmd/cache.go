package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspects the URL cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <url>",
		Short: "Prints the cached outcome for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			entry, ok, err := appInstance.Cache.Lookup(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("lookup %s: %w", args[0], err)
			}
			if !ok {
				return fmt.Errorf("%s is not cached", args[0])
			}
			canonical := entry.Canonical
			if canonical == "" {
				canonical = "-"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "url=%s canonical=%s status=%d\n", entry.URL, canonical, entry.Status)
			return nil
		},
	})
	return cmd
}
