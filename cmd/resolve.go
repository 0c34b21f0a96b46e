package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [sitemap-url...]",
		Short: "Prints the leaf URLs of sitemaps",
		Long:  `Prints one leaf URL per line for the given sitemap roots, or for the configured roots when none are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			roots := args
			if len(roots) == 0 {
				roots = appInstance.Config.Checker.Sitemaps
			}
			for _, root := range roots {
				urls, err := appInstance.Resolver.Resolve(cmd.Context(), root)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", root, err)
				}
				for _, u := range urls {
					fmt.Fprintln(cmd.OutOrStdout(), u)
				}
			}
			return nil
		},
	}
}
