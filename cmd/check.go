package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Runs the full canonical audit and writes the report",
		Long: `Resolves every configured sitemap, checks each page's canonical URL,
writes the Excel report, uploads it when a storage target is configured and
publishes a run summary when a notifier is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			stop, err := appInstance.ServeMetrics()
			if err != nil {
				return err
			}
			defer stop(cmd.Context()) //nolint:errcheck

			summary, err := appInstance.Runner().Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked %d urls across %d sitemaps: %d mismatches, report at %s\n",
				summary.TotalURLs, len(summary.Sitemaps), summary.TotalMismatches, summary.ReportPath)
			return nil
		},
	}
}
