// Package cmd defines the CLI commands for the canonical-checker executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobtrees/canonical-checker/internal/app"
	"github.com/jobtrees/canonical-checker/internal/config"
	"github.com/jobtrees/canonical-checker/internal/logging"
)

type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It is a variable so tests can swap it.
var newApp = func(ctx context.Context, cfgFile string) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewWithOptions(cfg.Logging.Development, logging.Options{
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "canonical-checker",
		Short: "Audits a site's sitemaps for pages whose canonical URL points elsewhere.",
		Long: `canonical-checker walks the configured sitemaps, fetches every page they list,
and reports each page whose <link rel="canonical"> differs from its own URL.
Fetch outcomes are cached so repeated runs only touch new pages.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return nil
			}
			closeApp(appInstance)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newCacheCmd())
	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application is not initialized")
	}
	return appInstance, nil
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		a.Logger.Warn("error closing application", zap.Error(err))
	}
	_ = a.Logger.Sync()
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	return execute(ctx, nil, nil, nil)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	if args != nil {
		root.SetArgs(args)
	}
	if stdout != nil {
		root.SetOut(stdout)
	}
	if stderr != nil {
		root.SetErr(stderr)
	}
	executed, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}
	if a, aerr := resolveApp(executed.Context()); aerr == nil {
		a.Logger.Error("command failed", zap.String("command", executed.Name()), zap.Error(err))
		closeApp(a)
	} else {
		fallback, _ := logging.New(false)
		fallback.Error("command failed", zap.Error(err))
		_ = fallback.Sync()
	}
	root.PrintErrln("Error:", err)
	return 1
}
