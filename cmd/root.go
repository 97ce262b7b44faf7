// Package cmd defines the CLI commands for the searchengine executable.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ozemskikh/SearchEngine/internal/config"
	"github.com/ozemskikh/SearchEngine/internal/search"
	"github.com/ozemskikh/SearchEngine/internal/server"
	"github.com/ozemskikh/SearchEngine/internal/stats"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the application surface the commands use.
type App interface {
	Run(ctx context.Context) error
	Index(ctx context.Context) (stats.Report, error)
	Search(ctx context.Context, q search.Query) (search.Response, error)
	Close(ctx context.Context) error
}

// newApp is the application factory. Tests replace it with a fake.
var newApp = func(ctx context.Context, cfgFile string) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return server.Build(ctx, &cfg)
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "searchengine",
		Short: "Crawl configured sites and serve full-text search over them.",
		Long: `searchengine crawls every page of the sites listed in its configuration,
builds a lemma index of their text, and answers ranked search queries over
an HTTP API.`,
		SilenceUsage: true,

		// Builds the application once config flags are parsed and stores it
		// in the command context for subcommands.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	cmd.AddCommand(newServeCmd(), newIndexCmd(), newSearchCmd())
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// withApp resolves the application and closes it after fn returns, whether
// or not fn failed.
func withApp(fn func(cmd *cobra.Command, args []string, app App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		appInstance, err := resolveApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			if cerr := appInstance.Close(context.WithoutCancel(cmd.Context())); cerr != nil {
				zap.L().Warn("application shutdown failed", zap.Error(cerr))
			}
		}()
		return fn(cmd, args, appInstance)
	}
}

func printJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
