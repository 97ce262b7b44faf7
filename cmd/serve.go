package cmd

import (
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		RunE: withApp(func(cmd *cobra.Command, _ []string, app App) error {
			return app.Run(cmd.Context())
		}),
	}
}
