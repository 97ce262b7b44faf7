package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ozemskikh/SearchEngine/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		site   string
		offset int
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the index and print ranked results as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, app App) error {
			resp, err := app.Search(cmd.Context(), search.Query{
				Text:   strings.Join(args, " "),
				Site:   site,
				Offset: offset,
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		}),
	}
	cmd.Flags().StringVar(&site, "site", "", "restrict results to one configured site url")
	cmd.Flags().IntVar(&offset, "offset", 0, "results to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results to print (0 uses the configured default)")
	return cmd
}
