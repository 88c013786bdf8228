package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <series name>",
		Short: "Index every season and episode of one series.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := servicesFrom(cmd)
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			ctx := cmd.Context()

			links, err := svc.Indexer().SearchSeries(ctx, query)
			if err != nil {
				return err
			}
			if len(links) == 0 {
				return fmt.Errorf("no series found for %q", query)
			}
			if len(links) > 1 {
				svc.Logger().Info("multiple matches, indexing the first",
					zap.String("query", query), zap.Int("matches", len(links)))
			}

			run, err := svc.Indexer().IndexSeries(ctx, fmt.Sprintf("index[%s]", query), links[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"indexed %s: %d new series, %d new seasons, %d new episodes, %d errors\n",
				query, run.NewSeries, run.NewSeasons, run.NewEpisodes, run.ErrorCount)
			return nil
		},
	}
}
