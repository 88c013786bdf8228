package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index-new",
		Short: "Re-index the series currently on the planning page.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := servicesFrom(cmd)
			if err != nil {
				return err
			}
			run, err := svc.Indexer().IndexNew(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"planning indexed: %d new series, %d new seasons, %d new episodes, %d errors\n",
				run.NewSeries, run.NewSeasons, run.NewEpisodes, run.ErrorCount)
			return nil
		},
	}
}
