package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index-all",
		Short: "Walk the whole catalogue and index every series.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := servicesFrom(cmd)
			if err != nil {
				return err
			}
			run, err := svc.Indexer().IndexAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"catalogue indexed: %d new series, %d new seasons, %d new episodes, %d errors\n",
				run.NewSeries, run.NewSeasons, run.NewEpisodes, run.ErrorCount)
			return nil
		},
	}
}
