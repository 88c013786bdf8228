// Package cmd defines the scrapsama command tree.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scrapsama/scrapsama/internal/app"
	"github.com/scrapsama/scrapsama/internal/config"
	"github.com/scrapsama/scrapsama/internal/indexer"
	"github.com/scrapsama/scrapsama/internal/store/postgres"
)

var cfgFile string

type servicesKeyType struct{}

var servicesKey servicesKeyType

// Services is the slice of the app container the commands use. Tests swap
// newServices for a factory returning fakes.
type Services interface {
	Config() config.Config
	Logger() *zap.Logger
	Store() *postgres.Store
	Indexer() *indexer.Indexer
	Close()
}

var newServices = func(ctx context.Context) (Services, error) {
	return app.New(ctx, cfgFile)
}

func servicesFrom(cmd *cobra.Command) (Services, error) {
	svc, ok := cmd.Context().Value(servicesKey).(Services)
	if !ok || svc == nil {
		return nil, fmt.Errorf("application services are not initialized")
	}
	return svc, nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrapsama",
		Short: "Index the anime-sama catalogue into a relational store.",
		Long: `scrapsama walks the anime-sama catalogue and persists series, seasons,
episodes and player links into Postgres. Re-running any command is safe:
rows are upserted on their natural keys and each run appends one summary
row to the run log.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newServices(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), servicesKey, svc))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if svc, ok := cmd.Context().Value(servicesKey).(Services); ok && svc != nil {
				svc.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default config.yaml in the working directory)")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newIndexAllCmd())
	cmd.AddCommand(newIndexNewCmd())
	cmd.AddCommand(newInitDBCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute runs the command tree.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
