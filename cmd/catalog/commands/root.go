// Package commands holds the catalog CLI.
package commands

import (
	"context"
	"os"

	"github.com/goliatone/go-record-catalog/config"
	"github.com/goliatone/go-record-catalog/pkg/di"
	"github.com/goliatone/go-record-catalog/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "catalog",
		Short:         "Record catalogue service with cached, cursor paginated listings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("CATALOG_CONFIG"),
		"path to a YAML config file (env CATALOG_CONFIG)")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newRecordsCommand(opts),
	)

	return rootCmd
}

// bootstrap loads the config, builds the logger and wires the container.
func (o *rootOptions) bootstrap(ctx context.Context) (*config.Config, zerolog.Logger, *di.Container, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}

	container, err := di.NewContainer(ctx, *cfg, log)
	if err != nil {
		return nil, log, nil, err
	}
	return cfg, log, container, nil
}
