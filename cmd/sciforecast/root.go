package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/sciforecast/pkg/log"
	"github.com/YuminosukeSato/sciforecast/registry"
)

type rootOptions struct {
	logLevel string
	logger   log.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "sciforecast",
		Short:         "Fit and run forecasters on panels of time series",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := log.ToLogLevel(opts.logLevel)
			if err != nil {
				return err
			}
			opts.logger = log.NewZerologLogger(cmd.ErrOrStderr(), log.Level(level))
			log.SetLogger(opts.logger)
			log.RouteWarnings(opts.logger)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	cmd.AddCommand(newPredictCmd(opts), newListCmd())
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the estimators usable in specs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := registry.New()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "forecasters:")
			for _, name := range r.Forecasters() {
				fmt.Fprintln(out, "  "+name)
			}
			fmt.Fprintln(out, "transformers:")
			for _, name := range r.Transformers() {
				fmt.Fprintln(out, "  "+name)
			}
			return nil
		},
	}
}
