package main

import (
	"github.com/spf13/cobra"

	"tubelens/internal/daemonrun"
)

var version = "dev"

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var dev bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: dev,
				Version:     version,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&dev, "dev", false, "Development logging (source locations)")
	return cmd
}
