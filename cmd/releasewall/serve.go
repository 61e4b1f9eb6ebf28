package main

import (
	"fmt"

	"github.com/amaumene/releasewall/internal/api"
	"github.com/amaumene/releasewall/internal/scheduler"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the moderation dashboard and the daily schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()

			cfg := ctx.cfg
			logger := ctx.logger
			runs := ctx.runsDB()
			selections := ctx.selections()

			server, err := api.NewServer(cfg, ctx.fs, selections, runs, ctx.metrics, logger)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			// The dashboard works offline; the schedule needs the catalog
			catalog, err := ctx.catalog()
			if err != nil {
				logger.WithError(err).Warn("Catalog unavailable, scheduled updates disabled")
			} else {
				wall, err := ctx.wall(catalog, selections)
				if err != nil {
					return err
				}
				sched := scheduler.NewScheduler(cfg.DailySchedule, ctx.tracker(catalog), wall, runs, logger)
				if err := sched.Start(); err != nil {
					return fmt.Errorf("failed to start scheduler: %w", err)
				}
				defer sched.Stop()
			}

			return server.Start(cmd.Context())
		},
	}
}
