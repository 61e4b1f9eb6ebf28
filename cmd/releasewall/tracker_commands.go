package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/amaumene/releasewall/internal/controllers"
	"github.com/spf13/cobra"
)

func newBootstrapCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap [days]",
		Short: "Scan the last days of releases and start tracking them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days := ctx.cfg.BootstrapDays
			if len(args) == 1 {
				parsed, err := strconv.Atoi(args[0])
				if err != nil || parsed <= 0 {
					return fmt.Errorf("days must be a positive integer, got %q", args[0])
				}
				days = parsed
			}

			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			defer ctx.close()

			summary, err := ctx.tracker(catalog).Bootstrap(cmd.Context(), days)
			if summary != nil {
				printSummary(cmd.OutOrStdout(), summary)
			}
			return err
		},
	}
}

func newDailyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daily",
		Short: "Add new releases and re-check tracking titles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			defer ctx.close()

			summary, err := ctx.tracker(catalog).DailyUpdate(cmd.Context())
			if summary != nil {
				printSummary(cmd.OutOrStdout(), summary)
			}
			return err
		},
	}
}

func newCheckProvidersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check-providers",
		Short: "Re-check watch providers of tracking titles only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			defer ctx.close()

			summary, err := ctx.tracker(catalog).CheckProviders(cmd.Context())
			if summary != nil {
				printSummary(cmd.OutOrStdout(), summary)
			}
			return err
		},
	}
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <title> [year]",
		Short: "Search the catalog and track the best match",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(args[0])
			if title == "" {
				return fmt.Errorf("title must not be empty")
			}
			year := 0
			if len(args) == 2 {
				parsed, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("year must be a number, got %q", args[1])
				}
				year = parsed
			}

			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			defer ctx.close()

			record, added, err := ctx.tracker(catalog).AddByTitle(cmd.Context(), title, year)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !added {
				fmt.Fprintf(out, "Already tracked: %s (%d) [%s]\n", record.Title, record.ExternalID, record.Availability)
				return nil
			}
			fmt.Fprintf(out, "Added: %s (%d)\n", record.Title, record.ExternalID)
			fmt.Fprintf(out, "  status:    %s\n", record.Availability)
			if record.EarliestReleaseDate != nil {
				fmt.Fprintf(out, "  earliest:  %s\n", record.EarliestReleaseDate)
			}
			if record.DigitalDate != nil {
				fmt.Fprintf(out, "  digital:   %s\n", record.DigitalDate)
			}
			if names := record.Providers.Names(); len(names) > 0 {
				fmt.Fprintf(out, "  providers: %s\n", strings.Join(names, ", "))
			}
			return nil
		},
	}
}

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	var markAvailable bool

	cmd := &cobra.Command{
		Use:   "refresh <tmdb-id>",
		Short: "Re-fetch one tracked title, or mark it available by hand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			out := cmd.OutOrStdout()

			if markAvailable {
				defer ctx.close()
				if err := ctx.tracker(nil).MarkAvailable(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(out, "Marked %d as available\n", id)
				return nil
			}

			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			defer ctx.close()

			record, outcome, err := ctx.tracker(catalog).Refresh(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Refreshed: %s (%d) [%s]\n", record.Title, record.ExternalID, record.Availability)
			if outcome.Resolved {
				fmt.Fprintf(out, "  now available via %s\n", outcome.Via)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&markAvailable, "mark-available", false, "Resolve the title without fetching anything")
	return cmd
}

func printSummary(w io.Writer, summary *controllers.Summary) {
	rows := [][]string{
		{"Examined", strconv.Itoa(summary.Examined)},
		{"Added", strconv.Itoa(summary.Added)},
		{"Available via release date", strconv.Itoa(summary.ViaReleaseDate)},
		{"Available via providers", strconv.Itoa(summary.ViaProviders)},
		{"Skipped (no dates)", strconv.Itoa(summary.Skipped)},
		{"Failed", strconv.Itoa(summary.Failed)},
		{"Still tracking", strconv.Itoa(summary.StillTracking)},
	}
	fmt.Fprintf(w, "%s summary\n", summary.Kind)
	fmt.Fprintln(w, renderTable([]string{"Metric", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}
