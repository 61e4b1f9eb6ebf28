package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/amaumene/releasewall/internal/controllers"
	"github.com/amaumene/releasewall/internal/models"
	"github.com/spf13/cobra"
)

func newWallCommand(ctx *commandContext) *cobra.Command {
	var (
		opts       controllers.WallOptions
		start, end string
	)

	cmd := &cobra.Command{
		Use:   "wall",
		Short: "Discover recent digital releases, classify them and render the site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Days < 0 || opts.MaxPages < 0 {
				return fmt.Errorf("--days and --max-pages must not be negative")
			}
			var err error
			if opts.Start, err = parseDateFlag("start", start); err != nil {
				return err
			}
			if opts.End, err = parseDateFlag("end", end); err != nil {
				return err
			}
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			defer ctx.close()

			wall, err := ctx.wall(catalog, ctx.selections())
			if err != nil {
				return err
			}
			result, err := wall.Build(cmd.Context(), opts)
			if result != nil {
				printWallResult(cmd.OutOrStdout(), result)
			}
			return err
		},
	}

	cmd.Flags().IntVar(&opts.Days, "days", 0, "Window in days (defaults to WALL_DAYS)")
	cmd.Flags().StringVar(&start, "start", "", "Window start date YYYY-MM-DD (overrides --days)")
	cmd.Flags().StringVar(&end, "end", "", "Window end date YYYY-MM-DD (defaults to today)")
	cmd.Flags().StringVar(&opts.Stores, "stores", "", "Storefront label shown in the page header")
	cmd.Flags().StringVar(&opts.Region, "region", "", "Release region (defaults to REGION)")
	cmd.Flags().IntVar(&opts.MaxPages, "max-pages", 0, "Discover pages to scan (defaults to MAX_PAGES)")
	cmd.Flags().BoolVar(&opts.DigitalOnly, "digital", false, "Keep only titles whose digital date falls inside the window")
	return cmd
}

func newSiteCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "site",
		Short: "Render the site from tracked titles without calling any API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()

			wall, err := ctx.wall(nil, ctx.selections())
			if err != nil {
				return err
			}
			result, err := wall.PublishTracked(cmd.Context(), days)
			if result != nil {
				printWallResult(cmd.OutOrStdout(), result)
			}
			return err
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Window in days (defaults to WALL_DAYS)")
	return cmd
}

// parseDateFlag returns nil for an empty value
func parseDateFlag(name, value string) (*models.Date, error) {
	if value == "" {
		return nil, nil
	}
	d, err := models.ParseDate(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &d, nil
}

func printWallResult(w io.Writer, result *controllers.WallResult) {
	rows := [][]string{
		{"Discovered", strconv.Itoa(result.Discovered)},
		{"Blocked", strconv.Itoa(result.Blocked)},
		{"Duplicates", strconv.Itoa(result.Duplicates)},
		{"Excluded", strconv.Itoa(result.Excluded)},
		{"Failed", strconv.Itoa(result.Failed)},
		{"Included", strconv.Itoa(result.Included)},
		{"Rendered", strconv.Itoa(result.Rendered)},
	}

	tiers := make([]string, 0, len(result.Tiers))
	for tier := range result.Tiers {
		tiers = append(tiers, tier)
	}
	sort.Strings(tiers)
	for _, tier := range tiers {
		rows = append(rows, []string{"  via " + tier, strconv.Itoa(result.Tiers[tier])})
	}

	fmt.Fprintln(w, renderTable([]string{"Wall", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}
