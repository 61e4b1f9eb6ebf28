package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/tracking"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

const (
	statusSampleSize = 10
	statusRunLimit   = 5
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tracking statistics and recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var runKind models.RunKind
			if kind != "" {
				parsed, ok := models.ParseRunKind(kind)
				if !ok {
					return fmt.Errorf("unknown run kind %q", kind)
				}
				runKind = parsed
			}
			defer ctx.close()

			store := ctx.store()
			if err := store.Load(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printStats(out, store, models.Today(time.Now()))

			var runs []*models.RunRecord
			if db := ctx.runsDB(); db != nil {
				recent, err := loadRuns(db, runKind, statusRunLimit)
				if err != nil {
					ctx.logger.WithError(err).Warn("Failed to read run history")
				}
				runs = recent
			}
			if len(runs) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Recent runs")
				fmt.Fprintln(out, renderRuns(runs))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only show runs of this kind (daily, wall, site, ...)")
	return cmd
}

// loadRuns returns the newest runs, optionally restricted to one kind
func loadRuns(db *models.Database, kind models.RunKind, limit int) ([]*models.RunRecord, error) {
	if kind == "" {
		return db.RecentRuns(limit)
	}
	runs, err := db.RunsByKind(kind)
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs[:min(len(runs), limit)], nil
}

func printStats(w io.Writer, store *tracking.Store, today models.Date) {
	stats := store.Stats()
	rows := [][]string{
		{"Total tracked", strconv.Itoa(stats.TotalTracked)},
		{"Resolved", colorize(w, strconv.Itoa(stats.Resolved), text.Colors{text.FgGreen})},
		{"Still tracking", colorize(w, strconv.Itoa(stats.StillTracking), text.Colors{text.FgYellow})},
		{"Detected via providers", strconv.Itoa(stats.ProviderDetected)},
		{"Last update", formatTime(store.LastUpdate())},
		{"Last provider check", formatTime(store.LastProviderCheck())},
	}
	fmt.Fprintln(w, renderTable([]string{"Tracking", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))

	var pending, detected, manual []*models.TitleRecord
	for _, record := range store.Records() {
		switch {
		case !record.IsResolved():
			pending = append(pending, record)
		case record.DetectedVia == models.ProvenanceProviders:
			detected = append(detected, record)
		case record.DetectedVia == models.ProvenanceManual:
			manual = append(manual, record)
		}
	}

	printSample(w, "Still tracking", pending, func(r *models.TitleRecord) string {
		return fmt.Sprintf("%s, tracked %dd", formatDate(r.EarliestReleaseDate), r.AddedDate.DaysSince(today))
	})
	printSample(w, "Detected via providers", detected, func(r *models.TitleRecord) string {
		return strings.Join(r.Providers.Names(), ", ")
	})
	printSample(w, "Marked by hand", manual, func(r *models.TitleRecord) string {
		return formatDate(r.DigitalDetectedDate)
	})
}

// printSample shows the most recently added titles of a group
func printSample(w io.Writer, heading string, records []*models.TitleRecord, detail func(*models.TitleRecord) string) {
	if len(records) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].AddedDate.After(records[j].AddedDate)
	})

	rows := make([][]string, 0, statusSampleSize)
	for _, record := range records[:min(len(records), statusSampleSize)] {
		rows = append(rows, []string{
			strconv.FormatInt(record.ExternalID, 10),
			record.Title,
			detail(record),
		})
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s (%d)\n", heading, len(records))
	fmt.Fprintln(w, renderTable([]string{"ID", "Title", "Detail"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft}))
}

func renderRuns(runs []*models.RunRecord) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		result := "ok"
		if run.Error != "" {
			result = run.Error
		}
		rows = append(rows, []string{
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			string(run.Kind),
			run.Duration().Round(time.Second).String(),
			strconv.Itoa(run.Added),
			strconv.Itoa(run.Resolved),
			strconv.Itoa(run.Failed),
			result,
		})
	}
	return renderTable(
		[]string{"Started", "Kind", "Took", "Added", "Resolved", "Failed", "Result"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatDate(d *models.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
