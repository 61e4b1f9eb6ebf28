package controllers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/amaumene/releasewall/internal/adapter"
	"github.com/amaumene/releasewall/internal/classifier"
	"github.com/amaumene/releasewall/internal/config"
	"github.com/amaumene/releasewall/internal/metrics"
	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/providers"
	"github.com/amaumene/releasewall/internal/release"
	"github.com/amaumene/releasewall/internal/services/tmdb"
	"github.com/amaumene/releasewall/internal/site"
	"github.com/amaumene/releasewall/internal/tracking"
	"github.com/amaumene/releasewall/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Display limits for wall cards
const (
	wallDirectors = 2
	wallCast      = 3
)

// WallCatalog adds the display lookups the wall needs on top of Catalog
type WallCatalog interface {
	Catalog
	Credits(ctx context.Context, id int64) (*tmdb.Credits, error)
	ExternalIDs(ctx context.Context, id int64) (*tmdb.ExternalIDs, error)
	Videos(ctx context.Context, id int64) (*tmdb.VideoList, error)
}

// ErrInvalidWindow is returned when an explicit window ends before it starts
var ErrInvalidWindow = errors.New("window end is before its start")

// WallOptions overrides the configured wall window for one run. Start and
// End, when set, replace the rolling Days window; a missing End means today.
type WallOptions struct {
	Days        int
	Start       *models.Date
	End         *models.Date
	Region      string
	MaxPages    int
	Stores      string // storefront label shown in the page header
	DigitalOnly bool   // keep only titles with a digital or TV date in the window
}

// window resolves the discovery window relative to today
func (o WallOptions) window(today models.Date) (models.DateWindow, error) {
	if o.Start == nil && o.End == nil {
		return models.LastDays(today, o.Days), nil
	}
	window := models.DateWindow{End: today}
	if o.End != nil {
		window.End = *o.End
	}
	if o.Start != nil {
		window.Start = *o.Start
	} else {
		window.Start = window.End.AddDays(-o.Days)
	}
	if window.End.Before(window.Start) {
		return window, fmt.Errorf("%w: %s to %s", ErrInvalidWindow, window.Start, window.End)
	}
	return window, nil
}

// label is the page header text for the window
func (o WallOptions) label(window models.DateWindow) string {
	label := fmt.Sprintf("Last %d days", o.Days)
	if o.Start != nil || o.End != nil {
		label = fmt.Sprintf("%s to %s", window.Start, window.End)
	}
	if o.Stores != "" {
		label += " on " + o.Stores
	}
	return label
}

// WallResult counts what a wall build did
type WallResult struct {
	Discovered int
	Blocked    int
	Duplicates int
	Excluded   int
	Included   int
	Failed     int
	Rendered   int
	Tiers      map[string]int
}

// WallController builds the new-release wall and publishes the site
type WallController struct {
	cfg        *config.Config
	fs         afero.Fs
	catalog    WallCatalog
	classifier *classifier.Classifier
	blocklist  *utils.Blocklist
	selections *tracking.Selections
	generator  *site.Generator
	store      *tracking.Store
	runs       *models.Database
	metrics    *metrics.Metrics
	logger     *logrus.Logger
	now        func() time.Time
}

// NewWallController creates a new wall controller. ratings, runs and m may be
// nil.
func NewWallController(cfg *config.Config, fs afero.Fs, catalog WallCatalog, ratings classifier.ReviewLookup, blocklist *utils.Blocklist, selections *tracking.Selections, generator *site.Generator, store *tracking.Store, runs *models.Database, m *metrics.Metrics, logger *logrus.Logger) *WallController {
	return &WallController{
		cfg:        cfg,
		fs:         fs,
		catalog:    catalog,
		classifier: classifier.NewClassifier(classifier.ThresholdsFromConfig(cfg), ratings, logger),
		blocklist:  blocklist,
		selections: selections,
		generator:  generator,
		store:      store,
		runs:       runs,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

type wallEntry struct {
	title      adapter.Title
	popularity float64
}

// Build discovers digital and TV releases of the window, keeps the ones the
// classifier includes, writes data.json and renders the site
func (c *WallController) Build(ctx context.Context, opts WallOptions) (*WallResult, error) {
	opts = c.withDefaults(opts)
	started := c.now()
	today := models.Today(started)
	window, err := opts.window(today)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"days":      opts.Days,
		"region":    opts.Region,
		"max_pages": opts.MaxPages,
		"from":      window.Start.String(),
		"to":        window.End.String(),
	}).Info("Building new release wall")

	result := &WallResult{Tiers: make(map[string]int)}
	runErr := c.build(ctx, opts, window, result)

	c.record(models.RunWall, started, result, runErr)
	return result, runErr
}

func (c *WallController) build(ctx context.Context, opts WallOptions, window models.DateWindow, result *WallResult) error {
	filters := tmdb.DiscoverFilters{
		SortBy:       "release_date.desc",
		Region:       opts.Region,
		WatchRegion:  opts.Region,
		ReleaseFrom:  &window.Start,
		ReleaseTo:    &window.End,
		ReleaseTypes: []models.ReleaseType{models.ReleaseDigital, models.ReleaseTV},
	}
	movies, err := discoverAll(ctx, c.catalog, filters, opts.MaxPages, c.cfg.DiscoverDelay, c.logger)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	result.Discovered = len(movies)

	resolver := release.NewResolver(c.catalog, c.logger)
	reconciler := providers.NewReconciler(c.catalog, opts.Region, c.logger)
	today := models.Today(c.now())

	seen := make(map[string]bool)
	var entries []wallEntry
	for _, movie := range movies {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		title := movie.DisplayTitle()

		if blocked, term := c.blocklist.Match(title); blocked {
			result.Blocked++
			c.logger.WithFields(logrus.Fields{"title": title, "term": term}).Debug("Title blocklisted")
			continue
		}

		candidate := classifier.Candidate{
			ID:               movie.ID,
			Title:            title,
			ReleaseDate:      movie.ReleaseDate,
			OriginalLanguage: movie.OriginalLanguage,
			VoteCount:        movie.VoteCount,
			Popularity:       movie.Popularity,
		}
		key := fmt.Sprintf("%s|%d", utils.FoldTitle(title), candidate.Year())
		if seen[key] {
			result.Duplicates++
			continue
		}
		seen[key] = true

		decision := c.classifier.Classify(ctx, candidate)
		if !decision.Include {
			result.Excluded++
			c.logger.WithFields(logrus.Fields{"title": title, "detail": decision.Detail}).Debug("Title excluded")
			continue
		}

		releases, err := resolver.Lookup(ctx, movie.ID, release.Options{Region: opts.Region, Window: &window})
		if err != nil {
			result.Failed++
			c.logger.WithError(err).WithField("tmdb_id", movie.ID).Warn("Release lookup failed, skipping title")
			continue
		}
		if opts.DigitalOnly && !releases.HasDigital {
			result.Excluded++
			continue
		}

		fresh := tracking.Fresh{
			ID:               movie.ID,
			Title:            title,
			OriginalLanguage: movie.OriginalLanguage,
			PosterPath:       movie.PosterPath,
			GenreIDs:         movie.GenreIDs,
			VoteCount:        movie.VoteCount,
			VoteAverage:      movie.VoteAverage,
			Popularity:       movie.Popularity,
			Release:          releases,
			Ratings:          decision.Reviews,
		}
		if availability, err := reconciler.Lookup(ctx, movie.ID); err != nil {
			c.logger.WithError(err).WithField("tmdb_id", movie.ID).Warn("Provider lookup failed")
		} else {
			fresh.Providers = availability
		}

		extras := c.extras(ctx, movie, &fresh)
		extras.Reason = decision.Detail
		extras.AvailabilityDate = releases.HomeDate
		if extras.AvailabilityDate == nil {
			extras.AvailabilityDate = models.ParseDatePtr(movie.ReleaseDate)
		}

		normalized, err := adapter.Normalize(adapter.TrackedTitle{
			Record: tracking.NewRecord(fresh, today),
			Extras: extras,
		})
		if err != nil {
			result.Failed++
			c.logger.WithError(err).WithField("tmdb_id", movie.ID).Warn("Failed to normalize title")
			continue
		}

		result.Included++
		result.Tiers[decision.Reason]++
		entries = append(entries, wallEntry{title: normalized, popularity: movie.Popularity})
	}

	rendered, err := c.publish(sortedTitles(entries), opts.label(window))
	result.Rendered = rendered
	return err
}

// extras fetches display-only details. Each lookup is optional.
func (c *WallController) extras(ctx context.Context, movie tmdb.Movie, fresh *tracking.Fresh) *adapter.Extras {
	extras := &adapter.Extras{Overview: movie.Overview}
	logger := c.logger.WithField("tmdb_id", movie.ID)

	if ids, err := c.catalog.ExternalIDs(ctx, movie.ID); err != nil {
		logger.WithError(err).Debug("External ids lookup failed")
	} else {
		fresh.IMDBID = ids.IMDBID
	}
	if videos, err := c.catalog.Videos(ctx, movie.ID); err != nil {
		logger.WithError(err).Debug("Videos lookup failed")
	} else {
		extras.TrailerURL = videos.TrailerURL()
	}
	if details, err := c.catalog.Details(ctx, movie.ID); err != nil {
		logger.WithError(err).Debug("Details lookup failed")
	} else {
		extras.Runtime = details.Runtime
		extras.Studio = details.Studio()
		if extras.Overview == "" {
			extras.Overview = details.Overview
		}
		if fresh.IMDBID == "" {
			fresh.IMDBID = details.IMDBID
		}
	}
	if credits, err := c.catalog.Credits(ctx, movie.ID); err != nil {
		logger.WithError(err).Debug("Credits lookup failed")
	} else {
		extras.Directors = credits.Directors(wallDirectors)
		extras.Cast = credits.TopCast(wallCast)
	}
	return extras
}

// PublishTracked builds data.json from resolved tracking titles that became
// available within the last days and renders the site
func (c *WallController) PublishTracked(ctx context.Context, days int) (*WallResult, error) {
	if days <= 0 {
		days = c.cfg.WallDays
	}
	started := c.now()
	result := &WallResult{Tiers: make(map[string]int)}

	if err := c.store.Load(); err != nil {
		c.record(models.RunSite, started, result, err)
		return result, err
	}

	window := models.LastDays(models.Today(started), days)
	var entries []wallEntry
	for _, record := range c.store.Records() {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Discovered++
		date := record.AvailabilityDate()
		if !record.IsResolved() || date == nil || !window.Contains(*date) {
			result.Excluded++
			continue
		}
		if blocked, _ := c.blocklist.Match(record.Title); blocked {
			result.Blocked++
			continue
		}
		normalized, err := adapter.Normalize(adapter.TrackedTitle{Record: record})
		if err != nil {
			result.Failed++
			continue
		}
		result.Included++
		entries = append(entries, wallEntry{title: normalized, popularity: record.Popularity})
	}

	rendered, err := c.publish(sortedTitles(entries), fmt.Sprintf("Last %d days", days))
	result.Rendered = rendered
	c.record(models.RunSite, started, result, err)
	return result, err
}

// publish writes data.json and renders the pages with curated selections
func (c *WallController) publish(titles []adapter.Title, windowLabel string) (int, error) {
	if err := site.WriteData(c.fs, c.cfg.DataFile, titles); err != nil {
		return 0, err
	}
	if c.selections != nil {
		if err := c.selections.Load(); err != nil {
			c.logger.WithError(err).Warn("Failed to load curated selections, rendering all titles")
		}
	}
	return c.generator.Render(titles, c.selections, windowLabel, c.now())
}

// sortedTitles orders entries newest availability first, then by popularity
func sortedTitles(entries []wallEntry) []adapter.Title {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.title.AvailabilityDate != b.title.AvailabilityDate {
			return a.title.AvailabilityDate > b.title.AvailabilityDate
		}
		return a.popularity > b.popularity
	})
	titles := make([]adapter.Title, 0, len(entries))
	for _, entry := range entries {
		titles = append(titles, entry.title)
	}
	return titles
}

func (c *WallController) withDefaults(opts WallOptions) WallOptions {
	if opts.Days <= 0 {
		opts.Days = c.cfg.WallDays
	}
	if opts.Region == "" {
		opts.Region = c.cfg.Region
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = c.cfg.WallMaxPages
	}
	return opts
}

func (c *WallController) record(kind models.RunKind, started time.Time, result *WallResult, runErr error) {
	finished := c.now()
	fields := logrus.Fields{
		"kind":       kind,
		"discovered": result.Discovered,
		"blocked":    result.Blocked,
		"duplicates": result.Duplicates,
		"excluded":   result.Excluded,
		"included":   result.Included,
		"rendered":   result.Rendered,
		"duration":   finished.Sub(started).Round(time.Millisecond),
	}
	for reason, n := range result.Tiers {
		fields["tier "+reason] = n
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		c.logger.WithError(runErr).WithFields(fields).Error("Wall build failed")
	} else {
		c.logger.WithFields(fields).Info("Wall build complete")
	}

	if c.metrics != nil {
		c.metrics.AddTitles(string(kind), "included", result.Included)
		c.metrics.AddTitles(string(kind), "excluded", result.Excluded)
		c.metrics.AddTitles(string(kind), "blocked", result.Blocked)
		c.metrics.AddTitles(string(kind), "failed", result.Failed)
		c.metrics.ObserveRun(string(kind), finished.Sub(started))
	}

	if c.runs == nil {
		return
	}
	run := &models.RunRecord{
		Kind:       kind,
		StartedAt:  started,
		FinishedAt: finished,
		Examined:   result.Discovered,
		Added:      result.Included,
		Failed:     result.Failed,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := c.runs.CreateRun(run); err != nil {
		c.logger.WithError(err).Warn("Failed to record run")
	}
}
