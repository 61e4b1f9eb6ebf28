package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/amaumene/releasewall/internal/classifier"
	"github.com/amaumene/releasewall/internal/config"
	"github.com/amaumene/releasewall/internal/metrics"
	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/providers"
	"github.com/amaumene/releasewall/internal/release"
	"github.com/amaumene/releasewall/internal/services/omdb"
	"github.com/amaumene/releasewall/internal/services/tmdb"
	"github.com/amaumene/releasewall/internal/tracking"
	"github.com/amaumene/releasewall/internal/utils"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoMatch is returned when a title search finds nothing
	ErrNoMatch = errors.New("no matching title found")
	// ErrNotTracked is returned when an operation targets an unknown id
	ErrNotTracked = errors.New("title is not tracked")
)

// Bootstrap popularity sweep bounds
const (
	popularityLookbackDays = 365
	popularityMaxPages     = 10
)

// Catalog is the subset of the catalog API the workflows use
type Catalog interface {
	Discover(ctx context.Context, filters tmdb.DiscoverFilters, page int) (*tmdb.PagedMovies, error)
	ReleaseDates(ctx context.Context, id int64) (*tmdb.ReleaseDatesResponse, error)
	WatchProviders(ctx context.Context, id int64) (*tmdb.WatchProvidersResponse, error)
	Details(ctx context.Context, id int64) (*tmdb.Details, error)
	Search(ctx context.Context, query string, year int) ([]tmdb.Movie, error)
}

// Summary counts what a batch run did
type Summary struct {
	Kind           models.RunKind
	StartedAt      time.Time
	Examined       int
	Added          int
	Resolved       int
	ViaReleaseDate int
	ViaProviders   int
	Failed         int
	Skipped        int
	StillTracking  int
}

func (s *Summary) count(outcome tracking.Outcome) {
	if outcome.Added {
		s.Added++
	}
	if !outcome.Resolved {
		return
	}
	s.Resolved++
	switch outcome.Via {
	case models.ProvenanceReleaseDate:
		s.ViaReleaseDate++
	case models.ProvenanceProviders:
		s.ViaProviders++
	}
}

// TrackerController runs the tracking workflows against the store
type TrackerController struct {
	cfg        *config.Config
	store      *tracking.Store
	runs       *models.Database
	catalog    Catalog
	ratings    classifier.ReviewLookup
	resolver   *release.Resolver
	reconciler *providers.Reconciler
	metrics    *metrics.Metrics
	logger     *logrus.Logger
	now        func() time.Time
}

// NewTrackerController creates a new tracker controller. ratings, runs and
// m may be nil.
func NewTrackerController(cfg *config.Config, store *tracking.Store, runs *models.Database, catalog Catalog, ratings classifier.ReviewLookup, m *metrics.Metrics, logger *logrus.Logger) *TrackerController {
	return &TrackerController{
		cfg:        cfg,
		store:      store,
		runs:       runs,
		catalog:    catalog,
		ratings:    ratings,
		resolver:   release.NewResolver(catalog, logger),
		reconciler: providers.NewReconciler(catalog, cfg.Region, logger),
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Bootstrap scans the last days with three discovery sweeps and adds every
// title that has at least one release date
func (c *TrackerController) Bootstrap(ctx context.Context, days int) (*Summary, error) {
	return c.execute(ctx, models.RunBootstrap, func(ctx context.Context, summary *Summary) error {
		today := models.Today(c.now())
		window := models.LastDays(today, days)
		popularFrom := today.AddDays(-popularityLookbackDays)

		c.logger.WithField("days", days).Info("Starting comprehensive bootstrap")

		sweeps := []struct {
			name     string
			filters  tmdb.DiscoverFilters
			maxPages int
		}{
			{"primary releases", tmdb.DiscoverFilters{SortBy: "primary_release_date.desc", PrimaryFrom: &window.Start, PrimaryTo: &window.End}, c.cfg.DiscoverMaxPages},
			{"all releases", tmdb.DiscoverFilters{SortBy: "release_date.desc", ReleaseFrom: &window.Start, ReleaseTo: &window.End}, c.cfg.DiscoverMaxPages},
			{"popular recent", tmdb.DiscoverFilters{SortBy: "popularity.desc", PrimaryFrom: &popularFrom}, popularityMaxPages},
		}

		var found []tmdb.Movie
		for _, sweep := range sweeps {
			sweep.filters.Region = c.cfg.Region
			movies, err := discoverAll(ctx, c.catalog, sweep.filters, sweep.maxPages, c.cfg.DiscoverDelay, c.logger)
			if err != nil {
				c.logger.WithError(err).WithField("sweep", sweep.name).Error("Discovery sweep failed")
				continue
			}
			c.logger.WithFields(logrus.Fields{"sweep": sweep.name, "count": len(movies)}).Info("Discovery sweep complete")
			found = append(found, movies...)
		}

		c.addDiscovered(ctx, dedupeByID(found), summary)
		return nil
	})
}

// DailyUpdate adds the week's releases, then re-checks providers and release
// dates of tracking titles. The store is saved once at the end.
func (c *TrackerController) DailyUpdate(ctx context.Context) (*Summary, error) {
	return c.execute(ctx, models.RunDaily, func(ctx context.Context, summary *Summary) error {
		c.logger.Info("Running daily update")

		// Titles added by this run were just fetched; only re-check older ones
		pending := c.store.Tracking()
		if err := c.addNewReleases(ctx, c.cfg.DailyDays, summary); err != nil {
			c.logger.WithError(err).Error("Failed to add new releases")
		}
		c.checkProviders(ctx, pending, summary)
		c.checkReleaseDates(ctx, pending, summary)
		return nil
	})
}

// CheckProviders re-checks providers of tracking titles only
func (c *TrackerController) CheckProviders(ctx context.Context) (*Summary, error) {
	return c.execute(ctx, models.RunCheckProviders, func(ctx context.Context, summary *Summary) error {
		c.checkProviders(ctx, c.store.Tracking(), summary)
		return nil
	})
}

// AddByTitle searches the catalog and tracks the best match. It returns the
// record and whether it was newly added.
func (c *TrackerController) AddByTitle(ctx context.Context, title string, year int) (*models.TitleRecord, bool, error) {
	var (
		record *models.TitleRecord
		added  bool
	)
	_, err := c.execute(ctx, models.RunManualAdd, func(ctx context.Context, summary *Summary) error {
		results, err := c.catalog.Search(ctx, title, year)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		match, ok := bestMatch(results, title, year)
		if !ok {
			return fmt.Errorf("%w: %q", ErrNoMatch, title)
		}
		summary.Examined++

		if existing, ok := c.store.Get(match.ID); ok {
			c.logger.WithFields(logrus.Fields{"tmdb_id": match.ID, "title": existing.Title}).Info("Title already tracked")
			record = existing
			return nil
		}

		fresh, err := c.fetch(ctx, match, release.Options{})
		if err != nil {
			summary.Failed++
			return err
		}
		outcome := c.store.Merge(fresh, models.Today(c.now()))
		summary.count(outcome)

		record, _ = c.store.Get(match.ID)
		record.ManuallyAdded = true
		added = true

		c.logger.WithFields(logrus.Fields{
			"tmdb_id":   match.ID,
			"title":     record.Title,
			"status":    record.Availability,
			"providers": record.ProviderCount,
		}).Info("Added title manually")
		return nil
	})
	return record, added, err
}

// Refresh re-fetches one tracked title regardless of its status
func (c *TrackerController) Refresh(ctx context.Context, id int64) (*models.TitleRecord, tracking.Outcome, error) {
	var (
		record  *models.TitleRecord
		outcome tracking.Outcome
	)
	_, err := c.execute(ctx, models.RunRefresh, func(ctx context.Context, summary *Summary) error {
		existing, ok := c.store.Get(id)
		if !ok {
			return fmt.Errorf("%w: %d", ErrNotTracked, id)
		}
		summary.Examined++

		movie := tmdb.Movie{ID: id, Title: existing.Title}
		details, err := c.catalog.Details(ctx, id)
		if err != nil {
			c.logger.WithError(err).WithField("tmdb_id", id).Warn("Failed to refresh details")
		} else {
			movie = movieFromDetails(details)
		}

		fresh, err := c.fetch(ctx, movie, release.Options{})
		if err != nil {
			summary.Failed++
			return err
		}
		if details != nil {
			fresh.IMDBID = details.IMDBID
		}

		outcome, _ = c.store.Refresh(fresh, models.Today(c.now()))
		summary.count(outcome)
		record = existing
		return nil
	})
	return record, outcome, err
}

// MarkAvailable resolves a title by operator decision
func (c *TrackerController) MarkAvailable(ctx context.Context, id int64) error {
	_, err := c.execute(ctx, models.RunRefresh, func(ctx context.Context, summary *Summary) error {
		if !c.store.ForceResolve(id, models.Today(c.now())) {
			return fmt.Errorf("%w: %d", ErrNotTracked, id)
		}
		summary.Examined++
		summary.Resolved++
		return nil
	})
	return err
}

// addNewReleases discovers the last days of releases and adds unseen titles
func (c *TrackerController) addNewReleases(ctx context.Context, days int, summary *Summary) error {
	today := models.Today(c.now())
	window := models.LastDays(today, days)

	c.logger.WithField("days", days).Info("Adding new releases")

	var found []tmdb.Movie
	var errs []error
	for _, filters := range []tmdb.DiscoverFilters{
		{SortBy: "popularity.desc", Region: c.cfg.Region, PrimaryFrom: &window.Start, PrimaryTo: &window.End},
		{SortBy: "popularity.desc", Region: c.cfg.Region, ReleaseFrom: &window.Start, ReleaseTo: &window.End},
	} {
		movies, err := discoverAll(ctx, c.catalog, filters, c.cfg.DailyMaxPages, c.cfg.DiscoverDelay, c.logger)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		found = append(found, movies...)
	}

	c.addDiscovered(ctx, dedupeByID(found), summary)
	return errors.Join(errs...)
}

// addDiscovered resolves and merges every discovered title not yet tracked.
// Titles without any release date are skipped; lookup failures are counted
// and retried on the next run.
func (c *TrackerController) addDiscovered(ctx context.Context, movies []tmdb.Movie, summary *Summary) {
	today := models.Today(c.now())

	for i, movie := range movies {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && i%25 == 0 {
			c.logger.WithFields(logrus.Fields{"processed": i, "total": len(movies)}).Info("Processing discovered titles")
		}
		if c.store.Has(movie.ID) {
			continue
		}
		summary.Examined++

		fresh, err := c.fetch(ctx, movie, release.Options{})
		if err != nil {
			summary.Failed++
			c.logger.WithError(err).WithFields(logrus.Fields{
				"tmdb_id": movie.ID,
				"title":   movie.DisplayTitle(),
			}).Warn("Failed to process title, will retry next run")
			continue
		}
		if fresh.Release.Timeline.EarliestReleaseDate == nil {
			summary.Skipped++
			continue
		}

		outcome := c.store.Merge(fresh, today)
		summary.count(outcome)
		c.logger.WithFields(logrus.Fields{
			"tmdb_id":  movie.ID,
			"title":    fresh.Title,
			"resolved": outcome.Resolved,
		}).Debug("Added title")
	}
}

// checkProviders re-checks providers of the given tracking titles
func (c *TrackerController) checkProviders(ctx context.Context, titles []*models.TitleRecord, summary *Summary) {
	if len(titles) == 0 {
		c.logger.Info("No titles currently tracking")
		return
	}
	c.logger.WithField("count", len(titles)).Info("Checking providers for tracking titles")

	today := models.Today(c.now())
	for _, record := range titles {
		if ctx.Err() != nil {
			return
		}
		summary.Examined++

		availability, err := c.reconciler.Lookup(ctx, record.ExternalID)
		if err != nil {
			summary.Failed++
			c.logger.WithError(err).WithFields(logrus.Fields{
				"tmdb_id": record.ExternalID,
				"title":   record.Title,
			}).Warn("Provider check failed")
			continue
		}

		outcome := c.store.Merge(tracking.Fresh{ID: record.ExternalID, Providers: availability}, today)
		summary.count(outcome)
		if outcome.Resolved {
			c.logger.WithFields(logrus.Fields{
				"title":     record.Title,
				"providers": record.ProviderCount,
			}).Info("Title became available via providers")
		}
	}
	c.store.MarkProviderCheck(c.now())
}

// checkReleaseDates re-resolves release dates of the given titles that are
// still tracking
func (c *TrackerController) checkReleaseDates(ctx context.Context, titles []*models.TitleRecord, summary *Summary) {
	today := models.Today(c.now())
	for _, record := range titles {
		if ctx.Err() != nil {
			return
		}
		if record.IsResolved() {
			continue
		}

		result, err := c.resolver.Lookup(ctx, record.ExternalID, release.Options{})
		if err != nil {
			summary.Failed++
			c.logger.WithError(err).WithField("tmdb_id", record.ExternalID).Warn("Release date check failed")
			continue
		}

		outcome := c.store.Merge(tracking.Fresh{ID: record.ExternalID, Release: result}, today)
		summary.count(outcome)
		if outcome.Resolved {
			c.logger.WithFields(logrus.Fields{
				"title":        record.Title,
				"digital_date": record.DigitalDate,
			}).Info("Title received a digital release date")
		}
	}
}

// fetch gathers release dates, providers and ratings for one title. Only a
// release-date failure is fatal; provider and rating failures leave those
// parts empty for the next run.
func (c *TrackerController) fetch(ctx context.Context, movie tmdb.Movie, opts release.Options) (tracking.Fresh, error) {
	fresh := tracking.Fresh{
		ID:               movie.ID,
		Title:            movie.DisplayTitle(),
		OriginalLanguage: movie.OriginalLanguage,
		PosterPath:       movie.PosterPath,
		GenreIDs:         movie.GenreIDs,
		VoteCount:        movie.VoteCount,
		VoteAverage:      movie.VoteAverage,
		Popularity:       movie.Popularity,
	}

	result, err := c.resolver.Lookup(ctx, movie.ID, opts)
	if err != nil {
		return fresh, err
	}
	fresh.Release = result

	availability, err := c.reconciler.Lookup(ctx, movie.ID)
	if err != nil {
		c.logger.WithError(err).WithField("tmdb_id", movie.ID).Warn("Provider lookup failed")
	} else {
		fresh.Providers = availability
	}

	if c.ratings != nil && fresh.Title != "" {
		year := 0
		if result.Timeline.EarliestReleaseDate != nil {
			year = result.Timeline.EarliestReleaseDate.Year()
		}
		ratings, err := c.ratings.Lookup(ctx, fresh.Title, year, "")
		if err != nil {
			c.logger.WithError(err).WithField("tmdb_id", movie.ID).Debug("Ratings lookup failed")
		} else if ratings.HasSignal() {
			fresh.Ratings = &ratings
		}
	}
	return fresh, nil
}

// discoverAll pages through a discovery query. A failure on the first page
// is returned; later failures end the sweep with what was collected.
func discoverAll(ctx context.Context, catalog Catalog, filters tmdb.DiscoverFilters, maxPages int, delay time.Duration, logger *logrus.Logger) ([]tmdb.Movie, error) {
	var movies []tmdb.Movie
	for page := 1; page <= maxPages; page++ {
		result, err := catalog.Discover(ctx, filters, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			logger.WithError(err).WithField("page", page).Warn("Discovery stopped early")
			break
		}
		if len(result.Results) == 0 {
			break
		}
		movies = append(movies, result.Results...)
		if page >= result.TotalPages {
			break
		}
		if err := sleepContext(ctx, delay); err != nil {
			return movies, err
		}
	}
	return movies, nil
}

// execute serializes a run on the store lock, loads the store, runs fn,
// saves once and records the run summary
func (c *TrackerController) execute(ctx context.Context, kind models.RunKind, fn func(context.Context, *Summary) error) (*Summary, error) {
	unlock, err := tracking.Lock(c.store.Path())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(); err != nil {
			c.logger.WithError(err).Warn("Failed to release tracking lock")
		}
	}()

	if err := c.store.Load(); err != nil {
		return nil, err
	}

	summary := &Summary{Kind: kind, StartedAt: c.now()}
	runErr := fn(ctx, summary)

	if err := c.store.Save(c.now()); err != nil {
		runErr = errors.Join(runErr, err)
	}
	stats := c.store.Stats()
	summary.StillTracking = stats.StillTracking

	c.finish(summary, stats, runErr)
	return summary, runErr
}

func (c *TrackerController) finish(summary *Summary, stats tracking.Stats, runErr error) {
	finished := c.now()
	fields := logrus.Fields{
		"kind":             summary.Kind,
		"examined":         summary.Examined,
		"added":            summary.Added,
		"via_release_date": summary.ViaReleaseDate,
		"via_providers":    summary.ViaProviders,
		"failed":           summary.Failed,
		"still_tracking":   summary.StillTracking,
		"duration":         finished.Sub(summary.StartedAt).Round(time.Millisecond),
	}
	if runErr != nil {
		c.logger.WithError(runErr).WithFields(fields).Error("Run finished with errors")
	} else {
		c.logger.WithFields(fields).Info("Run complete")
	}

	if c.metrics != nil {
		kind := string(summary.Kind)
		c.metrics.AddTitles(kind, "added", summary.Added)
		c.metrics.AddTitles(kind, "via_release_date", summary.ViaReleaseDate)
		c.metrics.AddTitles(kind, "via_providers", summary.ViaProviders)
		c.metrics.AddTitles(kind, "failed", summary.Failed)
		c.metrics.ObserveRun(kind, finished.Sub(summary.StartedAt))
		c.metrics.SetTracked(stats.Resolved, stats.StillTracking)
	}

	if c.runs == nil {
		return
	}
	run := &models.RunRecord{
		Kind:           summary.Kind,
		StartedAt:      summary.StartedAt,
		FinishedAt:     finished,
		Examined:       summary.Examined,
		Added:          summary.Added,
		Resolved:       summary.Resolved,
		ViaReleaseDate: summary.ViaReleaseDate,
		ViaProviders:   summary.ViaProviders,
		Failed:         summary.Failed,
		StillTracking:  summary.StillTracking,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := c.runs.CreateRun(run); err != nil {
		c.logger.WithError(err).Warn("Failed to record run")
	}
}

// bestMatch prefers results released in year, then the smallest edit
// distance between folded titles. Ties keep catalog order.
func bestMatch(results []tmdb.Movie, query string, year int) (tmdb.Movie, bool) {
	if len(results) == 0 {
		return tmdb.Movie{}, false
	}

	folded := utils.FoldTitle(query)
	best, bestScore := -1, 0
	for i, movie := range results {
		score := levenshtein.ComputeDistance(folded, utils.FoldTitle(movie.DisplayTitle()))
		if year > 0 && !strings.HasPrefix(movie.ReleaseDate, fmt.Sprint(year)) {
			score += 1000
		}
		if best < 0 || score < bestScore {
			best, bestScore = i, score
		}
	}
	return results[best], true
}

func movieFromDetails(d *tmdb.Details) tmdb.Movie {
	genres := make([]int, 0, len(d.Genres))
	for _, g := range d.Genres {
		genres = append(genres, g.ID)
	}
	return tmdb.Movie{
		ID:               d.ID,
		Title:            d.Title,
		OriginalLanguage: d.OriginalLanguage,
		ReleaseDate:      d.ReleaseDate,
		PosterPath:       d.PosterPath,
		GenreIDs:         genres,
		Popularity:       d.Popularity,
		VoteAverage:      d.VoteAverage,
		VoteCount:        d.VoteCount,
	}
}

func dedupeByID(movies []tmdb.Movie) []tmdb.Movie {
	seen := make(map[int64]bool, len(movies))
	unique := make([]tmdb.Movie, 0, len(movies))
	for _, movie := range movies {
		if seen[movie.ID] {
			continue
		}
		seen[movie.ID] = true
		unique = append(unique, movie)
	}
	return unique
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ classifier.ReviewLookup = (*omdb.Client)(nil)
