package main

import (
	"sync"

	"github.com/amaumene/releasewall/internal/classifier"
	"github.com/amaumene/releasewall/internal/config"
	"github.com/amaumene/releasewall/internal/controllers"
	"github.com/amaumene/releasewall/internal/metrics"
	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/services/omdb"
	"github.com/amaumene/releasewall/internal/services/tmdb"
	"github.com/amaumene/releasewall/internal/site"
	"github.com/amaumene/releasewall/internal/tracking"
	"github.com/amaumene/releasewall/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// commandContext lazily builds the shared dependencies of every command
type commandContext struct {
	fs      afero.Fs
	metrics *metrics.Metrics

	once   sync.Once
	cfg    *config.Config
	logger *logrus.Logger
	err    error

	runs    *models.Database
	reviews classifier.ReviewLookup
	rated   bool
}

func newCommandContext() *commandContext {
	return &commandContext{fs: afero.NewOsFs(), metrics: metrics.New()}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.err = err
			return
		}
		c.cfg = cfg
		c.logger = utils.NewLogger(cfg.LogLevel, cfg.LogFile)
	})
	return c.cfg, c.err
}

// runsDB opens the run history. Failure is not fatal: a running server
// holds the database lock, and the command then runs without history.
func (c *commandContext) runsDB() *models.Database {
	if c.runs != nil {
		return c.runs
	}
	runs, err := models.NewDatabase(c.cfg.RunsDatabase)
	if err != nil {
		c.logger.WithError(err).Warn("Run history unavailable, continuing without it")
		return nil
	}
	c.runs = runs
	return runs
}

func (c *commandContext) close() {
	if c.runs != nil {
		if err := c.runs.Close(); err != nil {
			c.logger.WithError(err).Warn("Failed to close run history")
		}
		c.runs = nil
	}
}

func (c *commandContext) catalog() (*tmdb.Client, error) {
	return tmdb.NewClient(c.cfg, c.metrics.ObserveAPI, c.logger)
}

// ratings returns nil when no ratings key is configured
func (c *commandContext) ratings() classifier.ReviewLookup {
	if c.rated {
		return c.reviews
	}
	c.rated = true
	if !c.cfg.HasRatings() {
		c.logger.Debug("OMDB_API_KEY not set, review signal disabled")
		return nil
	}
	client, err := omdb.NewClient(c.cfg, c.metrics.ObserveAPI, c.logger)
	if err != nil {
		c.logger.WithError(err).Warn("Ratings client unavailable")
		return nil
	}
	c.reviews = client
	return c.reviews
}

func (c *commandContext) store() *tracking.Store {
	return tracking.NewStore(c.fs, c.cfg.TrackingFile, c.logger)
}

// tracker builds a tracker controller. Without a catalog only offline
// operations work.
func (c *commandContext) tracker(catalog controllers.Catalog) *controllers.TrackerController {
	return controllers.NewTrackerController(c.cfg, c.store(), c.runsDB(), catalog, c.ratings(), c.metrics, c.logger)
}

func (c *commandContext) wall(catalog controllers.WallCatalog, selections *tracking.Selections) (*controllers.WallController, error) {
	blocklist, err := utils.LoadBlocklist(c.fs, c.cfg.BlocklistFile)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to load blocklist, continuing without it")
		blocklist = &utils.Blocklist{}
	}
	generator, err := site.NewGenerator(c.fs, c.cfg.SiteDir, c.cfg.SiteTitle, c.cfg.Region, c.logger)
	if err != nil {
		return nil, err
	}
	return controllers.NewWallController(c.cfg, c.fs, catalog, c.ratings(), blocklist, selections, generator, c.store(), c.runsDB(), c.metrics, c.logger), nil
}

func (c *commandContext) selections() *tracking.Selections {
	selections := tracking.NewSelections(c.fs, c.cfg.CuratedFile)
	if err := selections.Load(); err != nil {
		c.logger.WithError(err).Warn("Failed to load curated selections")
	}
	return selections
}
