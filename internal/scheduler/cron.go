package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/releasewall/internal/controllers"
	"github.com/amaumene/releasewall/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// runRetention is how long run history is kept
const runRetention = 90 * 24 * time.Hour

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	tracker  *controllers.TrackerController
	wall     *controllers.WallController
	runs     *models.Database
	logger   *logrus.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	inFlight sync.WaitGroup
}

// NewScheduler creates a new scheduler running the daily job on spec
func NewScheduler(spec string, tracker *controllers.TrackerController, wall *controllers.WallController, runs *models.Database, logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		spec:    spec,
		tracker: tracker,
		wall:    wall,
		runs:    runs,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.WithField("schedule", s.spec).Info("Starting scheduler")

	// Daily: update tracking, then regenerate the site
	if _, err := s.cron.AddFunc(s.spec, s.RunDaily); err != nil {
		return fmt.Errorf("failed to add daily job: %w", err)
	}

	// Weekly: prune old run history
	if _, err := s.cron.AddFunc("@weekly", s.pruneRuns); err != nil {
		return fmt.Errorf("failed to add prune job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")
	return nil
}

// Stop stops the scheduler, cancelling a running job and waiting for it
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.inFlight.Wait()
}

// RunDaily executes the daily update followed by site regeneration
func (s *Scheduler) RunDaily() {
	s.inFlight.Add(1)
	defer s.inFlight.Done()

	s.logger.Info("Running scheduled daily update")
	summary, err := s.tracker.DailyUpdate(s.ctx)
	if err != nil {
		s.logger.WithError(err).Error("Daily update failed")
		if summary == nil {
			return
		}
	}

	result, err := s.wall.PublishTracked(s.ctx, 0)
	if err != nil {
		s.logger.WithError(err).Error("Site regeneration failed")
		return
	}
	s.logger.WithField("rendered", result.Rendered).Info("Scheduled daily job completed")
}

func (s *Scheduler) pruneRuns() {
	if s.runs == nil {
		return
	}
	removed, err := s.runs.PruneRuns(time.Now().Add(-runRetention))
	if err != nil {
		s.logger.WithError(err).Error("Failed to prune run history")
		return
	}
	if removed > 0 {
		s.logger.WithField("removed", removed).Info("Pruned run history")
	}
}
