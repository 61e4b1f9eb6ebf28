package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/tracking"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// recentRunLimit caps the runs listed by the status endpoint
const recentRunLimit = 10

// StatusHandler handles status requests
type StatusHandler struct {
	fs           afero.Fs
	trackingFile string
	runs         *models.Database
	logger       *logrus.Logger
}

// NewStatusHandler creates a new status handler reading the tracking file on
// every request
func NewStatusHandler(fs afero.Fs, trackingFile string, runs *models.Database, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		fs:           fs,
		trackingFile: trackingFile,
		runs:         runs,
		logger:       logger,
	}
}

// RunSummary is one run in the status response
type RunSummary struct {
	ID             string         `json:"id"`
	Kind           models.RunKind `json:"kind"`
	StartedAt      time.Time      `json:"started_at"`
	DurationMS     int64          `json:"duration_ms"`
	Examined       int            `json:"examined"`
	Added          int            `json:"added"`
	ViaReleaseDate int            `json:"via_release_date"`
	ViaProviders   int            `json:"via_providers"`
	Failed         int            `json:"failed"`
	Error          string         `json:"error,omitempty"`
}

// StatusResponse represents the status response
type StatusResponse struct {
	Stats             tracking.Stats `json:"stats"`
	LastUpdate        *time.Time     `json:"last_update,omitempty"`
	LastProviderCheck *time.Time     `json:"last_provider_check,omitempty"`
	RecentRuns        []RunSummary   `json:"recent_runs"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	store := tracking.NewStore(h.fs, h.trackingFile, h.logger)
	if err := store.Load(); err != nil {
		h.logger.WithError(err).Error("Failed to load tracking store")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := StatusResponse{
		Stats:             store.Stats(),
		LastUpdate:        store.LastUpdate(),
		LastProviderCheck: store.LastProviderCheck(),
		RecentRuns:        []RunSummary{},
	}

	if h.runs != nil {
		runs, err := h.runs.RecentRuns(recentRunLimit)
		if err != nil {
			h.logger.WithError(err).Error("Failed to get recent runs")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		for _, run := range runs {
			response.RecentRuns = append(response.RecentRuns, RunSummary{
				ID:             run.ID,
				Kind:           run.Kind,
				StartedAt:      run.StartedAt,
				DurationMS:     run.Duration().Milliseconds(),
				Examined:       run.Examined,
				Added:          run.Added,
				ViaReleaseDate: run.ViaReleaseDate,
				ViaProviders:   run.ViaProviders,
				Failed:         run.Failed,
				Error:          run.Error,
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.WithError(err).Debug("Failed to write status response")
	}
}
