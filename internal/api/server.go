package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amaumene/releasewall/internal/api/handlers"
	"github.com/amaumene/releasewall/internal/api/middleware"
	"github.com/amaumene/releasewall/internal/config"
	"github.com/amaumene/releasewall/internal/metrics"
	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/tracking"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// NewServer creates a new HTTP server with the dashboard, status and metrics
// routes
func NewServer(cfg *config.Config, fs afero.Fs, selections *tracking.Selections, runs *models.Database, m *metrics.Metrics, logger *logrus.Logger) (*Server, error) {
	router, err := NewRouter(cfg, fs, selections, runs, m, logger)
	if err != nil {
		return nil, err
	}

	return &Server{
		server: &http.Server{
			Addr:         ":" + cfg.ServerPort,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}, nil
}

// NewRouter configures all HTTP routes. m may be nil, which disables /metrics.
func NewRouter(cfg *config.Config, fs afero.Fs, selections *tracking.Selections, runs *models.Database, m *metrics.Metrics, logger *logrus.Logger) (*mux.Router, error) {
	dashboard, err := handlers.NewDashboardHandler(fs, cfg.DataFile, selections, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard: %w", err)
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging(logger))

	router.Handle("/health", handlers.NewHealthHandler(logger)).Methods(http.MethodGet)
	router.Handle("/status", handlers.NewStatusHandler(fs, cfg.TrackingFile, runs, logger)).Methods(http.MethodGet)
	if m != nil {
		router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	// Moderation dashboard
	router.HandleFunc("/", dashboard.Index).Methods(http.MethodGet)
	router.HandleFunc("/curate/{id:[0-9]+}/{action}", dashboard.Curate).Methods(http.MethodPost)
	router.HandleFunc("/bulk", dashboard.Bulk).Methods(http.MethodPost)

	return router, nil
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
