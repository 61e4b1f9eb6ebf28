package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Stats are derived counters, recomputed on every save
type Stats struct {
	TotalTracked     int `json:"total_tracked"`
	Resolved         int `json:"resolved"`
	StillTracking    int `json:"still_tracking"`
	ProviderDetected int `json:"provider_detected"`
}

// Document is the persisted layout of the tracking file
type Document struct {
	Movies            map[int64]*models.TitleRecord `json:"movies"`
	LastUpdate        *time.Time                    `json:"last_update,omitempty"`
	LastProviderCheck *time.Time                    `json:"last_provider_check,omitempty"`
	Stats             Stats                         `json:"stats"`
}

// Store holds every tracked title keyed by catalog id. It is single-writer:
// callers serialize runs with Lock.
type Store struct {
	fs     afero.Fs
	path   string
	doc    Document
	logger *logrus.Logger
}

// NewStore creates a new store backed by path on fs. Call Load before use.
func NewStore(fs afero.Fs, path string, logger *logrus.Logger) *Store {
	return &Store{
		fs:     fs,
		path:   path,
		doc:    Document{Movies: make(map[int64]*models.TitleRecord)},
		logger: logger,
	}
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// Load reads the tracking file. A missing file yields an empty store.
func (s *Store) Load() error {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.doc = Document{Movies: make(map[int64]*models.TitleRecord)}
		s.logger.WithField("path", s.path).Info("No tracking file yet, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read tracking file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse tracking file %s: %w", s.path, err)
	}
	if doc.Movies == nil {
		doc.Movies = make(map[int64]*models.TitleRecord)
	}
	for id, record := range doc.Movies {
		if record == nil {
			delete(doc.Movies, id)
			continue
		}
		record.ExternalID = id
		if dropped := record.DropInvalidDates(); dropped > 0 {
			s.logger.WithFields(logrus.Fields{
				"tmdb_id": id,
				"title":   record.Title,
				"dropped": dropped,
			}).Warn("Dropped malformed dates from tracking file")
		}
	}
	s.doc = doc

	s.logger.WithFields(logrus.Fields{
		"path":   s.path,
		"movies": len(doc.Movies),
	}).Debug("Loaded tracking file")
	return nil
}

// Save recomputes stats, stamps last_update and atomically replaces the file.
// On failure the previous file is left untouched.
func (s *Store) Save(now time.Time) error {
	stamp := now.UTC().Truncate(time.Second)
	s.doc.LastUpdate = &stamp
	s.doc.Stats = s.computeStats()

	data, err := s.encode()
	if err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(s.fs, s.path, data); err != nil {
		return fmt.Errorf("save tracking file: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"path":     s.path,
		"tracked":  s.doc.Stats.TotalTracked,
		"resolved": s.doc.Stats.Resolved,
	}).Debug("Saved tracking file")
	return nil
}

func (s *Store) encode() ([]byte, error) {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tracking file: %w", err)
	}
	return append(data, '\n'), nil
}

// MarkProviderCheck stamps the store-level provider check time
func (s *Store) MarkProviderCheck(now time.Time) {
	stamp := now.UTC().Truncate(time.Second)
	s.doc.LastProviderCheck = &stamp
}

// LastUpdate returns the time of the last save, if any
func (s *Store) LastUpdate() *time.Time {
	return s.doc.LastUpdate
}

// LastProviderCheck returns the time of the last provider sweep, if any
func (s *Store) LastProviderCheck() *time.Time {
	return s.doc.LastProviderCheck
}

// Get returns the record for id
func (s *Store) Get(id int64) (*models.TitleRecord, bool) {
	record, ok := s.doc.Movies[id]
	return record, ok
}

// Has reports whether id is tracked
func (s *Store) Has(id int64) bool {
	_, ok := s.doc.Movies[id]
	return ok
}

// Put inserts or replaces a record under its external id
func (s *Store) Put(record *models.TitleRecord) {
	s.doc.Movies[record.ExternalID] = record
}

// Len returns the number of tracked titles
func (s *Store) Len() int {
	return len(s.doc.Movies)
}

// Records returns all records ordered by id
func (s *Store) Records() []*models.TitleRecord {
	records := make([]*models.TitleRecord, 0, len(s.doc.Movies))
	for _, record := range s.doc.Movies {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ExternalID < records[j].ExternalID })
	return records
}

// Tracking returns the records still awaiting digital availability
func (s *Store) Tracking() []*models.TitleRecord {
	var records []*models.TitleRecord
	for _, record := range s.Records() {
		if !record.IsResolved() {
			records = append(records, record)
		}
	}
	return records
}

// Stats returns freshly computed counters
func (s *Store) Stats() Stats {
	return s.computeStats()
}

func (s *Store) computeStats() Stats {
	stats := Stats{TotalTracked: len(s.doc.Movies)}
	for _, record := range s.doc.Movies {
		if record.IsResolved() {
			stats.Resolved++
		} else {
			stats.StillTracking++
		}
		if record.DetectedVia == models.ProvenanceProviders {
			stats.ProviderDetected++
		}
	}
	return stats
}
