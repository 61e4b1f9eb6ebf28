package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// Database wraps the bolthold store holding run history
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// CreateRun stores a finished run, assigning an ID when missing
func (db *Database) CreateRun(run *RunRecord) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	return db.store.Insert(run.ID, run)
}

// GetRun retrieves a run by ID
func (db *Database) GetRun(id string) (*RunRecord, error) {
	var run RunRecord
	if err := db.store.Get(id, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// RecentRuns returns up to limit runs, newest first
func (db *Database) RecentRuns(limit int) ([]*RunRecord, error) {
	var runs []*RunRecord
	if err := db.store.Find(&runs, nil); err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// RunsByKind returns every run of the given kind
func (db *Database) RunsByKind(kind RunKind) ([]*RunRecord, error) {
	var runs []*RunRecord
	err := db.store.Find(&runs, bolthold.Where("Kind").Eq(kind).Index("Kind"))
	return runs, err
}

// PruneRuns deletes runs that started before cutoff
func (db *Database) PruneRuns(cutoff time.Time) (int, error) {
	var runs []*RunRecord
	if err := db.store.Find(&runs, bolthold.Where("StartedAt").Lt(cutoff)); err != nil {
		return 0, err
	}
	for _, run := range runs {
		if err := db.store.Delete(run.ID, &RunRecord{}); err != nil {
			return 0, err
		}
	}
	return len(runs), nil
}
