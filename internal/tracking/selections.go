package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/utils"
	"github.com/spf13/afero"
)

// Selections persists moderation decisions keyed by catalog id. Absent ids
// are pending. The dashboard writes concurrently with reads, hence the mutex.
type Selections struct {
	fs   afero.Fs
	path string

	mu      sync.RWMutex
	choices map[int64]models.Selection
}

// NewSelections creates a new selections store backed by path on fs
func NewSelections(fs afero.Fs, path string) *Selections {
	return &Selections{fs: fs, path: path, choices: make(map[int64]models.Selection)}
}

// Load reads the selections file; a missing file means everything is pending.
// Unknown values are ignored.
func (s *Selections) Load() error {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read selections: %w", err)
	}

	var raw map[int64]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse selections %s: %w", s.path, err)
	}

	choices := make(map[int64]models.Selection, len(raw))
	for id, value := range raw {
		if selection, ok := models.ParseSelection(value); ok {
			choices[id] = selection
		}
	}

	s.mu.Lock()
	s.choices = choices
	s.mu.Unlock()
	return nil
}

// Get returns the decision for id, defaulting to pending
func (s *Selections) Get(id int64) models.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if selection, ok := s.choices[id]; ok {
		return selection
	}
	return models.SelectionPending
}

// Set records decisions for ids and persists the whole map
func (s *Selections) Set(selection models.Selection, ids ...int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		s.choices[id] = selection
	}

	data, err := json.MarshalIndent(s.choices, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal selections: %w", err)
	}
	if err := utils.WriteFileAtomic(s.fs, s.path, append(data, '\n')); err != nil {
		return fmt.Errorf("save selections: %w", err)
	}
	return nil
}

// Counts tallies decisions over ids, counting absent ones as pending
func (s *Selections) Counts(ids []int64) map[models.Selection]int {
	counts := map[models.Selection]int{
		models.SelectionPending:  0,
		models.SelectionApproved: 0,
		models.SelectionRejected: 0,
	}
	for _, id := range ids {
		counts[s.Get(id)]++
	}
	return counts
}
