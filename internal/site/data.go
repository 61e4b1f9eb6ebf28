package site

import (
	"encoding/json"
	"fmt"

	"github.com/amaumene/releasewall/internal/adapter"
	"github.com/amaumene/releasewall/internal/utils"
	"github.com/spf13/afero"
)

// WriteData stores normalized titles as the data.json feed
func WriteData(fs afero.Fs, path string, titles []adapter.Title) error {
	if titles == nil {
		titles = []adapter.Title{}
	}
	data, err := json.MarshalIndent(titles, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal data feed: %w", err)
	}
	if err := utils.WriteFileAtomic(fs, path, append(data, '\n')); err != nil {
		return fmt.Errorf("write data feed: %w", err)
	}
	return nil
}

// LoadData reads the data.json feed
func LoadData(fs afero.Fs, path string) ([]adapter.Title, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read data feed: %w", err)
	}
	var titles []adapter.Title
	if err := json.Unmarshal(data, &titles); err != nil {
		return nil, fmt.Errorf("parse data feed %s: %w", path, err)
	}
	return titles, nil
}
