package release

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/services/tmdb"
	"github.com/sirupsen/logrus"
)

// Options controls how a release-date payload is resolved
type Options struct {
	// Region restricts resolution to one country code. Empty pools all countries.
	Region string
	// Window switches hasDigital to the windowed rule: the earliest digital or
	// TV date must fall inside it.
	Window *models.DateWindow
}

// Result is the normalized release timeline of one title
type Result struct {
	Timeline   models.Timeline
	TypesFound []models.ReleaseType
	HasDigital bool
	// HomeDate is the earliest digital or TV date, used by the windowed rule
	HomeDate *models.Date
	// Dropped counts entries whose date could not be parsed
	Dropped int
}

// Resolve turns raw per-country release entries into a timeline. In region
// mode a missing country yields an empty result; entries from other
// countries are never consulted.
func Resolve(countries []tmdb.ReleaseCountry, opts Options) Result {
	var result Result
	found := make(map[models.ReleaseType]bool)

	for _, country := range countries {
		if opts.Region != "" && !strings.EqualFold(country.ISO31661, opts.Region) {
			continue
		}
		for _, entry := range country.ReleaseDates {
			rt := models.ReleaseType(entry.Type)
			if !rt.Valid() {
				continue
			}
			date := models.ParseDatePtr(entry.ReleaseDate)
			if date == nil {
				result.Dropped++
				continue
			}
			found[rt] = true
			if current := result.Timeline.DateFor(rt); current == nil || date.Before(*current) {
				result.Timeline.SetDate(rt, date)
			}
		}
	}

	result.Timeline.Recompute()
	for rt := range found {
		result.TypesFound = append(result.TypesFound, rt)
	}
	sort.Slice(result.TypesFound, func(i, j int) bool { return result.TypesFound[i] < result.TypesFound[j] })

	result.HomeDate = models.MinDate(result.Timeline.DigitalDate, result.Timeline.TVDate)
	if opts.Window != nil {
		result.HasDigital = result.HomeDate != nil && opts.Window.Contains(*result.HomeDate)
	} else {
		result.HasDigital = result.Timeline.DigitalDate != nil
	}
	return result
}

// TypeInts returns the found categories as plain integers for persistence
func (r Result) TypeInts() []int {
	out := make([]int, len(r.TypesFound))
	for i, rt := range r.TypesFound {
		out[i] = int(rt)
	}
	return out
}

// Source fetches raw release-date payloads
type Source interface {
	ReleaseDates(ctx context.Context, id int64) (*tmdb.ReleaseDatesResponse, error)
}

// Resolver fetches and resolves release dates title by title
type Resolver struct {
	source Source
	logger *logrus.Logger
}

// NewResolver creates a new release resolver
func NewResolver(source Source, logger *logrus.Logger) *Resolver {
	return &Resolver{source: source, logger: logger}
}

// Lookup fetches and resolves one title. On a fetch failure it returns a nil
// result and the error so the caller can skip the title and retry it later.
func (r *Resolver) Lookup(ctx context.Context, id int64, opts Options) (*Result, error) {
	payload, err := r.source.ReleaseDates(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve release dates for %d: %w", id, err)
	}

	result := Resolve(payload.Results, opts)
	if result.Dropped > 0 {
		r.logger.WithFields(logrus.Fields{
			"tmdb_id": id,
			"dropped": result.Dropped,
		}).Debug("Dropped malformed release dates")
	}
	return &result, nil
}
