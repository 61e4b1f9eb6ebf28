package tracking

import (
	"sort"

	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/providers"
	"github.com/amaumene/releasewall/internal/release"
	"github.com/amaumene/releasewall/internal/services/omdb"
)

// Fresh is everything fetched for one title during a run. Release and
// Providers are nil when their lookup failed.
type Fresh struct {
	ID               int64
	Title            string
	OriginalLanguage string
	PosterPath       string
	GenreIDs         []int
	VoteCount        int
	VoteAverage      float64
	Popularity       float64
	IMDBID           string

	Release   *release.Result
	Providers *providers.Availability
	Ratings   *omdb.Ratings
}

// Outcome reports what a merge did to the store
type Outcome struct {
	Added    bool
	Resolved bool
	Via      models.Provenance
	Skipped  bool // already resolved, nothing fetched was applied
}

// Merge applies fresh data to the store:
//   - unknown id: a record is created with its initial availability
//   - tracking: release dates and providers are re-applied and the title
//     resolves once either shows digital availability
//   - resolved: no-op
func (s *Store) Merge(fresh Fresh, today models.Date) Outcome {
	record, ok := s.Get(fresh.ID)
	if !ok {
		record = NewRecord(fresh, today)
		s.Put(record)
		return Outcome{Added: true, Resolved: record.IsResolved(), Via: record.DetectedVia}
	}

	if record.IsResolved() {
		return Outcome{Skipped: true}
	}
	return recheck(record, fresh, today)
}

// Refresh re-applies fresh data to an existing record regardless of its
// status. A resolved record stays resolved.
func (s *Store) Refresh(fresh Fresh, today models.Date) (Outcome, bool) {
	record, ok := s.Get(fresh.ID)
	if !ok {
		return Outcome{}, false
	}
	return recheck(record, fresh, today), true
}

// ForceResolve marks a title available by operator decision
func (s *Store) ForceResolve(id int64, today models.Date) bool {
	record, ok := s.Get(id)
	if !ok {
		return false
	}
	if !record.IsResolved() {
		record.Availability = models.AvailabilityResolved
		record.DetectedVia = models.ProvenanceManual
		detected := today
		record.DigitalDetectedDate = &detected
	}
	record.LastCheckedDate = today
	return true
}

// NewRecord builds the initial record for a title seen for the first time.
// When both a digital date and providers are present the release date wins
// as provenance.
func NewRecord(fresh Fresh, today models.Date) *models.TitleRecord {
	record := &models.TitleRecord{
		ExternalID:      fresh.ID,
		Availability:    models.AvailabilityTracking,
		AddedDate:       today,
		LastCheckedDate: today,
	}
	applyMetadata(record, fresh)

	if fresh.Release != nil {
		record.Timeline = fresh.Release.Timeline
		record.ReleaseTypesFound = fresh.Release.TypeInts()
		if fresh.Release.HasDigital {
			record.Availability = models.AvailabilityResolved
			record.DetectedVia = models.ProvenanceReleaseDate
		}
	}
	if fresh.Providers != nil {
		providers.Apply(record, *fresh.Providers, today)
	}
	return record
}

func recheck(record *models.TitleRecord, fresh Fresh, today models.Date) Outcome {
	wasResolved := record.IsResolved()
	record.LastCheckedDate = today
	applyMetadata(record, fresh)

	if fresh.Release != nil {
		record.Overlay(fresh.Release.Timeline)
		record.ReleaseTypesFound = mergeTypes(record.ReleaseTypesFound, fresh.Release.TypeInts())
		if !record.IsResolved() && record.DigitalDate != nil {
			record.Availability = models.AvailabilityResolved
			record.DetectedVia = models.ProvenanceReleaseDate
		}
	}
	if fresh.Providers != nil {
		providers.Apply(record, *fresh.Providers, today)
	}

	if !wasResolved && record.IsResolved() {
		return Outcome{Resolved: true, Via: record.DetectedVia}
	}
	return Outcome{}
}

// applyMetadata copies catalog and ratings fields that are present
func applyMetadata(record *models.TitleRecord, fresh Fresh) {
	if fresh.Title != "" {
		record.Title = fresh.Title
	}
	if fresh.OriginalLanguage != "" {
		record.OriginalLanguage = fresh.OriginalLanguage
	}
	if fresh.PosterPath != "" {
		record.PosterPath = fresh.PosterPath
	}
	if len(fresh.GenreIDs) > 0 {
		record.GenreIDs = fresh.GenreIDs
	}
	if fresh.IMDBID != "" {
		record.IMDBID = fresh.IMDBID
	}
	if fresh.VoteCount > 0 {
		record.VoteCount = fresh.VoteCount
		record.VoteAverage = fresh.VoteAverage
	}
	if fresh.Popularity > 0 {
		record.Popularity = fresh.Popularity
	}
	if fresh.Ratings != nil {
		if fresh.Ratings.CriticScore != nil {
			record.ReviewScore = fresh.Ratings.CriticScore
		}
		if fresh.Ratings.Metascore != nil {
			record.Metascore = fresh.Ratings.Metascore
		}
		if fresh.Ratings.AudienceVotes != nil {
			record.AudienceVotes = fresh.Ratings.AudienceVotes
		}
		if fresh.Ratings.AudienceRating != nil {
			record.AudienceRating = fresh.Ratings.AudienceRating
		}
	}
}

func mergeTypes(existing, found []int) []int {
	seen := make(map[int]bool, len(existing))
	for _, t := range existing {
		seen[t] = true
	}
	for _, t := range found {
		if !seen[t] {
			seen[t] = true
			existing = append(existing, t)
		}
	}
	sort.Ints(existing)
	return existing
}
