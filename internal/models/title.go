package models

import "sort"

// Timeline holds the earliest known date per release category
type Timeline struct {
	PremiereDate   *Date `json:"premiere_date,omitempty"`
	LimitedDate    *Date `json:"limited_date,omitempty"`
	TheatricalDate *Date `json:"theatrical_date,omitempty"`
	DigitalDate    *Date `json:"digital_date,omitempty"`
	PhysicalDate   *Date `json:"physical_date,omitempty"`
	TVDate         *Date `json:"tv_date,omitempty"`

	// EarliestReleaseDate is the watermark: min over every date above
	EarliestReleaseDate *Date `json:"earliest_release,omitempty"`
}

// DateFor returns the date recorded for a release category
func (t *Timeline) DateFor(rt ReleaseType) *Date {
	switch rt {
	case ReleasePremiere:
		return t.PremiereDate
	case ReleaseLimited:
		return t.LimitedDate
	case ReleaseTheatrical:
		return t.TheatricalDate
	case ReleaseDigital:
		return t.DigitalDate
	case ReleasePhysical:
		return t.PhysicalDate
	case ReleaseTV:
		return t.TVDate
	}
	return nil
}

// SetDate stores d for a release category
func (t *Timeline) SetDate(rt ReleaseType, d *Date) {
	switch rt {
	case ReleasePremiere:
		t.PremiereDate = d
	case ReleaseLimited:
		t.LimitedDate = d
	case ReleaseTheatrical:
		t.TheatricalDate = d
	case ReleaseDigital:
		t.DigitalDate = d
	case ReleasePhysical:
		t.PhysicalDate = d
	case ReleaseTV:
		t.TVDate = d
	}
}

// Recompute refreshes the watermark from the per-category dates
func (t *Timeline) Recompute() {
	t.EarliestReleaseDate = MinDate(t.PremiereDate, t.LimitedDate, t.TheatricalDate, t.DigitalDate, t.PhysicalDate, t.TVDate)
}

// Overlay copies every non-nil date from fresh into t and recomputes the
// watermark. Dates already known are never cleared.
func (t *Timeline) Overlay(fresh Timeline) {
	for rt := ReleasePremiere; rt <= ReleaseTV; rt++ {
		if d := fresh.DateFor(rt); d != nil {
			t.SetDate(rt, d)
		}
	}
	t.Recompute()
}

// ProviderSnapshot is the canonical set of provider display names per category
type ProviderSnapshot struct {
	Rent   []string `json:"rent"`
	Buy    []string `json:"buy"`
	Stream []string `json:"stream"`
}

// Count returns the number of names across all categories
func (p ProviderSnapshot) Count() int {
	return len(p.Rent) + len(p.Buy) + len(p.Stream)
}

// Empty reports whether no category has a provider
func (p ProviderSnapshot) Empty() bool {
	return p.Count() == 0
}

// Names returns the distinct provider names across categories, sorted
func (p ProviderSnapshot) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, group := range [][]string{p.Stream, p.Rent, p.Buy} {
		for _, name := range group {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// Ratings holds optional critic/audience metadata
type Ratings struct {
	ReviewScore    *int     `json:"rt_score,omitempty"` // critic score 0-100
	Metascore      *int     `json:"metascore,omitempty"`
	AudienceVotes  *int     `json:"imdb_votes,omitempty"`
	AudienceRating *float64 `json:"imdb_rating,omitempty"`
}

// TitleRecord is one tracked movie
type TitleRecord struct {
	ExternalID       int64  `json:"tmdb_id"`
	Title            string `json:"title"`
	OriginalLanguage string `json:"original_language,omitempty"`
	IMDBID           string `json:"imdb_id,omitempty"`
	PosterPath       string `json:"poster_path,omitempty"`
	GenreIDs         []int  `json:"genre_ids,omitempty"`

	Timeline
	ReleaseTypesFound []int `json:"release_types_found"`

	Providers     ProviderSnapshot `json:"providers"`
	ProviderCount int              `json:"provider_count"`
	WatchLink     string           `json:"watch_link,omitempty"`

	Availability Availability `json:"status"`
	DetectedVia  Provenance   `json:"detected_via,omitempty"`

	Ratings
	VoteCount   int     `json:"vote_count,omitempty"`
	VoteAverage float64 `json:"vote_average,omitempty"`
	Popularity  float64 `json:"popularity,omitempty"`

	AddedDate           Date  `json:"added_to_db"`
	LastCheckedDate     Date  `json:"last_checked"`
	LastProviderCheck   *Date `json:"last_provider_check,omitempty"`
	DigitalDetectedDate *Date `json:"digital_detected_date,omitempty"`

	ManuallyAdded bool `json:"manually_added,omitempty"`
}

// IsResolved reports whether the title reached its terminal state
func (r *TitleRecord) IsResolved() bool {
	return r.Availability == AvailabilityResolved
}

// SetProviders replaces the whole snapshot and refreshes the cached count
func (r *TitleRecord) SetProviders(snapshot ProviderSnapshot) {
	r.Providers = snapshot
	r.ProviderCount = snapshot.Count()
}

// AvailabilityDate is the day the title became watchable at home: the digital
// release date when known, otherwise the day providers were first detected.
func (r *TitleRecord) AvailabilityDate() *Date {
	if r.DigitalDate != nil {
		return r.DigitalDate
	}
	if r.DigitalDetectedDate != nil {
		return r.DigitalDetectedDate
	}
	return nil
}

// DropInvalidDates clears optional dates that failed to parse and refreshes
// the watermark. It returns how many fields were cleared.
func (r *TitleRecord) DropInvalidDates() int {
	dropped := 0
	for rt := ReleasePremiere; rt <= ReleaseTV; rt++ {
		if d := r.DateFor(rt); d != nil && d.IsZero() {
			r.SetDate(rt, nil)
			dropped++
		}
	}
	for _, field := range []**Date{&r.LastProviderCheck, &r.DigitalDetectedDate} {
		if *field != nil && (*field).IsZero() {
			*field = nil
			dropped++
		}
	}
	if dropped > 0 || (r.EarliestReleaseDate != nil && r.EarliestReleaseDate.IsZero()) {
		r.Recompute()
	}
	return dropped
}

// Year returns the year of the earliest release, or 0
func (r *TitleRecord) Year() int {
	if r.EarliestReleaseDate == nil {
		return 0
	}
	return r.EarliestReleaseDate.Year()
}
