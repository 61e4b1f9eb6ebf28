package tracking

import (
	"encoding/json"
	"testing"

	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/providers"
	"github.com/amaumene/releasewall/internal/release"
	"github.com/amaumene/releasewall/internal/services/omdb"
	"github.com/amaumene/releasewall/internal/services/tmdb"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func releaseResult(entries ...tmdb.ReleaseEntry) *release.Result {
	result := release.Resolve([]tmdb.ReleaseCountry{{ISO31661: "US", ReleaseDates: entries}}, release.Options{})
	return &result
}

func streaming(names ...string) *providers.Availability {
	return &providers.Availability{Snapshot: models.ProviderSnapshot{Stream: names}}
}

func emptyStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(afero.NewMemMapFs(), "/state/tracking.json", quietLogger())
	require.NoError(t, store.Load())
	return store
}

func TestMergeNewTitleInitialState(t *testing.T) {
	tests := []struct {
		name      string
		fresh     Fresh
		wantState models.Availability
		wantVia   models.Provenance
	}{
		{
			name:      "theatrical only",
			fresh:     Fresh{ID: 1, Title: "A", Release: releaseResult(tmdb.ReleaseEntry{Type: 3, ReleaseDate: "2024-01-05"}), Providers: &providers.Availability{}},
			wantState: models.AvailabilityTracking,
		},
		{
			name:      "digital date",
			fresh:     Fresh{ID: 2, Title: "B", Release: releaseResult(tmdb.ReleaseEntry{Type: 4, ReleaseDate: "2024-02-10"}), Providers: &providers.Availability{}},
			wantState: models.AvailabilityResolved,
			wantVia:   models.ProvenanceReleaseDate,
		},
		{
			name:      "providers only",
			fresh:     Fresh{ID: 3, Title: "C", Release: releaseResult(), Providers: streaming("ServiceX")},
			wantState: models.AvailabilityResolved,
			wantVia:   models.ProvenanceProviders,
		},
		{
			name:      "both signals prefer release date",
			fresh:     Fresh{ID: 4, Title: "D", Release: releaseResult(tmdb.ReleaseEntry{Type: 4, ReleaseDate: "2024-02-10"}), Providers: streaming("ServiceX")},
			wantState: models.AvailabilityResolved,
			wantVia:   models.ProvenanceReleaseDate,
		},
		{
			name:      "lookups failed",
			fresh:     Fresh{ID: 5, Title: "E"},
			wantState: models.AvailabilityTracking,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := emptyStore(t)
			outcome := store.Merge(tt.fresh, day("2024-03-01"))

			assert.True(t, outcome.Added)
			record, ok := store.Get(tt.fresh.ID)
			require.True(t, ok)
			assert.Equal(t, tt.wantState, record.Availability)
			assert.Equal(t, tt.wantVia, record.DetectedVia)
			assert.Equal(t, "2024-03-01", record.AddedDate.String())
		})
	}
}

func TestMergeProviderTransitionScenario(t *testing.T) {
	store := emptyStore(t)

	store.Merge(Fresh{ID: 7, Title: "Quiet Hours", Release: releaseResult(), Providers: &providers.Availability{}}, day("2024-03-01"))
	record, _ := store.Get(7)
	require.Equal(t, models.AvailabilityTracking, record.Availability)

	outcome := store.Merge(Fresh{ID: 7, Release: releaseResult(), Providers: streaming("ServiceX")}, day("2024-03-02"))

	assert.True(t, outcome.Resolved)
	assert.Equal(t, models.ProvenanceProviders, outcome.Via)
	assert.Equal(t, models.AvailabilityResolved, record.Availability)
	assert.Equal(t, "2024-03-02", record.LastProviderCheck.String())
	assert.Equal(t, "Quiet Hours", record.Title)
}

func TestMergeReleaseDateTransition(t *testing.T) {
	store := emptyStore(t)
	store.Merge(Fresh{ID: 8, Title: "Late", Release: releaseResult(tmdb.ReleaseEntry{Type: 3, ReleaseDate: "2024-01-05"})}, day("2024-02-01"))

	outcome := store.Merge(Fresh{ID: 8, Release: releaseResult(tmdb.ReleaseEntry{Type: 4, ReleaseDate: "2024-03-05"})}, day("2024-03-06"))

	record, _ := store.Get(8)
	assert.True(t, outcome.Resolved)
	assert.Equal(t, models.ProvenanceReleaseDate, record.DetectedVia)
	assert.Equal(t, "2024-01-05", record.TheatricalDate.String(), "known dates are kept")
	assert.Equal(t, "2024-01-05", record.EarliestReleaseDate.String())
	assert.Equal(t, []int{3, 4}, record.ReleaseTypesFound)
}

func TestMergeIsMonotonic(t *testing.T) {
	store := emptyStore(t)
	store.Merge(Fresh{ID: 9, Title: "Done", Providers: streaming("ServiceX")}, day("2024-03-01"))

	runs := []Fresh{
		{ID: 9, Release: releaseResult(), Providers: &providers.Availability{}},
		{ID: 9},
		{ID: 9, Release: releaseResult(tmdb.ReleaseEntry{Type: 3, ReleaseDate: "2024-01-01"})},
	}
	for i, fresh := range runs {
		outcome := store.Merge(fresh, day("2024-03-02").AddDays(i))
		assert.True(t, outcome.Skipped)
		record, _ := store.Get(9)
		assert.Equal(t, models.AvailabilityResolved, record.Availability)
		assert.Equal(t, []string{"ServiceX"}, record.Providers.Stream)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	store := emptyStore(t)
	batch := []Fresh{
		{ID: 1, Title: "A", Release: releaseResult(tmdb.ReleaseEntry{Type: 3, ReleaseDate: "2024-01-05"}), Providers: &providers.Availability{}},
		{ID: 2, Title: "B", Release: releaseResult(tmdb.ReleaseEntry{Type: 4, ReleaseDate: "2024-02-10"}), Providers: streaming("ServiceX")},
		{ID: 3, Title: "C", Providers: streaming("ServiceY")},
	}
	today := day("2024-03-01")

	for _, fresh := range batch {
		store.Merge(fresh, today)
	}
	first, err := json.Marshal(store.doc.Movies)
	require.NoError(t, err)
	firstStats := store.Stats()

	for _, fresh := range batch {
		store.Merge(fresh, today)
	}
	second, err := json.Marshal(store.doc.Movies)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, firstStats, store.Stats())
	assert.Equal(t, 3, store.Len())
}

func TestRefreshUpdatesResolvedTitle(t *testing.T) {
	store := emptyStore(t)
	store.Merge(Fresh{ID: 4, Title: "Old", Providers: streaming("ServiceX")}, day("2024-03-01"))

	score := 77
	outcome, ok := store.Refresh(Fresh{
		ID:        4,
		Title:     "New Title",
		Release:   releaseResult(tmdb.ReleaseEntry{Type: 4, ReleaseDate: "2024-02-20"}),
		Providers: &providers.Availability{},
		Ratings:   &omdb.Ratings{CriticScore: &score},
	}, day("2024-03-05"))

	require.True(t, ok)
	assert.False(t, outcome.Resolved)
	record, _ := store.Get(4)
	assert.Equal(t, "New Title", record.Title)
	assert.Equal(t, "2024-02-20", record.DigitalDate.String())
	assert.Equal(t, models.ProvenanceProviders, record.DetectedVia)
	assert.Equal(t, []string{"ServiceX"}, record.Providers.Stream, "empty fetch must not erase providers")
	require.NotNil(t, record.ReviewScore)
	assert.Equal(t, 77, *record.ReviewScore)

	_, ok = store.Refresh(Fresh{ID: 404}, day("2024-03-05"))
	assert.False(t, ok)
}

func TestForceResolve(t *testing.T) {
	store := emptyStore(t)
	store.Merge(Fresh{ID: 6, Title: "Indie"}, day("2024-03-01"))

	require.True(t, store.ForceResolve(6, day("2024-03-03")))
	record, _ := store.Get(6)
	assert.Equal(t, models.AvailabilityResolved, record.Availability)
	assert.Equal(t, models.ProvenanceManual, record.DetectedVia)
	assert.False(t, record.ManuallyAdded, "discovered titles keep their origin")

	assert.False(t, store.ForceResolve(60, day("2024-03-03")))
}
