package providers

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/services/tmdb"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func provider(name string) tmdb.Provider {
	return tmdb.Provider{ProviderName: name}
}

func day(value string) models.Date {
	d, err := models.ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

func TestReconcileFoldsAndDedupes(t *testing.T) {
	payload := &tmdb.WatchProvidersResponse{Results: map[string]tmdb.RegionProviders{
		"US": {
			Link:     "https://www.themoviedb.org/movie/3/watch?locale=US",
			Flatrate: []tmdb.Provider{provider("Netflix")},
			Ads:      []tmdb.Provider{provider("Tubi"), provider("Netflix")},
			Free:     []tmdb.Provider{provider("Kanopy")},
			Rent:     []tmdb.Provider{provider("Vudu"), provider("Apple TV"), provider("Vudu")},
			Buy:      []tmdb.Provider{provider(" Apple TV ")},
		},
		"GB": {Flatrate: []tmdb.Provider{provider("BBC iPlayer")}},
	}}

	got := Reconcile(3, payload, "us")

	assert.Equal(t, []string{"Kanopy", "Netflix", "Tubi"}, got.Snapshot.Stream)
	assert.Equal(t, []string{"Apple TV", "Vudu"}, got.Snapshot.Rent)
	assert.Equal(t, []string{"Apple TV"}, got.Snapshot.Buy)
	assert.Equal(t, "https://www.themoviedb.org/movie/3/watch?locale=US", got.WatchLink)
}

func TestReconcileMissingRegionFallsBackToWatchPage(t *testing.T) {
	payload := &tmdb.WatchProvidersResponse{Results: map[string]tmdb.RegionProviders{
		"GB": {Flatrate: []tmdb.Provider{provider("BBC iPlayer")}},
	}}

	got := Reconcile(8, payload, "US")

	assert.True(t, got.Snapshot.Empty())
	assert.Equal(t, "https://www.themoviedb.org/movie/8/watch", got.WatchLink)
}

func TestApplyResolvesViaProvidersAcrossRuns(t *testing.T) {
	record := &models.TitleRecord{ExternalID: 1, Title: "Quiet Hours", Availability: models.AvailabilityTracking}

	first := Apply(record, Availability{}, day("2024-03-01"))
	assert.False(t, first.Resolved)
	assert.Equal(t, models.AvailabilityTracking, record.Availability)
	require.NotNil(t, record.LastProviderCheck)
	assert.Equal(t, "2024-03-01", record.LastProviderCheck.String())

	second := Apply(record, Availability{Snapshot: models.ProviderSnapshot{Stream: []string{"ServiceX"}}}, day("2024-03-02"))
	assert.True(t, second.Resolved)
	assert.Equal(t, models.AvailabilityResolved, record.Availability)
	assert.Equal(t, models.ProvenanceProviders, record.DetectedVia)
	assert.Equal(t, 1, record.ProviderCount)
	assert.Equal(t, "2024-03-02", record.LastProviderCheck.String())
	assert.Equal(t, "2024-03-02", record.DigitalDetectedDate.String())
}

func TestApplyNeverErasesOrRegresses(t *testing.T) {
	record := &models.TitleRecord{
		ExternalID:   2,
		Availability: models.AvailabilityResolved,
		DetectedVia:  models.ProvenanceReleaseDate,
	}
	record.SetProviders(models.ProviderSnapshot{Rent: []string{"Vudu"}})

	transition := Apply(record, Availability{}, day("2024-04-01"))
	assert.False(t, transition.Updated)
	assert.Equal(t, []string{"Vudu"}, record.Providers.Rent)
	assert.Equal(t, models.AvailabilityResolved, record.Availability)

	transition = Apply(record, Availability{Snapshot: models.ProviderSnapshot{Buy: []string{"Apple TV"}}}, day("2024-04-02"))
	assert.True(t, transition.Updated)
	assert.False(t, transition.Resolved)
	assert.Equal(t, models.ProvenanceReleaseDate, record.DetectedVia)
	assert.Equal(t, 1, record.ProviderCount)
}

type fakeSource struct {
	payload *tmdb.WatchProvidersResponse
	err     error
}

func (f fakeSource) WatchProviders(_ context.Context, _ int64) (*tmdb.WatchProvidersResponse, error) {
	return f.payload, f.err
}

func TestReconcilerLookup(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	_, err := NewReconciler(fakeSource{err: errors.New("timeout")}, "US", logger).Lookup(context.Background(), 1)
	assert.Error(t, err)

	got, err := NewReconciler(fakeSource{payload: &tmdb.WatchProvidersResponse{Results: map[string]tmdb.RegionProviders{
		"US": {Flatrate: []tmdb.Provider{provider("ServiceX")}},
	}}}, "US", logger).Lookup(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"ServiceX"}, got.Snapshot.Stream)
}
