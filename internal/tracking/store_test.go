package tracking

import (
	"bytes"
	"io"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/amaumene/releasewall/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func day(value string) models.Date {
	d, err := models.ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

func datePtr(value string) *models.Date {
	d := day(value)
	return &d
}

func sampleStore(t *testing.T, fs afero.Fs) *Store {
	t.Helper()
	store := NewStore(fs, "/state/tracking.json", quietLogger())
	require.NoError(t, store.Load())

	resolved := &models.TitleRecord{
		ExternalID:        11,
		Title:             "Amélie Returns",
		OriginalLanguage:  "fr",
		Availability:      models.AvailabilityResolved,
		DetectedVia:       models.ProvenanceProviders,
		AddedDate:         day("2024-01-02"),
		LastCheckedDate:   day("2024-02-01"),
		ReleaseTypesFound: []int{3},
	}
	resolved.TheatricalDate = datePtr("2023-12-01")
	resolved.Recompute()
	resolved.SetProviders(models.ProviderSnapshot{Stream: []string{"ServiceX"}, Rent: []string{"Vudu"}})
	store.Put(resolved)

	store.Put(&models.TitleRecord{
		ExternalID:      3,
		Title:           "Quiet Hours",
		Availability:    models.AvailabilityTracking,
		AddedDate:       day("2024-01-05"),
		LastCheckedDate: day("2024-01-05"),
	})
	store.MarkProviderCheck(time.Date(2024, 2, 1, 6, 0, 0, 0, time.UTC))
	return store
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "/nowhere/tracking.json", quietLogger())
	require.NoError(t, store.Load())
	assert.Zero(t, store.Len())
	assert.Nil(t, store.LastUpdate())
}

func TestLoadDropsMalformedDatesOnly(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := `{"movies":{
		"1":{"title":"Bad Date","theatrical_date":"TBA","digital_date":"2024-02-10","status":"tracking","added_to_db":"2024-01-01","last_checked":"not a date"},
		"2":{"title":"Fine","digital_date":"2024-01-20","status":"resolved","detected_via":"release_date","added_to_db":"2024-01-01","last_checked":"2024-01-02"}
	}}`
	require.NoError(t, afero.WriteFile(fs, "/state/tracking.json", []byte(doc), 0644))

	store := NewStore(fs, "/state/tracking.json", quietLogger())
	require.NoError(t, store.Load())
	assert.Equal(t, 2, store.Len())

	bad, ok := store.Get(1)
	require.True(t, ok)
	assert.Nil(t, bad.TheatricalDate)
	require.NotNil(t, bad.DigitalDate)
	assert.Equal(t, "2024-02-10", bad.EarliestReleaseDate.String())
	assert.True(t, bad.LastCheckedDate.IsZero())

	fine, ok := store.Get(2)
	require.True(t, ok)
	assert.Equal(t, models.AvailabilityResolved, fine.Availability)
}

func TestSaveRecomputesStats(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := sampleStore(t, fs)
	require.NoError(t, store.Save(time.Date(2024, 2, 1, 7, 0, 0, 0, time.UTC)))

	reloaded := NewStore(fs, "/state/tracking.json", quietLogger())
	require.NoError(t, reloaded.Load())

	assert.Equal(t, Stats{TotalTracked: 2, Resolved: 1, StillTracking: 1, ProviderDetected: 1}, reloaded.Stats())
	record, ok := reloaded.Get(11)
	require.True(t, ok)
	assert.Equal(t, "Amélie Returns", record.Title)
	assert.Equal(t, 2, record.ProviderCount)
	assert.Equal(t, "2023-12-01", record.EarliestReleaseDate.String())

	raw, err := afero.ReadFile(fs, "/state/tracking.json")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"still_tracking": 1`)
	assert.Contains(t, string(raw), `"last_provider_check": "2024-02-01T06:00:00Z"`)
}

func TestRoundTripIsStableExceptLastUpdate(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := sampleStore(t, fs)
	require.NoError(t, store.Save(time.Date(2024, 2, 1, 7, 0, 0, 0, time.UTC)))
	first, err := afero.ReadFile(fs, "/state/tracking.json")
	require.NoError(t, err)

	reloaded := NewStore(fs, "/state/tracking.json", quietLogger())
	require.NoError(t, reloaded.Load())
	require.NoError(t, reloaded.Save(time.Date(2024, 2, 2, 9, 30, 0, 0, time.UTC)))
	second, err := afero.ReadFile(fs, "/state/tracking.json")
	require.NoError(t, err)

	lastUpdate := regexp.MustCompile(`"last_update": "[^"]*"`)
	assert.Equal(t,
		string(lastUpdate.ReplaceAll(first, nil)),
		string(lastUpdate.ReplaceAll(second, nil)))
	assert.False(t, bytes.Equal(first, second), "last_update should change")
}

func TestSaveFailureKeepsPreviousSnapshot(t *testing.T) {
	base := afero.NewMemMapFs()
	store := sampleStore(t, base)
	require.NoError(t, store.Save(time.Now()))
	before, err := afero.ReadFile(base, "/state/tracking.json")
	require.NoError(t, err)

	readOnly := NewStore(afero.NewReadOnlyFs(base), "/state/tracking.json", quietLogger())
	require.NoError(t, readOnly.Load())
	readOnly.Put(&models.TitleRecord{ExternalID: 99, Title: "New"})
	require.Error(t, readOnly.Save(time.Now()))

	after, err := afero.ReadFile(base, "/state/tracking.json")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRecordsAndTrackingAreOrdered(t *testing.T) {
	store := sampleStore(t, afero.NewMemMapFs())

	records := store.Records()
	require.Len(t, records, 2)
	assert.Equal(t, int64(3), records[0].ExternalID)
	assert.Equal(t, int64(11), records[1].ExternalID)

	tracking := store.Tracking()
	require.Len(t, tracking, 1)
	assert.Equal(t, int64(3), tracking[0].ExternalID)
}

func TestLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.json")

	release, err := Lock(path)
	require.NoError(t, err)

	_, err = Lock(path)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, release())
	again, err := Lock(path)
	require.NoError(t, err)
	require.NoError(t, again())
}
