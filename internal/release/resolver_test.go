package release

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/services/tmdb"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(value string) models.Date {
	d, err := models.ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

func country(code string, entries ...tmdb.ReleaseEntry) tmdb.ReleaseCountry {
	return tmdb.ReleaseCountry{ISO31661: code, ReleaseDates: entries}
}

func entry(rt int, date string) tmdb.ReleaseEntry {
	return tmdb.ReleaseEntry{Type: rt, ReleaseDate: date}
}

func TestResolveRegionScenario(t *testing.T) {
	payload := []tmdb.ReleaseCountry{
		country("US", entry(3, "2024-01-05T00:00:00.000Z"), entry(4, "2024-02-10T00:00:00.000Z")),
	}

	result := Resolve(payload, Options{Region: "US"})

	require.NotNil(t, result.Timeline.TheatricalDate)
	require.NotNil(t, result.Timeline.DigitalDate)
	require.NotNil(t, result.Timeline.EarliestReleaseDate)
	assert.Equal(t, "2024-01-05", result.Timeline.TheatricalDate.String())
	assert.Equal(t, "2024-02-10", result.Timeline.DigitalDate.String())
	assert.Equal(t, "2024-01-05", result.Timeline.EarliestReleaseDate.String())
	assert.True(t, result.HasDigital)
	assert.Equal(t, []int{3, 4}, result.TypeInts())
}

func TestResolveRegionMissingIsNoData(t *testing.T) {
	payload := []tmdb.ReleaseCountry{
		country("GB", entry(4, "2024-02-10")),
	}

	result := Resolve(payload, Options{Region: "US"})

	assert.Nil(t, result.Timeline.EarliestReleaseDate)
	assert.Nil(t, result.Timeline.DigitalDate)
	assert.False(t, result.HasDigital)
	assert.Empty(t, result.TypesFound)
}

func TestResolveComprehensivePoolsCountries(t *testing.T) {
	payload := []tmdb.ReleaseCountry{
		country("FR", entry(1, "2023-05-20"), entry(3, "2023-09-01")),
		country("US", entry(3, "2023-10-13"), entry(4, "2023-12-01"), entry(6, "2024-03-01")),
	}

	result := Resolve(payload, Options{})

	assert.Equal(t, "2023-05-20", result.Timeline.PremiereDate.String())
	assert.Equal(t, "2023-09-01", result.Timeline.TheatricalDate.String())
	assert.Equal(t, "2023-05-20", result.Timeline.EarliestReleaseDate.String())
	assert.True(t, result.HasDigital)
	assert.Equal(t, "2023-12-01", result.HomeDate.String())
}

func TestResolveDropsMalformedDates(t *testing.T) {
	payload := []tmdb.ReleaseCountry{
		country("US", entry(4, "soon"), entry(4, ""), entry(3, "2024-01-05"), entry(9, "2020-01-01")),
	}

	result := Resolve(payload, Options{Region: "US"})

	assert.Nil(t, result.Timeline.DigitalDate)
	assert.False(t, result.HasDigital)
	assert.Equal(t, 2, result.Dropped)
	assert.Equal(t, "2024-01-05", result.Timeline.EarliestReleaseDate.String())
}

func TestResolveWindowedHasDigital(t *testing.T) {
	window := models.LastDays(day("2024-03-15"), 14)
	tests := []struct {
		name    string
		entries []tmdb.ReleaseEntry
		want    bool
	}{
		{"digital inside window", []tmdb.ReleaseEntry{entry(4, "2024-03-10")}, true},
		{"tv inside window", []tmdb.ReleaseEntry{entry(6, "2024-03-01")}, true},
		{"window start inclusive", []tmdb.ReleaseEntry{entry(4, "2024-03-01")}, true},
		{"digital before window", []tmdb.ReleaseEntry{entry(4, "2024-01-10")}, false},
		{"theatrical only", []tmdb.ReleaseEntry{entry(3, "2024-03-10")}, false},
		{"future digital", []tmdb.ReleaseEntry{entry(4, "2024-04-01")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Resolve([]tmdb.ReleaseCountry{country("US", tt.entries...)}, Options{Region: "US", Window: &window})
			assert.Equal(t, tt.want, result.HasDigital)
		})
	}
}

func TestResolveEarliestIsMinimumProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := day("2020-01-01")
	codes := []string{"US", "GB", "FR", "DE"}

	for i := 0; i < 200; i++ {
		var payload []tmdb.ReleaseCountry
		var min *models.Date
		usOnly := make(map[int]models.Date)

		for _, code := range codes {
			c := tmdb.ReleaseCountry{ISO31661: code}
			for n := rng.Intn(4); n > 0; n-- {
				rt := 1 + rng.Intn(6)
				d := base.AddDays(rng.Intn(1500))
				c.ReleaseDates = append(c.ReleaseDates, entry(rt, d.String()))
				if min == nil || d.Before(*min) {
					v := d
					min = &v
				}
				if code == "US" {
					if cur, ok := usOnly[rt]; !ok || d.Before(cur) {
						usOnly[rt] = d
					}
				}
			}
			payload = append(payload, c)
		}

		all := Resolve(payload, Options{})
		if min == nil {
			assert.Nil(t, all.Timeline.EarliestReleaseDate)
		} else {
			require.NotNil(t, all.Timeline.EarliestReleaseDate)
			assert.True(t, min.Equal(*all.Timeline.EarliestReleaseDate))
		}

		us := Resolve(payload, Options{Region: "US"})
		for rt := models.ReleasePremiere; rt <= models.ReleaseTV; rt++ {
			got := us.Timeline.DateFor(rt)
			want, ok := usOnly[int(rt)]
			if !ok {
				assert.Nil(t, got, "type %d should have no US date", rt)
				continue
			}
			require.NotNil(t, got)
			assert.True(t, want.Equal(*got), "type %d: want %s got %s", rt, want, got)
		}
	}
}

type fakeSource struct {
	payload *tmdb.ReleaseDatesResponse
	err     error
}

func (f fakeSource) ReleaseDates(_ context.Context, _ int64) (*tmdb.ReleaseDatesResponse, error) {
	return f.payload, f.err
}

func TestLookupFailureReturnsNilResult(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	resolver := NewResolver(fakeSource{err: errors.New("boom")}, logger)
	result, err := resolver.Lookup(context.Background(), 5, Options{})
	assert.Nil(t, result)
	assert.Error(t, err)

	resolver = NewResolver(fakeSource{payload: &tmdb.ReleaseDatesResponse{Results: []tmdb.ReleaseCountry{
		country("US", entry(4, "2024-02-10")),
	}}}, logger)
	result, err = resolver.Lookup(context.Background(), 5, Options{Region: "US"})
	require.NoError(t, err)
	assert.True(t, result.HasDigital)
}
