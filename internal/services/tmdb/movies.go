package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/services/httpclient"
)

// DiscoverFilters selects titles for /discover/movie. Zero values are omitted.
type DiscoverFilters struct {
	SortBy       string
	Region       string
	WatchRegion  string
	PrimaryFrom  *models.Date // primary_release_date.gte
	PrimaryTo    *models.Date // primary_release_date.lte
	ReleaseFrom  *models.Date // release_date.gte
	ReleaseTo    *models.Date // release_date.lte
	ReleaseTypes []models.ReleaseType
	IncludeAdult bool
}

// values converts the filters to query parameters
func (f DiscoverFilters) values() url.Values {
	params := url.Values{}
	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = "primary_release_date.desc"
	}
	params.Set("sort_by", sortBy)
	params.Set("include_adult", strconv.FormatBool(f.IncludeAdult))
	params.Set("include_video", "false")

	if f.Region != "" {
		params.Set("region", f.Region)
	}
	if f.WatchRegion != "" {
		params.Set("watch_region", f.WatchRegion)
	}
	if f.PrimaryFrom != nil {
		params.Set("primary_release_date.gte", f.PrimaryFrom.String())
	}
	if f.PrimaryTo != nil {
		params.Set("primary_release_date.lte", f.PrimaryTo.String())
	}
	if f.ReleaseFrom != nil {
		params.Set("release_date.gte", f.ReleaseFrom.String())
	}
	if f.ReleaseTo != nil {
		params.Set("release_date.lte", f.ReleaseTo.String())
	}
	if len(f.ReleaseTypes) > 0 {
		types := make([]string, len(f.ReleaseTypes))
		for i, rt := range f.ReleaseTypes {
			types[i] = strconv.Itoa(int(rt))
		}
		params.Set("with_release_type", strings.Join(types, "|"))
	}
	return params
}

// Discover fetches one page of /discover/movie results
func (c *Client) Discover(ctx context.Context, filters DiscoverFilters, page int) (*PagedMovies, error) {
	params := filters.values()
	params.Set("page", strconv.Itoa(page))

	var result PagedMovies
	if err := c.doRequest(ctx, "/discover/movie", params, &result); err != nil {
		return nil, fmt.Errorf("failed to discover movies (page %d): %w", page, err)
	}
	return &result, nil
}

// ReleaseDates fetches the per-country release date records for a movie.
// A 404 yields an empty payload.
func (c *Client) ReleaseDates(ctx context.Context, id int64) (*ReleaseDatesResponse, error) {
	var result ReleaseDatesResponse
	err := c.doRequest(ctx, fmt.Sprintf("/movie/%d/release_dates", id), nil, &result)
	if errors.Is(err, httpclient.ErrNotFound) {
		return &ReleaseDatesResponse{ID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get release dates for %d: %w", id, err)
	}
	return &result, nil
}

// WatchProviders fetches the per-region provider listing for a movie.
// A 404 yields an empty payload.
func (c *Client) WatchProviders(ctx context.Context, id int64) (*WatchProvidersResponse, error) {
	var result WatchProvidersResponse
	err := c.doRequest(ctx, fmt.Sprintf("/movie/%d/watch/providers", id), nil, &result)
	if errors.Is(err, httpclient.ErrNotFound) {
		return &WatchProvidersResponse{ID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watch providers for %d: %w", id, err)
	}
	return &result, nil
}

// Details fetches the full movie record
func (c *Client) Details(ctx context.Context, id int64) (*Details, error) {
	var result Details
	if err := c.doRequest(ctx, fmt.Sprintf("/movie/%d", id), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to get details for %d: %w", id, err)
	}
	return &result, nil
}

// Credits fetches cast and crew
func (c *Client) Credits(ctx context.Context, id int64) (*Credits, error) {
	var result Credits
	err := c.doRequest(ctx, fmt.Sprintf("/movie/%d/credits", id), nil, &result)
	if errors.Is(err, httpclient.ErrNotFound) {
		return &Credits{ID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credits for %d: %w", id, err)
	}
	return &result, nil
}

// ExternalIDs fetches cross-references such as the IMDb id
func (c *Client) ExternalIDs(ctx context.Context, id int64) (*ExternalIDs, error) {
	var result ExternalIDs
	err := c.doRequest(ctx, fmt.Sprintf("/movie/%d/external_ids", id), nil, &result)
	if errors.Is(err, httpclient.ErrNotFound) {
		return &ExternalIDs{ID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get external ids for %d: %w", id, err)
	}
	return &result, nil
}

// Videos fetches trailers and clips
func (c *Client) Videos(ctx context.Context, id int64) (*VideoList, error) {
	var result VideoList
	err := c.doRequest(ctx, fmt.Sprintf("/movie/%d/videos", id), nil, &result)
	if errors.Is(err, httpclient.ErrNotFound) {
		return &VideoList{ID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get videos for %d: %w", id, err)
	}
	return &result, nil
}

// Search looks up movies by title, optionally narrowed to a release year
func (c *Client) Search(ctx context.Context, query string, year int) ([]Movie, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var result PagedMovies
	if err := c.doRequest(ctx, "/search/movie", params, &result); err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", query, err)
	}
	return result.Results, nil
}
