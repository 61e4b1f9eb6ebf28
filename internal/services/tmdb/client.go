package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/amaumene/releasewall/internal/config"
	"github.com/amaumene/releasewall/internal/services/httpclient"
	"github.com/sirupsen/logrus"
)

const (
	imageBaseURL = "https://image.tmdb.org/t/p"
	posterSize   = "w500"
	siteBaseURL  = "https://www.themoviedb.org"
)

// Client handles communication with the TMDB catalog API
type Client struct {
	apiKey  string
	baseURL string
	http    *httpclient.Client
	logger  *logrus.Logger
}

// NewClient creates a new TMDB API client
func NewClient(cfg *config.Config, observer httpclient.Observer, logger *logrus.Logger) (*Client, error) {
	if err := cfg.RequireCatalog(); err != nil {
		return nil, err
	}

	return &Client{
		apiKey:  cfg.TMDBAPIKey,
		baseURL: strings.TrimRight(cfg.TMDBBaseURL, "/"),
		http: httpclient.New(httpclient.Options{
			Service:    "tmdb",
			Delay:      cfg.RequestDelay,
			Timeout:    cfg.RequestTimeout,
			MaxRetries: cfg.MaxRetries,
			RetryStep:  cfg.RetryStep,
			Observer:   observer,
		}, logger),
		logger: logger,
	}, nil
}

// doRequest performs an authenticated GET against the TMDB API
func (c *Client) doRequest(ctx context.Context, path string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	c.logger.WithField("path", path).Debug("Making TMDB API request")

	return c.http.GetJSON(ctx, c.baseURL+path, params, result)
}

// PosterURL builds the public poster URL for a poster path
func PosterURL(posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return imageBaseURL + "/" + posterSize + posterPath
}

// WatchPageURL is the catalog's own "where to watch" page for a movie
func WatchPageURL(id int64) string {
	return fmt.Sprintf("%s/movie/%d/watch", siteBaseURL, id)
}

// MovieURL is the catalog page for a movie
func MovieURL(id int64) string {
	return fmt.Sprintf("%s/movie/%d", siteBaseURL, id)
}
