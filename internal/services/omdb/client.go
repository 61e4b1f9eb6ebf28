package omdb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/releasewall/internal/config"
	"github.com/amaumene/releasewall/internal/services/httpclient"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Response is the OMDb title lookup payload. Absent values come back as "N/A".
type Response struct {
	Response   string   `json:"Response"`
	Error      string   `json:"Error"`
	Title      string   `json:"Title"`
	Year       string   `json:"Year"`
	IMDBID     string   `json:"imdbID"`
	Metascore  string   `json:"Metascore"`
	IMDBRating string   `json:"imdbRating"`
	IMDBVotes  string   `json:"imdbVotes"`
	Ratings    []Rating `json:"Ratings"`
}

// Rating is one critic source entry
type Rating struct {
	Source string `json:"Source"`
	Value  string `json:"Value"`
}

// Ratings is the parsed critic/audience signal for a title. Every field is
// optional; a zero Ratings means "no data".
type Ratings struct {
	CriticScore    *int
	Metascore      *int
	AudienceVotes  *int
	AudienceRating *float64
}

// HasSignal reports whether any critic or audience value was found
func (r Ratings) HasSignal() bool {
	return r.CriticScore != nil || r.Metascore != nil || r.AudienceVotes != nil || r.AudienceRating != nil
}

// Client wraps OMDb API calls with a short-lived memo of previous lookups
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
	memo    *cache.Cache
	logger  *logrus.Logger
}

// NewClient creates a new OMDb client
func NewClient(cfg *config.Config, observer httpclient.Observer, logger *logrus.Logger) (*Client, error) {
	if cfg.OMDBAPIKey == "" {
		return nil, fmt.Errorf("%w: OMDB_API_KEY is required", config.ErrConfigurationMissing)
	}
	if cfg.OMDBBaseURL == "" {
		return nil, fmt.Errorf("%w: OMDB_BASE_URL is required", config.ErrConfigurationMissing)
	}

	return &Client{
		baseURL: cfg.OMDBBaseURL,
		apiKey:  cfg.OMDBAPIKey,
		http: httpclient.New(httpclient.Options{
			Service:    "omdb",
			Delay:      cfg.RequestDelay,
			Timeout:    cfg.RequestTimeout,
			MaxRetries: cfg.MaxRetries,
			RetryStep:  cfg.RetryStep,
			Observer:   observer,
		}, logger),
		memo:   cache.New(6*time.Hour, 30*time.Minute),
		logger: logger,
	}, nil
}

// Lookup fetches ratings by IMDb id when known, otherwise by title and year.
// A title the API does not know returns zero Ratings and no error.
func (c *Client) Lookup(ctx context.Context, title string, year int, imdbID string) (Ratings, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	if imdbID != "" {
		params.Set("i", imdbID)
	} else {
		if strings.TrimSpace(title) == "" {
			return Ratings{}, nil
		}
		params.Set("t", title)
		if year > 0 {
			params.Set("y", strconv.Itoa(year))
		}
	}

	key := params.Get("i") + "|" + params.Get("t") + "|" + params.Get("y")
	if cached, ok := c.memo.Get(key); ok {
		return cached.(Ratings), nil
	}

	c.logger.WithFields(logrus.Fields{
		"title":   title,
		"year":    year,
		"imdb_id": imdbID,
	}).Debug("Performing OMDb lookup")

	var resp Response
	err := c.http.GetJSON(ctx, c.baseURL, params, &resp)
	if errors.Is(err, httpclient.ErrNotFound) {
		return Ratings{}, nil
	}
	if err != nil {
		return Ratings{}, fmt.Errorf("omdb lookup failed: %w", err)
	}

	ratings := parseRatings(resp)
	c.memo.Set(key, ratings, cache.DefaultExpiration)
	return ratings, nil
}

// parseRatings converts the raw payload, dropping any field that does not parse
func parseRatings(resp Response) Ratings {
	if !strings.EqualFold(resp.Response, "True") {
		return Ratings{}
	}

	var ratings Ratings
	for _, rating := range resp.Ratings {
		if rating.Source == "Rotten Tomatoes" {
			ratings.CriticScore = parsePercent(rating.Value)
		}
	}
	ratings.Metascore = parseInt(resp.Metascore)
	ratings.AudienceVotes = parseInt(strings.ReplaceAll(resp.IMDBVotes, ",", ""))
	if value, err := strconv.ParseFloat(resp.IMDBRating, 64); err == nil {
		ratings.AudienceRating = &value
	}
	return ratings
}

func parsePercent(value string) *int {
	return parseInt(strings.TrimSuffix(strings.TrimSpace(value), "%"))
}

func parseInt(value string) *int {
	value = strings.TrimSpace(value)
	if value == "" || value == "N/A" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &n
}
