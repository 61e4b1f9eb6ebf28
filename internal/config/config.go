package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ErrConfigurationMissing is returned when a required setting is absent
var ErrConfigurationMissing = errors.New("configuration missing")

// Config holds all application configuration
type Config struct {
	// TMDB (catalog)
	TMDBAPIKey  string
	TMDBBaseURL string

	// OMDb (ratings)
	OMDBAPIKey  string
	OMDBBaseURL string

	// Catalog region and language
	Region          string
	PrimaryLanguage string

	// HTTP behaviour
	RequestDelay   time.Duration // Fixed pause before every API request
	DiscoverDelay  time.Duration // Extra pause between discovery pages
	RequestTimeout time.Duration
	MaxRetries     int
	RetryStep      time.Duration // Linear backoff step (attempt * step)

	// Inclusion classifier thresholds
	PopularVotes       int
	TrendingPopularity float64
	LanguageMinVotes   int
	ReviewVoteFloor    int

	// Discovery windows
	BootstrapDays    int
	DailyDays        int
	DiscoverMaxPages int
	DailyMaxPages    int
	WallDays         int
	WallMaxPages     int

	// Site
	SiteTitle string

	// Server
	ServerPort    string
	DailySchedule string

	// Paths
	TrackingFile  string // $CONFIG_DIR/tracking.json
	CuratedFile   string // $CONFIG_DIR/curated_selections.json
	DataFile      string // $CONFIG_DIR/output/data.json
	SiteDir       string // $CONFIG_DIR/output/site
	RunsDatabase  string // $CONFIG_DIR/runs.db
	BlocklistFile string // $CONFIG_DIR/blocklist.txt

	// Logging
	LogLevel string
	LogFile  string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	setDefaults()

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "releasewall")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	outputDir := filepath.Join(configDir, "output")

	config := &Config{
		TMDBAPIKey:  viper.GetString("TMDB_API_KEY"),
		TMDBBaseURL: viper.GetString("TMDB_BASE_URL"),

		OMDBAPIKey:  viper.GetString("OMDB_API_KEY"),
		OMDBBaseURL: viper.GetString("OMDB_BASE_URL"),

		Region:          viper.GetString("REGION"),
		PrimaryLanguage: viper.GetString("PRIMARY_LANGUAGE"),

		RequestDelay:   time.Duration(viper.GetInt("REQUEST_DELAY_MS")) * time.Millisecond,
		DiscoverDelay:  time.Duration(viper.GetInt("DISCOVER_DELAY_MS")) * time.Millisecond,
		RequestTimeout: time.Duration(viper.GetInt("REQUEST_TIMEOUT_SECONDS")) * time.Second,
		MaxRetries:     viper.GetInt("MAX_RETRIES"),
		RetryStep:      time.Duration(viper.GetInt("RETRY_STEP_MS")) * time.Millisecond,

		PopularVotes:       viper.GetInt("POPULAR_VOTES"),
		TrendingPopularity: viper.GetFloat64("TRENDING_POPULARITY"),
		LanguageMinVotes:   viper.GetInt("LANGUAGE_MIN_VOTES"),
		ReviewVoteFloor:    viper.GetInt("REVIEW_VOTE_FLOOR"),

		BootstrapDays:    viper.GetInt("BOOTSTRAP_DAYS"),
		DailyDays:        viper.GetInt("DAILY_DAYS"),
		DiscoverMaxPages: viper.GetInt("DISCOVER_MAX_PAGES"),
		DailyMaxPages:    viper.GetInt("DAILY_MAX_PAGES"),
		WallDays:         viper.GetInt("WALL_DAYS"),
		WallMaxPages:     viper.GetInt("WALL_MAX_PAGES"),

		SiteTitle: viper.GetString("SITE_TITLE"),

		ServerPort:    viper.GetString("SERVER_PORT"),
		DailySchedule: viper.GetString("DAILY_SCHEDULE"),

		TrackingFile:  pathOrDefault("TRACKING_FILE", filepath.Join(configDir, "tracking.json")),
		CuratedFile:   pathOrDefault("CURATED_FILE", filepath.Join(configDir, "curated_selections.json")),
		DataFile:      pathOrDefault("DATA_FILE", filepath.Join(outputDir, "data.json")),
		SiteDir:       pathOrDefault("SITE_DIR", filepath.Join(outputDir, "site")),
		RunsDatabase:  pathOrDefault("RUNS_DB", filepath.Join(configDir, "runs.db")),
		BlocklistFile: pathOrDefault("BLOCKLIST_FILE", filepath.Join(configDir, "blocklist.txt")),

		LogLevel: viper.GetString("LOG_LEVEL"),
		LogFile:  viper.GetString("LOG_FILE"),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("TMDB_BASE_URL", "https://api.themoviedb.org/3")
	viper.SetDefault("OMDB_BASE_URL", "https://www.omdbapi.com/")
	viper.SetDefault("REGION", "US")
	viper.SetDefault("PRIMARY_LANGUAGE", "en")
	viper.SetDefault("REQUEST_DELAY_MS", 100)
	viper.SetDefault("DISCOVER_DELAY_MS", 200)
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 10)
	viper.SetDefault("MAX_RETRIES", 3)
	viper.SetDefault("RETRY_STEP_MS", 1500)
	viper.SetDefault("POPULAR_VOTES", 20)
	viper.SetDefault("TRENDING_POPULARITY", 10.0)
	viper.SetDefault("LANGUAGE_MIN_VOTES", 3)
	viper.SetDefault("REVIEW_VOTE_FLOOR", 10)
	viper.SetDefault("BOOTSTRAP_DAYS", 730)
	viper.SetDefault("DAILY_DAYS", 7)
	viper.SetDefault("DISCOVER_MAX_PAGES", 50)
	viper.SetDefault("DAILY_MAX_PAGES", 5)
	viper.SetDefault("WALL_DAYS", 14)
	viper.SetDefault("WALL_MAX_PAGES", 5)
	viper.SetDefault("SITE_TITLE", "The New Release Wall")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DAILY_SCHEDULE", "0 6 * * *")
	viper.SetDefault("LOG_LEVEL", "info")
}

func pathOrDefault(key, fallback string) string {
	if value := viper.GetString(key); value != "" {
		if abs, err := filepath.Abs(value); err == nil {
			return abs
		}
		return value
	}
	return fallback
}

// validate checks values that would make every command misbehave
func (c *Config) validate() error {
	if len(c.Region) != 2 {
		return fmt.Errorf("REGION must be a two-letter country code, got %q", c.Region)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// RequireCatalog fails when the catalog API key is missing. Network commands
// call it before issuing any request.
func (c *Config) RequireCatalog() error {
	if c.TMDBAPIKey == "" {
		return fmt.Errorf("%w: TMDB_API_KEY is required", ErrConfigurationMissing)
	}
	return nil
}

// HasRatings reports whether the ratings API is configured
func (c *Config) HasRatings() bool {
	return c.OMDBAPIKey != ""
}
