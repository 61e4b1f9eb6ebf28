package adapter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/services/tmdb"
	"github.com/amaumene/releasewall/internal/utils"
)

// platformCodes maps store display names to the short codes the UI knows
var platformCodes = map[string]string{
	"Apple TV":           "itunes",
	"iTunes":             "itunes",
	"Amazon Prime Video": "amazon",
	"Amazon":             "amazon",
	"Amazon Video":       "amazon",
	"YouTube":            "youtube",
	"Google Play Movies": "google",
	"Vudu":               "vudu",
	"Fandango At Home":   "vudu",
	"MUBI":               "mubi",
}

// fallbackPlatform is the code for any store not in the table
const fallbackPlatform = "other"

// PlatformCode returns the UI code for a store name
func PlatformCode(name string) string {
	if code, ok := platformCodes[strings.TrimSpace(name)]; ok {
		return code
	}
	return fallbackPlatform
}

// Price is an offer price in the store's currency
type Price struct {
	Price float64 `json:"price"`
}

// Platform is one place a title can be watched
type Platform struct {
	Platform string   `json:"platform"`
	Name     string   `json:"name,omitempty"`
	URL      string   `json:"url"`
	Offers   []string `json:"offers,omitempty"`
	Rent     *Price   `json:"rent,omitempty"`
	Buy      *Price   `json:"buy,omitempty"`
}

// Title is the UI-facing record shared by the site and the dashboard
type Title struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Poster           string     `json:"poster"`
	Year             *int       `json:"year"`
	Genres           []string   `json:"genres"`
	AvailabilityDate string     `json:"availabilityDate"`
	Platforms        []Platform `json:"platforms"`

	Overview    string   `json:"overview,omitempty"`
	Directors   []string `json:"directors,omitempty"`
	Cast        []string `json:"cast,omitempty"`
	Runtime     int      `json:"runtime,omitempty"`
	Studio      string   `json:"studio,omitempty"`
	TrailerURL  string   `json:"trailerUrl,omitempty"`
	IMDBURL     string   `json:"imdbUrl,omitempty"`
	CatalogURL  string   `json:"catalogUrl,omitempty"`
	WatchLink   string   `json:"watchLink,omitempty"`
	ReviewScore *int     `json:"rtScore,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

// Source is a record that can be normalized. The set of variants is closed:
// ScrapedItem and TrackedTitle.
type Source interface {
	source()
}

// Store is one storefront listing on a scraped item
type Store struct {
	Name string   `json:"name"`
	URL  string   `json:"url"`
	Rent *float64 `json:"rent,omitempty"`
	Buy  *float64 `json:"buy,omitempty"`
}

// ScrapedItem is a storefront-scraped record
type ScrapedItem struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Year             string   `json:"year"`
	Genres           []string `json:"genres"`
	AvailabilityDate string   `json:"availability_date"`
	Poster           string   `json:"poster"`
	Stores           []Store  `json:"stores"`
}

// Extras is catalog detail fetched for display only
type Extras struct {
	Overview   string
	Directors  []string
	Cast       []string
	Runtime    int
	Studio     string
	TrailerURL string
	Reason     string
	// AvailabilityDate overrides the date derived from the record
	AvailabilityDate *models.Date
}

// TrackedTitle is a catalog record from the tracking store or the wall
type TrackedTitle struct {
	Record *models.TitleRecord
	Extras *Extras
}

func (ScrapedItem) source()  {}
func (TrackedTitle) source() {}

// Normalize maps any source variant onto the UI schema
func Normalize(src Source) (Title, error) {
	switch s := src.(type) {
	case ScrapedItem:
		return fromScraped(s), nil
	case TrackedTitle:
		if s.Record == nil {
			return Title{}, fmt.Errorf("tracked title without record")
		}
		return fromTracked(s), nil
	default:
		return Title{}, fmt.Errorf("unsupported source %T", src)
	}
}

func fromScraped(item ScrapedItem) Title {
	title := strings.TrimSpace(item.Title)

	var year *int
	if y, err := strconv.Atoi(strings.TrimSpace(item.Year)); err == nil && y > 0 {
		year = &y
	} else if y := utils.ExtractYear(item.Year); y > 0 {
		year = &y
	}

	id := item.ID
	if id == "" {
		id = strings.ToLower(title) + ":"
		if year != nil {
			id += strconv.Itoa(*year)
		}
	}

	platforms := make([]Platform, 0, len(item.Stores))
	for _, store := range item.Stores {
		platform := Platform{
			Platform: PlatformCode(store.Name),
			Name:     store.Name,
			URL:      store.URL,
		}
		if store.Rent != nil {
			platform.Rent = &Price{Price: *store.Rent}
		}
		if store.Buy != nil {
			platform.Buy = &Price{Price: *store.Buy}
		}
		platforms = append(platforms, platform)
	}

	return Title{
		ID:               id,
		Title:            title,
		Poster:           item.Poster,
		Year:             year,
		Genres:           splitGenres(item.Genres),
		AvailabilityDate: isoDate(item.AvailabilityDate),
		Platforms:        platforms,
	}
}

func fromTracked(t TrackedTitle) Title {
	record := t.Record

	out := Title{
		ID:          strconv.FormatInt(record.ExternalID, 10),
		Title:       record.Title,
		Poster:      tmdb.PosterURL(record.PosterPath),
		Genres:      tmdb.GenreNames(record.GenreIDs),
		Platforms:   platformsFor(record),
		CatalogURL:  tmdb.MovieURL(record.ExternalID),
		WatchLink:   record.WatchLink,
		ReviewScore: record.ReviewScore,
	}
	if out.WatchLink == "" {
		out.WatchLink = tmdb.WatchPageURL(record.ExternalID)
	}
	if year := record.Year(); year > 0 {
		out.Year = &year
	}
	if date := record.AvailabilityDate(); date != nil {
		out.AvailabilityDate = date.String()
	}
	if record.IMDBID != "" {
		out.IMDBURL = "https://www.imdb.com/title/" + record.IMDBID + "/"
	}

	if extras := t.Extras; extras != nil {
		out.Overview = extras.Overview
		out.Directors = extras.Directors
		out.Cast = extras.Cast
		out.Runtime = extras.Runtime
		out.Studio = extras.Studio
		out.TrailerURL = extras.TrailerURL
		out.Reason = extras.Reason
		if extras.AvailabilityDate != nil {
			out.AvailabilityDate = extras.AvailabilityDate.String()
		}
	}
	return out
}

// platformsFor lists each distinct provider once with the offer kinds it has
func platformsFor(record *models.TitleRecord) []Platform {
	offers := make(map[string][]string)
	add := func(kind string, names []string) {
		for _, name := range names {
			offers[name] = append(offers[name], kind)
		}
	}
	add("stream", record.Providers.Stream)
	add("rent", record.Providers.Rent)
	add("buy", record.Providers.Buy)

	link := record.WatchLink
	if link == "" {
		link = tmdb.WatchPageURL(record.ExternalID)
	}

	names := make([]string, 0, len(offers))
	for name := range offers {
		names = append(names, name)
	}
	sort.Strings(names)

	platforms := make([]Platform, 0, len(names))
	for _, name := range names {
		platforms = append(platforms, Platform{
			Platform: PlatformCode(name),
			Name:     name,
			URL:      link,
			Offers:   offers[name],
		})
	}
	return platforms
}

// splitGenres accepts a list whose entries may themselves be comma-joined
func splitGenres(values []string) []string {
	genres := []string{}
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				genres = append(genres, part)
			}
		}
	}
	return genres
}

// isoDate keeps only well-formed dates; anything else becomes empty
func isoDate(value string) string {
	if d := models.ParseDatePtr(value); d != nil {
		return d.String()
	}
	return ""
}
