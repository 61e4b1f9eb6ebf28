package tmdb

// Movie is one discovery or search result
type Movie struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title"`
	OriginalLanguage string  `json:"original_language"`
	Overview         string  `json:"overview"`
	ReleaseDate      string  `json:"release_date"`
	PosterPath       string  `json:"poster_path"`
	GenreIDs         []int   `json:"genre_ids"`
	Popularity       float64 `json:"popularity"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
}

// DisplayTitle returns the localized title, falling back to the original one
func (m Movie) DisplayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	return m.OriginalTitle
}

// PagedMovies is the paginated discover/search payload
type PagedMovies struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// ReleaseDatesResponse is the /movie/{id}/release_dates payload
type ReleaseDatesResponse struct {
	ID      int64            `json:"id"`
	Results []ReleaseCountry `json:"results"`
}

// ReleaseCountry groups release entries for one country
type ReleaseCountry struct {
	ISO31661     string         `json:"iso_3166_1"`
	ReleaseDates []ReleaseEntry `json:"release_dates"`
}

// ReleaseEntry is a single (type, date) pair
type ReleaseEntry struct {
	Certification string `json:"certification"`
	Note          string `json:"note"`
	ReleaseDate   string `json:"release_date"`
	Type          int    `json:"type"`
}

// WatchProvidersResponse is the /movie/{id}/watch/providers payload
type WatchProvidersResponse struct {
	ID      int64                      `json:"id"`
	Results map[string]RegionProviders `json:"results"`
}

// RegionProviders lists providers per monetization category for one region
type RegionProviders struct {
	Link     string     `json:"link"`
	Flatrate []Provider `json:"flatrate"`
	Rent     []Provider `json:"rent"`
	Buy      []Provider `json:"buy"`
	Ads      []Provider `json:"ads"`
	Free     []Provider `json:"free"`
}

// Provider is one storefront or streaming service
type Provider struct {
	ProviderID      int    `json:"provider_id"`
	ProviderName    string `json:"provider_name"`
	DisplayPriority int    `json:"display_priority"`
	LogoPath        string `json:"logo_path"`
}

// Genre is an id/name pair
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Company is a production company
type Company struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Details is the /movie/{id} payload
type Details struct {
	ID                  int64     `json:"id"`
	IMDBID              string    `json:"imdb_id"`
	Title               string    `json:"title"`
	OriginalLanguage    string    `json:"original_language"`
	Overview            string    `json:"overview"`
	ReleaseDate         string    `json:"release_date"`
	Runtime             int       `json:"runtime"`
	PosterPath          string    `json:"poster_path"`
	Genres              []Genre   `json:"genres"`
	ProductionCompanies []Company `json:"production_companies"`
	Popularity          float64   `json:"popularity"`
	VoteAverage         float64   `json:"vote_average"`
	VoteCount           int       `json:"vote_count"`
}

// Studio returns the first production company, if any
func (d *Details) Studio() string {
	if len(d.ProductionCompanies) == 0 {
		return ""
	}
	return d.ProductionCompanies[0].Name
}

// Credits is the /movie/{id}/credits payload
type Credits struct {
	ID   int64        `json:"id"`
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// CastMember is a billed actor
type CastMember struct {
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

// CrewMember is a crew credit
type CrewMember struct {
	Name string `json:"name"`
	Job  string `json:"job"`
}

// Directors returns up to limit director names
func (c *Credits) Directors(limit int) []string {
	var names []string
	for _, member := range c.Crew {
		if member.Job == "Director" {
			names = append(names, member.Name)
			if len(names) == limit {
				break
			}
		}
	}
	return names
}

// TopCast returns up to limit cast names in billing order
func (c *Credits) TopCast(limit int) []string {
	var names []string
	for _, member := range c.Cast {
		names = append(names, member.Name)
		if len(names) == limit {
			break
		}
	}
	return names
}

// ExternalIDs is the /movie/{id}/external_ids payload
type ExternalIDs struct {
	ID     int64  `json:"id"`
	IMDBID string `json:"imdb_id"`
}

// VideoList is the /movie/{id}/videos payload
type VideoList struct {
	ID      int64   `json:"id"`
	Results []Video `json:"results"`
}

// Video is a trailer, teaser or clip
type Video struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

// TrailerURL picks the official YouTube trailer, falling back to any YouTube
// trailer. Returns "" when none exists.
func (v *VideoList) TrailerURL() string {
	var best *Video
	for i := range v.Results {
		video := &v.Results[i]
		if video.Site != "YouTube" || video.Type != "Trailer" || video.Key == "" {
			continue
		}
		if video.Official {
			best = video
			break
		}
		if best == nil {
			best = video
		}
	}
	if best == nil {
		return ""
	}
	return "https://www.youtube.com/watch?v=" + best.Key
}
