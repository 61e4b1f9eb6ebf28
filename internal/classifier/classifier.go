package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/amaumene/releasewall/internal/config"
	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/services/omdb"
	"github.com/sirupsen/logrus"
)

// Tier is one ranked inclusion rule; lower values win
type Tier int

const (
	TierNone Tier = iota
	TierPopular
	TierTrending
	TierLanguage
	TierReviews
	TierCatchAll
)

// Reasons attached to each tier
const (
	ReasonPopular  = "popular"
	ReasonTrending = "trending"
	ReasonLanguage = "language + minimal activity"
	ReasonReviews  = "has reviews"
	ReasonCatchAll = "recent release, no other signal"
)

// Candidate is the catalog signal available for a title at discovery time
type Candidate struct {
	ID               int64
	Title            string
	ReleaseDate      string
	OriginalLanguage string
	VoteCount        int
	Popularity       float64
	IMDBID           string
}

// Year returns the release year or 0 when the date does not parse
func (c Candidate) Year() int {
	if d := models.ParseDatePtr(c.ReleaseDate); d != nil {
		return d.Year()
	}
	return 0
}

// Decision is the classifier verdict with its audit trail
type Decision struct {
	Include bool
	Tier    Tier
	Reason  string
	Detail  string
	Reviews *omdb.Ratings
}

// Thresholds are the tunable tier limits
type Thresholds struct {
	PopularVotes       int
	TrendingPopularity float64
	PrimaryLanguage    string
	LanguageMinVotes   int
	ReviewVoteFloor    int
}

// ThresholdsFromConfig reads the tier limits from configuration
func ThresholdsFromConfig(cfg *config.Config) Thresholds {
	return Thresholds{
		PopularVotes:       cfg.PopularVotes,
		TrendingPopularity: cfg.TrendingPopularity,
		PrimaryLanguage:    cfg.PrimaryLanguage,
		LanguageMinVotes:   cfg.LanguageMinVotes,
		ReviewVoteFloor:    cfg.ReviewVoteFloor,
	}
}

// ReviewLookup checks a ratings source for critic or audience signal
type ReviewLookup interface {
	Lookup(ctx context.Context, title string, year int, imdbID string) (omdb.Ratings, error)
}

// Classifier decides whether a discovered title is worth surfacing
type Classifier struct {
	thresholds Thresholds
	reviews    ReviewLookup
	logger     *logrus.Logger
}

// NewClassifier creates a new classifier. reviews may be nil, in which case
// the review tier never fires.
func NewClassifier(thresholds Thresholds, reviews ReviewLookup, logger *logrus.Logger) *Classifier {
	return &Classifier{thresholds: thresholds, reviews: reviews, logger: logger}
}

// Classify evaluates the tiers in order; the first match wins
func (c *Classifier) Classify(ctx context.Context, candidate Candidate) Decision {
	t := c.thresholds

	if candidate.VoteCount >= t.PopularVotes {
		return include(TierPopular, ReasonPopular, fmt.Sprintf("TMDB popular (%d votes)", candidate.VoteCount))
	}
	if candidate.Popularity >= t.TrendingPopularity {
		return include(TierTrending, ReasonTrending, fmt.Sprintf("Trending (pop: %.1f)", candidate.Popularity))
	}
	if t.PrimaryLanguage != "" && strings.EqualFold(candidate.OriginalLanguage, t.PrimaryLanguage) && candidate.VoteCount >= t.LanguageMinVotes {
		return include(TierLanguage, ReasonLanguage, fmt.Sprintf("%s film (%d votes)", strings.ToLower(t.PrimaryLanguage), candidate.VoteCount))
	}

	if c.reviews != nil && strings.TrimSpace(candidate.Title) != "" {
		ratings, err := c.reviews.Lookup(ctx, candidate.Title, candidate.Year(), candidate.IMDBID)
		if err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"tmdb_id": candidate.ID,
				"title":   candidate.Title,
			}).Warn("Review lookup failed, continuing without review signal")
		} else if detail, ok := reviewSignal(ratings, t.ReviewVoteFloor); ok {
			decision := include(TierReviews, ReasonReviews, detail)
			decision.Reviews = &ratings
			return decision
		}
	}

	if strings.TrimSpace(candidate.Title) != "" && models.ParseDatePtr(candidate.ReleaseDate) != nil {
		return include(TierCatchAll, ReasonCatchAll, "Recent release")
	}

	return Decision{Tier: TierNone, Detail: "No qualifying criteria"}
}

func include(tier Tier, reason, detail string) Decision {
	return Decision{Include: true, Tier: tier, Reason: reason, Detail: detail}
}

// reviewSignal reports whether ratings carry a critic score or enough audience
// votes, and formats them for the audit trail
func reviewSignal(r omdb.Ratings, voteFloor int) (string, bool) {
	var parts []string
	if r.CriticScore != nil {
		parts = append(parts, fmt.Sprintf("RT: %d%%", *r.CriticScore))
	}
	if r.Metascore != nil {
		parts = append(parts, fmt.Sprintf("Meta: %d", *r.Metascore))
	}
	if r.AudienceVotes != nil && *r.AudienceVotes > voteFloor {
		parts = append(parts, fmt.Sprintf("IMDB: %d votes", *r.AudienceVotes))
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " | "), true
}
