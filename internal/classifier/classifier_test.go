package classifier

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/amaumene/releasewall/internal/services/omdb"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaults = Thresholds{
	PopularVotes:       20,
	TrendingPopularity: 10,
	PrimaryLanguage:    "en",
	LanguageMinVotes:   3,
	ReviewVoteFloor:    10,
}

type fakeReviews struct {
	ratings omdb.Ratings
	err     error
	calls   int
}

func (f *fakeReviews) Lookup(_ context.Context, _ string, _ int, _ string) (omdb.Ratings, error) {
	f.calls++
	return f.ratings, f.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func intPtr(v int) *int { return &v }

func TestClassifyTiers(t *testing.T) {
	tests := []struct {
		name      string
		candidate Candidate
		ratings   omdb.Ratings
		wantTier  Tier
		reason    string
	}{
		{
			name:      "popular",
			candidate: Candidate{Title: "A", VoteCount: 25, Popularity: 1},
			wantTier:  TierPopular,
			reason:    ReasonPopular,
		},
		{
			name:      "trending",
			candidate: Candidate{Title: "B", VoteCount: 2, Popularity: 14.2},
			wantTier:  TierTrending,
			reason:    ReasonTrending,
		},
		{
			name:      "primary language",
			candidate: Candidate{Title: "C", VoteCount: 3, OriginalLanguage: "en"},
			wantTier:  TierLanguage,
			reason:    ReasonLanguage,
		},
		{
			name:      "reviews",
			candidate: Candidate{Title: "D", OriginalLanguage: "ko"},
			ratings:   omdb.Ratings{CriticScore: intPtr(88)},
			wantTier:  TierReviews,
			reason:    ReasonReviews,
		},
		{
			name:      "audience votes at floor do not count",
			candidate: Candidate{Title: "E", ReleaseDate: "2024-03-01"},
			ratings:   omdb.Ratings{AudienceVotes: intPtr(10)},
			wantTier:  TierCatchAll,
			reason:    ReasonCatchAll,
		},
		{
			name:      "no title and no date",
			candidate: Candidate{VoteCount: 1},
			wantTier:  TierNone,
		},
		{
			name:      "malformed date",
			candidate: Candidate{Title: "F", ReleaseDate: "TBA"},
			wantTier:  TierNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(defaults, &fakeReviews{ratings: tt.ratings}, quietLogger())
			decision := c.Classify(context.Background(), tt.candidate)
			assert.Equal(t, tt.wantTier, decision.Tier)
			assert.Equal(t, tt.reason, decision.Reason)
			assert.Equal(t, tt.wantTier != TierNone, decision.Include)
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	reviews := &fakeReviews{}
	c := NewClassifier(defaults, reviews, quietLogger())

	decision := c.Classify(context.Background(), Candidate{Title: "Both", VoteCount: 40, OriginalLanguage: "en"})

	assert.Equal(t, ReasonPopular, decision.Reason)
	assert.Zero(t, reviews.calls, "later tiers must not be evaluated")
}

func TestClassifyCatchAllScenario(t *testing.T) {
	reviews := &fakeReviews{}
	c := NewClassifier(defaults, reviews, quietLogger())

	decision := c.Classify(context.Background(), Candidate{
		Title:            "Le Petit Jour",
		ReleaseDate:      "2024-03-01",
		VoteCount:        5,
		Popularity:       2,
		OriginalLanguage: "fr",
	})

	require.True(t, decision.Include)
	assert.Equal(t, TierCatchAll, decision.Tier)
	assert.Contains(t, decision.Reason, "recent release")
	assert.Equal(t, 1, reviews.calls)
	assert.Nil(t, decision.Reviews)
}

func TestClassifyReviewFailureFallsThrough(t *testing.T) {
	c := NewClassifier(defaults, &fakeReviews{err: errors.New("unavailable")}, quietLogger())

	decision := c.Classify(context.Background(), Candidate{Title: "G", ReleaseDate: "2024-01-01"})

	assert.Equal(t, TierCatchAll, decision.Tier)
}

func TestClassifyWithoutRatingsSource(t *testing.T) {
	c := NewClassifier(defaults, nil, quietLogger())

	decision := c.Classify(context.Background(), Candidate{Title: "H", ReleaseDate: "2024-01-01"})

	assert.Equal(t, TierCatchAll, decision.Tier)
}

func TestReviewDecisionCarriesPayload(t *testing.T) {
	ratings := omdb.Ratings{Metascore: intPtr(71), AudienceVotes: intPtr(250)}
	c := NewClassifier(defaults, &fakeReviews{ratings: ratings}, quietLogger())

	decision := c.Classify(context.Background(), Candidate{Title: "I"})

	require.NotNil(t, decision.Reviews)
	assert.Equal(t, "Meta: 71 | IMDB: 250 votes", decision.Detail)
}
