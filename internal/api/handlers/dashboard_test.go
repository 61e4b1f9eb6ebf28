package handlers

import (
	"net/url"
	"testing"

	"github.com/amaumene/releasewall/internal/adapter"
	"github.com/amaumene/releasewall/internal/models"
	"github.com/stretchr/testify/assert"
)

type fixedSelections map[int64]models.Selection

func (f fixedSelections) Get(id int64) models.Selection {
	if s, ok := f[id]; ok {
		return s
	}
	return models.SelectionPending
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Query
	}{
		{name: "defaults", query: "", want: Query{Status: "all", Page: 1, PerPage: 24}},
		{name: "search is trimmed and lowered", query: "q=%20Heat%20", want: Query{Search: "heat", Status: "all", Page: 1, PerPage: 24}},
		{name: "known status", query: "status=approve&page=3", want: Query{Status: "approve", Page: 3, PerPage: 24}},
		{name: "unknown status", query: "status=maybe", want: Query{Status: "all", Page: 1, PerPage: 24}},
		{name: "per page capped", query: "per_page=500", want: Query{Status: "all", Page: 1, PerPage: 60}},
		{name: "garbage numbers", query: "page=-2&per_page=x", want: Query{Status: "all", Page: 1, PerPage: 24}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, ParseQuery(values))
		})
	}
}

func TestFilter(t *testing.T) {
	titles := []adapter.Title{
		{ID: "1", Title: "Alpha"},
		{ID: "2", Title: "Beta", Studio: "Alpha Studios"},
		{ID: "scraped:2024", Title: "Gamma"},
	}
	selections := fixedSelections{1: models.SelectionApproved}

	assert.Len(t, Filter(titles, Query{Search: "alpha", Status: statusAll}, selections), 2)
	assert.Len(t, Filter(titles, Query{Status: "pending"}, selections), 2, "non-numeric ids count as pending")

	approved := Filter(titles, Query{Status: "approve"}, selections)
	if assert.Len(t, approved, 1) {
		assert.Equal(t, "Alpha", approved[0].Title)
	}
}
