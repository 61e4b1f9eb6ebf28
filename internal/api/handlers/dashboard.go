package handlers

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/amaumene/releasewall/internal/adapter"
	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/site"
	"github.com/amaumene/releasewall/internal/tracking"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

//go:embed templates/*
var templateFS embed.FS

// Pagination limits
const (
	defaultPerPage = 24
	maxPerPage     = 60
)

// statusAll disables the selection filter
const statusAll = "all"

// DashboardHandler serves the moderation dashboard over the data.json feed
type DashboardHandler struct {
	fs         afero.Fs
	dataFile   string
	selections *tracking.Selections
	page       *template.Template
	logger     *logrus.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(fs afero.Fs, dataFile string, selections *tracking.Selections, logger *logrus.Logger) (*DashboardHandler, error) {
	page, err := template.New("dashboard.html.tmpl").Funcs(template.FuncMap{
		"join": strings.Join,
		"list": func(items ...string) []string { return items },
	}).ParseFS(templateFS, "templates/dashboard.html.tmpl")
	if err != nil {
		return nil, err
	}
	return &DashboardHandler{
		fs:         fs,
		dataFile:   dataFile,
		selections: selections,
		page:       page,
		logger:     logger,
	}, nil
}

// Query is the dashboard filter state carried across requests
type Query struct {
	Search  string
	Status  string
	Page    int
	PerPage int
}

// ParseQuery reads q, status, page and per_page, clamping invalid values
func ParseQuery(values url.Values) Query {
	q := Query{
		Search:  strings.ToLower(strings.TrimSpace(values.Get("q"))),
		Status:  values.Get("status"),
		Page:    1,
		PerPage: defaultPerPage,
	}
	if _, ok := models.ParseSelection(q.Status); !ok {
		q.Status = statusAll
	}
	if page, err := strconv.Atoi(values.Get("page")); err == nil && page > 1 {
		q.Page = page
	}
	if perPage, err := strconv.Atoi(values.Get("per_page")); err == nil && perPage > 0 {
		q.PerPage = min(perPage, maxPerPage)
	}
	return q
}

// Values encodes the query for redirects and links
func (q Query) Values() url.Values {
	values := url.Values{}
	if q.Search != "" {
		values.Set("q", q.Search)
	}
	values.Set("status", q.Status)
	values.Set("page", strconv.Itoa(q.Page))
	values.Set("per_page", strconv.Itoa(q.PerPage))
	return values
}

// Row is one title on the dashboard
type Row struct {
	adapter.Title
	Selection models.Selection
}

type dashboardPage struct {
	Query    Query
	Rows     []Row
	Total    int
	Pages    int
	Counts   map[string]int
	PrevLink string
	NextLink string
	PerPages []int
}

// Index lists titles matching the query
func (h *DashboardHandler) Index(w http.ResponseWriter, r *http.Request) {
	query := ParseQuery(r.URL.Query())

	titles, err := h.loadTitles()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load data feed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	matched := Filter(titles, query, h.selections)
	pages := max(1, (len(matched)+query.PerPage-1)/query.PerPage)
	query.Page = min(query.Page, pages)
	start := (query.Page - 1) * query.PerPage
	end := min(start+query.PerPage, len(matched))

	page := dashboardPage{
		Query:    query,
		Total:    len(matched),
		Pages:    pages,
		Counts:   make(map[string]int),
		PerPages: []int{12, 24, 36, 48, 60},
	}
	for selection, n := range h.selections.Counts(titleIDs(titles)) {
		page.Counts[string(selection)] = n
	}
	for _, title := range matched[start:end] {
		page.Rows = append(page.Rows, Row{Title: title, Selection: h.selectionFor(title)})
	}
	if query.Page > 1 {
		prev := query
		prev.Page--
		page.PrevLink = "/?" + prev.Values().Encode()
	}
	if query.Page < pages {
		next := query
		next.Page++
		page.NextLink = "/?" + next.Values().Encode()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, page); err != nil {
		h.logger.WithError(err).Error("Failed to render dashboard")
	}
}

// Curate records a decision for one title and returns to the list
func (h *DashboardHandler) Curate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}
	selection, ok := models.ParseSelection(vars["action"])
	if !ok {
		http.Error(w, "Invalid action", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	if err := h.selections.Set(selection, id); err != nil {
		h.logger.WithError(err).WithField("tmdb_id", id).Error("Failed to save selection")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.logger.WithFields(logrus.Fields{"tmdb_id": id, "selection": selection}).Info("Title curated")

	http.Redirect(w, r, "/?"+ParseQuery(r.Form).Values().Encode(), http.StatusSeeOther)
}

// Bulk applies one decision to every title matching the submitted filter
func (h *DashboardHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	selection, ok := models.ParseSelection(r.PostForm.Get("action"))
	if !ok {
		http.Error(w, "Invalid action", http.StatusBadRequest)
		return
	}
	query := ParseQuery(r.PostForm)

	titles, err := h.loadTitles()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load data feed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	ids := titleIDs(Filter(titles, query, h.selections))
	if err := h.selections.Set(selection, ids...); err != nil {
		h.logger.WithError(err).Error("Failed to save selections")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.logger.WithFields(logrus.Fields{"count": len(ids), "selection": selection}).Info("Bulk curation applied")

	query.Page = 1
	http.Redirect(w, r, "/?"+query.Values().Encode(), http.StatusSeeOther)
}

// loadTitles reads the feed; a missing feed is an empty list
func (h *DashboardHandler) loadTitles() ([]adapter.Title, error) {
	titles, err := site.LoadData(h.fs, h.dataFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return titles, err
}

func (h *DashboardHandler) selectionFor(title adapter.Title) models.Selection {
	id, err := strconv.ParseInt(title.ID, 10, 64)
	if err != nil {
		return models.SelectionPending
	}
	return h.selections.Get(id)
}

// Filter keeps titles whose title, overview or studio contains the search
// text and whose selection matches the status filter
func Filter(titles []adapter.Title, query Query, selections site.SelectionReader) []adapter.Title {
	var out []adapter.Title
	for _, title := range titles {
		if query.Search != "" {
			haystack := strings.ToLower(strings.Join([]string{title.Title, title.Overview, title.Studio}, " "))
			if !strings.Contains(haystack, query.Search) {
				continue
			}
		}
		if query.Status != statusAll {
			selection := models.SelectionPending
			if id, err := strconv.ParseInt(title.ID, 10, 64); err == nil {
				selection = selections.Get(id)
			}
			if string(selection) != query.Status {
				continue
			}
		}
		out = append(out, title)
	}
	return out
}

// titleIDs returns the numeric catalog ids, skipping scraped ids
func titleIDs(titles []adapter.Title) []int64 {
	ids := make([]int64, 0, len(titles))
	for _, title := range titles {
		if id, err := strconv.ParseInt(title.ID, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
