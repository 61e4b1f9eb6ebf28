package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/amaumene/releasewall/internal/adapter"
	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

//go:embed templates/*
var templateFS embed.FS

// undatedLabel heads the group of titles without an availability date
const undatedLabel = "Date unknown"

// SelectionReader returns the moderation decision for a title
type SelectionReader interface {
	Get(id int64) models.Selection
}

// DateGroup is one divider on the wall with the titles released that day
type DateGroup struct {
	Date   string
	Month  string
	Day    string
	Year   string
	Titles []Card
}

// Card is a title prepared for display
type Card struct {
	adapter.Title
	TrailerLink   string
	ProviderNames []string
}

// Page is the template input
type Page struct {
	SiteTitle   string
	WindowLabel string
	Region      string
	GeneratedAt string
	Count       int
	Groups      []DateGroup
}

// Generator renders the static wall
type Generator struct {
	fs        afero.Fs
	dir       string
	siteTitle string
	region    string
	html      *template.Template
	markdown  *texttemplate.Template
	logger    *logrus.Logger
}

// NewGenerator creates a new site generator writing into dir
func NewGenerator(fs afero.Fs, dir, siteTitle, region string, logger *logrus.Logger) (*Generator, error) {
	html, err := template.New("index.html.tmpl").Funcs(template.FuncMap{
		"join": strings.Join,
	}).ParseFS(templateFS, "templates/index.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}
	markdown, err := texttemplate.New("index.md.tmpl").Funcs(texttemplate.FuncMap{
		"join": strings.Join,
	}).ParseFS(templateFS, "templates/index.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse markdown template: %w", err)
	}

	return &Generator{
		fs:        fs,
		dir:       dir,
		siteTitle: siteTitle,
		region:    region,
		html:      html,
		markdown:  markdown,
		logger:    logger,
	}, nil
}

// Render writes index.html and index.md for titles, leaving out rejected
// ones. It returns the number of titles rendered.
func (g *Generator) Render(titles []adapter.Title, selections SelectionReader, windowLabel string, now time.Time) (int, error) {
	page := Page{
		SiteTitle:   g.siteTitle,
		WindowLabel: windowLabel,
		Region:      g.region,
		GeneratedAt: now.Format("2006-01-02 15:04"),
	}
	page.Groups = groupByDate(visible(titles, selections))
	for _, group := range page.Groups {
		page.Count += len(group.Titles)
	}

	var html bytes.Buffer
	if err := g.html.Execute(&html, page); err != nil {
		return 0, fmt.Errorf("render html: %w", err)
	}
	var markdown bytes.Buffer
	if err := g.markdown.Execute(&markdown, page); err != nil {
		return 0, fmt.Errorf("render markdown: %w", err)
	}

	if err := utils.WriteFileAtomic(g.fs, filepath.Join(g.dir, "index.html"), html.Bytes()); err != nil {
		return 0, err
	}
	if err := utils.WriteFileAtomic(g.fs, filepath.Join(g.dir, "index.md"), markdown.Bytes()); err != nil {
		return 0, err
	}

	g.logger.WithFields(logrus.Fields{
		"dir":    g.dir,
		"titles": page.Count,
		"groups": len(page.Groups),
	}).Info("Rendered site")
	return page.Count, nil
}

func visible(titles []adapter.Title, selections SelectionReader) []adapter.Title {
	if selections == nil {
		return titles
	}
	out := make([]adapter.Title, 0, len(titles))
	for _, title := range titles {
		if id, err := strconv.ParseInt(title.ID, 10, 64); err == nil && selections.Get(id) == models.SelectionRejected {
			continue
		}
		out = append(out, title)
	}
	return out
}

// groupByDate buckets titles by availability date, newest first, with
// undated titles last
func groupByDate(titles []adapter.Title) []DateGroup {
	buckets := make(map[string][]Card)
	for _, title := range titles {
		buckets[title.AvailabilityDate] = append(buckets[title.AvailabilityDate], newCard(title))
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == "" || keys[j] == "" {
			return keys[j] == ""
		}
		return keys[i] > keys[j]
	})

	groups := make([]DateGroup, 0, len(keys))
	for _, key := range keys {
		cards := buckets[key]
		sort.SliceStable(cards, func(i, j int) bool { return cards[i].Title.Title < cards[j].Title.Title })

		group := DateGroup{Date: key, Titles: cards}
		if d := models.ParseDatePtr(key); d != nil {
			t := d.Time()
			group.Month = strings.ToUpper(t.Format("Jan"))
			group.Day = strconv.Itoa(t.Day())
			group.Year = strconv.Itoa(t.Year())
		} else {
			group.Date = undatedLabel
		}
		groups = append(groups, group)
	}
	return groups
}

func newCard(title adapter.Title) Card {
	card := Card{Title: title, TrailerLink: title.TrailerURL}
	if card.TrailerLink == "" {
		query := title.Title
		if title.Year != nil {
			query += " " + strconv.Itoa(*title.Year)
		}
		card.TrailerLink = "https://www.youtube.com/results?search_query=" + url.QueryEscape(query+" trailer")
	}
	for _, platform := range title.Platforms {
		name := platform.Name
		if name == "" {
			name = platform.Platform
		}
		card.ProviderNames = append(card.ProviderNames, name)
	}
	return card
}
