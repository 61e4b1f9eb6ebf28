package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/amaumene/releasewall/internal/controllers"
	"github.com/amaumene/releasewall/internal/models"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B", "C"}, [][]string{{"one"}, {"x", "y", "z"}}, []columnAlignment{alignLeft, alignRight})
	lines := strings.Split(out, "\n")

	assert.Contains(t, out, "one")
	assert.Contains(t, out, "z")
	for _, line := range lines[1:] {
		assert.Equal(t, len([]rune(lines[0])), len([]rune(line)), "rows must be padded to the header width")
	}
	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestColorizeSkipsNonTerminals(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, shouldColorize(&buf))
	assert.Equal(t, "42", colorize(&buf, "42", text.Colors{text.FgGreen}))
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &controllers.Summary{Kind: models.RunDaily, Added: 3, ViaProviders: 2, StillTracking: 7})

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "daily summary\n"))
	assert.Contains(t, out, "Available via providers")
	assert.Contains(t, out, "Still tracking")
}

func TestPrintWallResultSortsTiers(t *testing.T) {
	var buf bytes.Buffer
	printWallResult(&buf, &controllers.WallResult{
		Included: 3,
		Tiers:    map[string]int{"trending": 1, "catch_all": 1, "popular": 1},
	})

	out := buf.String()
	catchAll := strings.Index(out, "via catch_all")
	popular := strings.Index(out, "via popular")
	trending := strings.Index(out, "via trending")
	assert.True(t, catchAll >= 0 && catchAll < popular && popular < trending, out)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "never", formatTime(nil))
	assert.Equal(t, "-", formatDate(nil))
}
