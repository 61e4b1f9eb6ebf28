package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.ObserveAPI("tmdb", "success")
	m.ObserveAPI("tmdb", "success")
	m.ObserveAPI("omdb", "transient")
	m.AddTitles("daily", "added", 3)
	m.AddTitles("daily", "failed", 0)
	m.ObserveRun("daily", 2*time.Second)
	m.SetTracked(5, 2)

	if got := testutil.ToFloat64(m.apiRequests.WithLabelValues("tmdb", "success")); got != 2 {
		t.Errorf("expected 2 tmdb successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.titleOutcomes.WithLabelValues("daily", "added")); got != 3 {
		t.Errorf("expected 3 added titles, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`releasewall_api_requests_total{outcome="transient",service="omdb"} 1`,
		`releasewall_tracked_titles{status="resolved"} 5`,
		`releasewall_run_duration_seconds_count{kind="daily"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
	if strings.Contains(string(body), `outcome="failed"`) {
		t.Error("zero additions should not create a series")
	}
}
