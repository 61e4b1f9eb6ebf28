package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/amaumene/releasewall/internal/models"
	"github.com/amaumene/releasewall/internal/services/tmdb"
	"github.com/sirupsen/logrus"
)

// Availability is the reconciled provider view of one title in one region
type Availability struct {
	Snapshot  models.ProviderSnapshot
	WatchLink string
}

// Reconcile folds a region's provider listing into canonical rent/buy/stream
// sets. Ad-supported and free offers count as streaming. Names are trimmed,
// deduplicated per category and sorted.
func Reconcile(id int64, payload *tmdb.WatchProvidersResponse, region string) Availability {
	availability := Availability{WatchLink: tmdb.WatchPageURL(id)}
	if payload == nil {
		return availability
	}

	listing, ok := payload.Results[strings.ToUpper(region)]
	if !ok {
		return availability
	}

	availability.Snapshot = models.ProviderSnapshot{
		Rent:   names(listing.Rent),
		Buy:    names(listing.Buy),
		Stream: names(listing.Flatrate, listing.Ads, listing.Free),
	}
	if listing.Link != "" {
		availability.WatchLink = listing.Link
	}
	return availability
}

func names(groups ...[]tmdb.Provider) []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range groups {
		for _, provider := range group {
			name := strings.TrimSpace(provider.ProviderName)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Transition describes what a provider check changed on a record
type Transition struct {
	Resolved bool // Tracking -> Resolved via providers
	Updated  bool // snapshot replaced
}

// Apply records a fresh snapshot on a record and fires the provider
// transition: a Tracking title whose previous snapshot was empty and whose
// fresh snapshot is not becomes Resolved via providers. A resolved title
// never reverts, and an empty fresh snapshot never erases a known one.
func Apply(record *models.TitleRecord, fresh Availability, today models.Date) Transition {
	var transition Transition
	hadProviders := !record.Providers.Empty()

	stamp := today
	record.LastProviderCheck = &stamp

	if fresh.Snapshot.Empty() {
		return transition
	}

	record.SetProviders(fresh.Snapshot)
	if fresh.WatchLink != "" {
		record.WatchLink = fresh.WatchLink
	}
	transition.Updated = true

	if record.Availability == models.AvailabilityTracking && !hadProviders {
		record.Availability = models.AvailabilityResolved
		record.DetectedVia = models.ProvenanceProviders
		detected := today
		record.DigitalDetectedDate = &detected
		transition.Resolved = true
	}
	return transition
}

// Source fetches raw provider payloads
type Source interface {
	WatchProviders(ctx context.Context, id int64) (*tmdb.WatchProvidersResponse, error)
}

// Reconciler fetches and reconciles providers title by title
type Reconciler struct {
	source Source
	region string
	logger *logrus.Logger
}

// NewReconciler creates a new provider reconciler for one region
func NewReconciler(source Source, region string, logger *logrus.Logger) *Reconciler {
	return &Reconciler{source: source, region: region, logger: logger}
}

// Lookup fetches and reconciles one title's providers
func (r *Reconciler) Lookup(ctx context.Context, id int64) (*Availability, error) {
	payload, err := r.source.WatchProviders(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile providers for %d: %w", id, err)
	}

	availability := Reconcile(id, payload, r.region)
	r.logger.WithFields(logrus.Fields{
		"tmdb_id":   id,
		"region":    r.region,
		"providers": availability.Snapshot.Count(),
	}).Debug("Reconciled providers")
	return &availability, nil
}
