package models

// Availability is the digital availability state of a tracked title.
// Tracking -> Resolved is the only allowed transition.
type Availability string

const (
	AvailabilityTracking Availability = "tracking"
	AvailabilityResolved Availability = "resolved"
)

// Provenance records why a title was marked resolved
type Provenance string

const (
	ProvenanceNone        Provenance = ""
	ProvenanceReleaseDate Provenance = "release_date"
	ProvenanceProviders   Provenance = "providers"
	ProvenanceManual      Provenance = "manual"
)

// ReleaseType is the catalog's release category. Values are fixed by the
// TMDB API contract.
type ReleaseType int

const (
	ReleasePremiere   ReleaseType = 1
	ReleaseLimited    ReleaseType = 2
	ReleaseTheatrical ReleaseType = 3
	ReleaseDigital    ReleaseType = 4
	ReleasePhysical   ReleaseType = 5
	ReleaseTV         ReleaseType = 6
)

// Valid reports whether t is one of the six known categories
func (t ReleaseType) Valid() bool {
	return t >= ReleasePremiere && t <= ReleaseTV
}

func (t ReleaseType) String() string {
	switch t {
	case ReleasePremiere:
		return "premiere"
	case ReleaseLimited:
		return "limited"
	case ReleaseTheatrical:
		return "theatrical"
	case ReleaseDigital:
		return "digital"
	case ReleasePhysical:
		return "physical"
	case ReleaseTV:
		return "tv"
	default:
		return "unknown"
	}
}

// Selection is a moderation decision for a title
type Selection string

const (
	SelectionPending  Selection = "pending"
	SelectionApproved Selection = "approve"
	SelectionRejected Selection = "reject"
)

// ParseSelection maps a user-supplied action to a Selection
func ParseSelection(value string) (Selection, bool) {
	switch Selection(value) {
	case SelectionPending, SelectionApproved, SelectionRejected:
		return Selection(value), true
	}
	return "", false
}

// RunKind identifies the batch command that produced a RunRecord
type RunKind string

const (
	RunBootstrap      RunKind = "bootstrap"
	RunDaily          RunKind = "daily"
	RunCheckProviders RunKind = "check_providers"
	RunManualAdd      RunKind = "manual_add"
	RunRefresh        RunKind = "refresh"
	RunWall           RunKind = "wall"
	RunSite           RunKind = "site"
)

// ParseRunKind maps a user-supplied kind to a RunKind
func ParseRunKind(value string) (RunKind, bool) {
	switch kind := RunKind(value); kind {
	case RunBootstrap, RunDaily, RunCheckProviders, RunManualAdd, RunRefresh, RunWall, RunSite:
		return kind, true
	}
	return "", false
}
