package models

import "time"

// RunRecord summarises one batch command execution
type RunRecord struct {
	ID   string  `boltholdKey:"ID"`
	Kind RunKind `boltholdIndex:"Kind"`

	StartedAt  time.Time
	FinishedAt time.Time

	// Counts
	Examined       int
	Added          int
	Resolved       int
	ViaReleaseDate int
	ViaProviders   int
	Failed         int
	StillTracking  int

	Error string
}

// Duration returns the wall time of the run
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
