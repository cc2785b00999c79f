// Package exposure defines science exposure records and the loader that
// reads per-night exposure tables from disk.
package exposure

import "fmt"

// Record identifies one science exposure of one tile on one night.
// Records are plain values; a planning run builds them once and never
// mutates them.
type Record struct {
	TileID int64
	Night  int64 // YYYYMMDD
	ExpID  int64
}

// ExpIDString returns the zero-padded exposure ID used in file names,
// output keys and labels.
func (r Record) ExpIDString() string {
	return fmt.Sprintf("%08d", r.ExpID)
}

// GroupKind names the policy for bundling a tile's exposures into jobs.
// The standard kinds get reserved output layouts; anything else is a
// custom bundle written under tiles/<kind>/<tile>.
type GroupKind string

const (
	// GroupCumulative bundles every exposure of the tile observed on or
	// before the reference night.
	GroupCumulative GroupKind = "cumulative"

	// GroupPernight bundles the tile's exposures of a single night.
	GroupPernight GroupKind = "pernight"

	// GroupPerexp makes one job per exposure.
	GroupPerexp GroupKind = "perexp"

	// GroupPernightV0 is the legacy per-night layout without the
	// pernight/ path segment. Kept for reprocessing old runs.
	GroupPernightV0 GroupKind = "pernight-v0"
)

// Standard reports whether the kind has a reserved output layout.
func (g GroupKind) Standard() bool {
	switch g {
	case GroupCumulative, GroupPernight, GroupPerexp, GroupPernightV0:
		return true
	}
	return false
}
