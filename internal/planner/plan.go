// Package planner turns selected exposures into per-tile job plans.
package planner

import (
	"fmt"
	"sort"

	"specplane/internal/exposure"
)

// JobPlan describes one batch job for one tile: which exposures it
// bundles, under which grouping policy, and where its outputs go.
// Plans are pure in-memory records; nothing is shared between them.
type JobPlan struct {
	TileID         int64
	Group          exposure.GroupKind
	Exposures      []exposure.Record
	ReferenceNight int64
}

// InvalidGroupError means a plan was built with an exposure set the
// group kind cannot carry. It indicates a caller bug, not bad input.
type InvalidGroupError struct {
	Group exposure.GroupKind
	Count int
}

func (e *InvalidGroupError) Error() string {
	return fmt.Sprintf("%s plan requires exactly one exposure, got %d", e.Group, e.Count)
}

// NewJobPlan builds a plan for one tile. Exposures are sorted night
// ascending (ties keep their given order) and the reference night is
// the latest night in the set. A perexp plan must carry exactly one
// exposure.
func NewJobPlan(tileID int64, group exposure.GroupKind, exposures []exposure.Record) (JobPlan, error) {
	if len(exposures) == 0 {
		return JobPlan{}, fmt.Errorf("tile %d: plan needs at least one exposure", tileID)
	}
	if group == exposure.GroupPerexp && len(exposures) != 1 {
		return JobPlan{}, &InvalidGroupError{Group: group, Count: len(exposures)}
	}

	sorted := append([]exposure.Record(nil), exposures...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Night < sorted[j].Night })

	return JobPlan{
		TileID:         tileID,
		Group:          group,
		Exposures:      sorted,
		ReferenceNight: sorted[len(sorted)-1].Night,
	}, nil
}

// OutputKey returns the plan's output directory relative to the
// reduction root.
//
//	cumulative   tiles/cumulative/{tile}/{refnight}
//	pernight     tiles/pernight/{tile}/{refnight}
//	perexp       tiles/perexp/{tile}/{expid}
//	pernight-v0  tiles/{tile}/{refnight}
//	custom       tiles/{kind}/{tile}
func (p JobPlan) OutputKey() string {
	switch p.Group {
	case exposure.GroupCumulative:
		return fmt.Sprintf("tiles/cumulative/%d/%d", p.TileID, p.ReferenceNight)
	case exposure.GroupPernight:
		return fmt.Sprintf("tiles/pernight/%d/%d", p.TileID, p.ReferenceNight)
	case exposure.GroupPerexp:
		return fmt.Sprintf("tiles/perexp/%d/%s", p.TileID, p.Exposures[0].ExpIDString())
	case exposure.GroupPernightV0:
		return fmt.Sprintf("tiles/%d/%d", p.TileID, p.ReferenceNight)
	default:
		return fmt.Sprintf("tiles/%s/%d", p.Group, p.TileID)
	}
}

// Label returns the human-readable job identifier used in file names,
// batch job names and the dashboard.
func (p JobPlan) Label() string {
	switch p.Group {
	case exposure.GroupCumulative:
		return fmt.Sprintf("%d-thru%d", p.TileID, p.ReferenceNight)
	case exposure.GroupPernight, exposure.GroupPernightV0:
		return fmt.Sprintf("%d-%d", p.TileID, p.ReferenceNight)
	case exposure.GroupPerexp:
		return fmt.Sprintf("%d-exp%s", p.TileID, p.Exposures[0].ExpIDString())
	default:
		return fmt.Sprintf("%d-%s", p.TileID, p.Group)
	}
}
