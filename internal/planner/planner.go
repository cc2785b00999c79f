package planner

import (
	"log/slog"

	"specplane/internal/exposure"
	"specplane/internal/selection"
)

// Plan partitions a resolved selection into job plans, one per tile in
// the selection's tile order, or one per exposure for perexp runs.
// Custom group kinds are allowed but get a warning since their outputs
// land outside the standard layout.
func Plan(sel *selection.Result, group exposure.GroupKind, log *slog.Logger) ([]JobPlan, error) {
	if !group.Standard() {
		log.Warn("non-standard group kind, outputs use the custom layout",
			"group", string(group))
	}

	byTile := make(map[int64][]exposure.Record, len(sel.TileIDs))
	for _, r := range sel.Records {
		byTile[r.TileID] = append(byTile[r.TileID], r)
	}

	var plans []JobPlan
	for _, tile := range sel.TileIDs {
		exposures := byTile[tile]
		if len(exposures) == 0 {
			continue
		}

		if group == exposure.GroupPerexp {
			for _, e := range exposures {
				plan, err := NewJobPlan(tile, group, []exposure.Record{e})
				if err != nil {
					return nil, err
				}
				plans = append(plans, plan)
			}
			continue
		}

		plan, err := NewJobPlan(tile, group, exposures)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}
