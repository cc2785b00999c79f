// Package selection resolves which exposures a planning run operates on.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"specplane/internal/exposure"
)

// Criteria narrows the exposures considered for planning. The zero-ish
// value (TileID -1, everything else empty) selects all loaded science
// exposures.
type Criteria struct {
	// TileID restricts the selection to one tile. -1 means unrestricted;
	// tile ids themselves are never negative.
	TileID int64

	// Nights restricts which nights are considered. Empty means all.
	Nights []int64

	// ExpIDs restricts the selection to specific exposures.
	ExpIDs []int64

	// ListPath points at an external exposure list file. Ignored with a
	// warning when TileID, exactly one night and ExpIDs fully pin the
	// selection down.
	ListPath string

	// Group is the bundling policy the plans will use. Cumulative
	// selections expand to the tiles' full observation history.
	Group exposure.GroupKind
}

// ErrEmptySelection is returned when no exposures survive the criteria.
var ErrEmptySelection = errors.New("no exposures match the selection")

// InconsistentFilterError means the requested exposures belong to
// different tiles than the explicitly requested one.
type InconsistentFilterError struct {
	Requested int64
	Derived   []int64
}

func (e *InconsistentFilterError) Error() string {
	return fmt.Sprintf("exposure ids resolve to tiles %v, not the requested tile %d", e.Derived, e.Requested)
}

// Loader is the slice of the exposure loader the selector needs.
type Loader interface {
	Load(ctx context.Context, nights []int64) ([]exposure.Record, error)
}

// Selector turns criteria into the concrete exposure set to plan over.
type Selector struct {
	loader Loader
	log    *slog.Logger
}

// New creates a selector on top of the given loader.
func New(loader Loader, log *slog.Logger) *Selector {
	return &Selector{loader: loader, log: log}
}

// Result is a resolved selection: the candidate exposures and the tiles
// they belong to, in first-seen order.
type Result struct {
	Records []exposure.Record
	TileIDs []int64
}

// Select resolves the criteria. Candidate sources take precedence in
// this order: fully pinned-down criteria synthesize records directly, an
// external list file is read next, and otherwise the loaded exposure
// tables serve. Explicit exposure or tile filters then narrow the set,
// and cumulative selections expand to the tiles' full history.
func (s *Selector) Select(ctx context.Context, c Criteria) (*Result, error) {
	records, synthesized, err := s.candidates(ctx, c)
	if err != nil {
		return nil, err
	}

	var tiles []int64
	switch {
	case synthesized:
		tiles = []int64{c.TileID}
	case len(c.ExpIDs) > 0:
		records = filterExpIDs(records, c.ExpIDs)
		tiles = distinctTiles(records)
		if c.TileID >= 0 && !singleTile(tiles, c.TileID) {
			return nil, &InconsistentFilterError{Requested: c.TileID, Derived: tiles}
		}
	case c.TileID >= 0:
		records = filterTile(records, c.TileID)
		tiles = distinctTiles(records)
	default:
		tiles = distinctTiles(records)
	}

	if len(records) == 0 {
		return nil, ErrEmptySelection
	}

	if c.Group == exposure.GroupCumulative {
		records, tiles, err = s.expandCumulative(ctx, tiles)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ErrEmptySelection
		}
	}

	return &Result{Records: records, TileIDs: tiles}, nil
}

// candidates produces the raw exposure set before filtering. The second
// return value reports whether the records were synthesized from fully
// explicit criteria, in which case no further filtering applies.
func (s *Selector) candidates(ctx context.Context, c Criteria) ([]exposure.Record, bool, error) {
	if c.TileID >= 0 && len(c.Nights) == 1 && len(c.ExpIDs) > 0 {
		if c.ListPath != "" {
			s.log.Warn("exposure list ignored",
				"path", c.ListPath,
				"reason", "tile, night and exposure ids given explicitly")
		}
		records := make([]exposure.Record, 0, len(c.ExpIDs))
		for _, id := range c.ExpIDs {
			records = append(records, exposure.Record{TileID: c.TileID, Night: c.Nights[0], ExpID: id})
		}
		return records, true, nil
	}

	if c.ListPath != "" {
		tbl, err := exposure.ReadTable(c.ListPath)
		if err != nil {
			return nil, false, fmt.Errorf("read exposure list %s: %w", c.ListPath, err)
		}
		records, err := tbl.Records()
		if err != nil {
			return nil, false, fmt.Errorf("exposure list %s: %w", c.ListPath, err)
		}
		if len(c.Nights) > 0 {
			records = filterNights(records, c.Nights)
		}
		return records, false, nil
	}

	records, err := s.loader.Load(ctx, c.Nights)
	if err != nil {
		return nil, false, err
	}
	return records, false, nil
}

// expandCumulative reloads the full observation history and keeps every
// exposure of the selected tiles, regardless of any nights restriction.
// Running it on an already-expanded selection is a no-op.
func (s *Selector) expandCumulative(ctx context.Context, tiles []int64) ([]exposure.Record, []int64, error) {
	all, err := s.loader.Load(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("load history for cumulative expansion: %w", err)
	}

	keep := make(map[int64]bool, len(tiles))
	for _, t := range tiles {
		keep[t] = true
	}
	var records []exposure.Record
	for _, r := range all {
		if keep[r.TileID] {
			records = append(records, r)
		}
	}
	return records, distinctTiles(records), nil
}

func filterExpIDs(records []exposure.Record, expIDs []int64) []exposure.Record {
	want := make(map[int64]bool, len(expIDs))
	for _, id := range expIDs {
		want[id] = true
	}
	var out []exposure.Record
	for _, r := range records {
		if want[r.ExpID] {
			out = append(out, r)
		}
	}
	return out
}

func filterTile(records []exposure.Record, tileID int64) []exposure.Record {
	var out []exposure.Record
	for _, r := range records {
		if r.TileID == tileID {
			out = append(out, r)
		}
	}
	return out
}

func filterNights(records []exposure.Record, nights []int64) []exposure.Record {
	want := make(map[int64]bool, len(nights))
	for _, n := range nights {
		want[n] = true
	}
	var out []exposure.Record
	for _, r := range records {
		if want[r.Night] {
			out = append(out, r)
		}
	}
	return out
}

// distinctTiles returns the tile ids in first-seen order.
func distinctTiles(records []exposure.Record) []int64 {
	seen := make(map[int64]bool, len(records))
	var tiles []int64
	for _, r := range records {
		if !seen[r.TileID] {
			seen[r.TileID] = true
			tiles = append(tiles, r.TileID)
		}
	}
	return tiles
}

func singleTile(tiles []int64, want int64) bool {
	return len(tiles) == 1 && tiles[0] == want
}
