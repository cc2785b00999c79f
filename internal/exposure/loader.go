package exposure

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// LoaderConfig holds the loader's filesystem and policy settings.
type LoaderConfig struct {
	// TableDir is the exposure table root, laid out as
	// <TableDir>/<YYYYMM>/exposure_table_<NIGHT>.csv.
	TableDir string

	// CutoverNight is the last night allowed to lack a table. A missing
	// table after it is logged as an error; either way the night is
	// excluded and the run continues.
	CutoverNight int64

	// MaxParallel bounds concurrent table reads. Defaults to 8.
	MaxParallel int
}

// Loader reads per-night exposure tables.
type Loader struct {
	cfg LoaderConfig
	log *slog.Logger
}

// NewLoader creates a loader over the given table directory.
func NewLoader(cfg LoaderConfig, log *slog.Logger) *Loader {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 8
	}
	return &Loader{cfg: cfg, log: log}
}

// TablePath returns the conventional path of one night's exposure table.
func (l *Loader) TablePath(night int64) string {
	return filepath.Join(l.cfg.TableDir,
		strconv.FormatInt(night/100, 10),
		fmt.Sprintf("exposure_table_%d.csv", night))
}

// Nights lists the nights that have a persisted exposure table, ascending.
func (l *Loader) Nights() ([]int64, error) {
	matches, err := filepath.Glob(filepath.Join(l.cfg.TableDir, "*", "exposure_table_*.csv"))
	if err != nil {
		return nil, err
	}
	nights := make([]int64, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "exposure_table_"), ".csv")
		night, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			continue
		}
		nights = append(nights, night)
	}
	sort.Slice(nights, func(i, j int) bool { return nights[i] < nights[j] })
	return nights, nil
}

// Load reads the exposure tables for the given nights and returns the
// merged science records, nights ascending and file order within each
// night. A nil or empty nights slice loads every night found under the
// table dir. Per-night reads run concurrently; the merge preserves the
// ordering regardless.
func (l *Loader) Load(ctx context.Context, nights []int64) ([]Record, error) {
	if len(nights) == 0 {
		all, err := l.Nights()
		if err != nil {
			return nil, fmt.Errorf("discover nights: %w", err)
		}
		nights = all
	} else {
		nights = sortedUnique(nights)
	}

	perNight := make([][]Record, len(nights))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.MaxParallel)
	for i, night := range nights {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			recs, err := l.loadNight(night)
			if err != nil {
				return err
			}
			perNight[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []Record
	for _, recs := range perNight {
		records = append(records, recs...)
	}
	return records, nil
}

func (l *Loader) loadNight(night int64) ([]Record, error) {
	path := l.TablePath(night)
	tbl, err := ReadTable(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if night > l.cfg.CutoverNight {
				l.log.Error("exposure table missing", "night", night, "path", path)
			} else {
				l.log.Debug("no exposure table for night", "night", night, "path", path)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("night %d: %w", night, err)
	}
	recs, err := tbl.Records()
	if err != nil {
		return nil, fmt.Errorf("night %d: %w", night, err)
	}
	return recs, nil
}

func sortedUnique(nights []int64) []int64 {
	out := append([]int64(nil), nights...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}
