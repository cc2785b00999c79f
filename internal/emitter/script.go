package emitter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"specplane/internal/planner"
)

// ScriptConfig holds the settings batch script generation needs beyond
// the plan itself. Zero values fall back to the pipeline defaults.
type ScriptConfig struct {
	// ReduxDir is the root of the reduction tree. Input frames are read
	// from <ReduxDir>/exposures and outputs land under the plan's
	// output key.
	ReduxDir string

	// ScriptDir is where generated scripts and their logs are written.
	ScriptDir string

	// Spectrographs is the number of spectrographs whose frames a tile
	// job processes. Petals 0 through Spectrographs-1 get a sub-job
	// each.
	Spectrographs int

	Queue      string
	Account    string
	Walltime   string
	Constraint string
	Nodes      int

	GroupCmd string
	CoaddCmd string
	ZFitCmd  string
}

// ScriptBuilder renders batch scripts for job plans. Rendering is
// deterministic: the same plan and config produce identical bytes, so
// re-planning a tile rewrites the same script in place.
type ScriptBuilder struct {
	cfg  ScriptConfig
	tmpl *template.Template
}

func NewScriptBuilder(cfg ScriptConfig) *ScriptBuilder {
	if cfg.ScriptDir == "" {
		cfg.ScriptDir = filepath.Join(cfg.ReduxDir, "run", "scripts", "tiles")
	}
	if cfg.Spectrographs <= 0 {
		cfg.Spectrographs = 10
	}
	if cfg.Queue == "" {
		cfg.Queue = "regular"
	}
	if cfg.Walltime == "" {
		cfg.Walltime = "01:00:00"
	}
	if cfg.Nodes <= 0 {
		cfg.Nodes = 1
	}
	if cfg.GroupCmd == "" {
		cfg.GroupCmd = "desi_group_spectra"
	}
	if cfg.CoaddCmd == "" {
		cfg.CoaddCmd = "desi_coadd_spectra"
	}
	if cfg.ZFitCmd == "" {
		cfg.ZFitCmd = "rrdesi"
	}
	return &ScriptBuilder{
		cfg:  cfg,
		tmpl: template.Must(template.New("batch").Parse(batchScript)),
	}
}

// ScriptPath returns where the plan's script is written.
func (b *ScriptBuilder) ScriptPath(plan planner.JobPlan) string {
	return filepath.Join(b.cfg.ScriptDir, "ztile-"+plan.Label()+".slurm")
}

// Render produces the batch script body for the plan.
func (b *ScriptBuilder) Render(plan planner.JobPlan) ([]byte, error) {
	sps := make([]int, b.cfg.Spectrographs)
	for i := range sps {
		sps[i] = i
	}
	expDirs := make([]string, 0, len(plan.Exposures))
	for _, rec := range plan.Exposures {
		expDirs = append(expDirs, fmt.Sprintf("%d/%s", rec.Night, rec.ExpIDString()))
	}

	data := scriptData{
		Label:         plan.Label(),
		JobName:       "ztile-" + plan.Label(),
		OutputDir:     filepath.Join(b.cfg.ReduxDir, plan.OutputKey()),
		FramesDir:     filepath.Join(b.cfg.ReduxDir, "exposures"),
		LogPath:       filepath.Join(b.cfg.ScriptDir, "ztile-"+plan.Label()+"-%j.log"),
		Queue:         b.cfg.Queue,
		Account:       b.cfg.Account,
		Walltime:      b.cfg.Walltime,
		Constraint:    b.cfg.Constraint,
		Nodes:         b.cfg.Nodes,
		Spectrographs: sps,
		ExpDirs:       expDirs,
		ExpCount:      len(plan.Exposures),
		GroupCmd:      b.cfg.GroupCmd,
		CoaddCmd:      b.cfg.CoaddCmd,
		ZFitCmd:       b.cfg.ZFitCmd,
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render batch script for %s: %w", plan.Label(), err)
	}
	return buf.Bytes(), nil
}

// Write renders the plan's script and writes it under the script
// directory, creating the directory as needed.
func (b *ScriptBuilder) Write(plan planner.JobPlan) (string, error) {
	body, err := b.Render(plan)
	if err != nil {
		return "", err
	}
	path := b.ScriptPath(plan)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create script dir: %w", err)
	}
	if err := os.WriteFile(path, body, 0o755); err != nil {
		return "", fmt.Errorf("write batch script: %w", err)
	}
	return path, nil
}

type scriptData struct {
	Label         string
	JobName       string
	OutputDir     string
	FramesDir     string
	LogPath       string
	Queue         string
	Account       string
	Walltime      string
	Constraint    string
	Nodes         int
	Spectrographs []int
	ExpDirs       []string
	ExpCount      int
	GroupCmd      string
	CoaddCmd      string
	ZFitCmd       string
}

// batchScript is the three stage tile job: group frames per
// spectrograph, coadd, fit redshifts. Every output is skipped when it
// already exists, so rerunning a script only fills gaps. Frame
// availability is resolved here at run time rather than at planning
// time, because frames may still be landing when the job is queued.
const batchScript = `#!/bin/bash
#SBATCH --job-name {{.JobName}}
#SBATCH --qos {{.Queue}}
{{- if .Account}}
#SBATCH --account {{.Account}}
{{- end}}
{{- if .Constraint}}
#SBATCH --constraint {{.Constraint}}
{{- end}}
#SBATCH --nodes {{.Nodes}}
#SBATCH --time {{.Walltime}}
#SBATCH --output {{.LogPath}}

set -u

label="{{.Label}}"
outdir="{{.OutputDir}}"
framedir="{{.FramesDir}}"
expdirs=({{range $i, $d := .ExpDirs}}{{if $i}} {{end}}"{{$d}}"{{end}})

mkdir -p "$outdir"

run_group() {
    local sp=$1
    local out="$outdir/spectra-$sp-$label.fits"
    if [ -f "$out" ]; then
        echo "spectra-$sp-$label.fits exists, skipping"
        return 0
    fi
    local frames=()
    local e f
    for e in "${expdirs[@]}"; do
        for f in "$framedir/$e"/cframe-[brz]"$sp"-*.fits; do
            [ -f "$f" ] && frames+=("$f")
        done
    done
    if [ ${#frames[@]} -eq 0 ]; then
        echo "no input frames for spectrograph $sp, skipping"
        return 0
    fi
    if [ ${#frames[@]} -lt $(( {{.ExpCount}} * 3 )) ]; then
        echo "warning: spectrograph $sp has ${#frames[@]} of $(( {{.ExpCount}} * 3 )) frames"
    fi
    {{.GroupCmd}} --frames "${frames[@]}" --outfile "$out"
}

run_coadd() {
    local sp=$1
    local in="$outdir/spectra-$sp-$label.fits"
    local out="$outdir/coadd-$sp-$label.fits"
    if [ ! -f "$in" ]; then
        return 0
    fi
    if [ -f "$out" ]; then
        echo "coadd-$sp-$label.fits exists, skipping"
        return 0
    fi
    {{.CoaddCmd}} --infile "$in" --outfile "$out"
}

run_zfit() {
    local sp=$1
    local in="$outdir/coadd-$sp-$label.fits"
    local out="$outdir/redrock-$sp-$label.fits"
    if [ ! -f "$in" ]; then
        return 0
    fi
    if [ -f "$out" ]; then
        echo "redrock-$sp-$label.fits exists, skipping"
        return 0
    fi
    {{.ZFitCmd}} --infiles "$in" --outfile "$out"
}

run_stage() {
    local stage=$1
    local sp p rc=0
    local pids=()
    for sp in {{range $i, $sp := .Spectrographs}}{{if $i}} {{end}}{{$sp}}{{end}}; do
        "$stage" "$sp" &
        pids+=($!)
    done
    for p in "${pids[@]}"; do
        wait "$p" || rc=1
    done
    return $rc
}

echo "tile job $label starting"

if ! run_stage run_group; then
    echo "spectral grouping failed for $label" >&2
    exit 1
fi
if ! run_stage run_coadd; then
    echo "coadd failed for $label" >&2
    exit 1
fi
if ! run_stage run_zfit; then
    echo "redshift fit failed for $label" >&2
    exit 1
fi

echo "tile job $label done"
`
