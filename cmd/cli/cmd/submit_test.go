package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"specplane/internal/submit"
)

// seedTileOutputs pre-creates every output of a single-spectrograph
// tile job so the generated script's skip checks short-circuit all
// three stages.
func seedTileOutputs(t *testing.T, redux, outputKey, label string) {
	t.Helper()
	outdir := filepath.Join(redux, filepath.FromSlash(outputKey))
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, prefix := range []string{"spectra", "coadd", "redrock"} {
		name := prefix + "-0-" + label + ".fits"
		if err := os.WriteFile(filepath.Join(outdir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSubmitCommand_LocalBackend(t *testing.T) {
	resetViper()

	redux := t.TempDir()
	tables := filepath.Join(redux, "exposure_tables")
	writeExposureTable(t, tables, 20201215, []string{
		"80605,20201215,67972,science,all",
		"80605,20201215,67973,science,all",
	})
	cfgPath := writeTestConfig(t, redux, "backend: local\nspectrographs: 1\nsubmit_rate: 0\n")
	seedTileOutputs(t, redux, "tiles/pernight/80605/20201215", "80605-20201215")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"submit", "--config", cfgPath, "--tile", "80605", "--group", "pernight"})

	err := rootCmd.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "ztile-80605-20201215.slurm submitted (job local-") {
		t.Errorf("expected submission line, got:\n%s", output)
	}
	if !strings.Contains(output, "1 submitted, 0 failed") {
		t.Errorf("expected summary line, got:\n%s", output)
	}

	scriptPath := filepath.Join(redux, "run", "scripts", "tiles", "ztile-80605-20201215.slurm")
	if _, err := os.Stat(scriptPath); err != nil {
		t.Fatalf("expected script at %s: %v", scriptPath, err)
	}

	logBody, err := os.ReadFile(scriptPath + ".log")
	if err != nil {
		t.Fatalf("expected run log next to script: %v", err)
	}
	if !strings.Contains(string(logBody), "tile job 80605-20201215 done") {
		t.Errorf("expected completed run log, got:\n%s", logBody)
	}
}

func TestSubmitCommand_FailureBecomesExitError(t *testing.T) {
	resetViper()

	redux := t.TempDir()
	tables := filepath.Join(redux, "exposure_tables")
	writeExposureTable(t, tables, 20201215, []string{
		"80605,20201215,67972,science,all",
	})
	cfgPath := writeTestConfig(t, redux, "backend: slurm\nsubmit_cmd: /nonexistent/sbatch\nsubmit_rate: 0\n")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"submit", "--config", cfgPath, "--tile", "80605", "--group", "pernight"})

	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error when the backend rejects the submission")
	}

	var failed *submit.FailedSubmissionsError
	if !errors.As(err, &failed) {
		t.Fatalf("expected FailedSubmissionsError, got %T: %v", err, err)
	}
	if failed.Count != 1 {
		t.Errorf("Count = %d, want 1", failed.Count)
	}

	output := stdout.String()
	if !strings.Contains(output, "✗ 80605-20201215") {
		t.Errorf("expected failure line, got:\n%s", output)
	}
	if !strings.Contains(output, "0 submitted, 1 failed") {
		t.Errorf("expected summary line, got:\n%s", output)
	}
}

func TestSubmitCommand_UnknownBackend(t *testing.T) {
	resetViper()

	redux := t.TempDir()
	tables := filepath.Join(redux, "exposure_tables")
	writeExposureTable(t, tables, 20201215, []string{
		"80605,20201215,67972,science,all",
	})
	cfgPath := writeTestConfig(t, redux, "backend: pbs\n")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"submit", "--config", cfgPath, "--tile", "80605", "--group", "pernight"})

	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if !strings.Contains(err.Error(), "unknown backend") {
		t.Errorf("expected unknown backend error, got: %v", err)
	}
}

func TestSubmitCommand_ScriptsOnly(t *testing.T) {
	resetViper()

	redux := t.TempDir()
	tables := filepath.Join(redux, "exposure_tables")
	writeExposureTable(t, tables, 20201215, []string{
		"80605,20201215,67972,science,all",
		"80605,20201215,67973,science,all",
	})
	cfgPath := writeTestConfig(t, redux, "")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"submit", "--config", cfgPath, "--tile", "80605", "--group", "cumulative", "--scripts-only"})

	err := rootCmd.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "1 script(s) written") {
		t.Errorf("expected summary line, got:\n%s", output)
	}

	scriptPath := filepath.Join(redux, "run", "scripts", "tiles", "ztile-80605-thru20201215.slurm")
	body, err := os.ReadFile(scriptPath)
	if err != nil {
		t.Fatalf("expected script at %s: %v", scriptPath, err)
	}
	if !strings.HasPrefix(string(body), "#!/bin/bash") {
		t.Errorf("expected bash script, got:\n%.80s", body)
	}

	// Nothing ran, so no log should exist
	if _, err := os.Stat(scriptPath + ".log"); !os.IsNotExist(err) {
		t.Errorf("expected no run log for scripts-only, stat err = %v", err)
	}
}
