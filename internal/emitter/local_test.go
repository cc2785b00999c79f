package emitter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"specplane/internal/exposure"
)

func TestLocalSubmit(t *testing.T) {
	script := filepath.Join(t.TempDir(), "ztile-1-20210101.slurm")
	if err := os.WriteFile(script, []byte("#!/bin/bash\necho tile job done\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	s := NewLocalSubmitter(testLogger())
	plan := mustPlan(t, 1, exposure.GroupPernight, []exposure.Record{
		{TileID: 1, Night: 20210101, ExpID: 5},
	})

	got, err := s.Submit(context.Background(), script, plan)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !strings.HasPrefix(got, "local-") {
		t.Errorf("Submit() = %q, want local- prefix", got)
	}

	out, err := os.ReadFile(script + ".log")
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	if !strings.Contains(string(out), "tile job done") {
		t.Errorf("run log = %q, want script output", out)
	}
}

func TestLocalSubmitScriptFails(t *testing.T) {
	script := filepath.Join(t.TempDir(), "ztile-1-20210101.slurm")
	if err := os.WriteFile(script, []byte("#!/bin/bash\nexit 3\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	s := NewLocalSubmitter(testLogger())
	plan := mustPlan(t, 1, exposure.GroupPernight, []exposure.Record{
		{TileID: 1, Night: 20210101, ExpID: 5},
	})

	if _, err := s.Submit(context.Background(), script, plan); err == nil {
		t.Fatal("Submit() error = nil, want script failure")
	}
}
