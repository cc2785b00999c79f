package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"specplane/internal/planner"
)

// LocalSubmitter runs scripts directly with a shell. Unlike the other
// backends it blocks until the job finishes, which keeps it useful for
// development and small reprocessing runs but not for survey volumes.
type LocalSubmitter struct {
	shell string
	log   *slog.Logger
}

func NewLocalSubmitter(log *slog.Logger) *LocalSubmitter {
	return &LocalSubmitter{shell: "/bin/bash", log: log}
}

func (s *LocalSubmitter) Submit(ctx context.Context, scriptPath string, plan planner.JobPlan) (string, error) {
	cmd := exec.CommandContext(ctx, s.shell, scriptPath)
	out, err := cmd.CombinedOutput()

	logPath := scriptPath + ".log"
	if werr := os.WriteFile(logPath, out, 0o644); werr != nil {
		s.log.Warn("could not write local run log", "path", logPath, "error", werr)
	}
	if err != nil {
		return "", fmt.Errorf("run %s: %w", filepath.Base(scriptPath), err)
	}
	s.log.Debug("local run finished", "label", plan.Label(), "log", logPath)
	return fmt.Sprintf("local-%d", cmd.ProcessState.Pid()), nil
}
