package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"specplane/internal/planner"
)

// SlurmSubmitter hands scripts to a Slurm scheduler via its submit
// command. The command only enqueues the job, so submission returns as
// soon as the scheduler replies.
type SlurmSubmitter struct {
	submitCmd string
	log       *slog.Logger
}

// NewSlurmSubmitter returns a submitter using the given submit command,
// defaulting to sbatch.
func NewSlurmSubmitter(submitCmd string, log *slog.Logger) *SlurmSubmitter {
	if submitCmd == "" {
		submitCmd = "sbatch"
	}
	return &SlurmSubmitter{submitCmd: submitCmd, log: log}
}

// batchJobID matches the reply of sbatch and compatible wrappers.
var batchJobID = regexp.MustCompile(`Submitted batch job (\d+)`)

func (s *SlurmSubmitter) Submit(ctx context.Context, scriptPath string, plan planner.JobPlan) (string, error) {
	cmd := exec.CommandContext(ctx, s.submitCmd, scriptPath)
	out, err := cmd.CombinedOutput()
	reply := strings.TrimSpace(string(out))
	if err != nil {
		return "", fmt.Errorf("%s %s: %w (%s)", s.submitCmd, filepath.Base(scriptPath), err, reply)
	}
	m := batchJobID.FindStringSubmatch(reply)
	if m == nil {
		return "", fmt.Errorf("no job id in scheduler reply %q", reply)
	}
	s.log.Debug("scheduler accepted job", "label", plan.Label(), "batch_job_id", m[1])
	return m[1], nil
}
