// Package emitter turns job plans into batch scripts and hands them to
// an execution backend.
package emitter

import (
	"context"
	"log/slog"

	"specplane/internal/planner"
)

// Submission describes one hand-off to the batch backend.
type Submission struct {
	// ScriptPath is where the generated script was written. Empty when
	// script generation itself failed.
	ScriptPath string

	// BatchJobID is the backend's identifier for the accepted job: a
	// Slurm job id, a container id or a Kubernetes job name.
	BatchJobID string

	// ExitCode is zero on success and non-zero otherwise.
	ExitCode int
}

// Emitter submits one job plan to an execution backend.
type Emitter interface {
	Emit(ctx context.Context, plan planner.JobPlan) (Submission, error)
}

// Submitter hands a generated script to a backend and returns the
// backend's job id. Implementations fire and forget: the generated
// script owns completion and skip logic.
type Submitter interface {
	Submit(ctx context.Context, scriptPath string, plan planner.JobPlan) (string, error)
}

// ScriptEmitter is the standard Emitter. It renders the plan's batch
// script, writes it under the script directory and submits it.
type ScriptEmitter struct {
	builder   *ScriptBuilder
	submitter Submitter
	log       *slog.Logger
}

func New(builder *ScriptBuilder, submitter Submitter, log *slog.Logger) *ScriptEmitter {
	return &ScriptEmitter{builder: builder, submitter: submitter, log: log}
}

func (e *ScriptEmitter) Emit(ctx context.Context, plan planner.JobPlan) (Submission, error) {
	path, err := e.builder.Write(plan)
	if err != nil {
		return Submission{ExitCode: 1}, err
	}
	e.log.Debug("batch script written", "label", plan.Label(), "path", path)

	jobID, err := e.submitter.Submit(ctx, path, plan)
	if err != nil {
		return Submission{ScriptPath: path, ExitCode: 1}, err
	}
	return Submission{ScriptPath: path, BatchJobID: jobID}, nil
}
