// Package submit drives job plan submission against an execution
// backend with bounded concurrency and scheduler-friendly rate
// limiting.
package submit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"specplane/internal/emitter"
	"specplane/internal/planner"
)

// Config holds runner settings.
type Config struct {
	// Concurrency caps in-flight submissions. Defaults to 4.
	Concurrency int

	// Rate caps submissions per second so a large run does not hammer
	// the scheduler. Zero disables throttling.
	Rate float64

	// Burst is the throttle's burst allowance. Defaults to 1 when
	// throttling is on.
	Burst int
}

// Recorder persists submission outcomes. submitErr is nil for accepted
// jobs. A nil Recorder disables persistence.
type Recorder interface {
	RecordSubmission(ctx context.Context, plan planner.JobPlan, sub emitter.Submission, submitErr error) error
}

// Failure pairs a plan with its submission error.
type Failure struct {
	Plan planner.JobPlan
	Err  error
}

// Outcome summarizes one submission run. Entries keep the order of the
// plans handed to Run.
type Outcome struct {
	Submitted []emitter.Submission
	Failures  []Failure
}

// FailedSubmissionsError reports how many plans the backend rejected.
// The process exit code mirrors Count.
type FailedSubmissionsError struct {
	Count int
}

func (e *FailedSubmissionsError) Error() string {
	return fmt.Sprintf("%d tile job submissions failed", e.Count)
}

// Runner submits job plans through an Emitter.
type Runner struct {
	emitter  emitter.Emitter
	recorder Recorder
	config   Config
	limiter  *rate.Limiter
	log      *slog.Logger
}

func NewRunner(em emitter.Emitter, rec Recorder, cfg Config, log *slog.Logger) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)
	}
	return &Runner{emitter: em, recorder: rec, config: cfg, limiter: limiter, log: log}
}

type result struct {
	sub  emitter.Submission
	err  error
	done bool
}

// Run submits every plan. Failures are isolated: one rejected
// submission never stops the rest. The returned error is a
// *FailedSubmissionsError when any plan failed, so callers can turn
// the failure count into an exit code.
func (r *Runner) Run(ctx context.Context, plans []planner.JobPlan) (Outcome, error) {
	tracer := otel.Tracer("submit-runner")

	sem := make(chan struct{}, r.config.Concurrency)
	var wg sync.WaitGroup
	results := make([]result, len(plans))

	for i, plan := range plans {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				results[i] = result{err: err, done: true}
				r.log.Warn("submission run cancelled, skipping remaining plans", "remaining", len(plans)-i-1)
				break
			}
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int, plan planner.JobPlan) {
			defer wg.Done()
			defer func() { <-sem }()

			spanCtx, span := tracer.Start(ctx, "submit_tile_job",
				trace.WithAttributes(
					attribute.Int64("tile.id", plan.TileID),
					attribute.String("job.group", string(plan.Group)),
					attribute.String("job.label", plan.Label()),
				),
				trace.WithSpanKind(trace.SpanKindProducer),
			)
			defer span.End()

			sub, err := r.emitter.Emit(spanCtx, plan)
			if err != nil {
				span.RecordError(err)
				r.log.Error("tile job submission failed", "label", plan.Label(), "error", err)
			} else {
				span.SetAttributes(attribute.String("batch.job_id", sub.BatchJobID))
				r.log.Info("tile job submitted",
					"label", plan.Label(),
					"batch_job_id", sub.BatchJobID,
					"output_key", plan.OutputKey(),
				)
			}

			if r.recorder != nil {
				if recErr := r.recorder.RecordSubmission(spanCtx, plan, sub, err); recErr != nil {
					r.log.Warn("could not record submission", "label", plan.Label(), "error", recErr)
				}
			}

			results[i] = result{sub: sub, err: err, done: true}
		}(i, plan)
	}
	wg.Wait()

	var out Outcome
	for i, res := range results {
		if !res.done {
			continue
		}
		if res.err != nil {
			out.Failures = append(out.Failures, Failure{Plan: plans[i], Err: res.err})
		} else {
			out.Submitted = append(out.Submitted, res.sub)
		}
	}

	if len(out.Failures) > 0 {
		return out, &FailedSubmissionsError{Count: len(out.Failures)}
	}
	return out, nil
}
