// Package registry adapts the submission store to the submit runner
// and carries the resubmission flow.
package registry

import (
	"context"
	"fmt"
	"path"
	"strconv"

	"github.com/google/uuid"

	"specplane/internal/emitter"
	"specplane/internal/exposure"
	"specplane/internal/planner"
	"specplane/internal/store"
)

// Recorder persists submission outcomes. All rows written by one
// recorder share a run id, so a whole planning run can be correlated
// in the registry.
type Recorder struct {
	db      store.DBTransaction
	store   store.SubmissionStore
	backend string
	runID   uuid.UUID
}

// NewRecorder creates a recorder writing through the given store with
// a fresh run id.
func NewRecorder(db store.DBTransaction, st store.SubmissionStore, backend string) *Recorder {
	return &Recorder{db: db, store: st, backend: backend, runID: uuid.New()}
}

// RunID returns the correlation id stamped on every row this recorder
// writes.
func (r *Recorder) RunID() uuid.UUID {
	return r.runID
}

// RecordSubmission writes one registry row for a plan's submission
// outcome. submitErr nil means the backend accepted the job.
func (r *Recorder) RecordSubmission(ctx context.Context, plan planner.JobPlan, sub emitter.Submission, submitErr error) error {
	row := newRow(r.runID, plan, r.backend, sub, submitErr)
	return r.store.RecordSubmission(ctx, r.db, row)
}

func newRow(runID uuid.UUID, plan planner.JobPlan, backend string, sub emitter.Submission, submitErr error) *store.Submission {
	row := &store.Submission{
		RunID:      runID,
		TileID:     plan.TileID,
		Night:      plan.ReferenceNight,
		Group:      string(plan.Group),
		Label:      plan.Label(),
		OutputKey:  plan.OutputKey(),
		ScriptPath: sub.ScriptPath,
		Backend:    backend,
	}
	if submitErr != nil {
		row.State = store.SubmissionStateFailed
		msg := submitErr.Error()
		row.ErrorMessage = &msg
		return row
	}
	row.State = store.SubmissionStateSubmitted
	jobID := sub.BatchJobID
	row.BatchJobID = &jobID
	return row
}

// TxBeginner is the slice of the database handle the resubmission flow
// needs.
type TxBeginner interface {
	BeginTx(ctx context.Context) (store.Tx, error)
}

// Resubmit hands a failed submission's stored script back to the
// backend and records the outcome as a replacement row linked to the
// original, flipping the original to resubmitted in the same
// transaction. The replacement is recorded even when the backend
// rejects the retry; callers inspect its state.
func Resubmit(ctx context.Context, db TxBeginner, st store.SubmissionStore, original *store.Submission, submitter emitter.Submitter, backend string) (*store.Submission, error) {
	if original.State != store.SubmissionStateFailed {
		return nil, fmt.Errorf("submission %s is %s, only failed submissions can be retried", original.ID, original.State)
	}

	plan := planFromSubmission(original)
	jobID, submitErr := submitter.Submit(ctx, original.ScriptPath, plan)

	sub := emitter.Submission{ScriptPath: original.ScriptPath, BatchJobID: jobID}
	replacement := newRow(uuid.New(), plan, backend, sub, submitErr)
	replacement.ResubmittedFrom = &original.ID

	tx, err := db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := st.RecordSubmission(ctx, tx, replacement); err != nil {
		return nil, err
	}
	if err := st.MarkResubmitted(ctx, tx, original.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit resubmission: %w", err)
	}
	return replacement, nil
}

// planFromSubmission rebuilds the plan identity a submitter needs from
// a stored row. The registry keeps only the reference night, so perexp
// rows recover their exposure id from the output key tail.
func planFromSubmission(sub *store.Submission) planner.JobPlan {
	rec := exposure.Record{TileID: sub.TileID, Night: sub.Night}
	group := exposure.GroupKind(sub.Group)
	if group == exposure.GroupPerexp {
		if id, err := strconv.ParseInt(path.Base(sub.OutputKey), 10, 64); err == nil {
			rec.ExpID = id
		}
	}
	return planner.JobPlan{
		TileID:         sub.TileID,
		Group:          group,
		Exposures:      []exposure.Record{rec},
		ReferenceNight: sub.Night,
	}
}
