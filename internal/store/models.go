// Package store contains the database layer for the submission
// registry.
package store

import (
	"time"

	"github.com/google/uuid"
)

// Submission is one recorded hand-off of a tile job to an execution
// backend. A tile that is planned twice gets two rows; the registry is
// an append-only history, not a queue.
type Submission struct {
	ID    uuid.UUID
	RunID uuid.UUID

	TileID int64
	Night  int64 // reference night
	Group  string
	Label  string

	OutputKey  string
	ScriptPath string
	Backend    string

	// BatchJobID is the backend's job identifier. Nil when the backend
	// rejected the submission.
	BatchJobID *string

	State        SubmissionState
	ErrorMessage *string

	// ResubmittedFrom links a retry to the failed submission it
	// replaces.
	ResubmittedFrom *uuid.UUID

	CreatedAt time.Time
}

// SubmissionState represents the state of a submission.
type SubmissionState string

const (
	// SubmissionStateSubmitted means the backend accepted the job.
	SubmissionStateSubmitted SubmissionState = "submitted"
	// SubmissionStateFailed means the hand-off was rejected.
	SubmissionStateFailed SubmissionState = "failed"
	// SubmissionStateResubmitted marks a failed submission that has
	// been replaced by a retry.
	SubmissionStateResubmitted SubmissionState = "resubmitted"
)

// SubmissionFilter narrows ListSubmissions. Zero values mean no
// constraint.
type SubmissionFilter struct {
	// Night narrows to one reference night when non-zero.
	Night int64

	// TileID narrows to one tile when HasTile is set. Tile ids start
	// at zero, so presence needs its own flag.
	HasTile bool
	TileID  int64

	// State narrows to one submission state when non-empty.
	State SubmissionState

	Limit  int
	Offset int
}

// NightSummary aggregates submissions per reference night.
type NightSummary struct {
	Night        int64
	Submitted    int64
	Failed       int64
	Resubmitted  int64
	Total        int64
	LastActivity time.Time
}
