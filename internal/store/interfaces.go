package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// ErrSubmissionNotFound is returned when a submission id does not
// exist in the registry.
var ErrSubmissionNotFound = errors.New("submission not found")

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx.
// This allows us to pass either a connection pool or an active
// transaction to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// SubmissionStore records tile job hand-offs and serves the dashboard
// feed.
type SubmissionStore interface {
	// RecordSubmission inserts a new submission row. A zero ID is
	// replaced with a fresh one; CreatedAt is filled from the
	// database.
	RecordSubmission(ctx context.Context, tx DBTransaction, sub *Submission) error

	// GetSubmissionByID returns a submission by its ID.
	GetSubmissionByID(ctx context.Context, id uuid.UUID) (*Submission, error)

	// ListSubmissions returns submissions matching the filter, newest
	// first.
	ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error)

	// MarkResubmitted flips a failed submission to resubmitted. The
	// replacement row links back through ResubmittedFrom.
	MarkResubmitted(ctx context.Context, tx DBTransaction, id uuid.UUID) error

	// NightSummaries aggregates submissions per reference night, most
	// recent night first.
	NightSummaries(ctx context.Context, limit int) ([]NightSummary, error)

	// CountByState returns the number of submissions in a state.
	CountByState(ctx context.Context, state SubmissionState) (int64, error)
}
