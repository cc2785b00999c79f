package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"specplane/internal/store"
)

const submissionColumns = `id, run_id, tile_id, night, group_kind, label, output_key, script_path, backend, batch_job_id, state, error_message, resubmitted_from, created_at`

// RecordSubmission inserts a new submission row.
func (s *Store) RecordSubmission(ctx context.Context, tx store.DBTransaction, sub *store.Submission) error {
	executor := s.getExecutor(tx)

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.State == "" {
		sub.State = store.SubmissionStateSubmitted
	}

	query := `
		INSERT INTO submissions (id, run_id, tile_id, night, group_kind, label, output_key, script_path, backend, batch_job_id, state, error_message, resubmitted_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`

	err := executor.QueryRowContext(ctx, query,
		sub.ID, sub.RunID, sub.TileID, sub.Night,
		sub.Group, sub.Label, sub.OutputKey, sub.ScriptPath, sub.Backend,
		sub.BatchJobID, sub.State, sub.ErrorMessage, sub.ResubmittedFrom,
	).Scan(&sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("record submission %s: %w", sub.Label, err)
	}

	return nil
}

// GetSubmissionByID returns a submission by its ID.
func (s *Store) GetSubmissionByID(ctx context.Context, id uuid.UUID) (*store.Submission, error) {
	query := "SELECT " + submissionColumns + " FROM submissions WHERE id = $1"

	sub, err := scanSubmission(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSubmissionNotFound
		}
		return nil, err
	}
	return sub, nil
}

// ListSubmissions returns submissions matching the filter, newest
// first.
func (s *Store) ListSubmissions(ctx context.Context, filter store.SubmissionFilter) ([]store.Submission, error) {
	where := "WHERE 1=1"
	args := []interface{}{}

	if filter.Night != 0 {
		args = append(args, filter.Night)
		where += fmt.Sprintf(" AND night = $%d", len(args))
	}
	if filter.HasTile {
		args = append(args, filter.TileID)
		where += fmt.Sprintf(" AND tile_id = $%d", len(args))
	}
	if filter.State != "" {
		args = append(args, filter.State)
		where += fmt.Sprintf(" AND state = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	args = append(args, limit)
	limitClause := fmt.Sprintf("LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	offsetClause := fmt.Sprintf("OFFSET $%d", len(args))

	query := fmt.Sprintf(`
		SELECT %s
		FROM submissions
		%s
		ORDER BY created_at DESC
		%s %s
	`, submissionColumns, where, limitClause, offsetClause)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []store.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	return subs, nil
}

// MarkResubmitted flips a failed submission to resubmitted.
func (s *Store) MarkResubmitted(ctx context.Context, tx store.DBTransaction, id uuid.UUID) error {
	executor := s.getExecutor(tx)

	res, err := executor.ExecContext(ctx,
		"UPDATE submissions SET state = $1 WHERE id = $2 AND state = $3",
		store.SubmissionStateResubmitted, id, store.SubmissionStateFailed,
	)
	if err != nil {
		return fmt.Errorf("mark submission %s resubmitted: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("submission %s is not in a failed state", id)
	}

	return nil
}

// NightSummaries aggregates submissions per reference night, most
// recent night first.
func (s *Store) NightSummaries(ctx context.Context, limit int) ([]store.NightSummary, error) {
	if limit <= 0 {
		limit = 30
	}

	query := `
		SELECT night,
		       COUNT(*) FILTER (WHERE state = 'submitted') AS submitted,
		       COUNT(*) FILTER (WHERE state = 'failed') AS failed,
		       COUNT(*) FILTER (WHERE state = 'resubmitted') AS resubmitted,
		       COUNT(*) AS total,
		       MAX(created_at) AS last_activity
		FROM submissions
		GROUP BY night
		ORDER BY night DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("night summaries: %w", err)
	}
	defer rows.Close()

	var summaries []store.NightSummary
	for rows.Next() {
		var ns store.NightSummary
		if err := rows.Scan(&ns.Night, &ns.Submitted, &ns.Failed, &ns.Resubmitted, &ns.Total, &ns.LastActivity); err != nil {
			return nil, fmt.Errorf("scan night summary: %w", err)
		}
		summaries = append(summaries, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("night summaries: %w", err)
	}

	return summaries, nil
}

// CountByState returns the number of submissions in a state.
func (s *Store) CountByState(ctx context.Context, state store.SubmissionState) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM submissions WHERE state = $1", state,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (*store.Submission, error) {
	var sub store.Submission
	err := row.Scan(
		&sub.ID, &sub.RunID, &sub.TileID, &sub.Night,
		&sub.Group, &sub.Label, &sub.OutputKey, &sub.ScriptPath, &sub.Backend,
		&sub.BatchJobID, &sub.State, &sub.ErrorMessage, &sub.ResubmittedFrom,
		&sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
