package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"specplane/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return &Store{db: db}, mock
}

func TestRecordSubmission_Success(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	ctx := context.Background()
	id := uuid.New()
	runID := uuid.New()
	jobID := "123456"
	created := time.Now()

	sub := &store.Submission{
		ID:         id,
		RunID:      runID,
		TileID:     80605,
		Night:      20201215,
		Group:      "cumulative",
		Label:      "80605-thru20201215",
		OutputKey:  "tiles/cumulative/80605/20201215",
		ScriptPath: "/redux/run/scripts/tiles/ztile-80605-thru20201215.slurm",
		Backend:    "slurm",
		BatchJobID: &jobID,
		State:      store.SubmissionStateSubmitted,
	}

	mock.ExpectQuery(`INSERT INTO submissions`).
		WithArgs(id, runID, int64(80605), int64(20201215),
			"cumulative", "80605-thru20201215",
			"tiles/cumulative/80605/20201215",
			"/redux/run/scripts/tiles/ztile-80605-thru20201215.slurm",
			"slurm", &jobID, store.SubmissionStateSubmitted, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	if err := st.RecordSubmission(ctx, nil, sub); err != nil {
		t.Fatalf("RecordSubmission failed: %v", err)
	}
	if !sub.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", sub.CreatedAt, created)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRecordSubmission_GeneratesID(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	sub := &store.Submission{
		TileID: 1,
		Night:  20210101,
		Group:  "pernight",
		Label:  "1-20210101",
	}

	mock.ExpectQuery(`INSERT INTO submissions`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	if err := st.RecordSubmission(context.Background(), nil, sub); err != nil {
		t.Fatalf("RecordSubmission failed: %v", err)
	}
	if sub.ID == uuid.Nil {
		t.Error("expected a generated submission id")
	}
	if sub.State != store.SubmissionStateSubmitted {
		t.Errorf("default state = %q, want %q", sub.State, store.SubmissionStateSubmitted)
	}
}

func TestGetSubmissionByID_Success(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	id := uuid.New()
	runID := uuid.New()
	jobID := "42"

	rows := sqlmock.NewRows([]string{
		"id", "run_id", "tile_id", "night", "group_kind", "label",
		"output_key", "script_path", "backend", "batch_job_id",
		"state", "error_message", "resubmitted_from", "created_at",
	}).AddRow(id, runID, int64(80605), int64(20201215), "pernight", "80605-20201215",
		"tiles/pernight/80605/20201215", "/scripts/ztile-80605-20201215.slurm", "slurm", &jobID,
		"submitted", nil, nil, time.Now())

	mock.ExpectQuery(`SELECT (.+) FROM submissions WHERE id`).
		WithArgs(id).
		WillReturnRows(rows)

	sub, err := st.GetSubmissionByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSubmissionByID failed: %v", err)
	}
	if sub.TileID != 80605 {
		t.Errorf("TileID = %d, want 80605", sub.TileID)
	}
	if sub.BatchJobID == nil || *sub.BatchJobID != "42" {
		t.Errorf("BatchJobID = %v, want 42", sub.BatchJobID)
	}
}

func TestGetSubmissionByID_NotFound(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM submissions WHERE id`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := st.GetSubmissionByID(context.Background(), id)
	if !errors.Is(err, store.ErrSubmissionNotFound) {
		t.Errorf("error = %v, want ErrSubmissionNotFound", err)
	}
}

func TestListSubmissions_AppliesFilters(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "run_id", "tile_id", "night", "group_kind", "label",
		"output_key", "script_path", "backend", "batch_job_id",
		"state", "error_message", "resubmitted_from", "created_at",
	}).AddRow(uuid.New(), uuid.New(), int64(80605), int64(20201215), "pernight", "80605-20201215",
		"tiles/pernight/80605/20201215", "/scripts/x.slurm", "slurm", nil,
		"failed", "sbatch: error", nil, time.Now())

	mock.ExpectQuery(`SELECT (.+) FROM submissions WHERE 1=1 AND night = \$1 AND tile_id = \$2 AND state = \$3`).
		WithArgs(int64(20201215), int64(80605), store.SubmissionStateFailed, 50, 0).
		WillReturnRows(rows)

	subs, err := st.ListSubmissions(context.Background(), store.SubmissionFilter{
		Night:   20201215,
		HasTile: true,
		TileID:  80605,
		State:   store.SubmissionStateFailed,
	})
	if err != nil {
		t.Fatalf("ListSubmissions failed: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("got %d submissions, want 1", len(subs))
	}
	if subs[0].State != store.SubmissionStateFailed {
		t.Errorf("State = %q, want failed", subs[0].State)
	}
	if subs[0].ErrorMessage == nil || *subs[0].ErrorMessage != "sbatch: error" {
		t.Errorf("ErrorMessage = %v, want sbatch: error", subs[0].ErrorMessage)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestMarkResubmitted_Success(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	id := uuid.New()
	mock.ExpectExec(`UPDATE submissions SET state`).
		WithArgs(store.SubmissionStateResubmitted, id, store.SubmissionStateFailed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.MarkResubmitted(context.Background(), nil, id); err != nil {
		t.Fatalf("MarkResubmitted failed: %v", err)
	}
}

func TestMarkResubmitted_NotFailed(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	id := uuid.New()
	mock.ExpectExec(`UPDATE submissions SET state`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.MarkResubmitted(context.Background(), nil, id)
	if err == nil {
		t.Fatal("expected error for submission not in failed state")
	}
}

func TestNightSummaries(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"night", "submitted", "failed", "resubmitted", "total", "last_activity"}).
		AddRow(int64(20201215), int64(12), int64(1), int64(1), int64(14), now).
		AddRow(int64(20201214), int64(9), int64(0), int64(0), int64(9), now.Add(-24*time.Hour))

	mock.ExpectQuery(`SELECT night,`).
		WithArgs(30).
		WillReturnRows(rows)

	summaries, err := st.NightSummaries(context.Background(), 0)
	if err != nil {
		t.Fatalf("NightSummaries failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	if summaries[0].Night != 20201215 {
		t.Errorf("first night = %d, want 20201215", summaries[0].Night)
	}
	if summaries[0].Failed != 1 {
		t.Errorf("failed count = %d, want 1", summaries[0].Failed)
	}
}

func TestCountByState(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM submissions WHERE state`).
		WithArgs(store.SubmissionStateFailed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	count, err := st.CountByState(context.Background(), store.SubmissionStateFailed)
	if err != nil {
		t.Fatalf("CountByState failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}
