package handlers

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"specplane/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Mock Registry
type mockRegistry struct {
	pingErr error

	recordErr error

	getSubmissionResp *store.Submission
	getSubmissionErr  error

	listResp []store.Submission
	listErr  error

	markResubmittedErr error

	nightsResp []store.NightSummary
	nightsErr  error

	countResp int64
	countErr  error

	// Spies (to verify arguments passed by handlers)
	capturedFilter store.SubmissionFilter
	capturedLimit  int
}

func (m *mockRegistry) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockRegistry) RecordSubmission(ctx context.Context, tx store.DBTransaction, sub *store.Submission) error {
	return m.recordErr
}

func (m *mockRegistry) GetSubmissionByID(ctx context.Context, id uuid.UUID) (*store.Submission, error) {
	return m.getSubmissionResp, m.getSubmissionErr
}

func (m *mockRegistry) ListSubmissions(ctx context.Context, filter store.SubmissionFilter) ([]store.Submission, error) {
	m.capturedFilter = filter
	return m.listResp, m.listErr
}

func (m *mockRegistry) MarkResubmitted(ctx context.Context, tx store.DBTransaction, id uuid.UUID) error {
	return m.markResubmittedErr
}

func (m *mockRegistry) NightSummaries(ctx context.Context, limit int) ([]store.NightSummary, error) {
	m.capturedLimit = limit
	return m.nightsResp, m.nightsErr
}

func (m *mockRegistry) CountByState(ctx context.Context, state store.SubmissionState) (int64, error) {
	return m.countResp, m.countErr
}
