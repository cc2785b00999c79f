// Package api contains shared JSON response structs.
// This package is shared between the CLI and the dashboard service.
package api

import "time"

// SubmissionResponse represents one recorded submission in API
// responses.
type SubmissionResponse struct {
	ID              string    `json:"id"`
	RunID           string    `json:"run_id"`
	TileID          int64     `json:"tile_id"`
	Night           int64     `json:"night"`
	Group           string    `json:"group"`
	Label           string    `json:"label"`
	OutputKey       string    `json:"output_key"`
	Backend         string    `json:"backend"`
	BatchJobID      *string   `json:"batch_job_id,omitempty"`
	State           string    `json:"state"`
	Error           *string   `json:"error,omitempty"`
	ResubmittedFrom *string   `json:"resubmitted_from,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// FeedResponse is the response body of the submission feed.
type FeedResponse struct {
	Submissions []SubmissionResponse `json:"submissions"`
}

// NightSummaryResponse aggregates submissions for one reference night.
type NightSummaryResponse struct {
	Night        int64     `json:"night"`
	Submitted    int64     `json:"submitted"`
	Failed       int64     `json:"failed"`
	Resubmitted  int64     `json:"resubmitted"`
	Total        int64     `json:"total"`
	LastActivity time.Time `json:"last_activity"`
}

// NightsResponse lists per-night summaries, most recent night first.
type NightsResponse struct {
	Nights []NightSummaryResponse `json:"nights"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
