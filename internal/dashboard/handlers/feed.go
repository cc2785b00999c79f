package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"specplane/internal/store"
	"specplane/pkg/api"
)

// Feed handles GET /api/feed.
// Returns recorded submissions, newest first. Supports night, tile,
// state, limit and offset query parameters.
func (h *Handlers) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var filter store.SubmissionFilter

	if v := q.Get("night"); v != "" {
		night, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.httpError(w, "Invalid night", http.StatusBadRequest)
			return
		}
		filter.Night = night
	}
	if v := q.Get("tile"); v != "" {
		tile, err := strconv.ParseInt(v, 10, 64)
		if err != nil || tile < 0 {
			h.httpError(w, "Invalid tile", http.StatusBadRequest)
			return
		}
		filter.HasTile = true
		filter.TileID = tile
	}
	if v := q.Get("state"); v != "" {
		switch store.SubmissionState(v) {
		case store.SubmissionStateSubmitted, store.SubmissionStateFailed, store.SubmissionStateResubmitted:
			filter.State = store.SubmissionState(v)
		default:
			h.httpError(w, "Invalid state", http.StatusBadRequest)
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			h.httpError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			h.httpError(w, "Invalid offset", http.StatusBadRequest)
			return
		}
		filter.Offset = offset
	}

	subs, err := h.registry.ListSubmissions(ctx, filter)
	if err != nil {
		h.log.Error("list submissions failed", "error", err)
		h.httpError(w, "Failed to list submissions", http.StatusInternalServerError)
		return
	}

	resp := api.FeedResponse{Submissions: make([]api.SubmissionResponse, 0, len(subs))}
	for i := range subs {
		resp.Submissions = append(resp.Submissions, submissionResponse(&subs[i]))
	}
	h.respondJson(w, http.StatusOK, resp)
}

// GetSubmission handles GET /api/submissions/{id}.
func (h *Handlers) GetSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid submission id", http.StatusBadRequest)
		return
	}

	sub, err := h.registry.GetSubmissionByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrSubmissionNotFound) {
			h.httpError(w, "Submission not found", http.StatusNotFound)
			return
		}
		h.log.Error("load submission failed", "id", id, "error", err)
		h.httpError(w, "Failed to load submission", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, submissionResponse(sub))
}

// Nights handles GET /api/nights.
// Returns per-night submission summaries, most recent night first.
func (h *Handlers) Nights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.httpError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	summaries, err := h.registry.NightSummaries(ctx, limit)
	if err != nil {
		h.log.Error("night summaries failed", "error", err)
		h.httpError(w, "Failed to summarize nights", http.StatusInternalServerError)
		return
	}

	resp := api.NightsResponse{Nights: make([]api.NightSummaryResponse, 0, len(summaries))}
	for _, ns := range summaries {
		resp.Nights = append(resp.Nights, api.NightSummaryResponse{
			Night:        ns.Night,
			Submitted:    ns.Submitted,
			Failed:       ns.Failed,
			Resubmitted:  ns.Resubmitted,
			Total:        ns.Total,
			LastActivity: ns.LastActivity,
		})
	}
	h.respondJson(w, http.StatusOK, resp)
}

func submissionResponse(sub *store.Submission) api.SubmissionResponse {
	resp := api.SubmissionResponse{
		ID:         sub.ID.String(),
		RunID:      sub.RunID.String(),
		TileID:     sub.TileID,
		Night:      sub.Night,
		Group:      sub.Group,
		Label:      sub.Label,
		OutputKey:  sub.OutputKey,
		Backend:    sub.Backend,
		BatchJobID: sub.BatchJobID,
		State:      string(sub.State),
		Error:      sub.ErrorMessage,
		CreatedAt:  sub.CreatedAt,
	}
	if sub.ResubmittedFrom != nil {
		from := sub.ResubmittedFrom.String()
		resp.ResubmittedFrom = &from
	}
	return resp
}
