// Package handlers contains HTTP handlers for the dashboard API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"specplane/internal/store"
	"specplane/pkg/api"
)

// Registry combines the store interfaces the dashboard needs.
type Registry interface {
	Ping(ctx context.Context) error
	store.SubmissionStore
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	registry Registry
	log      *slog.Logger
}

// New creates a new Handlers instance with the given registry
// dependency.
func New(r Registry, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{registry: r, log: log}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}
