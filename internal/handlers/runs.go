package handlers

import (
	"log"
	"net/http"
	"strconv"
)

const defaultRunLimit = 50

// HandleListRuns handles GET /api/v1/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		h.handleNotFound(w, "Run history is not enabled")
		return
	}

	limit := defaultRunLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.handleValidationError(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.Runs.List(r.Context(), limit)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] GET /api/v1/runs: count=%d", len(runs))
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// HandleGetRun handles GET /api/v1/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		h.handleNotFound(w, "Run history is not enabled")
		return
	}

	id := r.PathValue("id")
	run, err := h.Runs.Get(r.Context(), id)
	if h.checkNotFound(err) {
		log.Printf("[HTTP] GET /api/v1/runs/%s: not_found", id)
		h.handleNotFound(w, "Run not found")
		return
	}
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, run)
}
