package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"dial-a-ride/internal/database"
	"dial-a-ride/internal/models"
	"dial-a-ride/internal/planner"
	"dial-a-ride/internal/scheduling"
)

// RunReader reads stored runs
type RunReader interface {
	Get(ctx context.Context, id string) (*models.ScheduleReport, error)
	List(ctx context.Context, limit int) ([]models.RunSummary, error)
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler provides common handler utilities and dependencies
type Handler struct {
	Planner *planner.Planner
	Runs    RunReader
	Health  HealthChecker
	// Defaults are the options a schedule request starts from
	Defaults scheduling.Options
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details any) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func (h *Handler) handleNotFound(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

func (h *Handler) handleValidationError(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	log.Printf("[ERROR] Internal error: %v", err)
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// checkNotFound checks if an error is a not found error
func (h *Handler) checkNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

// HandleHealthCheck handles GET /healthz
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "database": "disabled"}
	if h.Health != nil {
		if err := h.Health.HealthCheck(r.Context()); err != nil {
			log.Printf("[HTTP] GET /healthz: database_unhealthy err=%v", err)
			status["status"] = "degraded"
			status["database"] = "unreachable"
			h.writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}
	h.writeJSON(w, http.StatusOK, status)
}
