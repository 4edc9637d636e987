package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"dial-a-ride/internal/distance"
	"dial-a-ride/internal/geocoding"
	"dial-a-ride/internal/planner"
	"dial-a-ride/internal/report"
	"dial-a-ride/internal/scheduling"
	"dial-a-ride/internal/traveltime"
	"dial-a-ride/internal/trips"
)

// ScheduleRequest is the body of POST /api/v1/schedule
type ScheduleRequest struct {
	Trips   []trips.Record   `json:"trips"`
	Options *OptionsOverride `json:"options,omitempty"`
}

// OptionsOverride replaces individual server defaults for one request
type OptionsOverride struct {
	Vehicles          *int     `json:"vehicles,omitempty"`
	Capacity          *int     `json:"capacity,omitempty"`
	PickupWindow      *float64 `json:"pickup_window,omitempty"`
	MaxTravelCoeff    *float64 `json:"max_travel_coeff,omitempty"`
	HandlingMinutes   *float64 `json:"handling_minutes,omitempty"`
	FavorBusyVehicles *bool    `json:"favor_busy_vehicles,omitempty"`
	MinimizeMileage   *bool    `json:"minimize_mileage,omitempty"`
	SoftConstraints   *bool    `json:"soft_constraints,omitempty"`
	StrictCommitTimes *bool    `json:"strict_commit_times,omitempty"`
}

// Apply returns base with every set field replaced
func (o *OptionsOverride) Apply(base scheduling.Options) scheduling.Options {
	if o == nil {
		return base
	}
	if o.Vehicles != nil {
		base.Vehicles = *o.Vehicles
	}
	if o.Capacity != nil {
		base.Capacity = *o.Capacity
	}
	if o.PickupWindow != nil {
		base.PickupWindow = *o.PickupWindow
	}
	if o.MaxTravelCoeff != nil {
		base.MaxTravelCoeff = *o.MaxTravelCoeff
	}
	if o.HandlingMinutes != nil {
		base.HandlingMinutes = *o.HandlingMinutes
	}
	if o.FavorBusyVehicles != nil {
		base.FavorBusyVehicles = *o.FavorBusyVehicles
	}
	if o.MinimizeMileage != nil {
		base.MinimizeMileage = *o.MinimizeMileage
	}
	if o.SoftConstraints != nil {
		base.SoftConstraints = *o.SoftConstraints
	}
	if o.StrictCommitTimes != nil {
		base.StrictCommitTimes = *o.StrictCommitTimes
	}
	return base
}

// HandleSchedule handles POST /api/v1/schedule. The report is JSON unless
// ?format=yaml is given.
func (h *Handler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.handleValidationError(w, err.Error())
		return
	}

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[HTTP] POST /api/v1/schedule: invalid_json err=%v", err)
		h.handleValidationError(w, "Invalid request body")
		return
	}

	list, err := trips.FromRecords(req.Trips)
	if err != nil {
		h.handleValidationError(w, err.Error())
		return
	}

	opts := req.Options.Apply(h.Defaults)
	log.Printf("[HTTP] POST /api/v1/schedule: trips=%d vehicles=%d capacity=%d", len(list), opts.Vehicles, opts.Capacity)

	rep, err := h.Planner.Plan(r.Context(), list, opts)
	if err != nil {
		h.handlePlanError(w, err)
		return
	}

	if format == report.FormatYAML {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		if err := report.Write(w, rep, format); err != nil {
			log.Printf("[ERROR] Failed to write report: run=%s err=%v", rep.RunID, err)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) handlePlanError(w http.ResponseWriter, err error) {
	var (
		optErr   *scheduling.ErrInvalidOptions
		recErr   *trips.ErrInvalidRecord
		geoErr   *geocoding.ErrGeocodingFailed
		routeErr *distance.ErrRouteLookupFailed
	)

	switch {
	case errors.As(err, &optErr), errors.As(err, &recErr),
		errors.Is(err, scheduling.ErrDuplicateTrip), errors.Is(err, planner.ErrNoTrips):
		h.handleValidationError(w, err.Error())
	case errors.As(err, &geoErr):
		h.writeError(w, http.StatusUnprocessableEntity, "GEOCODING_FAILED", err.Error(), nil)
	case errors.As(err, &routeErr):
		h.writeError(w, http.StatusUnprocessableEntity, "ROUTING_FAILED", routeErr.Reason, nil)
	case errors.Is(err, traveltime.ErrCacheMiss):
		log.Printf("[ERROR] Travel time table incomplete: %v", err)
		h.writeError(w, http.StatusInternalServerError, "CACHE_MISS", err.Error(), nil)
	default:
		var workerErr *scheduling.WorkerFailureError
		if errors.As(err, &workerErr) {
			log.Printf("[ERROR] Search worker failed: trip=%d vehicle=%d err=%v", workerErr.TripID, workerErr.Vehicle, workerErr.Err)
		}
		h.handleInternalError(w, err)
	}
}
