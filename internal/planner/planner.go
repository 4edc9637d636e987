package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"dial-a-ride/internal/database"
	"dial-a-ride/internal/distance"
	"dial-a-ride/internal/geocoding"
	"dial-a-ride/internal/models"
	"dial-a-ride/internal/report"
	"dial-a-ride/internal/scheduling"
	"dial-a-ride/internal/traveltime"
	"dial-a-ride/internal/trips"
)

// ErrNoTrips is returned when a plan is requested for an empty trip list
var ErrNoTrips = errors.New("no trips to schedule")

// RunStore persists finished runs
type RunStore interface {
	Save(ctx context.Context, report *models.ScheduleReport, meta database.RunMeta) (string, error)
}

// NotifierSource hands out a notifier scoped to one run
type NotifierSource interface {
	ForRun(runID string) scheduling.Notifier
}

// Planner prepares trips, builds the travel time table and runs the engine.
// Only Finder is required.
type Planner struct {
	Finder   distance.Routefinder
	Geocoder geocoding.Geocoder
	Runs     RunStore
	Events   NotifierSource
	Observer scheduling.Observer

	// CacheWorkers bounds concurrent oracle calls while building the table.
	// Zero uses the engine's worker count.
	CacheWorkers int
	// CacheBuilt is called with the table build duration
	CacheBuilt func(time.Duration)
}

// Prepare geocodes addresses and fills missing direct durations in place
func (p *Planner) Prepare(ctx context.Context, list []models.Trip) error {
	if err := trips.Geocode(ctx, list, p.Geocoder); err != nil {
		return err
	}
	return trips.FillDirectDurations(ctx, list, p.Finder)
}

// BuildTable fetches every endpoint pair from the Finder
func (p *Planner) BuildTable(ctx context.Context, list []models.Trip, workers int) (*traveltime.Cache, error) {
	if p.CacheWorkers > 0 {
		workers = p.CacheWorkers
	}
	start := time.Now()
	cache, err := traveltime.Build(ctx, list, p.Finder, workers)
	if err != nil {
		return nil, err
	}
	if p.CacheBuilt != nil {
		p.CacheBuilt(time.Since(start))
	}
	return cache, nil
}

// Plan schedules list with opts and returns the rendered report. The
// report is stored when a RunStore is configured.
func (p *Planner) Plan(ctx context.Context, list []models.Trip, opts scheduling.Options) (*models.ScheduleReport, error) {
	if len(list) == 0 {
		return nil, ErrNoTrips
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(list))
	for _, t := range list {
		if seen[t.ID] {
			return nil, fmt.Errorf("%w: %d", scheduling.ErrDuplicateTrip, t.ID)
		}
		seen[t.ID] = true
	}
	if err := p.Prepare(ctx, list); err != nil {
		return nil, err
	}

	cache, err := p.BuildTable(ctx, list, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to build travel time table: %w", err)
	}

	runID := uuid.NewString()
	var engineOpts []scheduling.EngineOption
	if p.Observer != nil {
		engineOpts = append(engineOpts, scheduling.WithObserver(p.Observer))
	}
	if p.Events != nil {
		engineOpts = append(engineOpts, scheduling.WithNotifier(p.Events.ForRun(runID)))
	}

	engine, err := scheduling.NewEngine(opts, cache, engineOpts...)
	if err != nil {
		return nil, err
	}
	result, err := engine.Run(ctx, list)
	if err != nil {
		return nil, err
	}

	rep := report.Build(result)
	rep.RunID = runID

	if p.Runs != nil {
		config, err := json.Marshal(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to encode options: %w", err)
		}
		if _, err := p.Runs.Save(ctx, rep, database.RunMeta{
			Vehicles: opts.Vehicles,
			Capacity: opts.Capacity,
			Config:   string(config),
		}); err != nil {
			return nil, fmt.Errorf("failed to save run: %w", err)
		}
		log.Printf("[DB] Run saved: id=%s committed=%d rejected=%d", runID, rep.Summary.CommittedTrips, rep.Summary.RejectedTrips)
	}

	return rep, nil
}
