package scheduling

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dial-a-ride/internal/models"
)

// Outcome is the final state of a trip
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeRejected  Outcome = "rejected"
)

// Assignment records where a trip was committed
type Assignment struct {
	TripID      int64   `json:"trip_id"`
	Vehicle     int     `json:"vehicle"`
	Pickup      int     `json:"pickup_index"`
	Dropoff     int     `json:"dropoff_index"`
	PickupTime  float64 `json:"pickup_minute"`
	DropoffTime float64 `json:"dropoff_minute"`
	Score       float64 `json:"score"`
}

// Rejection records a trip no vehicle could take
type Rejection struct {
	TripID int64  `json:"trip_id"`
	Reason string `json:"reason"`
}

// Result is the outcome of a run
type Result struct {
	Fleet       *Fleet
	Trips       []models.Trip
	Assignments []Assignment
	Rejected    []Rejection
}

// Observer receives per-trip and per-vehicle evaluation results
type Observer interface {
	ObserveTrip(outcome Outcome, elapsed time.Duration)
	ObserveVehicle(c Candidate)
}

// Notifier is told about every committed and rejected trip
type Notifier interface {
	TripCommitted(ctx context.Context, a Assignment) error
	TripRejected(ctx context.Context, r Rejection) error
}

// EngineOption customizes an Engine
type EngineOption func(*Engine)

// WithCostFunc replaces the queue ordering cost
func WithCostFunc(cost CostFunc) EngineOption {
	return func(e *Engine) {
		e.cost = cost
	}
}

// WithObserver attaches an evaluation observer
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithNotifier attaches a commit/reject notifier
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) {
		e.notifier = n
	}
}

// Engine schedules trips one at a time, searching every vehicle in
// parallel and committing the best insertion
type Engine struct {
	opts     Options
	times    TravelTimes
	fleet    *Fleet
	searcher *searcher
	cost     CostFunc
	observer Observer
	notifier Notifier
}

// NewEngine creates an engine with an empty fleet
func NewEngine(opts Options, times TravelTimes, options ...EngineOption) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	e := &Engine{
		opts:  opts,
		times: times,
		fleet: NewFleet(opts.Vehicles, opts.Capacity, opts.OperatingStart, opts.OperatingEnd),
		searcher: &searcher{
			constraints: opts.constraints(),
			objective:   opts.objective(),
			times:       times,
		},
		cost: DefaultCost(opts),
	}
	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

// Fleet returns the engine's fleet
func (e *Engine) Fleet() *Fleet {
	return e.fleet
}

// Run schedules every trip in cost order. Rejections are collected in the
// result; an error means the run was aborted.
func (e *Engine) Run(ctx context.Context, trips []models.Trip) (*Result, error) {
	start := time.Now()
	log.Printf("[ENGINE] Starting run: trips=%d vehicles=%d capacity=%d workers=%d",
		len(trips), e.opts.Vehicles, e.opts.Capacity, e.opts.Workers)

	queue := NewRequestQueue(e.cost)
	seen := make(map[int64]bool, len(trips))
	for i := range trips {
		if seen[trips[i].ID] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateTrip, trips[i].ID)
		}
		seen[trips[i].ID] = true
		queue.Push(&trips[i])
	}

	result := &Result{Fleet: e.fleet, Trips: trips}
	for queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, _ := queue.Pop()

		assignment, rejection, err := e.schedule(ctx, req.Trip)
		if err != nil {
			log.Printf("[ERROR] Run aborted: trip=%d err=%v", req.Trip.ID, err)
			return nil, err
		}
		if rejection != nil {
			result.Rejected = append(result.Rejected, *rejection)
		} else {
			result.Assignments = append(result.Assignments, *assignment)
		}
	}

	log.Printf("[ENGINE] Run complete: committed=%d rejected=%d vehicles_used=%d elapsed=%s",
		len(result.Assignments), len(result.Rejected), e.fleet.Used(), time.Since(start).Round(time.Millisecond))
	return result, nil
}

// Schedule places a single trip into the fleet
func (e *Engine) Schedule(ctx context.Context, trip *models.Trip) (Outcome, error) {
	if _, _, _, ok := e.fleet.Locate(trip.ID); ok {
		return "", fmt.Errorf("%w: %d", ErrDuplicateTrip, trip.ID)
	}
	_, rejection, err := e.schedule(ctx, trip)
	if err != nil {
		return "", err
	}
	if rejection != nil {
		return OutcomeRejected, nil
	}
	return OutcomeCommitted, nil
}

func (e *Engine) schedule(ctx context.Context, trip *models.Trip) (*Assignment, *Rejection, error) {
	start := time.Now()
	pickup, dropoff := NewTripJobs(trip, e.opts.HandlingMinutes)

	candidates, err := e.evaluate(ctx, trip, pickup, dropoff)
	if err != nil {
		return nil, nil, err
	}

	best := -1
	for i := range candidates {
		c := candidates[i]
		if e.observer != nil {
			e.observer.ObserveVehicle(c)
		}
		if !c.Feasible || c.TimedOut {
			continue
		}
		if best < 0 || c.Score < candidates[best].Score {
			best = i
		}
	}

	if best < 0 {
		rejection := &Rejection{TripID: trip.ID, Reason: rejectionReason(candidates)}
		log.Printf("[ENGINE] Trip rejected: trip=%d reason=%q", trip.ID, rejection.Reason)
		if e.observer != nil {
			e.observer.ObserveTrip(OutcomeRejected, time.Since(start))
		}
		if e.notifier != nil {
			if err := e.notifier.TripRejected(ctx, *rejection); err != nil {
				log.Printf("[ERROR] Failed to publish rejection: trip=%d err=%v", trip.ID, err)
			}
		}
		return nil, rejection, nil
	}

	winner := candidates[best]
	vehicle := e.fleet.Vehicle(winner.Vehicle)
	if err := vehicle.commit(pickup, dropoff, winner.Pickup, winner.Dropoff, e.times); err != nil {
		return nil, nil, err
	}

	assignment := &Assignment{
		TripID:      trip.ID,
		Vehicle:     winner.Vehicle,
		Pickup:      winner.Pickup,
		Dropoff:     winner.Dropoff,
		PickupTime:  pickup.ServiceTime,
		DropoffTime: dropoff.ServiceTime,
		Score:       winner.Score,
	}
	log.Printf("[ENGINE] Trip committed: trip=%d vehicle=%d pickup=%d dropoff=%d score=%.2f",
		trip.ID, winner.Vehicle, winner.Pickup, winner.Dropoff, winner.Score)

	if e.observer != nil {
		e.observer.ObserveTrip(OutcomeCommitted, time.Since(start))
	}
	if e.notifier != nil {
		if err := e.notifier.TripCommitted(ctx, *assignment); err != nil {
			log.Printf("[ERROR] Failed to publish assignment: trip=%d err=%v", trip.ID, err)
		}
	}
	return assignment, nil, nil
}

// evaluate runs one search task per vehicle and waits for all of them.
// When the evaluation timeout expires the join stops waiting: vehicles
// whose task has not reported yet are marked TimedOut, and a task stuck in a
// travel time lookup is left behind with its results discarded.
func (e *Engine) evaluate(ctx context.Context, trip *models.Trip, pickup, dropoff *Job) ([]Candidate, error) {
	evalCtx := ctx
	if e.opts.EvaluationTimeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, e.opts.EvaluationTimeout)
		defer cancel()
	}

	snaps := make([]snapshot, e.fleet.Len())
	for i, vehicle := range e.fleet.vehicles {
		snaps[i] = vehicle.snapshot()
	}

	var (
		mu       sync.Mutex
		results  = make([]Candidate, len(snaps))
		reported = make([]bool, len(snaps))
		joined   bool
	)

	g, gctx := errgroup.WithContext(evalCtx)
	g.SetLimit(e.opts.Workers)

	done := make(chan error, 1)
	go func() {
		for i, snap := range snaps {
			g.Go(func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = &WorkerFailureError{TripID: trip.ID, Vehicle: i, Err: fmt.Errorf("panic: %v", r)}
					}
				}()

				c, err := e.searcher.search(gctx, snap, pickup, dropoff)
				if err != nil {
					return &WorkerFailureError{TripID: trip.ID, Vehicle: i, Err: err}
				}
				mu.Lock()
				if !joined {
					results[i] = c
					reported[i] = true
				}
				mu.Unlock()
				return nil
			})
		}
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
	case <-evalCtx.Done():
		select {
		case err := <-done:
			if err != nil {
				return nil, err
			}
		default:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mu.Lock()
	joined = true
	candidates := make([]Candidate, len(results))
	timedOut := 0
	for i := range results {
		if !reported[i] {
			candidates[i] = Candidate{Vehicle: i, TimedOut: true}
		} else {
			candidates[i] = results[i]
		}
		if candidates[i].TimedOut {
			timedOut++
		}
	}
	mu.Unlock()

	if timedOut > 0 {
		log.Printf("[SEARCH] Evaluation timed out: trip=%d vehicles=%d timeout=%s", trip.ID, timedOut, e.opts.EvaluationTimeout)
	}
	return candidates, nil
}

func rejectionReason(candidates []Candidate) string {
	counts := make(map[string]int)
	var order []string
	for _, c := range candidates {
		key := c.Violation.String()
		if c.TimedOut {
			key = "timed_out"
		} else if c.Violation == NoViolation {
			key = "no_position"
		}
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}

	parts := make([]string, len(order))
	for i, key := range order {
		parts[i] = fmt.Sprintf("%s=%d", key, counts[key])
	}
	return "no feasible vehicle: " + strings.Join(parts, " ")
}
