package scheduling

import (
	"context"
)

// Candidate is the best insertion one vehicle can offer a trip
type Candidate struct {
	Vehicle   int
	Feasible  bool
	TimedOut  bool
	Pickup    int
	Dropoff   int
	Score     float64
	Evaluated int
	// Violation is the last constraint that rejected a position pair
	Violation Violation
}

type searcher struct {
	constraints Constraints
	objective   Objective
	times       TravelTimes
}

// scratch is owned by a single search task
type scratch struct {
	jobs    []*Job
	from    []int
	memo    []float64
	times   []float64
	edges   []float64
	pickups map[int64]int
}

func newScratch(n int) *scratch {
	return &scratch{
		jobs:    make([]*Job, 0, n),
		from:    make([]int, 0, n),
		memo:    make([]float64, 0, n),
		times:   make([]float64, n),
		edges:   make([]float64, n),
		pickups: make(map[int64]int, n/2),
	}
}

// evaluate places the trip at (p, d) in the snapshot and computes working
// service times for the resulting route
func (sr *searcher) evaluate(sc *scratch, snap snapshot, pickup, dropoff *Job, p, d int) (Feasibility, error) {
	sc.jobs, sc.from = place(snap.jobs, pickup, dropoff, p, d, sc.jobs, sc.from)
	sc.memo = alignMemo(snap.edges, sc.from, sc.memo)
	if err := sweep(sc.jobs, sc.memo, sc.times, sc.edges, sr.times); err != nil {
		return Feasibility{}, err
	}
	return sr.constraints.Check(sc.jobs, sc.from, sc.times, snap.capacity, sc.pickups), nil
}

// search walks pickup and dropoff cursors through the snapshot and returns
// the lowest scoring feasible placement. Service times only grow as a cursor
// moves right, so a pickup past its window or past the end depot ends the
// search for this vehicle and a too-long ride is retried with the pickup
// moved closer to the dropoff.
func (sr *searcher) search(ctx context.Context, snap snapshot, pickup, dropoff *Job) (Candidate, error) {
	best := Candidate{Vehicle: snap.vehicle}
	sc := newScratch(len(snap.jobs) + 2)
	end := len(snap.jobs) + 1

	p, d := 1, 2
	for first := true; ; first = false {
		if !first {
			if d+1 == end {
				p++
				d = p + 1
			} else {
				d++
			}
		}
		if d >= end {
			break
		}

		for {
			if ctx.Err() != nil {
				best.TimedOut = true
				return best, nil
			}

			f, err := sr.evaluate(sc, snap, pickup, dropoff, p, d)
			if err != nil {
				return best, err
			}
			best.Evaluated++

			if f.OK() {
				score := sr.objective.Score(sc.jobs, sc.times, sc.edges, snap.capacity, sc.pickups)
				if !best.Feasible || score < best.Score {
					best.Feasible = true
					best.Pickup = p
					best.Dropoff = d
					best.Score = score
				}
				break
			}

			best.Violation = f.Violation
			if f.Violation == MaxTravelViolation && f.Index == d && p+1 < d {
				p++
				continue
			}
			if f.Violation == WindowViolation && f.Index == p {
				return best, nil
			}
			if f.Violation == OperatingHoursViolation && f.Index == p && sc.times[p] > snap.jobs[len(snap.jobs)-1].DesiredTime {
				return best, nil
			}
			break
		}
	}

	if ctx.Err() != nil {
		best.TimedOut = true
	}
	return best, nil
}
