package scheduling

import (
	"fmt"

	"dial-a-ride/internal/traveltime"
)

// TravelTimes is the read-only lookup the scheduler depends on
type TravelTimes interface {
	Get(from, to traveltime.Endpoint) (float64, error)
}

// unknownEdge marks an edge with no memoized travel time
const unknownEdge = -1.0

// VehicleSchedule is one vehicle's ordered route, bounded by depot sentinels.
// It remembers the travel time into each committed job from its committed
// predecessor so searches do not repeat those lookups.
type VehicleSchedule struct {
	index    int
	capacity int
	jobs     []*Job
	edges    []float64
}

// NewVehicleSchedule creates an empty route for vehicle index
func NewVehicleSchedule(index, capacity int, operatingStart, operatingEnd float64) *VehicleSchedule {
	start, end := newDepotJobs(operatingStart, operatingEnd)
	return &VehicleSchedule{
		index:    index,
		capacity: capacity,
		jobs:     []*Job{start, end},
		edges:    []float64{0, 0},
	}
}

// Index returns the vehicle ordinal
func (s *VehicleSchedule) Index() int {
	return s.index
}

// Capacity returns the seat limit
func (s *VehicleSchedule) Capacity() int {
	return s.capacity
}

// Jobs returns a copy of the route including depot sentinels
func (s *VehicleSchedule) Jobs() []*Job {
	return append([]*Job(nil), s.jobs...)
}

// JobCount returns the number of pickup and dropoff jobs
func (s *VehicleSchedule) JobCount() int {
	return len(s.jobs) - 2
}

// Edge returns the memoized travel time into job k, or -1 if unknown
func (s *VehicleSchedule) Edge(k int) float64 {
	return s.edges[k]
}

// Locate returns the indices of a trip's pickup and dropoff
func (s *VehicleSchedule) Locate(tripID int64) (pickup, dropoff int, ok bool) {
	pickup, dropoff = -1, -1
	for k, job := range s.jobs {
		if job.TripID() != tripID || job.IsDepot() {
			continue
		}
		if job.Type == Pickup {
			pickup = k
		} else {
			dropoff = k
		}
	}
	return pickup, dropoff, pickup >= 0 && dropoff >= 0
}

// snapshot is a detached, read-only copy handed to a search task. Jobs are
// copied so a task that outlives its evaluation never sees later commits.
type snapshot struct {
	vehicle  int
	capacity int
	jobs     []*Job
	edges    []float64
}

func (s *VehicleSchedule) snapshot() snapshot {
	jobs := make([]*Job, len(s.jobs))
	for k, job := range s.jobs {
		cp := *job
		jobs[k] = &cp
	}
	return snapshot{
		vehicle:  s.index,
		capacity: s.capacity,
		jobs:     jobs,
		edges:    append([]float64(nil), s.edges...),
	}
}

// commit inserts a trip's jobs so they land at positions p and d of the new
// route, then recomputes authoritative service times.
func (s *VehicleSchedule) commit(pickup, dropoff *Job, p, d int, tt TravelTimes) error {
	if p < 1 || d <= p || d > len(s.jobs) {
		return fmt.Errorf("invalid insertion positions pickup=%d dropoff=%d for route of %d jobs", p, d, len(s.jobs))
	}

	jobs, from := place(s.jobs, pickup, dropoff, p, d, nil, nil)
	memo := alignMemo(s.edges, from, nil)
	times := make([]float64, len(jobs))
	edges := make([]float64, len(jobs))
	if err := sweep(jobs, memo, times, edges, tt); err != nil {
		return fmt.Errorf("failed to commit trip %d on vehicle %d: %w", pickup.TripID(), s.index, err)
	}

	for k, job := range jobs {
		if !job.IsDepot() {
			job.ServiceTime = times[k]
		}
	}
	s.jobs = jobs
	s.edges = edges
	return nil
}

// Resweep recomputes service times of the committed route in place
func (s *VehicleSchedule) Resweep(tt TravelTimes) error {
	times := make([]float64, len(s.jobs))
	if err := sweep(s.jobs, s.edges, times, s.edges, tt); err != nil {
		return err
	}
	for k, job := range s.jobs {
		if !job.IsDepot() {
			job.ServiceTime = times[k]
		}
	}
	return nil
}

// place builds the route base with pickup at p and dropoff at d. from[k]
// is the index of jobs[k] in base, or -1 for the inserted jobs.
func place(base []*Job, pickup, dropoff *Job, p, d int, jobs []*Job, from []int) ([]*Job, []int) {
	n := len(base) + 2
	jobs = jobs[:0]
	from = from[:0]
	src := 0
	for k := 0; k < n; k++ {
		switch k {
		case p:
			jobs = append(jobs, pickup)
			from = append(from, -1)
		case d:
			jobs = append(jobs, dropoff)
			from = append(from, -1)
		default:
			jobs = append(jobs, base[src])
			from = append(from, src)
			src++
		}
	}
	return jobs, from
}

// alignMemo carries base edges over to a placed route wherever two jobs
// that were adjacent in base are still adjacent
func alignMemo(baseEdges []float64, from []int, memo []float64) []float64 {
	memo = memo[:0]
	for k := range from {
		edge := unknownEdge
		if k > 0 && from[k] > 0 && from[k-1] == from[k]-1 {
			edge = baseEdges[from[k]]
		}
		memo = append(memo, edge)
	}
	return memo
}

// sweep computes service times forward over the real jobs. The first real
// job is served at its desired time; every later job at the later of its
// arrival and its desired time. memo may be nil; where memo[k] >= 0 it is
// used instead of a cache lookup. Depots keep their desired times.
func sweep(jobs []*Job, memo []float64, times, edges []float64, tt TravelTimes) error {
	last := len(jobs) - 1
	times[0] = jobs[0].DesiredTime
	edges[0] = 0

	for k := 1; k < last; k++ {
		job := jobs[k]
		if k == 1 {
			times[k] = job.DesiredTime
			edges[k] = 0
			continue
		}

		edge := unknownEdge
		if memo != nil {
			edge = memo[k]
		}
		if edge < 0 {
			var err error
			edge, err = tt.Get(jobs[k-1].endpoint(), job.endpoint())
			if err != nil {
				return err
			}
		}
		edges[k] = edge
		times[k] = max(times[k-1]+edge, job.DesiredTime)
	}

	times[last] = jobs[last].DesiredTime
	edges[last] = 0
	return nil
}
