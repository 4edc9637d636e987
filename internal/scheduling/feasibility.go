package scheduling

import (
	"fmt"
	"math"
)

// Violation names the constraint a candidate route breaks
type Violation int

const (
	NoViolation Violation = iota
	CapacityViolation
	WindowViolation
	MaxTravelViolation
	ShiftViolation
	OperatingHoursViolation
)

func (v Violation) String() string {
	switch v {
	case NoViolation:
		return "none"
	case CapacityViolation:
		return "capacity"
	case WindowViolation:
		return "pickup_window"
	case MaxTravelViolation:
		return "max_travel"
	case ShiftViolation:
		return "committed_time_shift"
	case OperatingHoursViolation:
		return "operating_hours"
	default:
		return fmt.Sprintf("Violation(%d)", int(v))
	}
}

// Feasibility is the result of checking a route. Index is the offending job.
type Feasibility struct {
	Violation Violation
	Index     int
}

// OK reports whether no constraint was violated
func (f Feasibility) OK() bool {
	return f.Violation == NoViolation
}

const shiftTolerance = 1e-9

// Constraints holds the feasibility rules applied to candidate routes
type Constraints struct {
	PickupWindow   float64
	MaxTravelCoeff float64
	// Soft disables every check except operating hours
	Soft bool
	// StrictCommitTimes rejects routes that move an already committed stop
	StrictCommitTimes bool
}

// MaxTravel returns the longest allowed ride for a trip in minutes. The
// direct duration is rounded to whole minutes like travel table entries.
func (c Constraints) MaxTravel(job *Job) float64 {
	return math.Round(job.Trip.DirectMinutes()) * c.MaxTravelCoeff
}

// Check scans jobs in order with a running passenger count and reports
// the first violation. times holds the service time of each job. from maps
// each job to its index in the committed route (-1 if new); pass nil to
// skip the committed-time check. pickups is scratch space and is cleared.
// Every stop must be served between the two depot times.
func (c Constraints) Check(jobs []*Job, from []int, times []float64, capacity int, pickups map[int64]int) Feasibility {
	clear(pickups)

	last := len(jobs) - 1
	load := 0
	for k := 1; k < last; k++ {
		if times[k] < times[0] || times[k] > times[last] {
			return Feasibility{Violation: OperatingHoursViolation, Index: k}
		}
		if c.Soft {
			continue
		}

		job := jobs[k]
		load += job.Load()

		switch job.Type {
		case Pickup:
			if load > capacity {
				return Feasibility{Violation: CapacityViolation, Index: k}
			}
			if times[k] > job.DesiredTime+c.PickupWindow {
				return Feasibility{Violation: WindowViolation, Index: k}
			}
			pickups[job.Trip.ID] = k
		case Dropoff:
			if p, ok := pickups[job.Trip.ID]; ok && times[k]-times[p] > c.MaxTravel(job) {
				return Feasibility{Violation: MaxTravelViolation, Index: k}
			}
		}

		if c.StrictCommitTimes && from != nil && from[k] >= 0 && math.Abs(times[k]-job.ServiceTime) > shiftTolerance {
			return Feasibility{Violation: ShiftViolation, Index: k}
		}
	}
	return Feasibility{}
}
