package scheduling

import (
	"fmt"

	"dial-a-ride/internal/models"
	"dial-a-ride/internal/traveltime"
)

// JobType is the kind of stop a Job represents
type JobType int

const (
	Pickup JobType = iota
	Dropoff
	DepotStart
	DepotEnd
)

func (t JobType) String() string {
	switch t {
	case Pickup:
		return "pickup"
	case Dropoff:
		return "dropoff"
	case DepotStart:
		return "depot_start"
	case DepotEnd:
		return "depot_end"
	default:
		return fmt.Sprintf("JobType(%d)", int(t))
	}
}

// depotMargin is how far outside operating hours the depot sentinels sit
const depotMargin = 60.0

// Job is a single stop in a vehicle route. Times are minutes since midnight.
// ServiceTime is written only when the job is committed.
type Job struct {
	Type        JobType
	Trip        *models.Trip
	DesiredTime float64
	Duration    float64
	ServiceTime float64
}

// NewTripJobs splits a trip into its pickup and dropoff jobs
func NewTripJobs(trip *models.Trip, handling float64) (*Job, *Job) {
	pickup := &Job{
		Type:        Pickup,
		Trip:        trip,
		DesiredTime: trip.PickupMinute,
		Duration:    handling,
	}
	dropoff := &Job{
		Type:        Dropoff,
		Trip:        trip,
		DesiredTime: trip.PickupMinute + trip.DirectMinutes(),
		Duration:    handling,
	}
	return pickup, dropoff
}

func newDepotJobs(operatingStart, operatingEnd float64) (*Job, *Job) {
	start := &Job{Type: DepotStart, DesiredTime: operatingStart - depotMargin}
	start.ServiceTime = start.DesiredTime
	end := &Job{Type: DepotEnd, DesiredTime: operatingEnd + depotMargin}
	end.ServiceTime = end.DesiredTime
	return start, end
}

// IsDepot reports whether the job is a route sentinel
func (j *Job) IsDepot() bool {
	return j.Type == DepotStart || j.Type == DepotEnd
}

// TripID returns the owning trip id, or 0 for depots
func (j *Job) TripID() int64 {
	if j.Trip == nil {
		return 0
	}
	return j.Trip.ID
}

// Load is the change in passengers aboard after this stop
func (j *Job) Load() int {
	switch j.Type {
	case Pickup:
		return 1
	case Dropoff:
		return -1
	default:
		return 0
	}
}

func (j *Job) endpoint() traveltime.Endpoint {
	return traveltime.Endpoint{TripID: j.Trip.ID, Origin: j.Type == Pickup}
}

func (j *Job) String() string {
	if j.IsDepot() {
		return j.Type.String()
	}
	return fmt.Sprintf("%s(trip %d)", j.Type, j.Trip.ID)
}
