package models

import (
	"fmt"
	"math"
	"time"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// IsZero reports whether the point was never set
func (c Coordinates) IsZero() bool {
	return c.Lat == 0 && c.Lng == 0
}

// RoundCoordinate rounds to 5 decimal places (~1m), the precision used for cache keys
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// Trip is one rider's request to travel from Origin to Destination.
// PickupMinute counts minutes since midnight; DirectSeconds is the
// unshared travel duration between the two points.
type Trip struct {
	ID            int64       `json:"id"`
	Origin        Coordinates `json:"origin"`
	Destination   Coordinates `json:"destination"`
	OriginAddress string      `json:"origin_address,omitempty"`
	DestAddress   string      `json:"dest_address,omitempty"`
	PickupMinute  float64     `json:"pickup_minute"`
	DirectSeconds float64     `json:"direct_seconds"`
}

// DirectMinutes returns the direct travel duration in minutes
func (t *Trip) DirectMinutes() float64 {
	return t.DirectSeconds / 60
}

// DropoffMinute returns the earliest sensible dropoff, pickup plus direct duration
func (t *Trip) DropoffMinute() float64 {
	return t.PickupMinute + t.DirectMinutes()
}

// FormatMinute renders minutes since midnight as HH:MM
func FormatMinute(m float64) string {
	neg := m < 0
	if neg {
		m = -m
	}
	total := int(math.Round(m))
	s := fmt.Sprintf("%02d:%02d", total/60, total%60)
	if neg {
		return "-" + s
	}
	return s
}

// ParseClock parses HH:MM into minutes since midnight
func ParseClock(s string) (float64, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return float64(h*60 + m), nil
}

// StopKind names the kind of a scheduled stop in reports
type StopKind string

const (
	StopPickup     StopKind = "pickup"
	StopDropoff    StopKind = "dropoff"
	StopDepotStart StopKind = "depot_start"
	StopDepotEnd   StopKind = "depot_end"
)

// ScheduledStop is one committed stop in a vehicle route
type ScheduledStop struct {
	Order         int      `json:"order" yaml:"order"`
	Kind          StopKind `json:"kind" yaml:"kind"`
	TripID        int64    `json:"trip_id,omitempty" yaml:"trip_id,omitempty"`
	DesiredMinute float64  `json:"desired_minute" yaml:"desired_minute"`
	ServiceMinute float64  `json:"service_minute" yaml:"service_minute"`
	Desired       string   `json:"desired" yaml:"desired"`
	Service       string   `json:"service" yaml:"service"`
	Passengers    int      `json:"passengers" yaml:"passengers"`
}

// VehicleRoute is a vehicle's full committed route
type VehicleRoute struct {
	Vehicle  int             `json:"vehicle" yaml:"vehicle"`
	Capacity int             `json:"capacity" yaml:"capacity"`
	Stops    []ScheduledStop `json:"stops" yaml:"stops"`
}

// RejectedTrip records a trip no vehicle could take
type RejectedTrip struct {
	TripID int64  `json:"trip_id" yaml:"trip_id"`
	Reason string `json:"reason" yaml:"reason"`
}

// ScheduleSummary contains aggregate stats for a scheduling run
type ScheduleSummary struct {
	TotalTrips     int     `json:"total_trips" yaml:"total_trips"`
	CommittedTrips int     `json:"committed_trips" yaml:"committed_trips"`
	RejectedTrips  int     `json:"rejected_trips" yaml:"rejected_trips"`
	VehiclesUsed   int     `json:"vehicles_used" yaml:"vehicles_used"`
	MeanRideRatio  float64 `json:"mean_ride_ratio" yaml:"mean_ride_ratio"`
}

// ScheduleReport is the full output of a scheduling run
type ScheduleReport struct {
	RunID    string          `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Routes   []VehicleRoute  `json:"routes" yaml:"routes"`
	Rejected []RejectedTrip  `json:"rejected" yaml:"rejected"`
	Summary  ScheduleSummary `json:"summary" yaml:"summary"`
}

// RoutePair is an ordered origin/destination pair
type RoutePair struct {
	Origin      Coordinates
	Destination Coordinates
}

// Rounded returns the pair at cache key precision
func (p RoutePair) Rounded() RoutePair {
	return RoutePair{
		Origin:      Coordinates{Lat: RoundCoordinate(p.Origin.Lat), Lng: RoundCoordinate(p.Origin.Lng)},
		Destination: Coordinates{Lat: RoundCoordinate(p.Destination.Lat), Lng: RoundCoordinate(p.Destination.Lng)},
	}
}

// Degenerate reports whether both ends round to the same point
func (p RoutePair) Degenerate() bool {
	r := p.Rounded()
	return r.Origin == r.Destination
}

// TravelTimeEntry represents a cached oracle lookup
type TravelTimeEntry struct {
	Origin       Coordinates `json:"origin"`
	Destination  Coordinates `json:"destination"`
	DurationSecs float64     `json:"duration_secs"`
}

// RunSummary is a stored scheduling run without its routes
type RunSummary struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Vehicles  int             `json:"vehicles"`
	Capacity  int             `json:"capacity"`
	Summary   ScheduleSummary `json:"summary"`
}
