package scheduling

import (
	"runtime"
	"time"
)

// Options configures the scheduling engine. Times are in minutes unless
// noted otherwise.
type Options struct {
	Vehicles       int
	Capacity       int
	PickupWindow   float64
	MaxTravelCoeff float64
	Weights        Weights

	FavorBusyVehicles bool
	MinimizeMileage   bool
	SoftConstraints   bool
	StrictCommitTimes bool

	OperatingStart  float64
	OperatingEnd    float64
	HandlingMinutes float64

	// WindowCost and MaxTravelCostScale parameterize DefaultCost
	WindowCost         float64
	MaxTravelCostScale float64

	Workers           int
	EvaluationTimeout time.Duration
}

// DefaultOptions returns the stock engine configuration
func DefaultOptions() Options {
	return Options{
		Vehicles:       10,
		Capacity:       4,
		PickupWindow:   15,
		MaxTravelCoeff: 2.0,
		Weights: Weights{
			Driving:       1,
			WaitHandling:  1,
			WaitLinear:    1,
			WaitQuadratic: 0.1,
			Deviation:     0.01,
			Capacity:      0.1,
			Utilization:   10,
			RouteTime:     1,
		},
		StrictCommitTimes:  true,
		OperatingStart:     0,
		OperatingEnd:       24 * 60,
		WindowCost:         1,
		MaxTravelCostScale: 100,
		Workers:            runtime.NumCPU(),
		EvaluationTimeout:  30 * time.Second,
	}
}

// Validate checks that the options describe a usable fleet
func (o Options) Validate() error {
	switch {
	case o.Vehicles < 1:
		return &ErrInvalidOptions{Field: "vehicles", Reason: "must be at least 1"}
	case o.Capacity < 1:
		return &ErrInvalidOptions{Field: "capacity", Reason: "must be at least 1"}
	case o.PickupWindow < 0:
		return &ErrInvalidOptions{Field: "pickup_window", Reason: "must not be negative"}
	case o.MaxTravelCoeff <= 0:
		return &ErrInvalidOptions{Field: "max_travel_coeff", Reason: "must be positive"}
	case o.OperatingEnd <= o.OperatingStart:
		return &ErrInvalidOptions{Field: "operating_end", Reason: "must be after operating_start"}
	case o.HandlingMinutes < 0:
		return &ErrInvalidOptions{Field: "handling_minutes", Reason: "must not be negative"}
	case o.EvaluationTimeout < 0:
		return &ErrInvalidOptions{Field: "evaluation_timeout", Reason: "must not be negative"}
	}
	return nil
}

func (o Options) constraints() Constraints {
	return Constraints{
		PickupWindow:      o.PickupWindow,
		MaxTravelCoeff:    o.MaxTravelCoeff,
		Soft:              o.SoftConstraints,
		StrictCommitTimes: o.StrictCommitTimes,
	}
}

func (o Options) objective() Objective {
	return Objective{
		Weights:           o.Weights,
		FavorBusyVehicles: o.FavorBusyVehicles,
		MinimizeMileage:   o.MinimizeMileage,
	}
}
