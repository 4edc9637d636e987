package scheduling

import (
	"math"

	"dial-a-ride/internal/models"
)

// CostFunc rates how hard a trip is to place. Higher costs are scheduled first.
type CostFunc func(trip *models.Trip) float64

// ConstantCost returns the same cost for every trip
func ConstantCost(c float64) CostFunc {
	return func(*models.Trip) float64 {
		return c
	}
}

// SlackCost is inversely proportional to the slack between a trip's direct
// duration and its maximum allowed duration. Trips without slack are +Inf.
func SlackCost(maxTravelCoeff, scale float64) CostFunc {
	return func(trip *models.Trip) float64 {
		direct := trip.DirectMinutes()
		slack := direct*maxTravelCoeff - direct
		if slack <= 0 {
			return math.Inf(1)
		}
		return scale / slack
	}
}

// SumCost adds the given terms
func SumCost(terms ...CostFunc) CostFunc {
	return func(trip *models.Trip) float64 {
		var total float64
		for _, term := range terms {
			total += term(trip)
		}
		return total
	}
}

// DefaultCost is the window term plus the slack term configured in opts
func DefaultCost(opts Options) CostFunc {
	return SumCost(
		ConstantCost(opts.WindowCost),
		SlackCost(opts.MaxTravelCoeff, opts.MaxTravelCostScale),
	)
}
