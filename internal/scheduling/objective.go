package scheduling

// Weights are the load-cost coefficients
type Weights struct {
	Driving       float64 `mapstructure:"driving" json:"driving" yaml:"driving"`
	WaitHandling  float64 `mapstructure:"wait_handling" json:"wait_handling" yaml:"wait_handling"`
	WaitLinear    float64 `mapstructure:"wait_linear" json:"wait_linear" yaml:"wait_linear"`
	WaitQuadratic float64 `mapstructure:"wait_quadratic" json:"wait_quadratic" yaml:"wait_quadratic"`
	Deviation     float64 `mapstructure:"deviation" json:"deviation" yaml:"deviation"`
	Capacity      float64 `mapstructure:"capacity" json:"capacity" yaml:"capacity"`
	Utilization   float64 `mapstructure:"utilization" json:"utilization" yaml:"utilization"`
	RouteTime     float64 `mapstructure:"route_time" json:"route_time" yaml:"route_time"`
}

// Objective scores feasible routes; lower is better
type Objective struct {
	Weights           Weights
	FavorBusyVehicles bool
	MinimizeMileage   bool
}

// Score computes the load cost of a route. times and edges hold the service
// time of each job and the travel time into it. pickups is scratch space.
func (o Objective) Score(jobs []*Job, times, edges []float64, capacity int, pickups map[int64]int) float64 {
	w := o.Weights
	clear(pickups)

	jobCount := float64(len(jobs) - 2)
	if jobCount <= 0 {
		return 0
	}

	var total float64
	load := 0
	for k := 1; k < len(jobs)-1; k++ {
		job := jobs[k]
		load += job.Load()

		deviation := times[k] - job.DesiredTime

		switch job.Type {
		case Pickup:
			wait := max(deviation, 0)
			total += w.WaitQuadratic*wait*wait + w.WaitLinear*wait
			pickups[job.Trip.ID] = k
		case Dropoff:
			if p, ok := pickups[job.Trip.ID]; ok {
				wait := max(times[p]-jobs[p].DesiredTime, 0)
				handling := jobs[p].Duration + job.Duration
				total += w.Driving*(times[k]-times[p]) + w.WaitHandling*(wait+handling)
			}
		}

		total += w.Deviation * deviation * deviation

		free := float64(capacity - load)
		total += w.Capacity * free * free

		if o.MinimizeMileage {
			total += w.RouteTime * edges[k] / jobCount
		}
	}

	if o.FavorBusyVehicles {
		total -= w.Utilization / (jobCount / 2)
	}

	return total
}
