package scheduling

// Fleet is the fixed set of vehicle schedules. Only the engine's commit
// step mutates it.
type Fleet struct {
	vehicles []*VehicleSchedule
}

// NewFleet creates n empty vehicles of equal capacity
func NewFleet(n, capacity int, operatingStart, operatingEnd float64) *Fleet {
	vehicles := make([]*VehicleSchedule, n)
	for i := range vehicles {
		vehicles[i] = NewVehicleSchedule(i, capacity, operatingStart, operatingEnd)
	}
	return &Fleet{vehicles: vehicles}
}

// Len returns the number of vehicles
func (f *Fleet) Len() int {
	return len(f.vehicles)
}

// Vehicle returns the schedule of vehicle i
func (f *Fleet) Vehicle(i int) *VehicleSchedule {
	return f.vehicles[i]
}

// Vehicles returns every schedule in vehicle order
func (f *Fleet) Vehicles() []*VehicleSchedule {
	return append([]*VehicleSchedule(nil), f.vehicles...)
}

// Locate finds the vehicle and indices holding a trip
func (f *Fleet) Locate(tripID int64) (vehicle, pickup, dropoff int, ok bool) {
	for i, v := range f.vehicles {
		if p, d, found := v.Locate(tripID); found {
			return i, p, d, true
		}
	}
	return -1, -1, -1, false
}

// Used counts vehicles with at least one trip
func (f *Fleet) Used() int {
	n := 0
	for _, v := range f.vehicles {
		if v.JobCount() > 0 {
			n++
		}
	}
	return n
}
