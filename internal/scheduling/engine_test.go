package scheduling

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dial-a-ride/internal/models"
	"dial-a-ride/internal/testutil"
	"dial-a-ride/internal/traveltime"
)

func runEngine(t *testing.T, opts Options, trips []models.Trip, options ...EngineOption) *Result {
	t.Helper()
	engine, err := NewEngine(opts, buildCache(t, trips), options...)
	require.NoError(t, err)
	result, err := engine.Run(context.Background(), trips)
	require.NoError(t, err)
	return result
}

func TestEngine_DisjointTripsShareVehicleInOrder(t *testing.T) {
	trips := []models.Trip{
		newTrip(1, pt(0, 0), pt(0, 0.1), 480, 10),
		newTrip(2, pt(0, 0.1), pt(0, 0.2), 540, 10),
	}

	result := runEngine(t, testOptions(), trips)
	require.Empty(t, result.Rejected)
	require.Len(t, result.Assignments, 2)

	jobs := result.Fleet.Vehicle(0).Jobs()
	require.Len(t, jobs, 6)
	assert.Equal(t, int64(1), jobs[1].TripID())
	assert.Equal(t, Pickup, jobs[1].Type)
	assert.Equal(t, int64(1), jobs[2].TripID())
	assert.Equal(t, Dropoff, jobs[2].Type)
	assert.Equal(t, int64(2), jobs[3].TripID())
	assert.Equal(t, int64(2), jobs[4].TripID())

	assert.Equal(t, 480.0, jobs[1].ServiceTime)
	assert.Equal(t, 490.0, jobs[2].ServiceTime)
	assert.Equal(t, 540.0, jobs[3].ServiceTime)
	assert.Equal(t, 550.0, jobs[4].ServiceTime)
}

func TestEngine_OverlappingTripsOneRejected(t *testing.T) {
	opts := testOptions()
	opts.PickupWindow = 5
	opts.MaxTravelCoeff = 1.2

	trips := []models.Trip{
		newTrip(1, pt(0, 0), pt(0, 0.1), 480, 10),
		newTrip(2, pt(0, 0.05), pt(0, 0.15), 485, 10),
	}

	result := runEngine(t, opts, trips)
	require.Len(t, result.Assignments, 1)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, int64(1), result.Assignments[0].TripID)
	assert.Equal(t, int64(2), result.Rejected[0].TripID)
	assert.Contains(t, result.Rejected[0].Reason, "pickup_window=1")
	assert.Equal(t, 2, result.Fleet.Vehicle(0).JobCount())
}

func TestEngine_RideLongerThanAllowedAlwaysRejected(t *testing.T) {
	opts := testOptions()
	opts.Vehicles = 3
	opts.Capacity = 4

	// direct duration says one minute but the road takes ten
	trips := []models.Trip{newTrip(1, pt(0, 0), pt(0, 0.1), 480, 1)}

	result := runEngine(t, opts, trips)
	assert.Empty(t, result.Assignments)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "no feasible vehicle: max_travel=3", result.Rejected[0].Reason)
	assert.Equal(t, 0, result.Fleet.Used())
}

func TestEngine_SoftConstraintsCommitEverything(t *testing.T) {
	opts := testOptions()
	opts.SoftConstraints = true

	trips := []models.Trip{
		newTrip(1, pt(0, 0), pt(0, 0.1), 480, 1),
		newTrip(2, pt(0, 0.05), pt(0, 0.15), 481, 1),
	}

	result := runEngine(t, opts, trips)
	assert.Empty(t, result.Rejected)
	assert.Len(t, result.Assignments, 2)
}

func TestEngine_TieGoesToLowestVehicle(t *testing.T) {
	opts := testOptions()
	opts.Vehicles = 3

	result := runEngine(t, opts, []models.Trip{newTrip(1, pt(0, 0), pt(0, 0.1), 480, 10)})
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, 0, result.Assignments[0].Vehicle)
}

func TestEngine_SimultaneousTripsSpreadAcrossVehicles(t *testing.T) {
	opts := testOptions()
	opts.Vehicles = 2

	trips := []models.Trip{
		newTrip(1, pt(0, 0), pt(0, 0.1), 480, 10),
		newTrip(2, pt(0.1, 0), pt(0.1, 0.1), 480, 10),
	}

	result := runEngine(t, opts, trips)
	require.Empty(t, result.Rejected)
	assert.Equal(t, 2, result.Fleet.Used())
}

func TestEngine_DuplicateTripIDs(t *testing.T) {
	trips := []models.Trip{
		newTrip(1, pt(0, 0), pt(0, 0.1), 480, 10),
		newTrip(2, pt(0, 0), pt(0, 0.1), 500, 10),
	}
	engine, err := NewEngine(testOptions(), buildCache(t, trips))
	require.NoError(t, err)

	trips[1].ID = 1
	_, err = engine.Run(context.Background(), trips)
	assert.True(t, errors.Is(err, ErrDuplicateTrip))
}

func TestEngine_InvalidOptions(t *testing.T) {
	opts := testOptions()
	opts.Vehicles = 0

	_, err := NewEngine(opts, fakeTimes{})
	var invalid *ErrInvalidOptions
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "vehicles", invalid.Field)
}

func TestEngine_CacheMissAbortsRun(t *testing.T) {
	trips := []models.Trip{newTrip(1, pt(0, 0), pt(0, 0.1), 480, 10)}
	cache, err := traveltime.NewCache([]int64{1})
	require.NoError(t, err)

	engine, err := NewEngine(testOptions(), cache)
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), trips)
	require.Error(t, err)
	assert.True(t, errors.Is(err, traveltime.ErrCacheMiss))

	var failure *WorkerFailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, int64(1), failure.TripID)
}

func TestEngine_WorkerPanicIsReported(t *testing.T) {
	opts := testOptions()
	opts.Vehicles = 2
	engine, err := NewEngine(opts, panicTimes{})
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), []models.Trip{newTrip(5, pt(0, 0), pt(0, 0.1), 480, 10)})
	var failure *WorkerFailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, int64(5), failure.TripID)
	assert.Contains(t, failure.Error(), "lookup exploded")
	assert.Equal(t, 0, engine.Fleet().Used())
}

type slowTimes struct {
	fakeTimes
	delay time.Duration
}

func (s slowTimes) Get(from, to traveltime.Endpoint) (float64, error) {
	time.Sleep(s.delay)
	return s.fakeTimes.Get(from, to)
}

func TestEngine_EvaluationTimeoutRejects(t *testing.T) {
	opts := testOptions()
	opts.Vehicles = 2
	opts.EvaluationTimeout = time.Millisecond

	tt := slowTimes{fakeTimes: fakeTimes{}.set(origin(1), dest(1), 10), delay: 20 * time.Millisecond}
	engine, err := NewEngine(opts, tt)
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), []models.Trip{newTrip(1, pt(0, 0), pt(0, 0.1), 480, 10)})
	require.NoError(t, err)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "no feasible vehicle: timed_out=2", result.Rejected[0].Reason)
}

// stalledTimes blocks every lookup until release is closed
type stalledTimes struct {
	release chan struct{}
}

func (s stalledTimes) Get(from, to traveltime.Endpoint) (float64, error) {
	<-s.release
	return 10, nil
}

func TestEngine_StalledLookupTimesOut(t *testing.T) {
	opts := testOptions()
	opts.Vehicles = 2
	opts.Workers = 1
	opts.EvaluationTimeout = 50 * time.Millisecond

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	engine, err := NewEngine(opts, stalledTimes{release: release})
	require.NoError(t, err)

	start := time.Now()
	result, err := engine.Run(context.Background(), []models.Trip{newTrip(1, pt(0, 0), pt(0, 0.1), 480, 10)})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "no feasible vehicle: timed_out=2", result.Rejected[0].Reason)
	assert.Equal(t, 0, engine.Fleet().Used())
}

func TestEngine_TripsOutsideOperatingHoursRejected(t *testing.T) {
	opts := testOptions()
	opts.OperatingStart = 480
	opts.OperatingEnd = 600

	trips := []models.Trip{
		newTrip(1, pt(0, 0), pt(0, 0.1), 300, 10),
		newTrip(2, pt(0, 0), pt(0, 0.1), 900, 10),
		newTrip(3, pt(0, 0), pt(0, 0.1), 500, 10),
	}

	result := runEngine(t, opts, trips)
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, int64(3), result.Assignments[0].TripID)

	require.Len(t, result.Rejected, 2)
	for _, r := range result.Rejected {
		assert.Equal(t, "no feasible vehicle: operating_hours=1", r.Reason, "trip %d", r.TripID)
	}
	checkInvariants(t, opts, result)
}

func TestEngine_CancelledRun(t *testing.T) {
	trips := []models.Trip{newTrip(1, pt(0, 0), pt(0, 0.1), 480, 10)}
	engine, err := NewEngine(testOptions(), buildCache(t, trips))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Run(ctx, trips)
	assert.ErrorIs(t, err, context.Canceled)
}

type recorder struct {
	mu        sync.Mutex
	trips     map[Outcome]int
	vehicles  int
	committed []Assignment
	rejected  []Rejection
}

func newRecorder() *recorder {
	return &recorder{trips: make(map[Outcome]int)}
}

func (r *recorder) ObserveTrip(outcome Outcome, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trips[outcome]++
}

func (r *recorder) ObserveVehicle(c Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vehicles++
}

func (r *recorder) TripCommitted(ctx context.Context, a Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, a)
	return nil
}

func (r *recorder) TripRejected(ctx context.Context, rej Rejection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, rej)
	return errors.New("notifier errors are logged, not fatal")
}

func TestEngine_ObserverAndNotifier(t *testing.T) {
	opts := testOptions()
	opts.Vehicles = 2
	opts.PickupWindow = 5
	opts.MaxTravelCoeff = 1.2

	trips := []models.Trip{
		newTrip(1, pt(0, 0), pt(0, 0.1), 480, 10),
		newTrip(2, pt(0, 0.3), pt(0, 0.4), 600, 10),
		newTrip(3, pt(0, 0), pt(0, 0.1), 480, 1),
	}
	rec := newRecorder()
	result := runEngine(t, opts, trips, WithObserver(rec), WithNotifier(rec))

	assert.Len(t, result.Assignments, 2)
	assert.Len(t, result.Rejected, 1)
	assert.Equal(t, 2, rec.trips[OutcomeCommitted])
	assert.Equal(t, 1, rec.trips[OutcomeRejected])
	assert.Equal(t, 6, rec.vehicles)
	assert.Len(t, rec.committed, 2)
	require.Len(t, rec.rejected, 1)
	assert.Equal(t, int64(3), rec.rejected[0].TripID)
	assert.Equal(t, 480.0, rec.committed[0].PickupTime)
}

func TestEngine_CustomCostOrdersQueue(t *testing.T) {
	opts := testOptions()
	trips := []models.Trip{
		newTrip(1, pt(0, 0), pt(0, 0.1), 480, 10),
		newTrip(2, pt(0, 0.05), pt(0, 0.15), 485, 10),
	}
	opts.PickupWindow = 5
	opts.MaxTravelCoeff = 1.2

	// rate trip 2 hardest so it claims the vehicle first
	cost := func(trip *models.Trip) float64 { return float64(trip.ID) }
	result := runEngine(t, opts, trips, WithCostFunc(cost))

	require.Len(t, result.Assignments, 1)
	assert.Equal(t, int64(2), result.Assignments[0].TripID)
}

func randomTrips(n int, seed uint64) []models.Trip {
	rng := rand.New(rand.NewPCG(seed, 7))
	finder := testutil.NewMockRoutefinder()
	trips := make([]models.Trip, n)
	for i := range trips {
		from := pt(rng.Float64()*0.2, rng.Float64()*0.2)
		to := pt(rng.Float64()*0.2, rng.Float64()*0.2)
		trips[i] = models.Trip{
			ID:            int64(i + 1),
			Origin:        from,
			Destination:   to,
			PickupMinute:  float64(420 + rng.IntN(300)),
			DirectSeconds: finder.Seconds(from, to),
		}
	}
	return trips
}

func checkInvariants(t *testing.T, opts Options, result *Result) {
	t.Helper()

	byID := make(map[int64]*models.Trip)
	for i := range result.Trips {
		byID[result.Trips[i].ID] = &result.Trips[i]
	}
	assert.Equal(t, len(result.Trips), len(result.Assignments)+len(result.Rejected))

	placed := make(map[int64]int)
	for _, v := range result.Fleet.Vehicles() {
		jobs := v.Jobs()
		require.Equal(t, DepotStart, jobs[0].Type)
		require.Equal(t, DepotEnd, jobs[len(jobs)-1].Type)

		load := 0
		pickupAt := make(map[int64]int)
		prev := jobs[0].ServiceTime
		for k := 1; k < len(jobs); k++ {
			job := jobs[k]
			assert.GreaterOrEqual(t, job.ServiceTime, prev, "service times decrease on vehicle %d at %d", v.Index(), k)
			prev = job.ServiceTime
			if job.IsDepot() {
				continue
			}

			load += job.Load()
			assert.LessOrEqual(t, load, v.Capacity(), "capacity on vehicle %d at %d", v.Index(), k)
			assert.GreaterOrEqual(t, load, 0)

			switch job.Type {
			case Pickup:
				_, dup := pickupAt[job.TripID()]
				assert.False(t, dup, "trip %d picked up twice", job.TripID())
				pickupAt[job.TripID()] = k
				assert.LessOrEqual(t, job.ServiceTime, job.DesiredTime+opts.PickupWindow+1e-9)
			case Dropoff:
				p, ok := pickupAt[job.TripID()]
				require.True(t, ok, "trip %d dropped before pickup", job.TripID())
				ride := job.ServiceTime - jobs[p].ServiceTime
				assert.LessOrEqual(t, ride, math.Round(byID[job.TripID()].DirectMinutes())*opts.MaxTravelCoeff+1e-9)
				placed[job.TripID()]++
				delete(pickupAt, job.TripID())
			}
		}
		assert.Empty(t, pickupAt, "unmatched pickups on vehicle %d", v.Index())
		assert.Equal(t, 0, load)
	}

	for _, a := range result.Assignments {
		assert.Equal(t, 1, placed[a.TripID], "trip %d", a.TripID)
	}
	for _, r := range result.Rejected {
		assert.Zero(t, placed[r.TripID])
	}
}

func TestEngine_InvariantsHoldOnRandomDemand(t *testing.T) {
	for _, seed := range []uint64{1, 2, 3} {
		trips := randomTrips(60, seed)
		opts := DefaultOptions()
		opts.Vehicles = 5
		opts.Capacity = 3
		opts.Workers = 4
		opts.MinimizeMileage = true
		opts.FavorBusyVehicles = true

		result := runEngine(t, opts, trips)
		assert.NotEmpty(t, result.Assignments)
		checkInvariants(t, opts, result)
	}
}

func TestEngine_SweepIsIdempotent(t *testing.T) {
	trips := randomTrips(40, 11)
	opts := DefaultOptions()
	opts.Vehicles = 4
	opts.Capacity = 2
	cache := buildCache(t, trips)

	engine, err := NewEngine(opts, cache)
	require.NoError(t, err)
	result, err := engine.Run(context.Background(), trips)
	require.NoError(t, err)

	for _, v := range result.Fleet.Vehicles() {
		before := serviceTimes(v)
		require.NoError(t, v.Resweep(cache))
		require.NoError(t, v.Resweep(cache))
		assert.Equal(t, before, serviceTimes(v))
	}
}

func serviceTimes(v *VehicleSchedule) []float64 {
	jobs := v.Jobs()
	times := make([]float64, len(jobs))
	for i, j := range jobs {
		times[i] = j.ServiceTime
	}
	return times
}

func TestEngine_CommitIsAppendOnly(t *testing.T) {
	trips := randomTrips(40, 5)
	opts := DefaultOptions()
	opts.Vehicles = 3
	opts.Capacity = 3

	engine, err := NewEngine(opts, buildCache(t, trips))
	require.NoError(t, err)

	type placement struct {
		vehicle         int
		pickup, dropoff float64
	}
	committed := make(map[int64]placement)

	for i := range trips {
		outcome, err := engine.Schedule(context.Background(), &trips[i])
		require.NoError(t, err)

		for id, before := range committed {
			vehicle, p, d, ok := engine.Fleet().Locate(id)
			require.True(t, ok, "trip %d disappeared", id)
			jobs := engine.Fleet().Vehicle(vehicle).Jobs()
			assert.Equal(t, before.vehicle, vehicle)
			assert.Equal(t, before.pickup, jobs[p].ServiceTime, "trip %d pickup moved", id)
			assert.Equal(t, before.dropoff, jobs[d].ServiceTime, "trip %d dropoff moved", id)
		}

		if outcome == OutcomeCommitted {
			vehicle, p, d, ok := engine.Fleet().Locate(trips[i].ID)
			require.True(t, ok)
			jobs := engine.Fleet().Vehicle(vehicle).Jobs()
			committed[trips[i].ID] = placement{vehicle: vehicle, pickup: jobs[p].ServiceTime, dropoff: jobs[d].ServiceTime}
		}
	}

	_, err = engine.Schedule(context.Background(), &trips[0])
	if _, ok := committed[trips[0].ID]; ok {
		assert.True(t, errors.Is(err, ErrDuplicateTrip))
	}
}
