package scheduling

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"dial-a-ride/internal/models"
	"dial-a-ride/internal/testutil"
	"dial-a-ride/internal/traveltime"
)

// fakeTimes is a hand-written travel table
type fakeTimes map[[2]traveltime.Endpoint]float64

func origin(id int64) traveltime.Endpoint { return traveltime.Endpoint{TripID: id, Origin: true} }
func dest(id int64) traveltime.Endpoint   { return traveltime.Endpoint{TripID: id, Origin: false} }

func (f fakeTimes) set(from, to traveltime.Endpoint, minutes float64) fakeTimes {
	f[[2]traveltime.Endpoint{from, to}] = minutes
	return f
}

func (f fakeTimes) Get(from, to traveltime.Endpoint) (float64, error) {
	if v, ok := f[[2]traveltime.Endpoint{from, to}]; ok {
		return v, nil
	}
	return 0, &traveltime.MissError{From: from, To: to}
}

// panicTimes panics on every lookup
type panicTimes struct{}

func (panicTimes) Get(from, to traveltime.Endpoint) (float64, error) {
	panic("lookup exploded")
}

func newTrip(id int64, from, to models.Coordinates, pickup, directMinutes float64) models.Trip {
	return models.Trip{
		ID:            id,
		Origin:        from,
		Destination:   to,
		PickupMinute:  pickup,
		DirectSeconds: directMinutes * 60,
	}
}

func pt(lat, lng float64) models.Coordinates {
	return models.Coordinates{Lat: lat, Lng: lng}
}

func buildCache(t *testing.T, trips []models.Trip) *traveltime.Cache {
	t.Helper()
	cache, err := traveltime.Build(context.Background(), trips, testutil.NewMockRoutefinder(), 2)
	require.NoError(t, err)
	return cache
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Vehicles = 1
	opts.Capacity = 1
	opts.Workers = 2
	return opts
}
