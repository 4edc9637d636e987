package report

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"dial-a-ride/internal/models"
	"dial-a-ride/internal/scheduling"
	"dial-a-ride/internal/testutil"
	"dial-a-ride/internal/traveltime"
)

func trip(id int64, fromLng, toLng, pickup, directMinutes float64) models.Trip {
	return models.Trip{
		ID:            id,
		Origin:        models.Coordinates{Lat: 0, Lng: fromLng},
		Destination:   models.Coordinates{Lat: 0, Lng: toLng},
		PickupMinute:  pickup,
		DirectSeconds: directMinutes * 60,
	}
}

func runResult(t *testing.T) *scheduling.Result {
	t.Helper()
	trips := []models.Trip{
		trip(1, 0, 0.1, 480, 10),
		trip(2, 0.1, 0.2, 540, 10),
		// road takes ten minutes, far beyond twice the stated direct minute
		trip(3, 0.3, 0.4, 600, 1),
	}

	ctx := context.Background()
	cache, err := traveltime.Build(ctx, trips, testutil.NewMockRoutefinder(), 2)
	require.NoError(t, err)

	opts := scheduling.DefaultOptions()
	opts.Vehicles = 1
	opts.Capacity = 1
	opts.Workers = 1
	engine, err := scheduling.NewEngine(opts, cache)
	require.NoError(t, err)

	result, err := engine.Run(ctx, trips)
	require.NoError(t, err)
	return result
}

func TestBuild(t *testing.T) {
	report := Build(runResult(t))

	require.Len(t, report.Routes, 1)
	route := report.Routes[0]
	assert.Equal(t, 0, route.Vehicle)
	assert.Equal(t, 1, route.Capacity)
	require.Len(t, route.Stops, 6)

	kinds := make([]models.StopKind, len(route.Stops))
	passengers := make([]int, len(route.Stops))
	for i, s := range route.Stops {
		assert.Equal(t, i, s.Order)
		kinds[i] = s.Kind
		passengers[i] = s.Passengers
	}
	assert.Equal(t, []models.StopKind{
		models.StopDepotStart, models.StopPickup, models.StopDropoff,
		models.StopPickup, models.StopDropoff, models.StopDepotEnd,
	}, kinds)
	assert.Equal(t, []int{0, 1, 0, 1, 0, 0}, passengers)

	pickup := route.Stops[1]
	assert.Equal(t, int64(1), pickup.TripID)
	assert.Equal(t, 480.0, pickup.ServiceMinute)
	assert.Equal(t, "08:00", pickup.Service)
	assert.Equal(t, "08:10", route.Stops[2].Service)
	assert.Equal(t, "-01:00", route.Stops[0].Desired)
	assert.Equal(t, "25:00", route.Stops[5].Desired)
	assert.Zero(t, route.Stops[0].TripID)

	require.Len(t, report.Rejected, 1)
	assert.Equal(t, int64(3), report.Rejected[0].TripID)
	assert.Equal(t, "no feasible vehicle: max_travel=1", report.Rejected[0].Reason)

	assert.Equal(t, models.ScheduleSummary{
		TotalTrips:     3,
		CommittedTrips: 2,
		RejectedTrips:  1,
		VehiclesUsed:   1,
		MeanRideRatio:  1,
	}, report.Summary)
}

func TestBuildEmptyFleet(t *testing.T) {
	opts := scheduling.DefaultOptions()
	opts.Vehicles = 2
	engine, err := scheduling.NewEngine(opts, nil)
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), nil)
	require.NoError(t, err)

	report := Build(result)
	require.Len(t, report.Routes, 2)
	assert.Len(t, report.Routes[1].Stops, 2)
	assert.NotNil(t, report.Rejected)
	assert.Zero(t, report.Summary.MeanRideRatio)
}

func TestWriteJSON(t *testing.T) {
	report := Build(runResult(t))
	report.RunID = "run-1"

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, report, FormatJSON))

	var decoded models.ScheduleReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *report, decoded)
	assert.Contains(t, buf.String(), `"service": "08:00"`)
}

func TestWriteYAML(t *testing.T) {
	report := Build(runResult(t))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, report, FormatYAML))
	assert.Contains(t, buf.String(), "committed_trips: 2")
	assert.Contains(t, buf.String(), "kind: depot_start")

	var decoded models.ScheduleReport
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, report.Summary, decoded.Summary)
	assert.Len(t, decoded.Routes[0].Stops, 6)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, "": FormatJSON, "YAML": FormatYAML, "yml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}
