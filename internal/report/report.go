package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"dial-a-ride/internal/models"
	"dial-a-ride/internal/scheduling"
)

// Format selects a report encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

var stopKinds = map[scheduling.JobType]models.StopKind{
	scheduling.Pickup:     models.StopPickup,
	scheduling.Dropoff:    models.StopDropoff,
	scheduling.DepotStart: models.StopDepotStart,
	scheduling.DepotEnd:   models.StopDepotEnd,
}

// Build renders a run result. Every vehicle gets a route, including
// vehicles that only hold their depot stops.
func Build(result *scheduling.Result) *models.ScheduleReport {
	report := &models.ScheduleReport{
		Routes:   make([]models.VehicleRoute, 0, result.Fleet.Len()),
		Rejected: make([]models.RejectedTrip, 0, len(result.Rejected)),
	}

	var ratioSum float64
	ratios := 0
	for _, vehicle := range result.Fleet.Vehicles() {
		jobs := vehicle.Jobs()
		route := models.VehicleRoute{
			Vehicle:  vehicle.Index(),
			Capacity: vehicle.Capacity(),
			Stops:    make([]models.ScheduledStop, len(jobs)),
		}

		aboard := 0
		pickedUp := make(map[int64]float64)
		for k, job := range jobs {
			aboard += job.Load()
			route.Stops[k] = models.ScheduledStop{
				Order:         k,
				Kind:          stopKinds[job.Type],
				TripID:        job.TripID(),
				DesiredMinute: job.DesiredTime,
				ServiceMinute: job.ServiceTime,
				Desired:       models.FormatMinute(job.DesiredTime),
				Service:       models.FormatMinute(job.ServiceTime),
				Passengers:    aboard,
			}

			switch job.Type {
			case scheduling.Pickup:
				pickedUp[job.TripID()] = job.ServiceTime
			case scheduling.Dropoff:
				if direct := job.Trip.DirectMinutes(); direct > 0 {
					ratioSum += (job.ServiceTime - pickedUp[job.TripID()]) / direct
					ratios++
				}
			}
		}
		report.Routes = append(report.Routes, route)
	}

	for _, r := range result.Rejected {
		report.Rejected = append(report.Rejected, models.RejectedTrip{TripID: r.TripID, Reason: r.Reason})
	}
	sort.Slice(report.Rejected, func(i, j int) bool {
		return report.Rejected[i].TripID < report.Rejected[j].TripID
	})

	report.Summary = models.ScheduleSummary{
		TotalTrips:     len(result.Trips),
		CommittedTrips: len(result.Assignments),
		RejectedTrips:  len(result.Rejected),
		VehiclesUsed:   result.Fleet.Used(),
	}
	if ratios > 0 {
		report.Summary.MeanRideRatio = ratioSum / float64(ratios)
	}
	return report
}

// Write encodes the report in the given format
func Write(w io.Writer, report *models.ScheduleReport, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return nil
	}
}
