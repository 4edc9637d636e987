package trips

import (
	"context"
	"fmt"
	"log"

	"dial-a-ride/internal/distance"
	"dial-a-ride/internal/geocoding"
	"dial-a-ride/internal/models"
)

// Geocode fills missing coordinates from the trip's addresses. A nil
// geocoder is an error only if some trip needs one.
func Geocode(ctx context.Context, trips []models.Trip, geocoder geocoding.Geocoder) error {
	for i := range trips {
		t := &trips[i]
		for _, end := range []struct {
			point   *models.Coordinates
			address string
		}{
			{&t.Origin, t.OriginAddress},
			{&t.Destination, t.DestAddress},
		} {
			if !end.point.IsZero() {
				continue
			}
			if end.address == "" {
				return &ErrInvalidRecord{TripID: t.ID, Reason: "no coordinates or address"}
			}
			if geocoder == nil {
				return &ErrInvalidRecord{TripID: t.ID, Reason: "address given but no geocoder configured"}
			}
			result, err := geocoder.Geocode(ctx, end.address)
			if err != nil {
				return fmt.Errorf("failed to geocode trip %d: %w", t.ID, err)
			}
			*end.point = result.Coords
		}
	}
	return nil
}

// FillDirectDurations asks finder for the direct duration of every trip
// that has none
func FillDirectDurations(ctx context.Context, trips []models.Trip, finder distance.Routefinder) error {
	filled := 0
	for i := range trips {
		t := &trips[i]
		if t.DirectSeconds > 0 {
			continue
		}
		if (models.RoutePair{Origin: t.Origin, Destination: t.Destination}).Degenerate() {
			continue
		}
		secs, err := distance.Duration(ctx, finder, t.Origin, t.Destination)
		if err != nil {
			return fmt.Errorf("failed to get direct duration for trip %d: %w", t.ID, err)
		}
		t.DirectSeconds = secs
		filled++
	}
	if filled > 0 {
		log.Printf("[OSRM] Filled direct durations: trips=%d", filled)
	}
	return nil
}
