package distance

import (
	"context"
	"fmt"
	"log"

	"dial-a-ride/internal/models"
)

// Routefinder returns road travel durations in seconds
type Routefinder interface {
	DurationsFrom(ctx context.Context, origin models.Coordinates, destinations []models.Coordinates) ([]float64, error)
}

// TravelTimeStore persists oracle lookups between runs
type TravelTimeStore interface {
	GetMany(ctx context.Context, pairs []models.RoutePair) (map[models.RoutePair]float64, error)
	PutMany(ctx context.Context, entries []models.TravelTimeEntry) error
}

// ErrRouteLookupFailed is returned when the routing backend fails
type ErrRouteLookupFailed struct {
	Origin models.Coordinates
	Reason string
}

func (e *ErrRouteLookupFailed) Error() string {
	return fmt.Sprintf("route lookup from (%.6f,%.6f) failed: %s", e.Origin.Lat, e.Origin.Lng, e.Reason)
}

// Duration returns the travel duration in seconds for a single pair
func Duration(ctx context.Context, finder Routefinder, origin, dest models.Coordinates) (float64, error) {
	results, err := finder.DurationsFrom(ctx, origin, []models.Coordinates{dest})
	if err != nil {
		return 0, err
	}
	if len(results) != 1 {
		return 0, &ErrRouteLookupFailed{Origin: origin, Reason: "no results returned"}
	}
	return results[0], nil
}

// CachedRoutefinder answers from a persistent store and only asks the
// wrapped Routefinder for pairs it has never seen
type CachedRoutefinder struct {
	next  Routefinder
	store TravelTimeStore
}

// NewCachedRoutefinder wraps next with store
func NewCachedRoutefinder(next Routefinder, store TravelTimeStore) *CachedRoutefinder {
	return &CachedRoutefinder{next: next, store: store}
}

func (c *CachedRoutefinder) DurationsFrom(ctx context.Context, origin models.Coordinates, destinations []models.Coordinates) ([]float64, error) {
	results := make([]float64, len(destinations))
	if len(destinations) == 0 {
		return results, nil
	}

	pairs := make([]models.RoutePair, 0, len(destinations))
	for _, dest := range destinations {
		pair := models.RoutePair{Origin: origin, Destination: dest}
		if !pair.Degenerate() {
			pairs = append(pairs, pair.Rounded())
		}
	}

	cached, err := c.store.GetMany(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to read travel time store: %w", err)
	}

	var missing []int
	for i, dest := range destinations {
		pair := models.RoutePair{Origin: origin, Destination: dest}
		if pair.Degenerate() {
			continue
		}
		if secs, ok := cached[pair.Rounded()]; ok {
			results[i] = secs
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		return results, nil
	}

	log.Printf("[OSRM] Store miss: origin=(%.6f,%.6f) cached=%d missing=%d", origin.Lat, origin.Lng, len(destinations)-len(missing), len(missing))

	missingDests := make([]models.Coordinates, len(missing))
	for k, i := range missing {
		missingDests[k] = destinations[i]
	}
	fetched, err := c.next.DurationsFrom(ctx, origin, missingDests)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missing) {
		return nil, &ErrRouteLookupFailed{Origin: origin, Reason: fmt.Sprintf("expected %d durations, got %d", len(missing), len(fetched))}
	}

	entries := make([]models.TravelTimeEntry, len(missing))
	for k, i := range missing {
		results[i] = fetched[k]
		entries[k] = models.TravelTimeEntry{
			Origin:       origin,
			Destination:  destinations[i],
			DurationSecs: fetched[k],
		}
	}
	if err := c.store.PutMany(ctx, entries); err != nil {
		return nil, fmt.Errorf("failed to write travel time store: %w", err)
	}

	return results, nil
}
