package traveltime

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"dial-a-ride/internal/distance"
	"dial-a-ride/internal/models"
)

// Build populates a cache with travel times between every pair of trip
// endpoints. Trips are partitioned across workers by source; each worker
// only writes the rows of its own endpoints.
func Build(ctx context.Context, trips []models.Trip, finder distance.Routefinder, workers int) (*Cache, error) {
	start := time.Now()

	ids := make([]int64, len(trips))
	for i := range trips {
		ids[i] = trips[i].ID
	}
	cache, err := NewCache(ids)
	if err != nil {
		return nil, err
	}
	if len(trips) == 0 {
		return cache, nil
	}

	points := make([]models.Coordinates, 0, len(trips)*2)
	endpoints := make([]Endpoint, 0, len(trips)*2)
	for i := range trips {
		points = append(points, trips[i].Origin, trips[i].Destination)
		endpoints = append(endpoints,
			Endpoint{TripID: trips[i].ID, Origin: true},
			Endpoint{TripID: trips[i].ID, Origin: false},
		)
	}

	if workers < 1 {
		workers = 1
	}
	chunk := (len(trips) + workers - 1) / workers

	log.Printf("[CACHE] Building travel time table: trips=%d endpoints=%d workers=%d", len(trips), len(points), workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < len(trips); lo += chunk {
		hi := min(lo+chunk, len(trips))
		g.Go(func() error {
			for src := lo * 2; src < hi*2; src++ {
				if err := fillRow(gctx, cache, finder, src, points, endpoints); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("[ERROR] Travel time build failed: err=%v", err)
		return nil, err
	}

	log.Printf("[CACHE] Travel time table complete: cells=%d elapsed=%s", cache.Filled(), time.Since(start).Round(time.Millisecond))
	return cache, nil
}

func fillRow(ctx context.Context, cache *Cache, finder distance.Routefinder, src int, points []models.Coordinates, endpoints []Endpoint) error {
	durations, err := finder.DurationsFrom(ctx, points[src], points)
	if err != nil {
		return fmt.Errorf("failed to fetch travel times from %s: %w", endpoints[src], err)
	}
	if len(durations) != len(points) {
		return fmt.Errorf("routefinder returned %d durations for %d destinations", len(durations), len(points))
	}

	for dst, secs := range durations {
		if dst == src {
			secs = 0
		}
		if err := cache.Put(endpoints[src], endpoints[dst], secs/60); err != nil {
			return err
		}
	}
	return nil
}
