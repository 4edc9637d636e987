package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"dial-a-ride/internal/config"
	"dial-a-ride/internal/database"
	"dial-a-ride/internal/distance"
	"dial-a-ride/internal/events"
	"dial-a-ride/internal/geocoding"
	"dial-a-ride/internal/metrics"
	"dial-a-ride/internal/planner"
)

// deps are the services a command needs, built from configuration
type deps struct {
	store     *database.Store
	publisher *events.RedisPublisher
	planner   *planner.Planner
	closers   []io.Closer
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			log.Printf("[ERROR] Failed to close resource: %v", err)
		}
	}
	d.closers = nil
}

func buildDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	d := &deps{}

	if cfg.DatabaseURL != "" {
		store, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		d.store = store
		d.closers = append(d.closers, store)
	}

	if cfg.RedisURL != "" {
		pub, err := events.NewRedisPublisher(cfg.RedisURL)
		if err != nil {
			d.Close()
			return nil, err
		}
		if err := pub.Ping(ctx); err != nil {
			pub.Close()
			d.Close()
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		d.publisher = pub
		d.closers = append(d.closers, pub)
	}

	var finder distance.Routefinder = distance.NewOSRMRoutefinder(cfg.OSRMURL, cfg.OSRMRate)
	if d.store != nil {
		finder = distance.NewCachedRoutefinder(finder, d.store.TravelTimes())
	}

	p := &planner.Planner{
		Finder:   finder,
		Observer: metrics.EngineObserver{},
		CacheBuilt: func(elapsed time.Duration) {
			metrics.CacheBuild.Observe(elapsed.Seconds())
		},
	}
	if cfg.NominatimURL != "" {
		p.Geocoder = geocoding.NewNominatimGeocoder(cfg.NominatimURL, 1)
	}
	if d.store != nil {
		p.Runs = d.store.Runs()
	}
	if d.publisher != nil {
		p.Events = d.publisher
	}
	d.planner = p

	return d, nil
}
