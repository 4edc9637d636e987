package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dial-a-ride/internal/models"
)

// TravelTimeRepository persists oracle durations keyed by rounded coordinates.
// It satisfies distance.TravelTimeStore.
type TravelTimeRepository struct {
	store *Store
}

const upsertTravelTime = `INSERT INTO travel_times
	(origin_lat, origin_lng, dest_lat, dest_lng, duration_secs)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (origin_lat, origin_lng, dest_lat, dest_lng)
	DO UPDATE SET duration_secs = excluded.duration_secs`

// GetMany returns the stored durations for pairs, keyed by rounded pair.
// Pairs never stored are absent from the map.
func (r *TravelTimeRepository) GetMany(ctx context.Context, pairs []models.RoutePair) (map[models.RoutePair]float64, error) {
	result := make(map[models.RoutePair]float64, len(pairs))
	if len(pairs) == 0 {
		return result, nil
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := r.store.rebind(`SELECT duration_secs FROM travel_times
	          WHERE origin_lat = ? AND origin_lng = ? AND dest_lat = ? AND dest_lng = ?`)

	stmt, err := r.store.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare batch query: %w", err)
	}
	defer stmt.Close()

	for _, pair := range pairs {
		key := pair.Rounded()
		var secs float64
		err := stmt.QueryRowContext(ctx,
			key.Origin.Lat, key.Origin.Lng, key.Destination.Lat, key.Destination.Lng,
		).Scan(&secs)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query travel time: %w", err)
		}
		result[key] = secs
	}

	return result, nil
}

// PutMany upserts entries in a single transaction
func (r *TravelTimeRepository) PutMany(ctx context.Context, entries []models.TravelTimeEntry) error {
	if len(entries) == 0 {
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.store.rebind(upsertTravelTime))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		key := models.RoutePair{Origin: entry.Origin, Destination: entry.Destination}.Rounded()
		if _, err := stmt.ExecContext(ctx,
			key.Origin.Lat, key.Origin.Lng, key.Destination.Lat, key.Destination.Lng,
			entry.DurationSecs,
		); err != nil {
			return fmt.Errorf("failed to insert travel time: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Count returns the number of stored pairs
func (r *TravelTimeRepository) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var n int
	if err := r.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM travel_times").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count travel times: %w", err)
	}
	return n, nil
}

// Clear removes every stored pair
func (r *TravelTimeRepository) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM travel_times"); err != nil {
		return fmt.Errorf("failed to clear travel times: %w", err)
	}
	return nil
}
