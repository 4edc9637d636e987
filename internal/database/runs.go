package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dial-a-ride/internal/models"
)

// fixed width so created_at sorts as text
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunMeta describes the fleet and configuration a run used
type RunMeta struct {
	Vehicles int
	Capacity int
	// Config is an opaque serialized copy of the options
	Config string
}

// RunRepository stores scheduling run history
type RunRepository struct {
	store *Store
}

// Save stores a report and its stops. A report without a RunID is given a
// new one, which is written back into the report and returned.
func (r *RunRepository) Save(ctx context.Context, report *models.ScheduleReport, meta RunMeta) (string, error) {
	if report.RunID == "" {
		report.RunID = uuid.NewString()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	s := report.Summary
	_, err = tx.ExecContext(ctx, r.store.rebind(`INSERT INTO runs
		(id, created_at, vehicles, capacity, total_trips, committed_trips, rejected_trips, vehicles_used, mean_ride_ratio, config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		report.RunID, time.Now().UTC().Format(timestampLayout), meta.Vehicles, meta.Capacity,
		s.TotalTrips, s.CommittedTrips, s.RejectedTrips, s.VehiclesUsed, s.MeanRideRatio, meta.Config,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stopStmt, err := tx.PrepareContext(ctx, r.store.rebind(`INSERT INTO run_stops
		(run_id, vehicle, stop_order, kind, trip_id, desired_minute, service_minute, passengers)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return "", fmt.Errorf("failed to prepare stop insert: %w", err)
	}
	defer stopStmt.Close()

	for _, route := range report.Routes {
		for _, stop := range route.Stops {
			if _, err := stopStmt.ExecContext(ctx,
				report.RunID, route.Vehicle, stop.Order, string(stop.Kind), stop.TripID,
				stop.DesiredMinute, stop.ServiceMinute, stop.Passengers,
			); err != nil {
				return "", fmt.Errorf("failed to insert stop: %w", err)
			}
		}
	}

	rejStmt, err := tx.PrepareContext(ctx, r.store.rebind(`INSERT INTO run_rejections (run_id, trip_id, reason) VALUES (?, ?, ?)`))
	if err != nil {
		return "", fmt.Errorf("failed to prepare rejection insert: %w", err)
	}
	defer rejStmt.Close()

	for _, rej := range report.Rejected {
		if _, err := rejStmt.ExecContext(ctx, report.RunID, rej.TripID, rej.Reason); err != nil {
			return "", fmt.Errorf("failed to insert rejection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return report.RunID, nil
}

// Get loads a stored run, returning ErrNotFound for unknown ids
func (r *RunRepository) Get(ctx context.Context, id string) (*models.ScheduleReport, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	summary, err := r.summary(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &models.ScheduleReport{
		RunID:    id,
		Routes:   []models.VehicleRoute{},
		Rejected: []models.RejectedTrip{},
		Summary:  summary.Summary,
	}

	rows, err := r.store.db.QueryContext(ctx, r.store.rebind(`SELECT vehicle, stop_order, kind, trip_id, desired_minute, service_minute, passengers
		FROM run_stops WHERE run_id = ? ORDER BY vehicle, stop_order`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			vehicle int
			kind    string
			stop    models.ScheduledStop
		)
		if err := rows.Scan(&vehicle, &stop.Order, &kind, &stop.TripID, &stop.DesiredMinute, &stop.ServiceMinute, &stop.Passengers); err != nil {
			return nil, fmt.Errorf("failed to scan stop: %w", err)
		}
		stop.Kind = models.StopKind(kind)
		stop.Desired = models.FormatMinute(stop.DesiredMinute)
		stop.Service = models.FormatMinute(stop.ServiceMinute)

		n := len(report.Routes)
		if n == 0 || report.Routes[n-1].Vehicle != vehicle {
			report.Routes = append(report.Routes, models.VehicleRoute{Vehicle: vehicle, Capacity: summary.Capacity})
			n++
		}
		report.Routes[n-1].Stops = append(report.Routes[n-1].Stops, stop)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stops: %w", err)
	}

	rejRows, err := r.store.db.QueryContext(ctx, r.store.rebind(`SELECT trip_id, reason FROM run_rejections WHERE run_id = ? ORDER BY trip_id`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query rejections: %w", err)
	}
	defer rejRows.Close()

	for rejRows.Next() {
		var rej models.RejectedTrip
		if err := rejRows.Scan(&rej.TripID, &rej.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan rejection: %w", err)
		}
		report.Rejected = append(report.Rejected, rej)
	}
	if err := rejRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rejections: %w", err)
	}

	return report, nil
}

// List returns the most recent runs first. A non-positive limit returns all runs.
func (r *RunRepository) List(ctx context.Context, limit int) ([]models.RunSummary, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT id, created_at, vehicles, capacity, total_trips, committed_trips, rejected_trips, vehicles_used, mean_ride_ratio
		FROM runs ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.store.db.QueryContext(ctx, r.store.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.RunSummary{}
	for rows.Next() {
		run, err := scanRunSummary(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// Delete removes a run and its stops
func (r *RunRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"run_stops", "run_rejections"} {
		if _, err := tx.ExecContext(ctx, r.store.rebind("DELETE FROM "+table+" WHERE run_id = ?"), id); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}

	res, err := tx.ExecContext(ctx, r.store.rebind("DELETE FROM runs WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *RunRepository) summary(ctx context.Context, id string) (*models.RunSummary, error) {
	row := r.store.db.QueryRowContext(ctx, r.store.rebind(`SELECT id, created_at, vehicles, capacity, total_trips, committed_trips, rejected_trips, vehicles_used, mean_ride_ratio
		FROM runs WHERE id = ?`), id)
	run, err := scanRunSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunSummary(row rowScanner) (*models.RunSummary, error) {
	var (
		run     models.RunSummary
		created string
	)
	err := row.Scan(&run.ID, &created, &run.Vehicles, &run.Capacity,
		&run.Summary.TotalTrips, &run.Summary.CommittedTrips, &run.Summary.RejectedTrips,
		&run.Summary.VehiclesUsed, &run.Summary.MeanRideRatio)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.CreatedAt, err = time.Parse(timestampLayout, created)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run timestamp %q: %w", created, err)
	}
	return &run, nil
}
