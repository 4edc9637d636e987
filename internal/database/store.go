package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DefaultDBFileName = "darp.db"
	schemaVersion     = 1
)

// Dialect identifies the SQL backend behind a Store
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DialectFor picks the backend for a DSN. postgres:// and postgresql://
// URLs use pgx; anything else is a SQLite file path.
func DialectFor(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// Store is a SQL-backed store for travel times and run history
type Store struct {
	db      *sql.DB
	dsn     string
	dialect Dialect
	mu      sync.RWMutex

	travelTimes *TravelTimeRepository
	runs        *RunRepository
}

// Open connects to the database named by dsn and creates the schema if needed
func Open(dsn string) (*Store, error) {
	dialect := DialectFor(dsn)

	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case DialectPostgres:
		log.Printf("[DB] Opening Postgres database")
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	default:
		db, err = openSQLite(dsn)
		if err != nil {
			return nil, err
		}
	}

	store := &Store{
		db:      db,
		dsn:     dsn,
		dialect: dialect,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.travelTimes = &TravelTimeRepository{store: store}
	store.runs = &RunRepository{store: store}

	return store, nil
}

func openSQLite(path string) (*sql.DB, error) {
	memory := path == ":memory:" || strings.HasPrefix(path, "file::memory:")
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Printf("[DB] Opening SQLite database at: %s", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA busy_timeout = 5000",
	}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}
	return db, nil
}

// Dialect returns the backend in use
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == nil && version >= schemaVersion {
		return nil
	}
	return s.createSchema()
}

// schema is portable between SQLite and Postgres
var schema = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	)`,
	`INSERT INTO schema_version (version) VALUES (1) ON CONFLICT DO NOTHING`,

	`CREATE TABLE IF NOT EXISTS travel_times (
		origin_lat DOUBLE PRECISION NOT NULL,
		origin_lng DOUBLE PRECISION NOT NULL,
		dest_lat DOUBLE PRECISION NOT NULL,
		dest_lng DOUBLE PRECISION NOT NULL,
		duration_secs DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (origin_lat, origin_lng, dest_lat, dest_lng)
	)`,

	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		vehicles INTEGER NOT NULL,
		capacity INTEGER NOT NULL,
		total_trips INTEGER NOT NULL,
		committed_trips INTEGER NOT NULL,
		rejected_trips INTEGER NOT NULL,
		vehicles_used INTEGER NOT NULL,
		mean_ride_ratio DOUBLE PRECISION NOT NULL,
		config TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,

	`CREATE TABLE IF NOT EXISTS run_stops (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		vehicle INTEGER NOT NULL,
		stop_order INTEGER NOT NULL,
		kind TEXT NOT NULL,
		trip_id BIGINT NOT NULL DEFAULT 0,
		desired_minute DOUBLE PRECISION NOT NULL,
		service_minute DOUBLE PRECISION NOT NULL,
		passengers INTEGER NOT NULL,
		PRIMARY KEY (run_id, vehicle, stop_order)
	)`,

	`CREATE TABLE IF NOT EXISTS run_rejections (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		trip_id BIGINT NOT NULL,
		reason TEXT NOT NULL,
		PRIMARY KEY (run_id, trip_id)
	)`,
}

func (s *Store) createSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	log.Printf("[DB] Schema ready: dialect=%s version=%d", s.dialect, schemaVersion)
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	if s.dialect == DialectSQLite {
		s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// HealthCheck verifies the database is reachable
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return fmt.Errorf("database is closed")
	}
	return s.db.PingContext(ctx)
}

// TravelTimes returns the persistent travel-time repository
func (s *Store) TravelTimes() *TravelTimeRepository { return s.travelTimes }

// Runs returns the run history repository
func (s *Store) Runs() *RunRepository { return s.runs }
