package trips

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"dial-a-ride/internal/models"
)

// Record is the file representation of a trip. Pickup is given either as
// PickupMinute or as an HH:MM PickupTime.
type Record struct {
	ID            int64    `json:"id" yaml:"id"`
	OriginLat     float64  `json:"origin_lat" yaml:"origin_lat"`
	OriginLng     float64  `json:"origin_lng" yaml:"origin_lng"`
	DestLat       float64  `json:"dest_lat" yaml:"dest_lat"`
	DestLng       float64  `json:"dest_lng" yaml:"dest_lng"`
	PickupMinute  *float64 `json:"pickup_minute,omitempty" yaml:"pickup_minute,omitempty"`
	PickupTime    string   `json:"pickup_time,omitempty" yaml:"pickup_time,omitempty"`
	DirectSeconds float64  `json:"direct_seconds" yaml:"direct_seconds"`
	OriginAddress string   `json:"origin_address,omitempty" yaml:"origin_address,omitempty"`
	DestAddress   string   `json:"dest_address,omitempty" yaml:"dest_address,omitempty"`
}

// ErrInvalidRecord is returned for a trip that cannot be scheduled as given
type ErrInvalidRecord struct {
	Line   int
	TripID int64
	Reason string
}

func (e *ErrInvalidRecord) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid trip on line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("invalid trip %d: %s", e.TripID, e.Reason)
}

// Trip converts the record
func (r Record) Trip() (models.Trip, error) {
	trip := models.Trip{
		ID:            r.ID,
		Origin:        models.Coordinates{Lat: r.OriginLat, Lng: r.OriginLng},
		Destination:   models.Coordinates{Lat: r.DestLat, Lng: r.DestLng},
		OriginAddress: r.OriginAddress,
		DestAddress:   r.DestAddress,
		DirectSeconds: r.DirectSeconds,
	}

	switch {
	case r.PickupMinute != nil:
		trip.PickupMinute = *r.PickupMinute
	case r.PickupTime != "":
		m, err := models.ParseClock(r.PickupTime)
		if err != nil {
			return trip, &ErrInvalidRecord{TripID: r.ID, Reason: err.Error()}
		}
		trip.PickupMinute = m
	default:
		return trip, &ErrInvalidRecord{TripID: r.ID, Reason: "missing pickup_minute or pickup_time"}
	}

	if trip.DirectSeconds < 0 {
		return trip, &ErrInvalidRecord{TripID: r.ID, Reason: "negative direct_seconds"}
	}
	if trip.Origin.IsZero() && trip.OriginAddress == "" {
		return trip, &ErrInvalidRecord{TripID: r.ID, Reason: "origin needs coordinates or an address"}
	}
	if trip.Destination.IsZero() && trip.DestAddress == "" {
		return trip, &ErrInvalidRecord{TripID: r.ID, Reason: "destination needs coordinates or an address"}
	}
	return trip, nil
}

// FromRecords converts records and rejects duplicate ids
func FromRecords(records []Record) ([]models.Trip, error) {
	out := make([]models.Trip, 0, len(records))
	seen := make(map[int64]bool, len(records))
	for _, r := range records {
		if seen[r.ID] {
			return nil, &ErrInvalidRecord{TripID: r.ID, Reason: "duplicate id"}
		}
		seen[r.ID] = true

		trip, err := r.Trip()
		if err != nil {
			return nil, err
		}
		out = append(out, trip)
	}
	return out, nil
}

// LoadFile reads trips from a .csv, .json, .yaml or .yml file
func LoadFile(path string) ([]models.Trip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trip file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f)
	case ".json":
		return ReadJSON(f)
	case ".yaml", ".yml":
		return ReadYAML(f)
	default:
		return nil, fmt.Errorf("unsupported trip file type: %s", filepath.Ext(path))
	}
}

// ReadJSON reads a JSON array of trip records
func ReadJSON(r io.Reader) ([]models.Trip, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode trips: %w", err)
	}
	return FromRecords(records)
}

// ReadYAML reads a YAML list of trip records
func ReadYAML(r io.Reader) ([]models.Trip, error) {
	var records []Record
	if err := yaml.NewDecoder(r).Decode(&records); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode trips: %w", err)
	}
	return FromRecords(records)
}

var requiredColumns = []string{"id"}

// ReadCSV reads trips from CSV with a header row. Columns may appear in
// any order; unknown columns are ignored.
func ReadCSV(r io.Reader) ([]models.Trip, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []models.Trip{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trip header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("trip file is missing column %q", name)
		}
	}

	var records []Record
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read trip file: %w", err)
		}

		rec, err := parseRow(row, cols)
		if err != nil {
			return nil, &ErrInvalidRecord{Line: line, Reason: err.Error()}
		}
		records = append(records, rec)
	}

	return FromRecords(records)
}

func parseRow(row []string, cols map[string]int) (Record, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	num := func(name string) (float64, error) {
		s := get(name)
		if s == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", name, err)
		}
		return v, nil
	}

	var (
		rec Record
		err error
	)
	if rec.ID, err = strconv.ParseInt(get("id"), 10, 64); err != nil {
		return rec, fmt.Errorf("column id: %w", err)
	}
	for name, dst := range map[string]*float64{
		"origin_lat":     &rec.OriginLat,
		"origin_lng":     &rec.OriginLng,
		"dest_lat":       &rec.DestLat,
		"dest_lng":       &rec.DestLng,
		"direct_seconds": &rec.DirectSeconds,
	} {
		if *dst, err = num(name); err != nil {
			return rec, err
		}
	}
	if get("pickup_minute") != "" {
		m, err := num("pickup_minute")
		if err != nil {
			return rec, err
		}
		rec.PickupMinute = &m
	}
	rec.PickupTime = get("pickup_time")
	rec.OriginAddress = get("origin_address")
	rec.DestAddress = get("dest_address")
	return rec, nil
}
