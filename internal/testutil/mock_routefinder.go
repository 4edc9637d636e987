package testutil

import (
	"context"
	"errors"
	"math"
	"sync"

	"dial-a-ride/internal/models"
)

// RouteCall tracks a call to the routefinder
type RouteCall struct {
	Origin       models.Coordinates
	Destinations []models.Coordinates
}

// MockRoutefinder is a mock implementation for testing.
// It returns Euclidean distance (scaled) between coordinates for deterministic tests.
type MockRoutefinder struct {
	SecondsPerDegree float64
	Overrides        map[models.RoutePair]float64
	Err              error

	mu    sync.Mutex
	calls []RouteCall
}

// NewMockRoutefinder returns a mock where 0.01 degree takes one minute
func NewMockRoutefinder() *MockRoutefinder {
	return &MockRoutefinder{
		SecondsPerDegree: 6000,
		Overrides:        make(map[models.RoutePair]float64),
	}
}

// SetDuration sets a custom duration for a specific origin-destination pair
func (m *MockRoutefinder) SetDuration(origin, dest models.Coordinates, secs float64) {
	m.Overrides[models.RoutePair{Origin: origin, Destination: dest}.Rounded()] = secs
}

// Seconds returns the mock duration for a pair without recording a call
func (m *MockRoutefinder) Seconds(origin, dest models.Coordinates) float64 {
	pair := models.RoutePair{Origin: origin, Destination: dest}
	if secs, ok := m.Overrides[pair.Rounded()]; ok {
		return secs
	}
	if pair.Degenerate() {
		return 0
	}
	dLat := dest.Lat - origin.Lat
	dLng := dest.Lng - origin.Lng
	return math.Sqrt(dLat*dLat+dLng*dLng) * m.SecondsPerDegree
}

func (m *MockRoutefinder) DurationsFrom(ctx context.Context, origin models.Coordinates, destinations []models.Coordinates) ([]float64, error) {
	m.mu.Lock()
	m.calls = append(m.calls, RouteCall{Origin: origin, Destinations: append([]models.Coordinates(nil), destinations...)})
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	results := make([]float64, len(destinations))
	for i, dest := range destinations {
		results[i] = m.Seconds(origin, dest)
	}
	return results, nil
}

// Calls returns the recorded calls
func (m *MockRoutefinder) Calls() []RouteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RouteCall(nil), m.calls...)
}

// ResetCalls clears the recorded calls
func (m *MockRoutefinder) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// ErrMockStore is returned by MockTravelTimeStore when FailReads is set
var ErrMockStore = errors.New("mock store failure")

// MockTravelTimeStore is an in-memory travel time store
type MockTravelTimeStore struct {
	FailReads bool

	mu      sync.Mutex
	entries map[models.RoutePair]float64
}

func NewMockTravelTimeStore() *MockTravelTimeStore {
	return &MockTravelTimeStore{
		entries: make(map[models.RoutePair]float64),
	}
}

func (s *MockTravelTimeStore) GetMany(ctx context.Context, pairs []models.RoutePair) (map[models.RoutePair]float64, error) {
	if s.FailReads {
		return nil, ErrMockStore
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[models.RoutePair]float64)
	for _, pair := range pairs {
		key := pair.Rounded()
		if secs, ok := s.entries[key]; ok {
			result[key] = secs
		}
	}
	return result, nil
}

func (s *MockTravelTimeStore) PutMany(ctx context.Context, entries []models.TravelTimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[models.RoutePair{Origin: e.Origin, Destination: e.Destination}.Rounded()] = e.DurationSecs
	}
	return nil
}

// Count returns the number of entries in the store
func (s *MockTravelTimeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
