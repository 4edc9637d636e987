package traveltime

import (
	"errors"
	"fmt"
	"math"
)

// ErrCacheMiss is returned when a travel time was never populated.
// Scheduling cannot continue past it.
var ErrCacheMiss = errors.New("travel time not cached")

// MaxMinutes is the largest travel time the cache can hold
const MaxMinutes = math.MaxUint16 - 1

const unset = math.MaxUint16

// Endpoint identifies one end of a trip
type Endpoint struct {
	TripID int64
	Origin bool
}

func (e Endpoint) String() string {
	if e.Origin {
		return fmt.Sprintf("trip %d origin", e.TripID)
	}
	return fmt.Sprintf("trip %d destination", e.TripID)
}

// MissError reports the endpoint pair that was looked up
type MissError struct {
	From Endpoint
	To   Endpoint
}

func (e *MissError) Error() string {
	return fmt.Sprintf("travel time not cached: %s -> %s", e.From, e.To)
}

func (e *MissError) Unwrap() error {
	return ErrCacheMiss
}

// ErrValueOutOfRange is returned by Put for durations the table cannot represent
type ErrValueOutOfRange struct {
	From    Endpoint
	To      Endpoint
	Minutes float64
}

func (e *ErrValueOutOfRange) Error() string {
	return fmt.Sprintf("travel time %.1f min out of range for %s -> %s", e.Minutes, e.From, e.To)
}

// Cache is a dense table of whole-minute travel times between trip endpoints.
// It is written during the build phase and read concurrently afterwards
// without locking.
type Cache struct {
	ordinals map[int64]int
	size     int
	table    []uint16
}

// NewCache allocates an empty table covering both endpoints of every trip
func NewCache(tripIDs []int64) (*Cache, error) {
	ordinals := make(map[int64]int, len(tripIDs))
	for _, id := range tripIDs {
		if _, dup := ordinals[id]; dup {
			return nil, fmt.Errorf("duplicate trip id %d", id)
		}
		ordinals[id] = len(ordinals)
	}

	size := len(ordinals) * 2
	table := make([]uint16, size*size)
	for i := range table {
		table[i] = unset
	}

	return &Cache{
		ordinals: ordinals,
		size:     size,
		table:    table,
	}, nil
}

// Endpoints returns the number of endpoints the table covers
func (c *Cache) Endpoints() int {
	return c.size
}

func (c *Cache) index(e Endpoint) (int, bool) {
	ord, ok := c.ordinals[e.TripID]
	if !ok {
		return 0, false
	}
	if e.Origin {
		return ord * 2, true
	}
	return ord*2 + 1, true
}

func (c *Cache) cell(from, to Endpoint) (int, bool) {
	i, ok := c.index(from)
	if !ok {
		return 0, false
	}
	j, ok := c.index(to)
	if !ok {
		return 0, false
	}
	return i*c.size + j, true
}

// Get returns the travel time in minutes from one endpoint to another
func (c *Cache) Get(from, to Endpoint) (float64, error) {
	cell, ok := c.cell(from, to)
	if !ok || c.table[cell] == unset {
		return 0, &MissError{From: from, To: to}
	}
	return float64(c.table[cell]), nil
}

// Put records a travel time in minutes, rounded to the nearest minute
func (c *Cache) Put(from, to Endpoint, minutes float64) error {
	cell, ok := c.cell(from, to)
	if !ok {
		return fmt.Errorf("unknown endpoint pair %s -> %s", from, to)
	}
	rounded := math.Round(minutes)
	if rounded < 0 || rounded > MaxMinutes || math.IsNaN(minutes) {
		return &ErrValueOutOfRange{From: from, To: to, Minutes: minutes}
	}
	c.table[cell] = uint16(rounded)
	return nil
}

// Filled counts populated cells
func (c *Cache) Filled() int {
	n := 0
	for _, v := range c.table {
		if v != unset {
			n++
		}
	}
	return n
}
