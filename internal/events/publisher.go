package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"

	"dial-a-ride/internal/models"
	"dial-a-ride/internal/scheduling"
)

// Channel is the Redis pub/sub channel assignment events go to
const Channel = "darp:assignments"

const (
	TypeTripCommitted = "trip.committed"
	TypeTripRejected  = "trip.rejected"
)

const publishTimeout = 2 * time.Second

// Event is the JSON payload published for every scheduled trip
type Event struct {
	Type         string    `json:"type"`
	RunID        string    `json:"run_id,omitempty"`
	TripID       int64     `json:"trip_id"`
	Vehicle      *int      `json:"vehicle,omitempty"`
	PickupIndex  int       `json:"pickup_index,omitempty"`
	DropoffIndex int       `json:"dropoff_index,omitempty"`
	PickupTime   string    `json:"pickup_time,omitempty"`
	DropoffTime  string    `json:"dropoff_time,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	At           time.Time `json:"at"`
}

// RedisPublisher publishes assignment events over Redis pub/sub
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher connects to the Redis server at url
func NewRedisPublisher(url string) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &RedisPublisher{rdb: redis.NewClient(opt), channel: Channel}, nil
}

// Ping checks the connection
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Close releases the connection pool
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

// Publish sends a single event
func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		log.Printf("[EVENTS] Publish failed: type=%s trip=%d err=%v", evt.Type, evt.TripID, err)
		return fmt.Errorf("failed to publish %s: %w", evt.Type, err)
	}
	return nil
}

// ForRun returns a notifier that tags every event with runID
func (p *RedisPublisher) ForRun(runID string) scheduling.Notifier {
	return &runNotifier{publisher: p, runID: runID}
}

type runNotifier struct {
	publisher *RedisPublisher
	runID     string
}

func (n *runNotifier) TripCommitted(ctx context.Context, a scheduling.Assignment) error {
	vehicle := a.Vehicle
	return n.publisher.Publish(ctx, Event{
		Type:         TypeTripCommitted,
		RunID:        n.runID,
		TripID:       a.TripID,
		Vehicle:      &vehicle,
		PickupIndex:  a.Pickup,
		DropoffIndex: a.Dropoff,
		PickupTime:   models.FormatMinute(a.PickupTime),
		DropoffTime:  models.FormatMinute(a.DropoffTime),
		At:           time.Now().UTC(),
	})
}

func (n *runNotifier) TripRejected(ctx context.Context, r scheduling.Rejection) error {
	return n.publisher.Publish(ctx, Event{
		Type:   TypeTripRejected,
		RunID:  n.runID,
		TripID: r.TripID,
		Reason: r.Reason,
		At:     time.Now().UTC(),
	})
}
