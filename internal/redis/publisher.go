package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// eventEnvelope is the wire format for published lifecycle events.
type eventEnvelope struct {
	Event       string    `json:"event"`
	Payload     any       `json:"payload"`
	PublishedAt time.Time `json:"published_at"`
}

// Publisher delivers lifecycle events over Redis pub/sub. Delivery is
// at-most-once: subscribers that are not connected at publish time miss the
// event.
type Publisher struct {
	client *redis.Client
}

// NewPublisher creates a new Publisher.
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish sends an event to a rider or driver channel.
func (p *Publisher) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := json.Marshal(eventEnvelope{
		Event:       event,
		Payload:     payload,
		PublishedAt: time.Now(),
	})
	if err != nil {
		return err
	}

	return p.client.Publish(ctx, channel, data).Err()
}
