// Package pubsub bridges the ingestion pipeline to the live-tail fan-out
// over a Redis channel per project, so multiple API server
// instances can share a single ingestion stream.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Bus publishes ingested rows to per-project channels and lets the
// live-tail hub subscribe to them.
type Bus struct {
	rdb *redis.Client
}

func NewBus(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

func channelName(projectID uuid.UUID) string {
	return fmt.Sprintf("logtide:tail:%s", projectID)
}

// Publish is fire-and-forget: a failed publish is logged as a soft error
// and must never abort the ingestion request that
// produced the event.
func (b *Bus) Publish(ctx context.Context, projectID uuid.UUID, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("pubsub: marshal event: %w", err)
	}
	return b.rdb.Publish(ctx, channelName(projectID), payload).Err()
}

// Subscription is a live handle on a project's event channel; callers
// range over C until ctx is canceled, then call Close.
type Subscription struct {
	ps *redis.PubSub
	C  <-chan *redis.Message
}

func (b *Bus) Subscribe(ctx context.Context, projectID uuid.UUID) *Subscription {
	ps := b.rdb.Subscribe(ctx, channelName(projectID))
	return &Subscription{ps: ps, C: ps.Channel()}
}

func (s *Subscription) Close() error {
	return s.ps.Close()
}
