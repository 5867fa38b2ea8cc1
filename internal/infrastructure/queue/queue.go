// Package queue implements the durable FIFO used to hand detection and
// notification work from the ingestion pipeline (running in cmd/server) to
// the background worker (cmd/worker), backed by a Redis list so either side
// can restart without losing queued work.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue is a typed, JSON-encoded wrapper over a single Redis list, built in
// the same style as pubsub.Bus and cache.Client: callers never touch the
// underlying client directly.
type Queue struct {
	rdb *redis.Client
	key string
}

func New(rdb *redis.Client, name string) *Queue {
	return &Queue{rdb: rdb, key: "logtide:queue:" + name}
}

// Enqueue pushes payload onto the head of the list, marshaled to JSON;
// Dequeue pops from the tail, so jobs come out in FIFO order.
func (q *Queue) Enqueue(ctx context.Context, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("queue: marshal payload: %w", err)
	}
	return q.rdb.LPush(ctx, q.key, b).Err()
}

// Dequeue blocks up to timeout for a job, returning (nil, false, nil) on a
// timeout rather than an error so the worker's poll loop can just keep
// calling it.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (json.RawMessage, bool, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("queue: dequeue: %w", err)
	}
	// BRPop returns [key, value]; the element at index 1 is the payload.
	if len(res) != 2 {
		return nil, false, fmt.Errorf("queue: unexpected BRPOP reply shape")
	}
	return json.RawMessage(res[1]), true, nil
}

// Len reports the current backlog depth.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
