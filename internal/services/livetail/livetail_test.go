package livetail_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/logtide/internal/infrastructure/pubsub"
	"github.com/iota-uz/logtide/internal/services/livetail"
)

func newTestHub(t *testing.T) (*livetail.Hub, *pubsub.Bus) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	bus := pubsub.NewBus(rdb)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return livetail.NewHub(bus, logger.WithField("test", t.Name())), bus
}

// waitForSubscription publishes probe frames until one comes back, since a
// Redis SUBSCRIBE only observes messages published after it is in effect.
func waitForSubscription(t *testing.T, bus *pubsub.Bus, projectID uuid.UUID, sub *livetail.Subscriber) {
	t.Helper()
	require.Eventually(t, func() bool {
		_ = bus.Publish(context.Background(), projectID, map[string]string{"type": "probe"})
		select {
		case <-sub.C:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "subscription never became active")
	// Drain any extra probes that landed before the first read.
	for {
		select {
		case <-sub.C:
		default:
			return
		}
	}
}

func TestSubscribeReceivesPublishedFrames(t *testing.T) {
	hub, bus := newTestHub(t)
	projectID := uuid.New()
	ctx := context.Background()

	sub := hub.Subscribe(ctx, projectID)
	defer sub.Close()
	waitForSubscription(t, bus, projectID, sub)

	require.NoError(t, bus.Publish(ctx, projectID, map[string]string{"type": "log", "message": "hello"}))

	select {
	case frame := <-sub.C:
		var got map[string]string
		require.NoError(t, json.Unmarshal(frame, &got))
		assert.Equal(t, "hello", got["message"])
	case <-time.After(2 * time.Second):
		t.Fatal("frame never arrived")
	}
}

func TestSlowSubscriberGetsDroppedFrame(t *testing.T) {
	hub, bus := newTestHub(t)
	projectID := uuid.New()
	ctx := context.Background()

	sub := hub.Subscribe(ctx, projectID)
	defer sub.Close()
	waitForSubscription(t, bus, projectID, sub)

	// Flood well past the subscriber buffer without consuming, so the pump
	// has to shed frames.
	const flood = 600
	for i := 0; i < flood; i++ {
		require.NoError(t, bus.Publish(ctx, projectID, map[string]int{"seq": i}))
	}

	// Consume until a dropped marker shows up; the hub emits it on the
	// first send that succeeds after shedding. Keep nudging with fresh
	// publishes so the pump gets that successful send.
	deadline := time.After(5 * time.Second)
	var dropped livetail.DroppedFrame
	for dropped.Type != "dropped" {
		_ = bus.Publish(ctx, projectID, map[string]string{"type": "nudge"})
		select {
		case frame := <-sub.C:
			_ = json.Unmarshal(frame, &dropped)
		case <-deadline:
			t.Fatal("dropped frame never arrived")
		}
	}
	assert.Positive(t, dropped.Count)

	// The stream keeps flowing after the drop notice.
	require.NoError(t, bus.Publish(ctx, projectID, map[string]string{"type": "after"}))
	// The buffer may still hold a full backlog ahead of it, so each tick
	// drains everything currently queued.
	require.Eventually(t, func() bool {
		for {
			select {
			case frame := <-sub.C:
				var got map[string]string
				_ = json.Unmarshal(frame, &got)
				if got["type"] == "after" {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseStopsDelivery(t *testing.T) {
	hub, bus := newTestHub(t)
	projectID := uuid.New()
	ctx := context.Background()

	sub := hub.Subscribe(ctx, projectID)
	waitForSubscription(t, bus, projectID, sub)

	sub.Close()

	// The pump closes the channel once the subscription tears down.
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.C:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
