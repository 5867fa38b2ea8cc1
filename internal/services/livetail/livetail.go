// Package livetail implements the WebSocket/SSE fan-out hub bridging the
// ingestion pipeline's pubsub.Bus to per-connection subscriber channels.
package livetail

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/logtide/internal/infrastructure/pubsub"
)

// bufferSize bounds each subscriber's channel; a slow consumer drops the
// oldest buffered frame rather than blocking the publish path or growing
// without bound.
const bufferSize = 256

// DroppedFrame is sent to a subscriber in place of the frames it couldn't
// keep up with.
type DroppedFrame struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Subscriber is a single live-tail consumer's channel handle.
type Subscriber struct {
	C      chan json.RawMessage
	cancel context.CancelFunc
}

// Close stops the subscriber's underlying Redis subscription and drains no
// further frames.
func (s *Subscriber) Close() {
	s.cancel()
}

// Hub bridges pubsub.Bus subscriptions to local Subscribers. Each
// Subscriber gets its own Redis subscription; connections to the same
// project do not share one.
type Hub struct {
	bus    *pubsub.Bus
	logger *logrus.Entry
}

func NewHub(bus *pubsub.Bus, logger *logrus.Entry) *Hub {
	return &Hub{bus: bus, logger: logger}
}

// Subscribe opens a fresh Redis subscription for projectID and starts a
// goroutine pumping frames into the returned Subscriber until ctx is
// canceled or Close is called.
func (h *Hub) Subscribe(ctx context.Context, projectID uuid.UUID) *Subscriber {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscriber{C: make(chan json.RawMessage, bufferSize), cancel: cancel}

	redisSub := h.bus.Subscribe(subCtx, projectID)
	go h.pump(subCtx, redisSub, sub)

	return sub
}

func (h *Hub) pump(ctx context.Context, redisSub *pubsub.Subscription, sub *Subscriber) {
	defer redisSub.Close()
	defer close(sub.C)

	dropped := 0
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-redisSub.C:
			if !ok {
				return
			}
			frame := json.RawMessage(msg.Payload)
			select {
			case sub.C <- frame:
				if dropped > 0 {
					h.emitDropped(sub, dropped)
					dropped = 0
				}
			default:
				// Buffer full: drop the oldest queued frame to make room
				// rather than blocking the Redis pump goroutine.
				select {
				case <-sub.C:
				default:
				}
				select {
				case sub.C <- frame:
				default:
				}
				dropped++
			}
		}
	}
}

func (h *Hub) emitDropped(sub *Subscriber, count int) {
	b, err := json.Marshal(DroppedFrame{Type: "dropped", Count: count})
	if err != nil {
		return
	}
	select {
	case sub.C <- b:
	default:
		// Shed the oldest queued frame so the notice itself survives a
		// still-full buffer.
		select {
		case <-sub.C:
		default:
		}
		select {
		case sub.C <- b:
		default:
		}
	}
}
