package notifications

import (
	"context"
	"runtime/debug"
	"strings"

	"gatehouse/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	roomChannelPrefix = "fanout:room:"
	broadcastChannel  = "fanout:broadcast"
)

// RoomChannel returns the Redis channel carrying frames for room.
func RoomChannel(room string) string { return roomChannelPrefix + room }

// Notifier publishes frames into Redis channels and subscribes to them.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether a Redis client is configured.
func (n *Notifier) Enabled() bool { return n != nil && n.rdb != nil }

// PublishRoom sends payload to every process serving room.
func (n *Notifier) PublishRoom(ctx context.Context, room string, payload string) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, RoomChannel(room), payload).Err()
}

// PublishBroadcast sends payload to every process.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, broadcastChannel, payload).Err()
}

// StartSubscriber subscribes to every room channel and the broadcast channel
// and calls onMessage with the room ("" for broadcasts) until ctx is done.
func (n *Notifier) StartSubscriber(ctx context.Context, onMessage func(room string, payload string)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, roomChannelPrefix+"*", broadcastChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in fanout subscriber",
								"panic", r, "stack", string(debug.Stack()))
						}
					}()
					room := ""
					if msg.Channel != broadcastChannel {
						room = strings.TrimPrefix(msg.Channel, roomChannelPrefix)
					}
					onMessage(room, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
