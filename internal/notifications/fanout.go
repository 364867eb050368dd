package notifications

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"gatehouse/internal/middleware"
	"gatehouse/internal/observability"
)

// envelope is the Redis form of a frame addressed to a room.
type envelope struct {
	Except  string          `json:"except,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Fanout delivers frames to rooms across every process. With Redis each frame
// goes through pub/sub and is delivered by every subscriber to its local room
// members; without Redis it is delivered to this process only.
type Fanout struct {
	hub        *RoomHub
	notifier   *Notifier
	subscribed atomic.Bool
}

// NewFanout wires a hub to a notifier. notifier may be nil.
func NewFanout(hub *RoomHub, notifier *Notifier) *Fanout {
	return &Fanout{hub: hub, notifier: notifier}
}

// Hub returns the local room hub.
func (f *Fanout) Hub() *RoomHub { return f.hub }

// Start subscribes this process to remote frames. Until it succeeds, frames
// are delivered locally.
func (f *Fanout) Start(ctx context.Context) error {
	if !f.notifier.Enabled() {
		return nil
	}
	err := f.notifier.StartSubscriber(ctx, func(room, raw string) {
		var env envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			middleware.Logger.Warn("discarding malformed fanout frame", "room", room, "error", err)
			return
		}
		if room == "" {
			f.hub.DeliverAll(env.Payload, env.Except)
			return
		}
		f.hub.Deliver(room, env.Payload, env.Except)
	})
	if err != nil {
		return err
	}
	f.subscribed.Store(true)
	return nil
}

// ToRoom sends payload to every member of room except the session exceptID.
func (f *Fanout) ToRoom(ctx context.Context, room string, payload []byte, exceptID string) {
	f.publish(ctx, room, payload, exceptID)
}

// ToAll sends payload to every session except exceptID.
func (f *Fanout) ToAll(ctx context.Context, payload []byte, exceptID string) {
	f.publish(ctx, "", payload, exceptID)
}

func (f *Fanout) publish(ctx context.Context, room string, payload []byte, exceptID string) {
	if f.subscribed.Load() {
		raw, err := json.Marshal(envelope{Except: exceptID, Payload: payload})
		if err == nil {
			if room == "" {
				err = f.notifier.PublishBroadcast(ctx, string(raw))
			} else {
				err = f.notifier.PublishRoom(ctx, room, string(raw))
			}
		}
		if err == nil {
			observability.FanoutPublishes.WithLabelValues("redis").Inc()
			return
		}
		middleware.Logger.WarnContext(ctx, "fanout publish failed, delivering locally", "room", room, "error", err)
	}

	observability.FanoutPublishes.WithLabelValues("local").Inc()
	if room == "" {
		f.hub.DeliverAll(payload, exceptID)
		return
	}
	f.hub.Deliver(room, payload, exceptID)
}
