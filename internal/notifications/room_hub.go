// Package notifications provides room-based real-time delivery over websockets,
// the Redis fan-out that spans processes, and participant presence.
package notifications

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

const maxTotalConns = 10000

// ErrConnectionLimit is returned when the process holds too many sessions.
var ErrConnectionLimit = errors.New("server connection limit reached")

// Subscriber is one live session that can receive frames.
type Subscriber interface {
	ID() string
	TrySend(message []byte)
	Close()
}

// ConversationRoom names the room of everyone viewing a conversation.
func ConversationRoom(id uuid.UUID) string { return "conversation:" + id.String() }

// ParticipantRoom names a participant's personal notification room.
func ParticipantRoom(id uuid.UUID) string { return "participant:" + id.String() }

// RoomHub tracks the sessions of this process and the rooms they joined.
// Delivery only reaches local sessions; see Fanout for cross-process delivery.
type RoomHub struct {
	mu       sync.RWMutex
	sessions map[string]Subscriber
	rooms    map[string]map[string]Subscriber
	joined   map[string]map[string]struct{}
}

// NewRoomHub creates an empty hub.
func NewRoomHub() *RoomHub {
	return &RoomHub{
		sessions: make(map[string]Subscriber),
		rooms:    make(map[string]map[string]Subscriber),
		joined:   make(map[string]map[string]struct{}),
	}
}

// Register adds a session to the hub.
func (h *RoomHub) Register(s Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.ID()]; ok {
		return nil
	}
	if len(h.sessions) >= maxTotalConns {
		return ErrConnectionLimit
	}
	h.sessions[s.ID()] = s
	h.joined[s.ID()] = make(map[string]struct{})
	return nil
}

// Unregister removes a session from the hub and from every room it joined.
// It reports whether the session was registered.
func (h *RoomHub) Unregister(s Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := s.ID()
	if _, ok := h.sessions[id]; !ok {
		return false
	}
	for room := range h.joined[id] {
		h.removeLocked(room, id)
	}
	delete(h.joined, id)
	delete(h.sessions, id)
	return true
}

// Join adds a registered session to a room.
func (h *RoomHub) Join(room string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := s.ID()
	rooms, ok := h.joined[id]
	if !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]Subscriber)
		h.rooms[room] = members
	}
	members[id] = s
	rooms[room] = struct{}{}
}

// Leave removes a session from a room.
func (h *RoomHub) Leave(room string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(room, s.ID())
	if rooms, ok := h.joined[s.ID()]; ok {
		delete(rooms, room)
	}
}

func (h *RoomHub) removeLocked(room, id string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Deliver sends payload to every local member of room except the session exceptID.
func (h *RoomHub) Deliver(room string, payload []byte, exceptID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, s := range h.rooms[room] {
		if id != exceptID {
			s.TrySend(payload)
		}
	}
}

// DeliverAll sends payload to every local session except exceptID.
func (h *RoomHub) DeliverAll(payload []byte, exceptID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, s := range h.sessions {
		if id != exceptID {
			s.TrySend(payload)
		}
	}
}

// InRoom reports whether the session is a member of room.
func (h *RoomHub) InRoom(room string, s Subscriber) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][s.ID()]
	return ok
}

// Members returns the number of local sessions in room.
func (h *RoomHub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Sessions returns the number of registered sessions.
func (h *RoomHub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown closes every session and empties the hub.
func (h *RoomHub) Shutdown() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]Subscriber)
	h.rooms = make(map[string]map[string]Subscriber)
	h.joined = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
