package notifications

import (
	"testing"

	"gatehouse/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomHub_DeliverToRoomExceptSender(t *testing.T) {
	hub := NewRoomHub()
	a := NewClient(nil, uuid.New(), models.RoleGuard, "Ravi")
	b := NewClient(nil, uuid.New(), models.RoleResident, "Meera")
	c := NewClient(nil, uuid.New(), models.RoleResident, "Kiran")
	for _, cl := range []*Client{a, b, c} {
		require.NoError(t, hub.Register(cl))
	}

	room := ConversationRoom(uuid.New())
	hub.Join(room, a)
	hub.Join(room, b)
	assert.Equal(t, 2, hub.Members(room))

	hub.Deliver(room, []byte(`{"event":"user_typing"}`), a.ID())
	assert.Empty(t, drain(a))
	assert.Equal(t, []string{`{"event":"user_typing"}`}, drain(b))
	assert.Empty(t, drain(c))

	hub.Leave(room, b)
	assert.False(t, hub.InRoom(room, b))
	hub.Deliver(room, []byte(`{}`), "")
	assert.Len(t, drain(a), 1)
	assert.Empty(t, drain(b))
}

func TestRoomHub_UnregisterLeavesAllRooms(t *testing.T) {
	hub := NewRoomHub()
	a := NewClient(nil, uuid.New(), models.RoleGuard, "Ravi")
	require.NoError(t, hub.Register(a))

	personal := ParticipantRoom(a.ParticipantID)
	conv := ConversationRoom(uuid.New())
	hub.Join(personal, a)
	hub.Join(conv, a)

	assert.True(t, hub.Unregister(a))
	assert.False(t, hub.Unregister(a))
	assert.Zero(t, hub.Members(personal))
	assert.Zero(t, hub.Members(conv))
	assert.Zero(t, hub.Sessions())

	hub.Join(conv, a)
	assert.Zero(t, hub.Members(conv), "unregistered sessions cannot join rooms")
}

func TestRoomHub_DeliverAll(t *testing.T) {
	hub := NewRoomHub()
	a := NewClient(nil, uuid.New(), models.RoleGuard, "Ravi")
	b := NewClient(nil, uuid.New(), models.RoleResident, "Meera")
	require.NoError(t, hub.Register(a))
	require.NoError(t, hub.Register(b))

	hub.DeliverAll([]byte(`{"event":"user_online"}`), b.ID())
	assert.Len(t, drain(a), 1)
	assert.Empty(t, drain(b))
}

func TestRoomHub_ShutdownClosesSessions(t *testing.T) {
	hub := NewRoomHub()
	a := NewClient(nil, uuid.New(), models.RoleGuard, "Ravi")
	require.NoError(t, hub.Register(a))

	hub.Shutdown()
	_, ok := <-a.Send
	assert.False(t, ok)
	assert.Zero(t, hub.Sessions())
}

func TestRoomNames(t *testing.T) {
	id := uuid.MustParse("0192f7a4-8c1e-7c3a-9a55-3b8f0e6f1d20")
	assert.Equal(t, "conversation:0192f7a4-8c1e-7c3a-9a55-3b8f0e6f1d20", ConversationRoom(id))
	assert.Equal(t, "participant:0192f7a4-8c1e-7c3a-9a55-3b8f0e6f1d20", ParticipantRoom(id))
	assert.Equal(t, "fanout:room:participant:0192f7a4-8c1e-7c3a-9a55-3b8f0e6f1d20", RoomChannel(ParticipantRoom(id)))
}

func TestClient_TrySendDropsWhenFullOrClosed(t *testing.T) {
	c := NewClient(nil, uuid.New(), models.RoleResident, "Meera")
	for i := 0; i < sendBufferSize+10; i++ {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, sendBufferSize)

	c.Close()
	c.Close()
	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })
}
