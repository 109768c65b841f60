package runtime

import (
	"context"
	"testing"

	"wallet-chat/domain"
	"wallet-chat/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	name string
}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func newSessionID() SessionID { return SessionID(uuid.NewString()) }

func TestRegistry_Subscribe_One_Room_One_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID := newSessionID()
	roomID := domain.RoomID("room-1")
	sink := Sink{name: "alice"}

	// Given no session is connected
	req.Zero(registry.Count())
	req.Nil(registry.GetSinksForRoom(roomID))

	// When a session registers then subscribes a room
	registry.Register(sessionID, domain.Identity{UserID: "alice"}, sink)
	req.True(registry.Subscribe(sessionID, roomID))

	// Then
	req.Equal(1, registry.Count())
	req.True(registry.IsSubscribed(sessionID, roomID))
	req.Equal([]domain.RoomID{roomID}, registry.Rooms(sessionID))
	req.Len(registry.GetSinksForRoom(roomID), 1)
	req.Contains(registry.GetSinksForRoom(roomID), sink)

	// And subscribing again changes nothing
	req.False(registry.Subscribe(sessionID, roomID))
	req.Len(registry.SessionsInRoom(roomID), 1)
}

func TestRegistry_Subscribe_Unknown_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.False(registry.Subscribe(newSessionID(), "room-1"))
	req.Nil(registry.GetSinksForRoom("room-1"))
}

func TestRegistry_Subscribe_One_Room_Multiple_Sessions(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID1 := newSessionID()
	sessionID2 := newSessionID()
	roomID := domain.RoomID("room-1")
	sink1 := Sink{name: "alice"}
	sink2 := Sink{name: "bob"}

	// When sessions subscribe a room
	registry.Register(sessionID1, domain.Identity{UserID: "alice"}, sink1)
	registry.Register(sessionID2, domain.Identity{UserID: "bob"}, sink2)
	registry.Subscribe(sessionID1, roomID)
	registry.Subscribe(sessionID2, roomID)

	// Then
	req.Len(registry.SessionsInRoom(roomID), 2)
	req.Len(registry.GetSinksForRoom(roomID), 2)

	// And the sender can be left out
	sinks := registry.GetSinksForRoom(roomID, sessionID1)
	req.Len(sinks, 1)
	req.Contains(sinks, sink2)
}

func TestRegistry_Unsubscribe_One_Room_Multiple_Sessions(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID1 := newSessionID()
	sessionID2 := newSessionID()
	roomID := domain.RoomID("room-1")
	sink2 := Sink{name: "bob"}

	// Given sessions subscribed a room
	registry.Register(sessionID1, domain.Identity{UserID: "alice"}, Sink{name: "alice"})
	registry.Register(sessionID2, domain.Identity{UserID: "bob"}, sink2)
	registry.Subscribe(sessionID1, roomID)
	registry.Subscribe(sessionID2, roomID)

	// When one session unsubscribes the room
	req.True(registry.Unsubscribe(sessionID1, roomID))

	// Then only one session is left and the session itself stays connected
	req.Equal(2, registry.Count())
	req.Len(registry.GetSinksForRoom(roomID), 1)
	req.Contains(registry.GetSinksForRoom(roomID), sink2)

	// And unsubscribing twice is a no-op
	req.False(registry.Unsubscribe(sessionID1, roomID))
}

func TestRegistry_Remove_Releases_Every_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID := newSessionID()

	// Given a session subscribed two rooms
	registry.Register(sessionID, domain.Identity{UserID: "alice"}, Sink{})
	registry.Subscribe(sessionID, "room-1")
	registry.Subscribe(sessionID, "room-2")

	// When it is removed
	rooms := registry.Remove(sessionID)

	// Then the rooms no longer exist in the registry
	req.ElementsMatch([]domain.RoomID{"room-1", "room-2"}, rooms)
	req.Zero(registry.Count())
	req.Nil(registry.GetSinksForRoom("room-1"))
	req.Empty(registry.SessionsInRoom("room-2"))
	req.Nil(registry.Remove(sessionID))
}

func TestRegistry_Sessions_Of_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	phone := newSessionID()
	laptop := newSessionID()

	// Given a user connected twice and another once
	registry.Register(phone, domain.Identity{UserID: "alice"}, Sink{})
	registry.Register(laptop, domain.Identity{UserID: "alice"}, Sink{})
	registry.Register(newSessionID(), domain.Identity{UserID: "bob"}, Sink{})

	// Then both of alice's sessions are found
	req.ElementsMatch([]SessionID{phone, laptop}, registry.SessionsOfUser("alice"))
	req.Empty(registry.SessionsOfUser("clara"))
}
