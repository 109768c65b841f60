package runtime

import (
	"sync"

	"wallet-chat/contract"
	"wallet-chat/domain"

	"github.com/samber/lo"
)

type SessionID string

func (id SessionID) String() string { return string(id) }

type Set[K comparable] map[K]struct{}

// Session is one authenticated realtime connection.
type Session struct {
	ID       SessionID
	Identity domain.Identity
}

type entry struct {
	Session
	sink  contract.EventSink
	rooms Set[domain.RoomID]
}

// Registry is the live session to room mapping. It is a derived cache of the
// store and is never consulted to authorize anything.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[SessionID]*entry
	roomMembers map[domain.RoomID]Set[SessionID]
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[SessionID]*entry),
		roomMembers: make(map[domain.RoomID]Set[SessionID]),
	}
}

// Register adds a session with no room subscription.
func (r *Registry) Register(id SessionID, identity domain.Identity, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &entry{Session: Session{ID: id, Identity: identity}, sink: sink, rooms: make(Set[domain.RoomID])}
}

// Remove drops the session and every subscription it held.
// It returns the rooms the session was subscribed to.
func (r *Registry) Remove(id SessionID) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil
	}
	rooms := lo.Keys(session.rooms)
	for _, room := range rooms {
		r.unsubscribe(session, room)
	}
	delete(r.sessions, id)
	return rooms
}

// Subscribe adds the session to a room's fan-out group.
// It reports false when the session is unknown or was already subscribed.
func (r *Registry) Subscribe(id SessionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return false
	}
	if _, already := session.rooms[room]; already {
		return false
	}
	session.rooms[room] = struct{}{}
	if _, ok := r.roomMembers[room]; !ok {
		r.roomMembers[room] = make(Set[SessionID])
	}
	r.roomMembers[room][id] = struct{}{}
	return true
}

// Unsubscribe removes the session from a room's fan-out group.
// It reports false when the session was not subscribed.
func (r *Registry) Unsubscribe(id SessionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return false
	}
	if _, subscribed := session.rooms[room]; !subscribed {
		return false
	}
	r.unsubscribe(session, room)
	return true
}

func (r *Registry) unsubscribe(session *entry, room domain.RoomID) {
	delete(session.rooms, room)
	if members, ok := r.roomMembers[room]; ok {
		delete(members, session.ID)
		// No empty sets are kept around
		if len(members) == 0 {
			delete(r.roomMembers, room)
		}
	}
}

func (r *Registry) IsSubscribed(id SessionID, room domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.roomMembers[room][id]
	return ok
}

// Sink returns the outbound side of one session.
func (r *Registry) Sink(id SessionID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return session.sink, true
}

// GetSinksForRoom resolves the sessions subscribed to a room into their sinks,
// skipping the excluded sessions.
func (r *Registry) GetSinksForRoom(room domain.RoomID, exclude ...SessionID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[room]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for id := range members {
		if lo.Contains(exclude, id) {
			continue
		}
		if session, exists := r.sessions[id]; exists {
			sinks = append(sinks, session.sink)
		}
	}
	return sinks
}

// SessionsOfUser lists the live sessions opened by user.
func (r *Registry) SessionsOfUser(user domain.UserID) []SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []SessionID
	for id, session := range r.sessions {
		if session.Identity.UserID == user {
			ids = append(ids, id)
		}
	}
	return ids
}

// SessionsInRoom lists the sessions subscribed to a room.
func (r *Registry) SessionsInRoom(room domain.RoomID) []SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.roomMembers[room])
}

// Rooms lists the rooms a session is subscribed to.
func (r *Registry) Rooms(id SessionID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil
	}
	return lo.Keys(session.rooms)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
