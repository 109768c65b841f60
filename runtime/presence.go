// Package runtime owns live realtime sessions and the fan-out of room events.
// It holds no membership rule: every privileged action is re-checked by the services.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"wallet-chat/contract"
	"wallet-chat/domain"
	"wallet-chat/domain/event"
	"wallet-chat/errors"
	"wallet-chat/services"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Presence bridges the durable membership state to live room subscriptions.
type Presence struct {
	log         *slog.Logger
	registry    *Registry
	verifier    contract.TokenVerifier
	memberships services.IMembershipService
	chat        services.IChatService
	sinkTimeout time.Duration

	mu        sync.Mutex
	roomLocks map[domain.RoomID]*sync.Mutex
}

func NewPresence(log *slog.Logger, registry *Registry, verifier contract.TokenVerifier,
	memberships services.IMembershipService, chat services.IChatService, sinkTimeout time.Duration) *Presence {
	return &Presence{
		log:         log,
		registry:    registry,
		verifier:    verifier,
		memberships: memberships,
		chat:        chat,
		sinkTimeout: sinkTimeout,
		roomLocks:   make(map[domain.RoomID]*sync.Mutex),
	}
}

// Connect authenticates a new connection, subscribes it to every room its
// user is currently approved in and sends the snapshot of those rooms.
// Nothing is registered when the token is rejected.
//
// The session is registered before the approval query and the rooms are
// confirmed again once subscribed, so a removal committed meanwhile is either
// seen by the second query or evicted by Mirror.
func (p *Presence) Connect(ctx context.Context, token string, sink contract.EventSink) (Session, error) {
	identity, err := p.verifier.Verify(token)
	if err != nil {
		return Session{}, err
	}
	session := Session{ID: SessionID(uuid.NewString()), Identity: identity}
	p.registry.Register(session.ID, identity, sink)

	rooms, err := p.approvedRooms(ctx, identity.UserID)
	if err != nil {
		p.registry.Remove(session.ID)
		return Session{}, err
	}
	for _, room := range rooms {
		p.registry.Subscribe(session.ID, room)
	}
	confirmed, err := p.approvedRooms(ctx, identity.UserID)
	if err != nil {
		p.registry.Remove(session.ID)
		return Session{}, err
	}
	for _, room := range lo.Without(rooms, confirmed...) {
		p.registry.Unsubscribe(session.ID, room)
	}
	snapshot := lo.Filter(confirmed, func(room domain.RoomID, _ int) bool {
		return p.registry.IsSubscribed(session.ID, room)
	})
	p.log.Info("Session connected", "session_id", session.ID, "user_id", identity.UserID, "rooms", len(snapshot))

	p.deliver(ctx, sink, event.RoomsSnapshot{RoomIDs: snapshot})
	return session, nil
}

func (p *Presence) approvedRooms(ctx context.Context, user domain.UserID) ([]domain.RoomID, error) {
	rooms, err := p.memberships.ListRooms(ctx, user)
	if err != nil {
		return nil, err
	}
	return lo.Map(rooms, func(r domain.Room, _ int) domain.RoomID { return r.ID }), nil
}

// Disconnect releases the session's subscriptions. Membership is untouched.
func (p *Presence) Disconnect(session Session) {
	rooms := p.registry.Remove(session.ID)
	p.log.Info("Session disconnected", "session_id", session.ID, "user_id", session.Identity.UserID, "rooms", len(rooms))
}

// Handle processes one inbound command of a session. Failures are reported
// to that session only.
func (p *Presence) Handle(ctx context.Context, session Session, cmd event.Command, ref string) {
	var err error
	switch c := cmd.(type) {
	case event.JoinRoom:
		err = p.join(ctx, session, c.RoomID)
	case event.LeaveRoom:
		p.leave(ctx, session, c.RoomID)
	case event.SendMessage:
		err = p.send(ctx, session, c)
	case event.LikeMessage:
		err = p.react(ctx, session, c.MessageID, true)
	case event.UnlikeMessage:
		err = p.react(ctx, session, c.MessageID, false)
	case event.TypingStart:
		err = p.typing(ctx, session, c.RoomID, event.UserTyping{Room: c.RoomID, UserID: session.Identity.UserID, Wallet: session.Identity.Wallet})
	case event.TypingStop:
		err = p.typing(ctx, session, c.RoomID, event.UserStoppedTyping{Room: c.RoomID, UserID: session.Identity.UserID, Wallet: session.Identity.Wallet})
	default:
		err = errors.ErrUnknownEvent
	}
	if err != nil {
		p.Reject(ctx, session, err, ref)
	}
}

// Reject sends an error notice to the session that caused err.
func (p *Presence) Reject(ctx context.Context, session Session, err error, ref string) {
	if errors.Is(err, errors.ErrStoreFailure) || !errors.IsClassified(err) {
		p.log.Error("Realtime command failed", "session_id", session.ID, "user_id", session.Identity.UserID, "error", err)
	} else {
		p.log.Debug("Realtime command rejected", "session_id", session.ID, "user_id", session.Identity.UserID, "error", err)
	}
	sink, ok := p.registry.Sink(session.ID)
	if !ok {
		return
	}
	p.deliver(ctx, sink, event.ErrorNotice{Code: errors.Code(err), Message: errors.Message(err), Ref: ref})
}

// join checks approval, subscribes, then checks again: a removal committed
// between the first check and the subscription is caught by the second one.
func (p *Presence) join(ctx context.Context, session Session, room domain.RoomID) error {
	if _, err := p.memberships.RequireApproved(ctx, room, session.Identity.UserID); err != nil {
		return err
	}
	p.registry.Subscribe(session.ID, room)
	if _, err := p.memberships.RequireApproved(ctx, room, session.Identity.UserID); err != nil {
		p.registry.Unsubscribe(session.ID, room)
		return err
	}
	if sink, ok := p.registry.Sink(session.ID); ok {
		p.deliver(ctx, sink, event.RoomJoined{Room: room})
	}
	return nil
}

// leave is an idempotent unsubscribe. Remaining subscribers only hear about it
// when a subscription was actually released.
func (p *Presence) leave(ctx context.Context, session Session, room domain.RoomID) {
	released := p.registry.Unsubscribe(session.ID, room)
	if sink, ok := p.registry.Sink(session.ID); ok {
		p.deliver(ctx, sink, event.RoomLeft{Room: room})
	}
	if released {
		p.broadcast(ctx, room, event.MemberLeft{Room: room, UserID: session.Identity.UserID, Wallet: session.Identity.Wallet})
	}
}

func (p *Presence) send(ctx context.Context, session Session, cmd event.SendMessage) error {
	unlock := p.lockRoom(cmd.RoomID)
	defer unlock()

	message, err := p.chat.PostMessage(ctx, session.Identity, cmd.RoomID, cmd.Content)
	if err != nil {
		return err
	}
	p.broadcast(ctx, message.RoomID, event.NewMessagePosted(message))
	return nil
}

func (p *Presence) react(ctx context.Context, session Session, messageID uuid.UUID, liked bool) error {
	room, err := p.chat.MessageRoom(ctx, messageID)
	if err != nil {
		return err
	}
	unlock := p.lockRoom(room)
	defer unlock()

	react := p.chat.Unlike
	if liked {
		react = p.chat.Like
	}
	message, err := react(ctx, session.Identity, messageID)
	if err != nil {
		return err
	}
	p.broadcast(ctx, message.RoomID, event.ReactionUpdated{
		MessageID: message.ID,
		Room:      message.RoomID,
		LikeCount: message.LikeCount,
		UserID:    session.Identity.UserID,
		Wallet:    session.Identity.Wallet,
		Liked:     liked,
	})
	return nil
}

// typing is best effort: never persisted, never acknowledged, never sent back to its author.
func (p *Presence) typing(ctx context.Context, session Session, room domain.RoomID, e event.DomainEvent) error {
	if !p.registry.IsSubscribed(session.ID, room) {
		return errors.ErrNotMember
	}
	p.broadcast(ctx, room, e, session.ID)
	return nil
}

// Mirror applies a committed membership change to the live sessions.
func (p *Presence) Mirror(ctx context.Context, change event.MembershipChanged) {
	p.log.Debug("Mirroring membership change", "kind", change.Kind, "room_id", change.Room, "user_id", change.UserID)
	switch change.Kind {
	case event.MemberApproved:
		sessions := p.registry.SessionsOfUser(change.UserID)
		for _, id := range sessions {
			if !p.registry.Subscribe(id, change.Room) {
				continue
			}
			if sink, ok := p.registry.Sink(id); ok {
				p.deliver(ctx, sink, event.RoomJoined{Room: change.Room})
			}
		}
		p.broadcast(ctx, change.Room, event.MemberJoined{Room: change.Room, UserID: change.UserID, Wallet: change.Wallet}, sessions...)
	case event.MemberDeparted, event.MemberRemoved:
		for _, id := range p.registry.SessionsOfUser(change.UserID) {
			p.evict(ctx, id, change.Room, string(change.Kind))
		}
		p.broadcast(ctx, change.Room, event.MemberLeft{Room: change.Room, UserID: change.UserID, Wallet: change.Wallet})
	case event.RoomDeactivated:
		for _, id := range p.registry.SessionsInRoom(change.Room) {
			p.evict(ctx, id, change.Room, string(change.Kind))
		}
		p.dropRoomLock(change.Room)
	case event.AdminTransferred:
		p.broadcast(ctx, change.Room, event.AdminChanged{Room: change.Room, UserID: change.AdminID})
	default:
		p.log.Warn("Unknown membership change", "kind", change.Kind, "room_id", change.Room)
	}
}

func (p *Presence) evict(ctx context.Context, id SessionID, room domain.RoomID, reason string) {
	if !p.registry.Unsubscribe(id, room) {
		return
	}
	if sink, ok := p.registry.Sink(id); ok {
		p.deliver(ctx, sink, event.RoomLeft{Room: room, Reason: reason})
	}
}

// SessionCount is the number of live sessions.
func (p *Presence) SessionCount() int {
	return p.registry.Count()
}

// broadcast sends e to every session subscribed to room except the excluded ones.
func (p *Presence) broadcast(ctx context.Context, room domain.RoomID, e event.DomainEvent, exclude ...SessionID) {
	for _, sink := range p.registry.GetSinksForRoom(room, exclude...) {
		p.deliver(ctx, sink, e)
	}
}

// deliver hands e to one sink, bounded by the sink timeout.
// A slow or full sink only loses its own copy.
func (p *Presence) deliver(ctx context.Context, sink contract.EventSink, e event.DomainEvent) {
	sinkCtx, cancel := context.WithTimeout(ctx, p.sinkTimeout)
	defer cancel()
	if err := sink.Consume(sinkCtx, e); err != nil {
		p.log.Warn("Event dropped", "type", e.Type(), "room_id", e.RoomID(), "error", err)
	}
}

// lockRoom serializes persist then broadcast per room, so every subscriber
// sees a room's events in commit order.
func (p *Presence) lockRoom(room domain.RoomID) func() {
	p.mu.Lock()
	lock, ok := p.roomLocks[room]
	if !ok {
		lock = &sync.Mutex{}
		p.roomLocks[room] = lock
	}
	p.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// dropRoomLock forgets the lock of a deactivated room. Every later write to
// that room fails in the store.
func (p *Presence) dropRoomLock(room domain.RoomID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.roomLocks, room)
}
