package event

import (
	"encoding/json"
	"time"

	"wallet-chat/domain"

	"github.com/google/uuid"
)

type Type string

// Outbound events, pushed to sessions.
const (
	RoomsSnapshotType     Type = "rooms_snapshot"
	RoomJoinedType        Type = "room_joined"
	RoomLeftType          Type = "room_left"
	MemberJoinedType      Type = "member_joined"
	MemberLeftType        Type = "member_left"
	NewMessageType        Type = "new_message"
	ReactionUpdatedType   Type = "reaction_updated"
	UserTypingType        Type = "user_typing"
	UserStoppedTypingType Type = "user_stopped_typing"
	AdminChangedType      Type = "admin_changed"
	ErrorType             Type = "error"
)

// DomainEvent is anything a session can receive. Room-scoped events are only
// ever delivered to the sessions subscribed to RoomID.
type DomainEvent interface {
	RoomID() domain.RoomID
	Type() Type
}

type RoomsSnapshot struct {
	RoomIDs []domain.RoomID `json:"room_ids"`
}

func (RoomsSnapshot) RoomID() domain.RoomID { return "" }
func (RoomsSnapshot) Type() Type            { return RoomsSnapshotType }

type RoomJoined struct {
	Room domain.RoomID `json:"room_id"`
}

func (e RoomJoined) RoomID() domain.RoomID { return e.Room }
func (RoomJoined) Type() Type              { return RoomJoinedType }

type RoomLeft struct {
	Room   domain.RoomID `json:"room_id"`
	Reason string        `json:"reason,omitempty"`
}

func (e RoomLeft) RoomID() domain.RoomID { return e.Room }
func (RoomLeft) Type() Type              { return RoomLeftType }

type MemberJoined struct {
	Room   domain.RoomID `json:"room_id"`
	UserID domain.UserID `json:"user_id"`
	Wallet string        `json:"wallet"`
}

func (e MemberJoined) RoomID() domain.RoomID { return e.Room }
func (MemberJoined) Type() Type              { return MemberJoinedType }

type MemberLeft struct {
	Room   domain.RoomID `json:"room_id"`
	UserID domain.UserID `json:"user_id"`
	Wallet string        `json:"wallet"`
}

func (e MemberLeft) RoomID() domain.RoomID { return e.Room }
func (MemberLeft) Type() Type              { return MemberLeftType }

type MessagePosted struct {
	ID        uuid.UUID     `json:"id"`
	Room      domain.RoomID `json:"room_id"`
	SenderID  domain.UserID `json:"sender_id"`
	Wallet    string        `json:"sender_wallet"`
	Content   string        `json:"content"`
	Lang      string        `json:"lang,omitempty"`
	LikeCount int           `json:"like_count"`
	At        time.Time     `json:"created_at"`
}

func (e MessagePosted) RoomID() domain.RoomID { return e.Room }
func (MessagePosted) Type() Type              { return NewMessageType }

func NewMessagePosted(m domain.Message) MessagePosted {
	return MessagePosted{
		ID:        m.ID,
		Room:      m.RoomID,
		SenderID:  m.SenderID,
		Wallet:    m.SenderWallet,
		Content:   m.Content,
		Lang:      m.Lang,
		LikeCount: m.LikeCount,
		At:        m.CreatedAt,
	}
}

type ReactionUpdated struct {
	MessageID uuid.UUID     `json:"message_id"`
	Room      domain.RoomID `json:"room_id"`
	LikeCount int           `json:"like_count"`
	UserID    domain.UserID `json:"user_id"`
	Wallet    string        `json:"wallet"`
	Liked     bool          `json:"liked"`
}

func (e ReactionUpdated) RoomID() domain.RoomID { return e.Room }
func (ReactionUpdated) Type() Type              { return ReactionUpdatedType }

type UserTyping struct {
	Room   domain.RoomID `json:"room_id"`
	UserID domain.UserID `json:"user_id"`
	Wallet string        `json:"wallet"`
}

func (e UserTyping) RoomID() domain.RoomID { return e.Room }
func (UserTyping) Type() Type              { return UserTypingType }

type UserStoppedTyping struct {
	Room   domain.RoomID `json:"room_id"`
	UserID domain.UserID `json:"user_id"`
	Wallet string        `json:"wallet"`
}

func (e UserStoppedTyping) RoomID() domain.RoomID { return e.Room }
func (UserStoppedTyping) Type() Type              { return UserStoppedTypingType }

type AdminChanged struct {
	Room   domain.RoomID `json:"room_id"`
	UserID domain.UserID `json:"user_id"`
}

func (e AdminChanged) RoomID() domain.RoomID { return e.Room }
func (AdminChanged) Type() Type              { return AdminChangedType }

// ErrorNotice is scoped to the connection that caused it and never broadcast.
type ErrorNotice struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Ref     string        `json:"ref,omitempty"`
	Room    domain.RoomID `json:"room_id,omitempty"`
}

func (e ErrorNotice) RoomID() domain.RoomID { return e.Room }
func (ErrorNotice) Type() Type              { return ErrorType }

// Envelope is the JSON frame exchanged on the realtime connection.
type Envelope struct {
	Type    Type            `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode wraps an outbound event into its wire frame.
func Encode(e DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: e.Type(), Payload: payload})
}
