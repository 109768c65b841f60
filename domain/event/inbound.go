package event

import (
	"encoding/json"
	"fmt"

	"wallet-chat/domain"
	"wallet-chat/errors"

	"github.com/google/uuid"
)

// Inbound events, sent by clients.
const (
	JoinRoomType      Type = "join_room"
	LeaveRoomType     Type = "leave_room"
	SendMessageType   Type = "send_message"
	LikeMessageType   Type = "like_message"
	UnlikeMessageType Type = "unlike_message"
	TypingStartType   Type = "typing_start"
	TypingStopType    Type = "typing_stop"
)

// Command is a decoded inbound event.
type Command interface {
	Kind() Type
}

type JoinRoom struct {
	RoomID domain.RoomID `json:"room_id"`
}

func (JoinRoom) Kind() Type { return JoinRoomType }

type LeaveRoom struct {
	RoomID domain.RoomID `json:"room_id"`
}

func (LeaveRoom) Kind() Type { return LeaveRoomType }

type SendMessage struct {
	RoomID  domain.RoomID `json:"room_id"`
	Content string        `json:"content"`
}

func (SendMessage) Kind() Type { return SendMessageType }

type LikeMessage struct {
	MessageID uuid.UUID `json:"message_id"`
}

func (LikeMessage) Kind() Type { return LikeMessageType }

type UnlikeMessage struct {
	MessageID uuid.UUID `json:"message_id"`
}

func (UnlikeMessage) Kind() Type { return UnlikeMessageType }

type TypingStart struct {
	RoomID domain.RoomID `json:"room_id"`
}

func (TypingStart) Kind() Type { return TypingStartType }

type TypingStop struct {
	RoomID domain.RoomID `json:"room_id"`
}

func (TypingStop) Kind() Type { return TypingStopType }

// Decode parses a raw frame into a typed command.
func Decode(raw []byte) (Command, string, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, "", fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	var cmd Command
	switch env.Type {
	case JoinRoomType:
		cmd = &JoinRoom{}
	case LeaveRoomType:
		cmd = &LeaveRoom{}
	case SendMessageType:
		cmd = &SendMessage{}
	case LikeMessageType:
		cmd = &LikeMessage{}
	case UnlikeMessageType:
		cmd = &UnlikeMessage{}
	case TypingStartType:
		cmd = &TypingStart{}
	case TypingStopType:
		cmd = &TypingStop{}
	default:
		return nil, env.Ref, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, env.Type)
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, cmd); err != nil {
			return nil, env.Ref, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
		}
	}
	return deref(cmd), env.Ref, nil
}

func deref(cmd Command) Command {
	switch c := cmd.(type) {
	case *JoinRoom:
		return *c
	case *LeaveRoom:
		return *c
	case *SendMessage:
		return *c
	case *LikeMessage:
		return *c
	case *UnlikeMessage:
		return *c
	case *TypingStart:
		return *c
	case *TypingStop:
		return *c
	}
	return cmd
}
