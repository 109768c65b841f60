// Package domain contains core concepts of the chat system.
// This file defines Message events and reactions.
// Messages are immutable once persisted; only their like count moves.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a persisted chat message.
type Message struct {
	ID           uuid.UUID
	RoomID       RoomID
	SenderID     UserID
	SenderWallet string
	Content      string
	Lang         string
	LikeCount    int
	CreatedAt    time.Time
}

// Reaction is a like left by a user on a message.
type Reaction struct {
	MessageID uuid.UUID
	UserID    UserID
	CreatedAt time.Time
}
