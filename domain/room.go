// Package domain contains core concepts of the chat system.
// This file defines Room entities and their kinds.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"time"
)

type RoomID string

func (id RoomID) String() string { return string(id) }

type RoomType string

const (
	RoomPublic  RoomType = "public"
	RoomPrivate RoomType = "private"
	RoomP2P     RoomType = "p2p"
)

func (t RoomType) Valid() bool {
	switch t {
	case RoomPublic, RoomPrivate, RoomP2P:
		return true
	}
	return false
}

// Room is the durable room record. AdminID is empty once the room is orphaned.
type Room struct {
	ID        RoomID
	Name      string
	Type      RoomType
	AdminID   UserID
	Active    bool
	CreatedBy UserID
	CreatedAt time.Time
	DeletedAt *time.Time
}

func (r Room) IsDirect() bool { return r.Type == RoomP2P }

func (r Room) Orphaned() bool { return r.AdminID == "" }
