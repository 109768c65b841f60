package event

import (
	"time"

	"wallet-chat/domain"
)

type ChangeKind string

const (
	MemberApproved   ChangeKind = "approved"
	MemberDeparted   ChangeKind = "left"
	MemberRemoved    ChangeKind = "removed"
	RoomDeactivated  ChangeKind = "room_deleted"
	AdminTransferred ChangeKind = "admin_changed"
)

// MembershipChanged is published once a membership transition has committed.
// For RoomDeactivated, UserID is empty and every session of the room is concerned.
type MembershipChanged struct {
	Kind    ChangeKind
	Room    domain.RoomID
	UserID  domain.UserID
	Wallet  string
	AdminID domain.UserID
	At      time.Time
}
