// Package domain contains core concepts of the chat system.
// This file defines Membership records and the legal status transitions.
package domain

import "time"

type MemberStatus string

const (
	StatusPending  MemberStatus = "pending"
	StatusApproved MemberStatus = "approved"
	StatusRejected MemberStatus = "rejected"
	StatusLeft     MemberStatus = "left"
)

// transitions lists the legal next statuses. Removal is not a status: the row is deleted.
var transitions = map[MemberStatus][]MemberStatus{
	StatusPending:  {StatusApproved, StatusRejected, StatusLeft},
	StatusApproved: {StatusLeft},
	StatusRejected: {StatusPending, StatusApproved},
	StatusLeft:     {StatusPending, StatusApproved},
}

// CanTransitionTo reports whether a row in status s may move to next.
func (s MemberStatus) CanTransitionTo(next MemberStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active reports whether the row still counts as an ongoing relation with the room.
func (s MemberStatus) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// Membership is keyed by (RoomID, UserID); there is never more than one row per pair.
type Membership struct {
	RoomID    RoomID
	UserID    UserID
	Status    MemberStatus
	IsAdmin   bool
	JoinedAt  time.Time
	LeftAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m Membership) Approved() bool { return m.Status == StatusApproved }

func (m Membership) ApprovedAdmin() bool { return m.Approved() && m.IsAdmin }

// JoinedBefore orders approved members for admin succession: earliest join first,
// then insertion order.
func (m Membership) JoinedBefore(other Membership) bool {
	if !m.JoinedAt.Equal(other.JoinedAt) {
		return m.JoinedAt.Before(other.JoinedAt)
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
