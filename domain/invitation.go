// Package domain contains core concepts of the chat system.
// This file defines time-bounded invitations to private rooms.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const DefaultInvitationTTL = 7 * 24 * time.Hour

type InvitationID string

func (id InvitationID) String() string { return string(id) }

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

type Invitation struct {
	ID            InvitationID
	RoomID        RoomID
	InviterID     UserID
	InviteeWallet string
	Status        InvitationStatus
	CreatedAt     time.Time
	ExpiresAt     time.Time
	RespondedAt   *time.Time
}

// Expired is evaluated against the caller's clock; nothing ever sweeps invitations.
func (i Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Active reports whether the invitation can still be accepted or rejected.
func (i Invitation) Active(now time.Time) bool {
	return i.Status == InvitationPending && !i.Expired(now)
}

type CreateInvitationInput struct {
	RoomID        RoomID
	InviterID     UserID
	InviteeWallet string
	TTL           time.Duration
}

// NewInvitation builds a pending invitation with a generated id and an expiry.
func NewInvitation(input CreateInvitationInput, now func() time.Time, idGenerator func() (string, error)) (Invitation, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = func() (string, error) { return uuid.NewString(), nil }
	}
	ttl := input.TTL
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	id, err := idGenerator()
	if err != nil {
		return Invitation{}, fmt.Errorf("generate invitation id: %w", err)
	}
	createdAt := now().UTC()
	return Invitation{
		ID:            InvitationID(id),
		RoomID:        input.RoomID,
		InviterID:     input.InviterID,
		InviteeWallet: NormalizeWallet(input.InviteeWallet),
		Status:        InvitationPending,
		CreatedAt:     createdAt,
		ExpiresAt:     createdAt.Add(ttl),
	}, nil
}
