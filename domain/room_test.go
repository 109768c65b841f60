package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemberStatus_Transitions(t *testing.T) {
	req := require.New(t)

	req.True(StatusPending.CanTransitionTo(StatusApproved))
	req.True(StatusPending.CanTransitionTo(StatusRejected))
	req.True(StatusPending.CanTransitionTo(StatusLeft))
	req.True(StatusApproved.CanTransitionTo(StatusLeft))
	req.True(StatusRejected.CanTransitionTo(StatusPending))
	req.True(StatusLeft.CanTransitionTo(StatusApproved))

	// An approved member never goes back to pending or rejected
	req.False(StatusApproved.CanTransitionTo(StatusPending))
	req.False(StatusApproved.CanTransitionTo(StatusRejected))
	req.False(StatusLeft.CanTransitionTo(StatusRejected))
	req.False(MemberStatus("unknown").CanTransitionTo(StatusApproved))
}

func TestMemberStatus_Active(t *testing.T) {
	req := require.New(t)
	req.True(StatusPending.Active())
	req.True(StatusApproved.Active())
	req.False(StatusRejected.Active())
	req.False(StatusLeft.Active())
}

func TestMembership_JoinedBefore(t *testing.T) {
	req := require.New(t)
	now := time.Now()

	first := Membership{UserID: "first", JoinedAt: now, CreatedAt: now.Add(time.Minute)}
	second := Membership{UserID: "second", JoinedAt: now.Add(time.Second), CreatedAt: now}
	req.True(first.JoinedBefore(second))
	req.False(second.JoinedBefore(first))

	// Same join instant falls back to insertion order
	tie := Membership{UserID: "tie", JoinedAt: now, CreatedAt: now.Add(2 * time.Minute)}
	req.True(first.JoinedBefore(tie))
	req.False(tie.JoinedBefore(first))
}

func TestMembership_ApprovedAdmin(t *testing.T) {
	req := require.New(t)
	req.True(Membership{Status: StatusApproved, IsAdmin: true}.ApprovedAdmin())
	req.False(Membership{Status: StatusLeft, IsAdmin: true}.ApprovedAdmin())
	req.False(Membership{Status: StatusApproved}.ApprovedAdmin())
}

func TestRoom_Kinds(t *testing.T) {
	req := require.New(t)
	req.True(RoomP2P.Valid())
	req.False(RoomType("group").Valid())
	req.True(Room{Type: RoomP2P}.IsDirect())
	req.True(Room{Type: RoomPublic}.Orphaned())
	req.False(Room{Type: RoomPublic, AdminID: "alice"}.Orphaned())
}

func TestNewInvitation(t *testing.T) {
	req := require.New(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// When an invitation is built without ttl
	inv, err := NewInvitation(CreateInvitationInput{
		RoomID:        "room-1",
		InviterID:     "alice",
		InviteeWallet: "  0xABCdef ",
	}, func() time.Time { return now }, func() (string, error) { return "inv-1", nil })

	// Then it is pending with the default expiry and a canonical wallet
	req.NoError(err)
	req.Equal(InvitationID("inv-1"), inv.ID)
	req.Equal(InvitationPending, inv.Status)
	req.Equal("0xabcdef", inv.InviteeWallet)
	req.Equal(now.Add(DefaultInvitationTTL), inv.ExpiresAt)
	req.Nil(inv.RespondedAt)
}

func TestNewInvitation_Id_Failure(t *testing.T) {
	req := require.New(t)
	boom := errors.New("boom")

	_, err := NewInvitation(CreateInvitationInput{RoomID: "room-1"}, nil, func() (string, error) { return "", boom })

	req.ErrorIs(err, boom)
}

func TestInvitation_Expiry(t *testing.T) {
	req := require.New(t)
	now := time.Now()
	inv := Invitation{Status: InvitationPending, ExpiresAt: now.Add(time.Hour)}

	req.True(inv.Active(now))
	// The expiry instant itself is already expired
	req.True(inv.Expired(now.Add(time.Hour)))
	req.False(inv.Active(now.Add(time.Hour)))

	inv.Status = InvitationAccepted
	req.False(inv.Active(now))
}

func TestWallet_Normalization(t *testing.T) {
	req := require.New(t)
	req.Equal("0xabc", NormalizeWallet(" 0xAbC\n"))
	req.True(SameWallet("0xABC", "0xabc"))
	req.False(SameWallet("0xabc", "0xabd"))
}
