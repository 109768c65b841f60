package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"wallet-chat/domain"
	"wallet-chat/errors"
	"wallet-chat/repositories"

	"github.com/stretchr/testify/require"
)

func TestInvitationService_AcceptScenario(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, walt := f.user(t, 1), f.user(t, 2)

	// Given Alice created a private room
	room, err := f.memberships.CreateRoom(f.ctx, alice.ID, "private", domain.RoomPrivate)
	req.NoError(err)

	// When she invites Walt's wallet, written in upper case
	inv, err := f.invitations.Create(f.ctx, room.ID, alice.ID, "0x"+strings.ToUpper(walt.Wallet[2:]))
	req.NoError(err)
	req.Equal(walt.Wallet, inv.InviteeWallet)
	req.Equal(inv.CreatedAt.Add(domain.DefaultInvitationTTL), inv.ExpiresAt)

	// Then Walt sees it and has no membership yet
	listed, err := f.invitations.ListForWallet(f.ctx, walt.Wallet)
	req.NoError(err)
	req.Len(listed, 1)
	_, found := f.membership(t, room.ID, walt.ID)
	req.False(found)

	// When Walt accepts
	accepted, m, err := f.invitations.Accept(f.ctx, inv.ID, identity(walt))

	// Then he is approved, not admin, and the invitation is resolved
	req.NoError(err)
	req.Equal(domain.InvitationAccepted, accepted.Status)
	req.NotNil(accepted.RespondedAt)
	req.True(m.Approved())
	req.False(m.IsAdmin)
	stored, found := f.membership(t, room.ID, walt.ID)
	req.True(found)
	req.True(stored.Approved())

	listed, err = f.invitations.ListForWallet(f.ctx, walt.Wallet)
	req.NoError(err)
	req.Empty(listed)

	_, err = f.memberships.RequireApproved(f.ctx, room.ID, walt.ID)
	req.NoError(err)
}

func TestInvitationService_Create_Preconditions(t *testing.T) {
	f := newFixture(t)
	alice, bob, walt := f.user(t, 1), f.user(t, 2), f.user(t, 3)
	private, err := f.memberships.CreateRoom(f.ctx, alice.ID, "private", domain.RoomPrivate)
	require.NoError(t, err)
	public, err := f.memberships.CreateRoom(f.ctx, alice.ID, "public", domain.RoomPublic)
	require.NoError(t, err)
	_, err = f.memberships.AddMember(f.ctx, private.ID, bob.Wallet, alice.ID)
	require.NoError(t, err)

	t.Run("malformed wallets are invalid", func(t *testing.T) {
		_, err := f.invitations.Create(f.ctx, private.ID, alice.ID, "walt")
		require.ErrorIs(t, err, errors.ErrInvalidWallet)
	})

	t.Run("only private rooms take invitations", func(t *testing.T) {
		_, err := f.invitations.Create(f.ctx, public.ID, alice.ID, walt.Wallet)
		require.ErrorIs(t, err, errors.ErrRoomNotPrivate)
	})

	t.Run("only the admin invites", func(t *testing.T) {
		_, err := f.invitations.Create(f.ctx, private.ID, bob.ID, walt.Wallet)
		require.ErrorIs(t, err, errors.ErrNotAdmin)
	})

	t.Run("members are not invited", func(t *testing.T) {
		_, err := f.invitations.Create(f.ctx, private.ID, alice.ID, bob.Wallet)
		require.ErrorIs(t, err, errors.ErrAlreadyMember)
	})

	t.Run("a pending invitation blocks another, whatever the case", func(t *testing.T) {
		req := require.New(t)
		_, err := f.invitations.Create(f.ctx, private.ID, alice.ID, walt.Wallet)
		req.NoError(err)
		_, err = f.invitations.Create(f.ctx, private.ID, alice.ID, "0x"+strings.ToUpper(walt.Wallet[2:]))
		req.ErrorIs(err, errors.ErrInvitationPending)
		req.True(errors.IsConflict(err))
	})

	t.Run("wallets that never signed in can be invited", func(t *testing.T) {
		_, err := f.invitations.Create(f.ctx, private.ID, alice.ID, walletFor(77))
		require.NoError(t, err)
	})
}

func TestInvitationService_Expiry(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, walt := f.user(t, 1), f.user(t, 2)
	room, err := f.memberships.CreateRoom(f.ctx, alice.ID, "private", domain.RoomPrivate)
	req.NoError(err)
	inv, err := f.invitations.Create(f.ctx, room.ID, alice.ID, walt.Wallet)
	req.NoError(err)

	// When the invitation outlives its expiry
	f.clock.Advance(domain.DefaultInvitationTTL)

	// Then it is no longer listed
	listed, err := f.invitations.ListForWallet(f.ctx, walt.Wallet)
	req.NoError(err)
	req.Empty(listed)
	listed, err = f.invitations.ListForRoom(f.ctx, room.ID, alice.ID)
	req.NoError(err)
	req.Empty(listed)

	// And it can never be accepted nor rejected
	_, _, err = f.invitations.Accept(f.ctx, inv.ID, identity(walt))
	req.ErrorIs(err, errors.ErrInvitationExpired)
	req.True(errors.IsNotFound(err))
	_, err = f.invitations.Reject(f.ctx, inv.ID, identity(walt))
	req.ErrorIs(err, errors.ErrInvitationExpired)
	_, found := f.membership(t, room.ID, walt.ID)
	req.False(found)

	// And a fresh invitation may be sent
	again, err := f.invitations.Create(f.ctx, room.ID, alice.ID, walt.Wallet)
	req.NoError(err)
	req.NotEqual(inv.ID, again.ID)
}

func TestInvitationService_AcceptAndReject(t *testing.T) {
	f := newFixture(t)
	alice, walt, eve := f.user(t, 1), f.user(t, 2), f.user(t, 3)
	room, err := f.memberships.CreateRoom(f.ctx, alice.ID, "private", domain.RoomPrivate)
	require.NoError(t, err)
	inv, err := f.invitations.Create(f.ctx, room.ID, alice.ID, walt.Wallet)
	require.NoError(t, err)

	t.Run("another wallet cannot resolve it", func(t *testing.T) {
		req := require.New(t)
		_, _, err := f.invitations.Accept(f.ctx, inv.ID, identity(eve))
		req.ErrorIs(err, errors.ErrNotInvitee)
		req.ErrorIs(err, errors.ErrForbidden)
		_, err = f.invitations.Reject(f.ctx, inv.ID, identity(eve))
		req.ErrorIs(err, errors.ErrNotInvitee)
	})

	t.Run("rejecting leaves membership untouched", func(t *testing.T) {
		req := require.New(t)
		rejected, err := f.invitations.Reject(f.ctx, inv.ID, identity(walt))
		req.NoError(err)
		req.Equal(domain.InvitationRejected, rejected.Status)
		_, found := f.membership(t, room.ID, walt.ID)
		req.False(found)
	})

	t.Run("a resolved invitation cannot be resolved again", func(t *testing.T) {
		_, _, err := f.invitations.Accept(f.ctx, inv.ID, identity(walt))
		require.ErrorIs(t, err, errors.ErrInvitationResolved)
	})

	t.Run("unknown invitations are not found", func(t *testing.T) {
		_, _, err := f.invitations.Accept(f.ctx, "missing", identity(walt))
		require.ErrorIs(t, err, errors.ErrInvitationNotFound)
	})
}

func TestInvitationService_AcceptReactivatesDepartedMember(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, walt := f.user(t, 1), f.user(t, 2)
	room, err := f.memberships.CreateRoom(f.ctx, alice.ID, "private", domain.RoomPrivate)
	req.NoError(err)
	_, err = f.memberships.AddMember(f.ctx, room.ID, walt.Wallet, alice.ID)
	req.NoError(err)
	_, err = f.memberships.Leave(f.ctx, room.ID, walt.ID)
	req.NoError(err)
	before, _ := f.membership(t, room.ID, walt.ID)

	// When Walt comes back through an invitation
	inv, err := f.invitations.Create(f.ctx, room.ID, alice.ID, walt.Wallet)
	req.NoError(err)
	_, m, err := f.invitations.Accept(f.ctx, inv.ID, identity(walt))

	// Then the same row is approved again
	req.NoError(err)
	req.True(m.Approved())
	req.Nil(m.LeftAt)
	req.Equal(before.CreatedAt, m.CreatedAt)
	req.True(m.JoinedAt.After(before.JoinedAt))
	req.Len(f.rows(t, room.ID), 2)
}

func TestInvitationService_AcceptIsAtomic(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, walt := f.user(t, 1), f.user(t, 2)
	room, err := f.memberships.CreateRoom(f.ctx, alice.ID, "private", domain.RoomPrivate)
	req.NoError(err)
	inv, err := f.invitations.Create(f.ctx, room.ID, alice.ID, walt.Wallet)
	req.NoError(err)

	// When the transaction fails after both writes were staged
	induced := fmt.Errorf("induced failure")
	err = f.store.Update(f.ctx, func(tx *repositories.Tx) error {
		accepted, m, changed, err := f.invitations.accept(tx, inv.ID, identity(walt))
		req.NoError(err)
		req.Equal(domain.InvitationAccepted, accepted.Status)
		req.True(m.Approved())
		req.True(changed)
		return induced
	})
	req.ErrorIs(err, errors.ErrStoreFailure)

	// Then neither the acceptance nor the membership is visible
	_, found := f.membership(t, room.ID, walt.ID)
	req.False(found)
	listed, err := f.invitations.ListForWallet(f.ctx, walt.Wallet)
	req.NoError(err)
	req.Len(listed, 1)
	req.Equal(domain.InvitationPending, listed[0].Status)

	// And the invitation can still be accepted for real
	_, _, err = f.invitations.Accept(f.ctx, inv.ID, identity(walt))
	req.NoError(err)
}

func TestInvitationService_DeletedRoom(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, walt := f.user(t, 1), f.user(t, 2)
	room, err := f.memberships.CreateRoom(f.ctx, alice.ID, "private", domain.RoomPrivate)
	req.NoError(err)
	inv, err := f.invitations.Create(f.ctx, room.ID, alice.ID, walt.Wallet)
	req.NoError(err)

	// When the room is deleted
	_, err = f.memberships.DeleteRoom(f.ctx, room.ID, alice.ID)
	req.NoError(err)

	// Then its invitations vanish and every operation is not found
	listed, err := f.invitations.ListForWallet(f.ctx, walt.Wallet)
	req.NoError(err)
	req.Empty(listed)
	_, _, err = f.invitations.Accept(f.ctx, inv.ID, identity(walt))
	req.ErrorIs(err, errors.ErrRoomNotFound)
	_, err = f.invitations.Reject(f.ctx, inv.ID, identity(walt))
	req.ErrorIs(err, errors.ErrRoomNotFound)
	_, err = f.invitations.Create(f.ctx, room.ID, alice.ID, walletFor(9))
	req.ErrorIs(err, errors.ErrRoomNotFound)
	_, err = f.invitations.ListForRoom(f.ctx, room.ID, alice.ID)
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestInvitationService_ListForRoom(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, bob := f.user(t, 1), f.user(t, 2)
	room, err := f.memberships.CreateRoom(f.ctx, alice.ID, "private", domain.RoomPrivate)
	req.NoError(err)
	first, err := f.invitations.Create(f.ctx, room.ID, alice.ID, walletFor(10))
	req.NoError(err)
	f.clock.Advance(time.Hour)
	second, err := f.invitations.Create(f.ctx, room.ID, alice.ID, walletFor(11))
	req.NoError(err)

	listed, err := f.invitations.ListForRoom(f.ctx, room.ID, alice.ID)
	req.NoError(err)
	req.Len(listed, 2)
	req.Equal(second.ID, listed[0].ID)
	req.Equal(first.ID, listed[1].ID)

	_, err = f.invitations.ListForRoom(f.ctx, room.ID, bob.ID)
	req.ErrorIs(err, errors.ErrNotAdmin)
}
