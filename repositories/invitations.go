package repositories

import (
	"sort"

	"wallet-chat/domain"
	"wallet-chat/errors"
)

func invitationKey(id domain.InvitationID) string { return "invite:" + id.String() }

// pendingInvitationKey points at the single pending invitation of (room, wallet).
func pendingInvitationKey(room domain.RoomID, wallet string) string {
	return "idx:invite_pending:" + room.String() + ":" + domain.NormalizeWallet(wallet)
}

func walletInvitationPrefix(wallet string) string {
	return "idx:invite_wallet:" + domain.NormalizeWallet(wallet) + ":"
}

func roomInvitationPrefix(room domain.RoomID) string {
	return "idx:invite_room:" + room.String() + ":"
}

func (tx *Tx) GetInvitation(id domain.InvitationID) (domain.Invitation, error) {
	inv, found, err := getValue[domain.Invitation](tx.txn, invitationKey(id))
	if err != nil {
		return domain.Invitation{}, errors.StoreFailure(err)
	}
	if !found {
		return domain.Invitation{}, errors.ErrInvitationNotFound
	}
	return inv, nil
}

// PutInvitation writes the invitation and its indexes. The pending index is
// cleared once the invitation it points at is resolved.
func (tx *Tx) PutInvitation(inv domain.Invitation) error {
	if err := setValue(tx.txn, invitationKey(inv.ID), inv); err != nil {
		return errors.StoreFailure(err)
	}
	if err := tx.txn.Set([]byte(walletInvitationPrefix(inv.InviteeWallet)+inv.ID.String()), nil); err != nil {
		return errors.StoreFailure(err)
	}
	if err := tx.txn.Set([]byte(roomInvitationPrefix(inv.RoomID)+inv.ID.String()), nil); err != nil {
		return errors.StoreFailure(err)
	}

	pendingKey := pendingInvitationKey(inv.RoomID, inv.InviteeWallet)
	if inv.Status == domain.InvitationPending {
		return errors.StoreFailure(setValue(tx.txn, pendingKey, inv.ID))
	}
	current, found, err := getValue[domain.InvitationID](tx.txn, pendingKey)
	if err != nil {
		return errors.StoreFailure(err)
	}
	if found && current == inv.ID {
		return errors.StoreFailure(deleteKey(tx.txn, pendingKey))
	}
	return nil
}

// PendingInvitation returns the pending invitation of (room, wallet), expired or not.
func (tx *Tx) PendingInvitation(room domain.RoomID, wallet string) (domain.Invitation, bool, error) {
	id, found, err := getValue[domain.InvitationID](tx.txn, pendingInvitationKey(room, wallet))
	if err != nil {
		return domain.Invitation{}, false, errors.StoreFailure(err)
	}
	if !found {
		return domain.Invitation{}, false, nil
	}
	inv, err := tx.GetInvitation(id)
	if errors.IsNotFound(err) {
		return domain.Invitation{}, false, nil
	}
	if err != nil {
		return domain.Invitation{}, false, err
	}
	return inv, inv.Status == domain.InvitationPending, nil
}

// InvitationsForWallet returns every invitation ever addressed to wallet, newest first.
func (tx *Tx) InvitationsForWallet(wallet string) ([]domain.Invitation, error) {
	return tx.invitationsFromIndex(walletInvitationPrefix(wallet))
}

// RoomInvitations returns every invitation of a room, newest first.
func (tx *Tx) RoomInvitations(room domain.RoomID) ([]domain.Invitation, error) {
	return tx.invitationsFromIndex(roomInvitationPrefix(room))
}

func (tx *Tx) invitationsFromIndex(prefix string) ([]domain.Invitation, error) {
	var invitations []domain.Invitation
	for _, id := range scanKeySuffixes(tx.txn, prefix) {
		inv, err := tx.GetInvitation(domain.InvitationID(id))
		if errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	sort.SliceStable(invitations, func(i, j int) bool {
		return invitations[i].CreatedAt.After(invitations[j].CreatedAt)
	})
	return invitations, nil
}
