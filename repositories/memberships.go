package repositories

import (
	"sort"

	"wallet-chat/domain"
	"wallet-chat/errors"

	"github.com/samber/lo"
)

// member:{room}:{user} holds the row; idx:user_room:{user}:{room} lets a user's
// rooms be listed without scanning every room.
func memberKey(room domain.RoomID, user domain.UserID) string {
	return memberPrefix(room) + user.String()
}

func memberPrefix(room domain.RoomID) string { return "member:" + room.String() + ":" }

func userRoomKey(user domain.UserID, room domain.RoomID) string {
	return userRoomPrefix(user) + room.String()
}

func userRoomPrefix(user domain.UserID) string { return "idx:user_room:" + user.String() + ":" }

// GetMembership returns the (room, user) row. found is false when no row exists.
func (tx *Tx) GetMembership(room domain.RoomID, user domain.UserID) (domain.Membership, bool, error) {
	m, found, err := getValue[domain.Membership](tx.txn, memberKey(room, user))
	if err != nil {
		return domain.Membership{}, false, errors.StoreFailure(err)
	}
	return m, found, nil
}

// PutMembership upserts the row keyed by (room, user).
func (tx *Tx) PutMembership(m domain.Membership) error {
	if err := setValue(tx.txn, memberKey(m.RoomID, m.UserID), m); err != nil {
		return errors.StoreFailure(err)
	}
	return errors.StoreFailure(tx.txn.Set([]byte(userRoomKey(m.UserID, m.RoomID)), nil))
}

// DeleteMembership removes the row outright.
func (tx *Tx) DeleteMembership(room domain.RoomID, user domain.UserID) error {
	if err := deleteKey(tx.txn, memberKey(room, user)); err != nil {
		return errors.StoreFailure(err)
	}
	return errors.StoreFailure(deleteKey(tx.txn, userRoomKey(user, room)))
}

// RoomMemberships returns every row of a room, whatever the status.
func (tx *Tx) RoomMemberships(room domain.RoomID) ([]domain.Membership, error) {
	rows, err := scanValues[domain.Membership](tx.txn, memberPrefix(room))
	return rows, errors.StoreFailure(err)
}

// ApprovedMembers returns the approved rows of a room in succession order.
func (tx *Tx) ApprovedMembers(room domain.RoomID) ([]domain.Membership, error) {
	rows, err := tx.RoomMemberships(room)
	if err != nil {
		return nil, err
	}
	approved := lo.Filter(rows, func(m domain.Membership, _ int) bool { return m.Approved() })
	sort.SliceStable(approved, func(i, j int) bool { return approved[i].JoinedBefore(approved[j]) })
	return approved, nil
}

// UserMemberships returns every row owned by user.
func (tx *Tx) UserMemberships(user domain.UserID) ([]domain.Membership, error) {
	var rows []domain.Membership
	for _, room := range scanKeySuffixes(tx.txn, userRoomPrefix(user)) {
		m, found, err := tx.GetMembership(domain.RoomID(room), user)
		if err != nil {
			return nil, err
		}
		if found {
			rows = append(rows, m)
		}
	}
	return rows, nil
}
