package repositories

import (
	"sort"

	"wallet-chat/domain"
	"wallet-chat/errors"

	"github.com/samber/lo"
)

func roomKey(id domain.RoomID) string { return "room:" + id.String() }

func publicRoomKey(id domain.RoomID) string { return "idx:public_room:" + id.String() }

const publicRoomPrefix = "idx:public_room:"

// directRoomKey is symmetric in its two participants.
func directRoomKey(a, b domain.UserID) string {
	if b < a {
		a, b = b, a
	}
	return "idx:direct:" + a.String() + ":" + b.String()
}

// GetRoom loads a room whatever its active flag.
func (tx *Tx) GetRoom(id domain.RoomID) (domain.Room, error) {
	room, found, err := getValue[domain.Room](tx.txn, roomKey(id))
	if err != nil {
		return domain.Room{}, errors.StoreFailure(err)
	}
	if !found {
		return domain.Room{}, errors.ErrRoomNotFound
	}
	return room, nil
}

// ActiveRoom loads a room and treats a deactivated one as absent.
func (tx *Tx) ActiveRoom(id domain.RoomID) (domain.Room, error) {
	room, err := tx.GetRoom(id)
	if err != nil {
		return domain.Room{}, err
	}
	if !room.Active {
		return domain.Room{}, errors.ErrRoomNotFound
	}
	return room, nil
}

// PutRoom writes the room and keeps the public catalogue index in step.
func (tx *Tx) PutRoom(room domain.Room) error {
	if err := setValue(tx.txn, roomKey(room.ID), room); err != nil {
		return errors.StoreFailure(err)
	}
	if room.Type == domain.RoomPublic && room.Active {
		return errors.StoreFailure(tx.txn.Set([]byte(publicRoomKey(room.ID)), nil))
	}
	return errors.StoreFailure(deleteKey(tx.txn, publicRoomKey(room.ID)))
}

// PublicRooms lists active public rooms, oldest first.
func (tx *Tx) PublicRooms() ([]domain.Room, error) {
	ids := scanKeySuffixes(tx.txn, publicRoomPrefix)
	rooms := make([]domain.Room, 0, len(ids))
	for _, id := range ids {
		room, err := tx.ActiveRoom(domain.RoomID(id))
		if errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	sort.SliceStable(rooms, func(i, j int) bool { return rooms[i].CreatedAt.Before(rooms[j].CreatedAt) })
	return rooms, nil
}

// DirectRoom returns the active p2p room shared by a and b, if any.
func (tx *Tx) DirectRoom(a, b domain.UserID) (domain.Room, bool, error) {
	id, found, err := getValue[domain.RoomID](tx.txn, directRoomKey(a, b))
	if err != nil {
		return domain.Room{}, false, errors.StoreFailure(err)
	}
	if !found {
		return domain.Room{}, false, nil
	}
	room, err := tx.ActiveRoom(id)
	if errors.IsNotFound(err) {
		return domain.Room{}, false, nil
	}
	if err != nil {
		return domain.Room{}, false, err
	}
	return room, true, nil
}

func (tx *Tx) PutDirectRoom(a, b domain.UserID, id domain.RoomID) error {
	return errors.StoreFailure(setValue(tx.txn, directRoomKey(a, b), id))
}

// ActiveRooms keeps the rooms among ids that are still active.
func (tx *Tx) ActiveRooms(ids []domain.RoomID) ([]domain.Room, error) {
	rooms := make([]domain.Room, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		room, err := tx.ActiveRoom(id)
		if errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// Rooms returns every room ever created, active or not, oldest first.
func (tx *Tx) Rooms() ([]domain.Room, error) {
	rooms, err := scanValues[domain.Room](tx.txn, "room:")
	if err != nil {
		return nil, errors.StoreFailure(err)
	}
	sort.SliceStable(rooms, func(i, j int) bool { return rooms[i].CreatedAt.Before(rooms[j].CreatedAt) })
	return rooms, nil
}
