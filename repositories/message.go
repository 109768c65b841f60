package repositories

import (
	"fmt"
	"time"

	"wallet-chat/domain"
	"wallet-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DiskMessage is the persisted form of a message. The like count is never
// stored: it is recomputed from the reaction keys on every read.
type DiskMessage struct {
	ID      uuid.UUID
	Room    domain.RoomID
	Author  domain.UserID
	Wallet  string
	Content string
	Lang    string
	At      time.Time
}

// messageKey is formatted as "msg:{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Keep chronological order inside a room using 19-digit zero padding.
//  2. Use the UUID as a tie breaker when two messages share a nanosecond.
func messageKey(m DiskMessage) string {
	return fmt.Sprintf("%s%019d:%s", messagePrefix(m.Room), m.At.UnixNano(), m.ID)
}

func messagePrefix(room domain.RoomID) string { return "msg:" + room.String() + ":" }

func messageIndexKey(id uuid.UUID) string { return "idx:msg:" + id.String() }

func reactionKey(message uuid.UUID, user domain.UserID) string {
	return reactionPrefix(message) + user.String()
}

func reactionPrefix(message uuid.UUID) string { return "like:" + message.String() + ":" }

// PutMessage persists a message and the index resolving its id to its key.
func (tx *Tx) PutMessage(m domain.Message) error {
	disk := fromMessage(m)
	key := messageKey(disk)
	if err := setValue(tx.txn, key, disk); err != nil {
		return errors.StoreFailure(err)
	}
	return errors.StoreFailure(setValue(tx.txn, messageIndexKey(m.ID), key))
}

// GetMessage loads a message with its current like count.
func (tx *Tx) GetMessage(id uuid.UUID) (domain.Message, error) {
	key, found, err := getValue[string](tx.txn, messageIndexKey(id))
	if err != nil {
		return domain.Message{}, errors.StoreFailure(err)
	}
	if !found {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	disk, found, err := getValue[DiskMessage](tx.txn, key)
	if err != nil {
		return domain.Message{}, errors.StoreFailure(err)
	}
	if !found {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	return tx.toMessage(disk), nil
}

// Messages returns up to limit messages of a room, newest first, starting
// strictly before cursor when one is given. The returned cursor is the key
// suffix of the last message read.
func (tx *Tx) Messages(room domain.RoomID, cursor *string, limit int) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string
	prefix := []byte(messagePrefix(room))

	options := badger.DefaultIteratorOptions
	options.Reverse = true
	it := tx.txn.NewIterator(options)
	defer it.Close()

	var seekKey []byte
	switch cursor {
	case nil:
		// Seek past the newest possible key, then walk backwards.
		seekKey = append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
	default:
		seekKey = append(append([]byte{}, prefix...), []byte(*cursor)...)
	}

	it.Seek(seekKey)
	if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()[len(prefix):]) == *cursor {
		it.Next()
	}

	for ; it.ValidForPrefix(prefix); it.Next() {
		if limit > 0 && len(messages) == limit {
			break
		}
		item := it.Item()
		lastKey = string(item.Key()[len(prefix):])
		var disk DiskMessage
		if err := item.Value(func(val []byte) error { return unmarshal(val, &disk) }); err != nil {
			return nil, nil, errors.StoreFailure(err)
		}
		messages = append(messages, tx.toMessage(disk))
	}
	if len(messages) == 0 {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

// PutReaction records a like. It reports false when the user already liked the message.
func (tx *Tx) PutReaction(r domain.Reaction) (bool, error) {
	key := reactionKey(r.MessageID, r.UserID)
	found, err := exists(tx.txn, key)
	if err != nil {
		return false, errors.StoreFailure(err)
	}
	if found {
		return false, nil
	}
	return true, errors.StoreFailure(setValue(tx.txn, key, r))
}

// DeleteReaction removes a like. It reports false when there was none.
func (tx *Tx) DeleteReaction(message uuid.UUID, user domain.UserID) (bool, error) {
	key := reactionKey(message, user)
	found, err := exists(tx.txn, key)
	if err != nil {
		return false, errors.StoreFailure(err)
	}
	if !found {
		return false, nil
	}
	return true, errors.StoreFailure(deleteKey(tx.txn, key))
}

func (tx *Tx) CountReactions(message uuid.UUID) int {
	return countKeys(tx.txn, reactionPrefix(message))
}

func (tx *Tx) toMessage(disk DiskMessage) domain.Message {
	m := toMessage(disk)
	m.LikeCount = tx.CountReactions(disk.ID)
	return m
}

func fromMessage(m domain.Message) DiskMessage {
	return DiskMessage{
		ID:      m.ID,
		Room:    m.RoomID,
		Author:  m.SenderID,
		Wallet:  m.SenderWallet,
		Content: m.Content,
		Lang:    m.Lang,
		At:      m.CreatedAt,
	}
}

func toMessage(disk DiskMessage) domain.Message {
	return domain.Message{
		ID:           disk.ID,
		RoomID:       disk.Room,
		SenderID:     disk.Author,
		SenderWallet: disk.Wallet,
		Content:      disk.Content,
		Lang:         disk.Lang,
		CreatedAt:    disk.At.UTC(),
	}
}

// MessageIDs extracts ids, mostly for logging and tests.
func MessageIDs(messages []domain.Message) []uuid.UUID {
	return lo.Map(messages, func(m domain.Message, _ int) uuid.UUID { return m.ID })
}
