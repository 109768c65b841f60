package services

import (
	"context"
	"log/slog"
	"time"

	"wallet-chat/auth"
	"wallet-chat/domain"
	"wallet-chat/errors"
	"wallet-chat/repositories"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
)

type IChatService interface {
	PostMessage(ctx context.Context, sender domain.Identity, room domain.RoomID, content string) (domain.Message, error)
	GetMessages(ctx context.Context, user domain.UserID, room domain.RoomID, cursor *string, limit int) ([]domain.Message, *string, error)
	Like(ctx context.Context, user domain.Identity, message uuid.UUID) (domain.Message, error)
	Unlike(ctx context.Context, user domain.Identity, message uuid.UUID) (domain.Message, error)
	MessageRoom(ctx context.Context, message uuid.UUID) (domain.RoomID, error)
	Search(ctx context.Context, user domain.UserID, room domain.RoomID, text, lang string, limit int) ([]domain.Message, error)
}

// ChatService persists message content and reactions. Every call re-checks
// the caller's approval against the store inside its own transaction.
type ChatService struct {
	store            *repositories.Store
	index            *repositories.MessageIndex
	maxContentLength int
	pageSize         int
	log              *slog.Logger
	now              func() time.Time
}

func NewChatService(store *repositories.Store, index *repositories.MessageIndex, maxContentLength, pageSize int, log *slog.Logger) *ChatService {
	return &ChatService{
		store:            store,
		index:            index,
		maxContentLength: maxContentLength,
		pageSize:         pageSize,
		log:              log,
		now:              time.Now,
	}
}

// PostMessage validates and stores a message from an approved member.
func (s *ChatService) PostMessage(ctx context.Context, sender domain.Identity, roomID domain.RoomID, content string) (domain.Message, error) {
	content, err := auth.ValidateContent(content, s.maxContentLength)
	if err != nil {
		return domain.Message{}, err
	}

	message := domain.Message{
		ID:           uuid.New(),
		RoomID:       roomID,
		SenderID:     sender.UserID,
		SenderWallet: domain.NormalizeWallet(sender.Wallet),
		Content:      content,
		Lang:         detectLang(content),
	}
	err = s.store.Update(ctx, func(tx *repositories.Tx) error {
		if _, err := tx.ActiveRoom(roomID); err != nil {
			return err
		}
		if _, err := requireApproved(tx, roomID, sender.UserID); err != nil {
			return err
		}
		message.CreatedAt = s.now().UTC()
		return tx.PutMessage(message)
	})
	if err != nil {
		return domain.Message{}, err
	}

	if s.index != nil {
		if err := s.index.Index(message); err != nil {
			s.log.Warn("Message not indexed", "room_id", roomID, "message_id", message.ID, "error", err)
		}
	}
	s.log.Debug("Message posted", "room_id", roomID, "user_id", sender.UserID, "message_id", message.ID)
	return message, nil
}

// GetMessages pages through a room's history, newest first.
func (s *ChatService) GetMessages(ctx context.Context, user domain.UserID, roomID domain.RoomID, cursor *string, limit int) ([]domain.Message, *string, error) {
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}
	var messages []domain.Message
	var next *string
	err := s.store.View(ctx, func(tx *repositories.Tx) error {
		if _, err := tx.ActiveRoom(roomID); err != nil {
			return err
		}
		if _, err := requireApproved(tx, roomID, user); err != nil {
			return err
		}
		var err error
		messages, next, err = tx.Messages(roomID, cursor, limit)
		return err
	})
	return messages, next, err
}

// Like records a like and returns the message with its recomputed count.
func (s *ChatService) Like(ctx context.Context, user domain.Identity, messageID uuid.UUID) (domain.Message, error) {
	return s.react(ctx, user, messageID, func(tx *repositories.Tx) error {
		_, err := tx.PutReaction(domain.Reaction{MessageID: messageID, UserID: user.UserID, CreatedAt: s.now().UTC()})
		return err
	})
}

// Unlike removes a like and returns the message with its recomputed count.
func (s *ChatService) Unlike(ctx context.Context, user domain.Identity, messageID uuid.UUID) (domain.Message, error) {
	return s.react(ctx, user, messageID, func(tx *repositories.Tx) error {
		_, err := tx.DeleteReaction(messageID, user.UserID)
		return err
	})
}

// MessageRoom resolves the room a message was posted in. It checks nothing
// about the caller: Like and Unlike do that in their own transaction.
func (s *ChatService) MessageRoom(ctx context.Context, messageID uuid.UUID) (domain.RoomID, error) {
	var room domain.RoomID
	err := s.store.View(ctx, func(tx *repositories.Tx) error {
		m, err := tx.GetMessage(messageID)
		room = m.RoomID
		return err
	})
	return room, err
}

func (s *ChatService) react(ctx context.Context, user domain.Identity, messageID uuid.UUID, mutate func(tx *repositories.Tx) error) (domain.Message, error) {
	var message domain.Message
	err := s.store.Update(ctx, func(tx *repositories.Tx) error {
		m, err := tx.GetMessage(messageID)
		if err != nil {
			return err
		}
		if _, err := tx.ActiveRoom(m.RoomID); err != nil {
			return err
		}
		if _, err := requireApproved(tx, m.RoomID, user.UserID); err != nil {
			return err
		}
		if err := mutate(tx); err != nil {
			return err
		}
		m.LikeCount = tx.CountReactions(messageID)
		message = m
		return nil
	})
	return message, err
}

// Search runs a full-text query over a room's messages, newest first.
func (s *ChatService) Search(ctx context.Context, user domain.UserID, roomID domain.RoomID, text, lang string, limit int) ([]domain.Message, error) {
	if text == "" {
		return nil, errors.ErrEmptyContent
	}
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}
	err := s.store.View(ctx, func(tx *repositories.Tx) error {
		if _, err := tx.ActiveRoom(roomID); err != nil {
			return err
		}
		_, err := requireApproved(tx, roomID, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	ids, err := s.index.Search(ctx, roomID, text, lang, limit)
	if err != nil {
		return nil, errors.StoreFailure(err)
	}

	var messages []domain.Message
	err = s.store.View(ctx, func(tx *repositories.Tx) error {
		for _, id := range ids {
			m, err := tx.GetMessage(id)
			if errors.IsNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return nil
	})
	return messages, err
}

// detectLang returns the ISO 639-1 code of content when the guess is reliable.
func detectLang(content string) string {
	info := whatlanggo.Detect(content)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
