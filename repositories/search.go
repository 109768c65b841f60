package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"wallet-chat/domain"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

const (
	roomField    = "room"
	contentField = "content"
	langField    = "lang"
	atField      = "at"
	idField      = "_id"
)

// MessageIndex is the full-text index over message content. It is written
// after the badger commit and is allowed to lag behind it.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Index adds or replaces the document of a message.
func (i *MessageIndex) Index(m domain.Message) error {
	doc := bluge.NewDocument(m.ID.String()).
		AddField(bluge.NewKeywordField(roomField, m.RoomID.String())).
		AddField(bluge.NewTextField(contentField, m.Content)).
		AddField(bluge.NewKeywordField(langField, m.Lang)).
		AddField(bluge.NewDateTimeField(atField, m.CreatedAt).Sortable())
	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index message %s: %w", m.ID, err)
	}
	return nil
}

// Search returns the ids of the messages of room matching text, newest first.
// An empty lang matches every language.
func (i *MessageIndex) Search(ctx context.Context, room domain.RoomID, text, lang string, limit int) ([]uuid.UUID, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open index reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(room.String()).SetField(roomField)).
		AddMust(bluge.NewMatchQuery(text).SetField(contentField))
	if lang != "" {
		query.AddMust(bluge.NewTermQuery(lang).SetField(langField))
	}
	request := bluge.NewTopNSearch(limit, query).SortBy([]string{"-" + atField})

	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("search room %s: %w", room, err)
	}

	var ids []uuid.UUID
	match, err := matches.Next()
	for err == nil && match != nil {
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field != idField {
				return true
			}
			id, parseErr := uuid.Parse(string(value))
			if parseErr != nil {
				i.log.Warn("Unparsable id in message index", "id", string(value))
				return false
			}
			ids = append(ids, id)
			return false
		})
		if visitErr != nil {
			return nil, visitErr
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}
	return ids, nil
}

func (i *MessageIndex) Close() error {
	return i.writer.Close()
}
