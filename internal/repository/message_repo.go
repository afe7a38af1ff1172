package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fastchat/internal/models"
)

type MessageStore interface {
	CreateMessage(ctx context.Context, chatID uint, text string) (*models.Message, error)
	ListRecent(ctx context.Context, chatID uint, limit int) ([]models.Message, error)
}

type MessageRepository struct {
	db *gorm.DB
}

var _ MessageStore = (*MessageRepository)(nil)

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// newestFirst orders by creation time with the id as tie-break so that
// equal timestamps still page deterministically.
var newestFirst = clause.OrderBy{Columns: []clause.OrderByColumn{
	{Column: clause.Column{Name: "created_at"}, Desc: true},
	{Column: clause.Column{Name: "id"}, Desc: true},
}}

// CreateMessage stores text in the chat. The chat is looked up first so an
// unknown chat is reported as ErrNotFound regardless of the text.
// Text is stored as given, without trimming.
func (r *MessageRepository) CreateMessage(ctx context.Context, chatID uint, text string) (*models.Message, error) {
	db := r.db.WithContext(ctx)

	var exists int64
	if err := db.Model(&models.Chat{}).Where("id = ?", chatID).Count(&exists).Error; err != nil {
		return nil, persistenceError("check chat", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	if err := Validate(messageInput{Text: text}); err != nil {
		return nil, err
	}

	msg := &models.Message{ChatID: chatID, Text: text}
	if err := db.Create(msg).Error; err != nil {
		// the chat was removed between the lookup and the insert
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, ErrNotFound
		}
		return nil, persistenceError("create message", err)
	}
	return msg, nil
}

// ListRecent returns up to limit messages of the chat, newest first.
func (r *MessageRepository) ListRecent(ctx context.Context, chatID uint, limit int) ([]models.Message, error) {
	if err := Validate(listInput{Limit: limit}); err != nil {
		return nil, err
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Clauses(newestFirst).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, persistenceError("list messages", err)
	}
	return messages, nil
}
