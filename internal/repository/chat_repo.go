package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"fastchat/internal/models"
)

// ChatStore is the capability set handlers and the history service use.
type ChatStore interface {
	Get(ctx context.Context, id uint) (*models.Chat, error)
	Create(ctx context.Context, title string) (*models.Chat, error)
	Remove(ctx context.Context, id uint) (*models.Chat, error)
}

type ChatRepository struct {
	db *gorm.DB
}

var _ ChatStore = (*ChatRepository)(nil)

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create trims the title, validates it and inserts the chat.
func (r *ChatRepository) Create(ctx context.Context, title string) (*models.Chat, error) {
	title = strings.TrimSpace(title)
	if err := Validate(chatInput{Title: title}); err != nil {
		return nil, err
	}

	chat := &models.Chat{Title: title}
	if err := r.db.WithContext(ctx).Create(chat).Error; err != nil {
		return nil, persistenceError("create chat", err)
	}
	return chat, nil
}

// Get returns nil, nil when the chat does not exist.
func (r *ChatRepository) Get(ctx context.Context, id uint) (*models.Chat, error) {
	var chat models.Chat
	if err := r.db.WithContext(ctx).Take(&chat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, persistenceError("get chat", err)
	}
	return &chat, nil
}

// Remove deletes the chat and its messages in one transaction and returns
// the chat as it was. It returns nil, nil when the chat does not exist.
func (r *ChatRepository) Remove(ctx context.Context, id uint) (*models.Chat, error) {
	var removed *models.Chat
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chat models.Chat
		if err := tx.Take(&chat, id).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", chat.ID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&chat)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		removed = &chat
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, persistenceError("remove chat", err)
	}
	return removed, nil
}
