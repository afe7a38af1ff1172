package service

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"fastchat/internal/models"
	"fastchat/internal/repository"
)

type ChatGetter interface {
	Get(ctx context.Context, id uint) (*models.Chat, error)
}

type MessageLister interface {
	ListRecent(ctx context.Context, chatID uint, limit int) ([]models.Message, error)
}

// HistoryService assembles a chat with the latest page of its messages.
type HistoryService struct {
	chats    ChatGetter
	messages MessageLister
	log      *zap.Logger
}

func NewHistoryService(chats ChatGetter, messages MessageLister, log *zap.Logger) *HistoryService {
	return &HistoryService{chats: chats, messages: messages, log: log}
}

// GetHistory returns the chat and its limit most recent messages in
// chronological order. It returns nil, nil when the chat does not exist,
// without querying messages.
func (s *HistoryService) GetHistory(ctx context.Context, chatID uint, limit int) (*models.ChatHistory, error) {
	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load chat %d: %w", chatID, err)
	}
	if chat == nil {
		return nil, nil
	}

	s.log.Debug("querying messages", zap.Uint("chat_id", chatID), zap.Int("limit", limit))
	messages, err := s.messages.ListRecent(ctx, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("load messages of chat %d: %w", chatID, err)
	}

	// fetched newest first, displayed oldest first
	slices.Reverse(messages)
	return models.NewChatHistory(chat, messages), nil
}

var _ ChatGetter = (repository.ChatStore)(nil)
var _ MessageLister = (repository.MessageStore)(nil)
