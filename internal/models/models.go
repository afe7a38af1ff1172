package models

import (
	"time"
)

// Chat owns its messages. The Messages association only carries the
// cascade constraint for AutoMigrate; it is never preloaded or serialized.
type Chat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	Messages  []Message `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE;" json:"-"`
}

type Message struct {
	ID        uint      `gorm:"primaryKey;index:idx_messages_chat_created,priority:3,sort:desc" json:"id"`
	ChatID    uint      `gorm:"not null;index:idx_messages_chat_created,priority:1" json:"chat_id"`
	Text      string    `gorm:"size:5000;not null" json:"text"`
	CreatedAt time.Time `gorm:"not null;index:idx_messages_chat_created,priority:2,sort:desc" json:"created_at"`
}

// ChatHistory is a chat together with a window of its most recent
// messages, oldest first.
type ChatHistory struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

func NewChatHistory(chat *Chat, messages []Message) *ChatHistory {
	if messages == nil {
		messages = []Message{}
	}
	return &ChatHistory{
		ID:        chat.ID,
		Title:     chat.Title,
		CreatedAt: chat.CreatedAt,
		Messages:  messages,
	}
}
