package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fastchat/internal/database"
	"fastchat/internal/models"
)

type RepositoryTestSuite struct {
	suite.Suite
	db       *gorm.DB
	chats    *ChatRepository
	messages *MessageRepository
	ctx      context.Context
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open("file:repository_test?mode=memory&cache=shared&_foreign_keys=on"),
		database.GormConfig(zap.NewNop(), time.Second))
	s.Require().NoError(err)

	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	s.Require().NoError(database.AutoMigrate(db))
	s.db = db
	s.chats = NewChatRepository(db)
	s.messages = NewMessageRepository(db)
	s.ctx = context.Background()
}

func (s *RepositoryTestSuite) TearDownSuite() {
	s.NoError(database.Close(s.db))
}

func (s *RepositoryTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM messages")
	s.db.Exec("DELETE FROM chats")
}

func (s *RepositoryTestSuite) count(model any) int64 {
	var n int64
	s.Require().NoError(s.db.Model(model).Count(&n).Error)
	return n
}

func (s *RepositoryTestSuite) mustChat(title string) *models.Chat {
	chat, err := s.chats.Create(s.ctx, title)
	s.Require().NoError(err)
	return chat
}

func (s *RepositoryTestSuite) mustMessage(chatID uint, text string) *models.Message {
	msg, err := s.messages.CreateMessage(s.ctx, chatID, text)
	s.Require().NoError(err)
	return msg
}

func (s *RepositoryTestSuite) TestCreateChat() {
	start := database.Now()
	chat := s.mustChat("  Test Chat ")

	s.Positive(chat.ID)
	s.Equal("Test Chat", chat.Title)
	s.False(chat.CreatedAt.Before(start))

	stored, err := s.chats.Get(s.ctx, chat.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored)
	s.Equal(chat.Title, stored.Title)
	s.True(chat.CreatedAt.Equal(stored.CreatedAt))
}

func (s *RepositoryTestSuite) TestCreateChatIDsIncrease() {
	first := s.mustChat("one")
	second := s.mustChat("two")
	s.Greater(second.ID, first.ID)
}

func (s *RepositoryTestSuite) TestCreateChatValidation() {
	for _, title := range []string{"", "   ", "\t\n", strings.Repeat("x", MaxTitleLength+1)} {
		chat, err := s.chats.Create(s.ctx, title)
		s.Nil(chat)

		var verr *ValidationError
		s.Require().ErrorAs(err, &verr)
		s.Equal("title", verr.Fields[0].Field)
	}
	s.Zero(s.count(&models.Chat{}))

	s.mustChat(strings.Repeat("я", MaxTitleLength))
}

func (s *RepositoryTestSuite) TestGetMissing() {
	chat, err := s.chats.Get(s.ctx, 424242)
	s.NoError(err)
	s.Nil(chat)
}

func (s *RepositoryTestSuite) TestRemoveCascades() {
	chat := s.mustChat("doomed")
	other := s.mustChat("survivor")
	s.mustMessage(chat.ID, "a")
	s.mustMessage(chat.ID, "b")
	s.mustMessage(other.ID, "c")

	removed, err := s.chats.Remove(s.ctx, chat.ID)
	s.Require().NoError(err)
	s.Require().NotNil(removed)
	s.Equal(chat.ID, removed.ID)
	s.Equal("doomed", removed.Title)

	got, err := s.chats.Get(s.ctx, chat.ID)
	s.NoError(err)
	s.Nil(got)
	s.Equal(int64(1), s.count(&models.Message{}))

	again, err := s.chats.Remove(s.ctx, chat.ID)
	s.NoError(err)
	s.Nil(again)
}

func (s *RepositoryTestSuite) TestCreateMessage() {
	chat := s.mustChat("talk")
	start := database.Now()

	msg := s.mustMessage(chat.ID, " hello ")
	s.Positive(msg.ID)
	s.Equal(chat.ID, msg.ChatID)
	s.Equal(" hello ", msg.Text)
	s.False(msg.CreatedAt.Before(start))
}

func (s *RepositoryTestSuite) TestCreateMessageUnknownChat() {
	for _, text := range []string{"hi", ""} {
		msg, err := s.messages.CreateMessage(s.ctx, 777, text)
		s.Nil(msg)
		s.ErrorIs(err, ErrNotFound)
	}
	s.Zero(s.count(&models.Message{}))
}

func (s *RepositoryTestSuite) TestCreateMessageValidation() {
	chat := s.mustChat("limits")

	for _, text := range []string{"", "  ", strings.Repeat("a", MaxTextLength+1)} {
		_, err := s.messages.CreateMessage(s.ctx, chat.ID, text)
		var verr *ValidationError
		s.Require().ErrorAs(err, &verr)
		s.Equal("text", verr.Fields[0].Field)
	}
	s.Zero(s.count(&models.Message{}))

	s.mustMessage(chat.ID, strings.Repeat("ё", MaxTextLength))
}

func (s *RepositoryTestSuite) TestForeignKeyViolationTranslated() {
	err := s.db.Create(&models.Message{ChatID: 31337, Text: "orphan"}).Error
	s.ErrorIs(err, gorm.ErrForeignKeyViolated)
}

func (s *RepositoryTestSuite) TestListRecent() {
	chat := s.mustChat("history")
	other := s.mustChat("noise")
	for i := 0; i < 6; i++ {
		s.mustMessage(chat.ID, fmt.Sprintf("m%d", i))
		s.mustMessage(other.ID, fmt.Sprintf("n%d", i))
	}

	got, err := s.messages.ListRecent(s.ctx, chat.ID, 4)
	s.Require().NoError(err)
	s.Require().Len(got, 4)
	for i, want := range []string{"m5", "m4", "m3", "m2"} {
		s.Equal(want, got[i].Text)
		s.Equal(chat.ID, got[i].ChatID)
	}

	all, err := s.messages.ListRecent(s.ctx, chat.ID, 100)
	s.Require().NoError(err)
	s.Len(all, 6)
}

func (s *RepositoryTestSuite) TestListRecentTieBreaksOnID() {
	chat := s.mustChat("same instant")
	at := database.Now()
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.db.Create(&models.Message{ChatID: chat.ID, Text: fmt.Sprintf("t%d", i), CreatedAt: at}).Error)
	}

	got, err := s.messages.ListRecent(s.ctx, chat.ID, 2)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("t2", got[0].Text)
	s.Equal("t1", got[1].Text)
}

func (s *RepositoryTestSuite) TestListRecentRejectsNonPositiveLimit() {
	_, err := s.messages.ListRecent(s.ctx, 1, 0)
	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("limit", verr.Fields[0].Field)
}

func (s *RepositoryTestSuite) TestPersistenceErrorWraps() {
	closed, err := gorm.Open(sqlite.Open("file:closed_test?mode=memory"), database.GormConfig(zap.NewNop(), time.Second))
	s.Require().NoError(err)
	s.Require().NoError(database.Close(closed))

	_, err = NewChatRepository(closed).Create(s.ctx, "never")
	var perr *PersistenceError
	s.Require().ErrorAs(err, &perr)
	s.Equal("create chat", perr.Op)
	s.NotNil(errors.Unwrap(err))
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Fields: []FieldError{
		{Field: "title", Message: "must not be empty"},
		{Field: "limit", Message: "must be at least 1"},
	}}
	if got, want := err.Error(), "validation failed: title: must not be empty; limit: must be at least 1"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
