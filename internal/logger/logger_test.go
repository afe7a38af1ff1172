package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func observed(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

func traceFn(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestNew(t *testing.T) {
	log, err := New("warn")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	_, err = New("chatty")
	assert.Error(t, err)
}

func TestGormLevelFollowsZap(t *testing.T) {
	debug, _ := observed(zapcore.DebugLevel)
	info, _ := observed(zapcore.InfoLevel)

	assert.Equal(t, gormlogger.Info, NewGorm(debug, time.Second).level)
	assert.Equal(t, gormlogger.Warn, NewGorm(info, time.Second).level)
}

func TestGormTraceError(t *testing.T) {
	log, logs := observed(zapcore.DebugLevel)
	g := NewGorm(log, time.Second)

	g.Trace(context.Background(), time.Now(), traceFn("INSERT INTO chats", 0), errors.New("connection reset"))

	entries := logs.FilterMessage("query failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "INSERT INTO chats", entries[0].ContextMap()["sql"])
}

func TestGormTraceSkipsRecordNotFound(t *testing.T) {
	log, logs := observed(zapcore.InfoLevel)
	g := NewGorm(log, time.Second)

	g.Trace(context.Background(), time.Now(), traceFn("SELECT * FROM chats", 0), gorm.ErrRecordNotFound)

	assert.Zero(t, logs.Len())
}

func TestGormTraceSlowQuery(t *testing.T) {
	log, logs := observed(zapcore.InfoLevel)
	g := NewGorm(log, time.Millisecond)

	g.Trace(context.Background(), time.Now().Add(-time.Second), traceFn("SELECT 1", 1), nil)

	entries := logs.FilterMessage("slow query").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestGormTraceDebugOnlyAtInfoMode(t *testing.T) {
	log, logs := observed(zapcore.DebugLevel)
	g := NewGorm(log, time.Second)

	g.Trace(context.Background(), time.Now(), traceFn("SELECT 1", 1), nil)
	assert.Equal(t, 1, logs.FilterMessage("query").Len())

	silent := g.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), traceFn("SELECT 1", 1), errors.New("boom"))
	assert.Equal(t, 1, logs.Len())
}

func TestGoosePrintf(t *testing.T) {
	log, logs := observed(zapcore.InfoLevel)

	NewGoose(log).Printf("OK   %s (%s)", "00001_create_chats_and_messages.sql", "2ms")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "OK   00001_create_chats_and_messages.sql (2ms)", entries[0].Message)
}
