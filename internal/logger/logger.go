package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. level uses zap names (debug, info, warn, error).
func New(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = lvl > zapcore.DebugLevel

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log.Named("fastchat"), nil
}

// Goose adapts a zap logger to goose.Logger.
type Goose struct {
	*zap.SugaredLogger
}

func NewGoose(log *zap.Logger) Goose {
	return Goose{SugaredLogger: log.Named("migrations").Sugar()}
}

func (g Goose) Printf(format string, v ...interface{}) {
	g.Infof(format, v...)
}
