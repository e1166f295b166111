package core

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger replaces the bootstrap logger with one honoring the configured
// level.
func NewLogger(level string) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zap.L().Fatal("Invalid log level", zap.String("level", level), zap.Error(err))
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	zap.ReplaceGlobals(zap.Must(config.Build()))
}
