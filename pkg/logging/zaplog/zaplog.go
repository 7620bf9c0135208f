package zaplog

import (
	"strings"

	"github.com/core-tools/hsu-netstatus/pkg/logging"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps "debug", "info", "warn" and "error" to zap levels; anything else is info
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewConsoleLogger builds a console-encoded zap logger writing to stderr
func NewConsoleLogger(level string) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.DisableStacktrace = true
	return config.Build()
}

// NewLogFuncs adapts a zap logger to logging.LogFuncs
func NewLogFuncs(z *zap.Logger) logging.LogFuncs {
	sugar := z.WithOptions(zap.AddCallerSkip(2)).Sugar()
	return logging.LogFuncs{
		Debugf: sugar.Debugf,
		Infof:  sugar.Infof,
		Warnf:  sugar.Warnf,
		Errorf: sugar.Errorf,
	}
}

// NewLogger returns a logging.Logger backed by zap and a sync func to flush it on exit
func NewLogger(prefix, level string) (logging.Logger, func(), error) {
	z, err := NewConsoleLogger(level)
	if err != nil {
		return nil, nil, err
	}
	sync := func() { _ = z.Sync() }
	return logging.NewLogger(prefix, NewLogFuncs(z)), sync, nil
}
