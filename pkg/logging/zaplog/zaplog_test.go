package zaplog

import (
	"testing"

	"github.com/core-tools/hsu-netstatus/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestNewLogFuncs_RoutesLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := logging.NewLogger("[netstatus] ", NewLogFuncs(zap.New(core)))

	logger.Debugf("filtered out")
	logger.Infof("analyzer %s started", "SpeedToBing")
	logger.Errorf("analyzer %s failed", "dns")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "[netstatus] analyzer SpeedToBing started", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "[netstatus] analyzer dns failed", entries[1].Message)
}

func TestNewLogger(t *testing.T) {
	logger, sync, err := NewLogger("", "debug")
	require.NoError(t, err)
	require.NotNil(t, sync)
	assert.NotPanics(t, func() { logger.Debugf("hello") })
}
